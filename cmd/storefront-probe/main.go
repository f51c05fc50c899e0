// Command storefront-probe drives the storefront client from a terminal: log in and
// out, inspect the stored session, and fire concurrent authenticated requests to watch
// refresh single-flight at work.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
