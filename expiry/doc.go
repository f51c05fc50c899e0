// Package expiry decides whether an access token can still be presented.
//
// A token is treated as stale a safety margin before its literal expiry so that a
// request does not reach the server with a token that lapses in flight. A missing
// expiry is always stale.
//
// # What this package must NOT do
//
//   - Perform I/O or read the session store.
//   - Parse tokens.
package expiry
