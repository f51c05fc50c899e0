// Package flows contains pure-function orchestrators for every Client operation.
//
// Each flow function (RunRequest, RunLogin, RunLogout, etc.) accepts a typed
// dependency struct and returns a result with a failure kind instead of a root error.
// The Client maps kinds to its tagged error type. This keeps the flows testable with
// fake dependencies and keeps the Client thin.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the session store, the refresh coordinator and
// the backend transport. They do NOT own any of these resources; ownership stays with
// the Client.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import storefront (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency interfaces.
package flows
