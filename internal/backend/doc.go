// Package backend speaks the storefront backend's HTTP dialect: base URL joining,
// default headers, request ids, the auth endpoint payloads and the error body
// contract.
//
// # Architecture boundaries
//
// [Transport] is the bare transport. It attaches exactly the bearer it is given and
// never refreshes or retries; the request pipeline in internal/flows owns that.
// The refresh and logout calls use it directly.
//
// # What this package must NOT do
//
//   - Read or write the session store.
//   - Import storefront (to avoid import cycles).
//   - Interpret status codes beyond parsing error bodies.
package backend
