// Package session holds the persisted client session (user identity, access token,
// refresh token, expiry) and the stores that keep it across process restarts.
//
// # Atomicity
//
// A [Session] is always written and cleared as a whole. Every [Store] implementation
// replaces the persisted value in one step (mutex swap, atomic file rename, or a single
// Redis SET), so a reader never sees an access token paired with a stale refresh token
// or expiry.
//
// # Architecture boundaries
//
// This package owns the [Session] model, its binary encoding, and the [Store]
// implementations. It does NOT decide whether a token is expired, talk to the
// storefront backend, or refresh anything; those belong to expiry, refresh and the
// root client.
//
// # What this package must NOT do
//
//   - Import storefront, refresh, or internal/flows (no upward imports).
//   - Validate or parse token contents.
//   - Keep partially-updated sessions visible to readers.
package session
