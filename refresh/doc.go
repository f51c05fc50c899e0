// Package refresh coordinates access-token renewal for one client session.
//
// # Single flight
//
// [Coordinator.Ensure] guarantees at most one outstanding refresh-token exchange per
// Coordinator. Callers that arrive while an exchange is in flight are queued and all
// receive the exact outcome of that exchange: the same new access token, or the same
// [ErrReauthRequired] failure.
//
// # Failure policy
//
// Any failure to mint a new token (no refresh token stored, transport error, non-2xx
// response, malformed body, store write error) clears the session store before the
// failure is fanned out. No stale token survives a failed refresh.
//
// # Architecture boundaries
//
// The exchange itself is performed through an [Exchanger] that must bypass the
// authenticated request pipeline; otherwise a 401 from the refresh endpoint would
// recurse into another refresh.
//
// # What this package must NOT do
//
//   - Import storefront or internal/flows.
//   - Share refresh state between Coordinator instances.
//   - Retry a failed exchange.
package refresh
