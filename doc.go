// Package storefront is the authenticated API access layer of the storefront client.
//
// A [Client] wraps every call to the storefront backend. It attaches a valid bearer
// token, refreshes it proactively when it is about to expire and reactively when the
// backend answers 401, and collapses concurrent refresh attempts into one network
// exchange whose outcome every caller shares. Login, registration and logout seed
// and clear the persisted session.
//
// Clients are safe for concurrent use after [Builder.Build].
//
// # Architecture boundaries
//
// storefront is the public surface. It exposes [Client], [Builder], [Config], the
// tagged [Error] type and value types (Request, Response, MetricsSnapshot). Flow
// orchestration, the HTTP dialect of the backend and event dispatch live under
// internal/. Token persistence is the session package, the staleness rule is the
// expiry package and single-flight refresh is the refresh package.
//
// # What this package must NOT do
//
//   - Send a request with an access token it already knows is stale.
//   - Route the refresh or logout exchange through the request pipeline.
//   - Retry a request more than once.
//   - Import any sub-package that re-imports storefront (no import cycles).
package storefront
