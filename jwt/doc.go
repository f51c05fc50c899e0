// Package jwt reads expiry claims from access tokens handed out by the storefront
// backend and mints HS256 tokens for the in-process fake backend.
//
// The client never holds the backend's signing key, so [ExpiresAt] parses claims
// without verifying the signature. It is only used to fill in an expiry the backend
// omitted from a login or refresh response; authorization is always decided by the
// backend.
package jwt
