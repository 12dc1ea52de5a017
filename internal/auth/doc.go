// Package auth implements delegated credential checking for the dashboard
// API. No credential literal exists anywhere in this codebase: login
// verification is delegated to an external verifier endpoint, and session
// state is carried in HMAC-signed expiring tokens keyed from configuration.
package auth
