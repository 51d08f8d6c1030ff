// Package authcore provides an embeddable authentication engine with JWT access
// tokens, rotating opaque refresh tokens with family-based theft detection, and
// TOTP-based two-factor authentication with single-use backup codes.
//
// The package is designed for concurrent server workloads: Engine methods are safe
// to call from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config], the
// [CredentialStore] persistence contract, and value types (SessionResult,
// LoginResult, Profile, MetricsSnapshot, etc.). Token encoding lives in the token
// sub-package, password hashing in password, and storage backends under pgstore.
// None of the sub-packages import authcore (no import cycles).
//
// # What this package must NOT do
//
//   - Expose database handles, Redis clients, or token signing keys in its public API.
//   - Return password hashes, TOTP secrets, or backup-code hashes from any
//     read operation.
//   - Perform I/O outside of Engine methods (construction via Builder is
//     allocation-only until Build).
//
// # Performance contract
//
// Validate is the hot path. It must not allocate beyond the returned Claims and
// never touches the CredentialStore. Login, Refresh, and the two-factor
// operations are allowed one store round-trip per persisted entity they touch.
package authcore
