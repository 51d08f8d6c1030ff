// Package token implements the two token families used by the engine: signed
// JWT claims tokens (access and temp) and opaque random refresh secrets that
// are stored only as SHA-256 digests.
package token
