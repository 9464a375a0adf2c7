// Package auth holds user accounts and opaque API tokens. Tokens are
// random, prefixed for display and stored only as SHA-256 hashes; the
// plaintext is returned exactly once at creation.
package auth
