// Package auth issues and validates opaque API tokens.
//
// Tokens look like gatherly_<base64url random>; only a sha256 hash is
// stored, and the display prefix (gatherly_ plus the first eight
// encoded characters) identifies tokens in listings. Validation
// rejects revoked and expired tokens and stamps last use.
package auth
