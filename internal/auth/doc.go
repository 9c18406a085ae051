// Package auth verifies the shared admin secret.
//
// # Credential Document
//
// The secret lives in a TOML file holding exactly one of:
//
//	admin_password = "${GUIDE_ADMIN_PASSWORD}"
//	admin_password_hash = "$2a$10$..."
//
// ${VAR} references are expanded from the environment before decoding. A
// plain password is compared in constant time over SHA-256 digests so its
// length does not leak; a hash is checked with bcrypt. Generate hashes with
// the hash-password subcommand.
//
// # Elevation
//
// A successful Verify only tells the caller the secret matched. Admin mode,
// attempt counting and lockout are tracked on the user's session.
package auth
