// Package token implements the credential codec for the Linden access
// core: encoding, decoding, and validating access token payloads, plus
// minting and hashing of opaque refresh tokens.
//
// Access tokens are HS256-signed JWTs carrying the subject, role,
// permission grants, and validity window. Decode verifies signature and
// structure but not expiry - the session machine inspects expired
// payloads to decide whether a silent refresh is possible. Validate is
// the strict variant that also enforces expiry.
//
// Refresh tokens are 256-bit random strings; raw values go to the
// credential store, only SHA-256 hashes are persisted in the
// refresh_tokens table.
//
// Everything here is pure: no I/O, no clocks except those passed in
// (Issue excepted, which stamps time.Now).
package token
