// Package session owns the authentication lifecycle.
//
// The Machine is a state machine over five states (anonymous,
// authenticating, authenticated, refreshing, expired). It is the single
// writer of the credential store and the single place token refresh
// happens: concurrent refresh attempts collapse into one in-flight
// exchange via singleflight, and a failed refresh expires the session.
//
// Around the machine sit its collaborators:
//
//   - Authenticator exchanges credentials for token pairs.
//     LocalAuthenticator implements it against the users and
//     refresh_tokens tables, with Argon2id password hashes and
//     rotate-on-use refresh tokens.
//   - IdleMonitor ends the session after a configurable period of
//     inactivity.
//
// Ordering guarantee: on logout (explicit, idle, or expiry) the
// credential store is cleared and the state reset before any subscriber
// is notified, so nothing downstream can observe a stale authenticated
// session.
package session
