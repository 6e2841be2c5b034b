// Package credential persists the current access/refresh token pair.
//
// The store is a deliberately narrow key/value contract (save, load,
// clear) so the durability layer can be swapped: SQLite in production,
// memory for tests and for graceful degradation when storage fails.
//
// Two invariants matter here:
//
//   - Atomic pair writes. The access and refresh tokens are one unit;
//     Save either lands both or neither, so a crash mid-write can never
//     leave a mixed pair behind.
//   - Non-fatal failure. Persistence errors surface as
//     ErrStorageUnavailable and the session continues in memory only;
//     losing durability must never log the user out.
package credential
