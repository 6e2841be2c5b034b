package credential

import (
	"context"
	"errors"
)

// ErrStorageUnavailable marks a persistence failure (storage disabled,
// quota exceeded, file unwritable). It is a non-fatal condition: the
// session continues in memory for the process lifetime and only loses
// durability across restarts.
var ErrStorageUnavailable = errors.New("credential storage unavailable")

// Pair is the persisted credential pair. The two tokens are only ever
// written and cleared together; a half-written pair must be impossible.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// Store persists the current credential pair for a profile.
//
// Implementations must make Save atomic with respect to the pair: after
// a crash mid-write the store holds either the previous pair or the new
// one, never a mix. All mutations are funneled through the session
// machine; nothing else writes here.
type Store interface {
	// Save replaces the stored pair.
	Save(ctx context.Context, pair Pair) error

	// Load returns the stored pair, or nil when nothing is stored.
	Load(ctx context.Context) (*Pair, error)

	// Clear removes the stored pair. Clearing an empty store is a no-op.
	Clear(ctx context.Context) error
}
