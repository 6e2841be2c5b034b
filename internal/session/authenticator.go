package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lindenpress/linden-access/internal/access"
	"github.com/lindenpress/linden-access/internal/infrastructure/logging"
	"github.com/lindenpress/linden-access/internal/token"
)

// TokenRevoker invalidates every server-side refresh token a subject
// holds. Split from Authenticator because most callers only exchange
// tokens and never revoke.
type TokenRevoker interface {
	Revoke(ctx context.Context, userID string) error
}

// LocalAuthenticator implements Authenticator against the local user
// and refresh token tables. Refresh tokens rotate on every use: the
// presented token is revoked in the same transaction that records its
// replacement.
type LocalAuthenticator struct {
	users      UserRepository
	tokens     RefreshTokenRepository
	codec      *token.Codec
	refreshTTL time.Duration
	logger     *logging.Logger
}

// NewLocalAuthenticator creates an authenticator backed by local
// account storage.
func NewLocalAuthenticator(users UserRepository, tokens RefreshTokenRepository, codec *token.Codec, refreshTTL time.Duration, logger *logging.Logger) *LocalAuthenticator {
	return &LocalAuthenticator{
		users:      users,
		tokens:     tokens,
		codec:      codec,
		refreshTTL: refreshTTL,
		logger:     logger.With("component", "authenticator"),
	}
}

// Login verifies the username/password pair and mints a fresh token
// pair. Unknown usernames, inactive accounts, and wrong passwords all
// collapse into ErrInvalidCredentials so callers cannot probe which
// usernames exist.
func (a *LocalAuthenticator) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	user, err := a.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	return a.mintPair(ctx, user, "")
}

// Refresh exchanges a raw refresh token for a new token pair, rotating
// the stored token. Revoked and expired tokens are rejected with
// ErrRefreshRejected.
func (a *LocalAuthenticator) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	stored, err := a.tokens.GetByTokenHash(ctx, token.HashToken(refreshToken))
	if err != nil {
		return nil, err
	}
	if stored.Revoked {
		// A revoked token being replayed is worth flagging; revoke
		// everything the user holds in case the token leaked.
		a.logger.Warn("revoked refresh token replayed", "user_id", stored.UserID)
		if err := a.tokens.RevokeAllForUser(ctx, stored.UserID); err != nil {
			a.logger.Error("revoking user tokens after replay", "user_id", stored.UserID, "error", err)
		}
		return nil, ErrRefreshRejected
	}
	if !time.Now().UTC().Before(stored.ExpiresAt) {
		return nil, fmt.Errorf("%w: refresh token expired", ErrRefreshRejected)
	}

	user, err := a.users.GetByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrRefreshRejected
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrRefreshRejected
	}

	return a.mintPair(ctx, user, stored.ID)
}

// Revoke invalidates every refresh token the subject holds. Used by the
// transport layer on explicit logout so the pair in a stolen backup
// cannot be replayed.
func (a *LocalAuthenticator) Revoke(ctx context.Context, userID string) error {
	return a.tokens.RevokeAllForUser(ctx, userID)
}

// mintPair issues a new access token and refresh token for the user.
// When rotateFromID is set the old refresh token is revoked in the same
// transaction.
func (a *LocalAuthenticator) mintPair(ctx context.Context, user *User, rotateFromID string) (*TokenPair, error) {
	accessToken, _, err := a.codec.Issue(user.ID, user.Role, effectiveGrants(user))
	if err != nil {
		return nil, fmt.Errorf("issuing access token: %w", err)
	}

	rawRefresh, err := token.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	stored := &RefreshToken{
		UserID:    user.ID,
		TokenHash: token.HashToken(rawRefresh),
		ExpiresAt: time.Now().UTC().Add(a.refreshTTL),
	}
	if rotateFromID != "" {
		err = a.tokens.Rotate(ctx, rotateFromID, stored)
	} else {
		err = a.tokens.Create(ctx, stored)
	}
	if err != nil {
		return nil, fmt.Errorf("storing refresh token: %w", err)
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: rawRefresh}, nil
}

// effectiveGrants flattens role plus base grants so the token is
// self-contained and permission checks need no database round trip.
func effectiveGrants(user *User) []access.Permission {
	return access.EffectivePermissions(user.Role, user.Permissions)
}
