package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lindenpress/linden-access/internal/token"
)

func TestRefreshTokenRepository_CreateAndGet(t *testing.T) {
	repo := NewRefreshTokenRepository(newTestDB(t))
	ctx := context.Background()

	raw, err := token.GenerateRefreshToken()
	if err != nil {
		t.Fatalf("GenerateRefreshToken() error = %v", err)
	}

	stored := &RefreshToken{
		UserID:    "usr-1",
		TokenHash: token.HashToken(raw),
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}
	if err := repo.Create(ctx, stored); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if stored.ID == "" {
		t.Fatal("Create() did not generate an ID")
	}

	got, err := repo.GetByTokenHash(ctx, token.HashToken(raw))
	if err != nil {
		t.Fatalf("GetByTokenHash() error = %v", err)
	}
	if got.UserID != "usr-1" || got.Revoked {
		t.Errorf("GetByTokenHash() = %+v, want active token for usr-1", got)
	}
}

func TestRefreshTokenRepository_GetMissing(t *testing.T) {
	repo := NewRefreshTokenRepository(newTestDB(t))

	if _, err := repo.GetByTokenHash(context.Background(), "no-such-hash"); !errors.Is(err, ErrRefreshRejected) {
		t.Errorf("GetByTokenHash(missing) error = %v, want ErrRefreshRejected", err)
	}
}

func TestRefreshTokenRepository_Rotate(t *testing.T) {
	repo := NewRefreshTokenRepository(newTestDB(t))
	ctx := context.Background()

	old := &RefreshToken{
		UserID:    "usr-1",
		TokenHash: token.HashToken("old-raw"),
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}
	if err := repo.Create(ctx, old); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	replacement := &RefreshToken{
		UserID:    "usr-1",
		TokenHash: token.HashToken("new-raw"),
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}
	if err := repo.Rotate(ctx, old.ID, replacement); err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}

	// The consumed token is revoked, the replacement is live.
	rotated, err := repo.GetByTokenHash(ctx, old.TokenHash)
	if err != nil {
		t.Fatalf("GetByTokenHash(old) error = %v", err)
	}
	if !rotated.Revoked {
		t.Error("rotated-away token is not revoked")
	}

	fresh, err := repo.GetByTokenHash(ctx, replacement.TokenHash)
	if err != nil {
		t.Fatalf("GetByTokenHash(new) error = %v", err)
	}
	if fresh.Revoked {
		t.Error("replacement token is revoked")
	}
}

func TestRefreshTokenRepository_RevokeAllForUser(t *testing.T) {
	repo := NewRefreshTokenRepository(newTestDB(t))
	ctx := context.Background()

	for _, hash := range []string{"h1", "h2"} {
		if err := repo.Create(ctx, &RefreshToken{
			UserID: "usr-1", TokenHash: hash,
			ExpiresAt: time.Now().UTC().Add(time.Hour),
		}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	other := &RefreshToken{
		UserID: "usr-2", TokenHash: "h3",
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}
	if err := repo.Create(ctx, other); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.RevokeAllForUser(ctx, "usr-1"); err != nil {
		t.Fatalf("RevokeAllForUser() error = %v", err)
	}

	for _, hash := range []string{"h1", "h2"} {
		got, err := repo.GetByTokenHash(ctx, hash)
		if err != nil {
			t.Fatalf("GetByTokenHash(%s) error = %v", hash, err)
		}
		if !got.Revoked {
			t.Errorf("token %s not revoked", hash)
		}
	}

	untouched, err := repo.GetByTokenHash(ctx, "h3")
	if err != nil {
		t.Fatalf("GetByTokenHash(h3) error = %v", err)
	}
	if untouched.Revoked {
		t.Error("another user's token was revoked")
	}
}

func TestRefreshTokenRepository_DeleteExpired(t *testing.T) {
	repo := NewRefreshTokenRepository(newTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, &RefreshToken{
		UserID: "usr-1", TokenHash: "gone",
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Create(ctx, &RefreshToken{
		UserID: "usr-1", TokenHash: "kept",
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	deleted, err := repo.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("DeleteExpired() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("DeleteExpired() = %d, want 1", deleted)
	}

	if _, err := repo.GetByTokenHash(ctx, "gone"); !errors.Is(err, ErrRefreshRejected) {
		t.Error("expired token still present after DeleteExpired")
	}
	if _, err := repo.GetByTokenHash(ctx, "kept"); err != nil {
		t.Errorf("live token missing after DeleteExpired: %v", err)
	}
}
