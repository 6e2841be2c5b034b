package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/lindenpress/linden-access/internal/access"
)

// Sentinel errors for token operations.
var (
	// ErrMalformedToken marks a token whose structure is wrong: missing
	// or mistyped required fields, bad signature, or unparseable wire
	// form. A malformed token is never trusted.
	ErrMalformedToken = errors.New("malformed token")

	// ErrExpiredToken marks a structurally valid token whose expiry has
	// passed.
	ErrExpiredToken = errors.New("token has expired")
)

// Payload is the decoded credential payload.
// Invariant: ExpiresAt > IssuedAt for every structurally valid payload.
type Payload struct {
	SubjectID   string              `json:"subject_id"`
	Role        access.Role         `json:"role"`
	Permissions []access.Permission `json:"permissions"`
	IssuedAt    time.Time           `json:"issued_at"`
	ExpiresAt   time.Time           `json:"expires_at"`
}

// claims is the JWT wire form of a Payload.
type claims struct {
	jwt.RegisteredClaims
	Role        access.Role         `json:"role"`
	Permissions []access.Permission `json:"perms,omitempty"`
}

// Codec encodes, decodes, and validates credential payloads.
// All methods are side-effect free and safe for concurrent use.
type Codec struct {
	secret    []byte
	accessTTL time.Duration
}

// defaultAccessTTL is used when the configured TTL is missing or invalid.
const defaultAccessTTL = 15 * time.Minute

// NewCodec creates a Codec signing with the given secret. accessTTL
// bounds tokens minted by Issue.
func NewCodec(secret string, accessTTL time.Duration) *Codec {
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	return &Codec{
		secret:    []byte(secret),
		accessTTL: accessTTL,
	}
}

// Issue mints a payload for the subject valid from now for the
// configured TTL, and returns it with its encoded form. Timestamps are
// truncated to seconds, the precision the wire format carries.
func (c *Codec) Issue(subjectID string, role access.Role, perms []access.Permission) (string, *Payload, error) {
	now := time.Now().UTC().Truncate(time.Second)
	payload := &Payload{
		SubjectID:   subjectID,
		Role:        role,
		Permissions: perms,
		IssuedAt:    now,
		ExpiresAt:   now.Add(c.accessTTL),
	}
	raw, err := c.Encode(*payload)
	if err != nil {
		return "", nil, err
	}
	return raw, payload, nil
}

// Encode serialises a payload into its signed wire form. The payload
// must be structurally valid.
func (c *Codec) Encode(p Payload) (string, error) {
	if !IsStructurallyValid(&p) {
		return "", fmt.Errorf("%w: refusing to encode invalid payload", ErrMalformedToken)
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.SubjectID,
			IssuedAt:  jwt.NewNumericDate(p.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(p.ExpiresAt),
			ID:        uuid.NewString(),
		},
		Role:        p.Role,
		Permissions: p.Permissions,
	})

	signed, err := tok.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Decode parses and structurally validates a token, returning its
// payload. Expiry is deliberately NOT checked here: the session machine
// needs the payload of an expired token to decide whether a refresh is
// possible. Use Validate or IsExpired for the expiry check.
func (c *Codec) Decode(raw string) (*Payload, error) {
	tok, err := jwt.ParseWithClaims(raw, &claims{}, func(_ *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}

	cl, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid {
		return nil, ErrMalformedToken
	}

	payload := &Payload{
		SubjectID:   cl.Subject,
		Role:        cl.Role,
		Permissions: cl.Permissions,
	}
	if cl.IssuedAt != nil {
		payload.IssuedAt = cl.IssuedAt.Time.UTC()
	}
	if cl.ExpiresAt != nil {
		payload.ExpiresAt = cl.ExpiresAt.Time.UTC()
	}

	if !IsStructurallyValid(payload) {
		return nil, fmt.Errorf("%w: missing or invalid required fields", ErrMalformedToken)
	}

	return payload, nil
}

// Validate decodes a token and additionally enforces expiry against now.
func (c *Codec) Validate(raw string, now time.Time) (*Payload, error) {
	payload, err := c.Decode(raw)
	if err != nil {
		return nil, err
	}
	if IsExpired(payload, now) {
		return nil, ErrExpiredToken
	}
	return payload, nil
}

// IsExpired reports whether the payload's expiry has passed at now.
func IsExpired(p *Payload, now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// NearExpiry reports whether the payload expires within lead of now.
// The session machine uses this to refresh proactively, before a
// user-visible logout can happen mid-use.
func NearExpiry(p *Payload, now time.Time, lead time.Duration) bool {
	return !now.Add(lead).Before(p.ExpiresAt)
}

// IsStructurallyValid checks presence and plausibility of every
// required field. It rejects on any mismatch: empty subject, a role
// outside the enumeration, zero timestamps, or an expiry that does not
// follow issuance.
func IsStructurallyValid(p *Payload) bool {
	if p == nil {
		return false
	}
	if p.SubjectID == "" {
		return false
	}
	if !access.IsValidRole(p.Role) {
		return false
	}
	if p.IssuedAt.IsZero() || p.ExpiresAt.IsZero() {
		return false
	}
	return p.ExpiresAt.After(p.IssuedAt)
}

// refreshTokenBytes is the entropy of a refresh token (256-bit).
const refreshTokenBytes = 32

// GenerateRefreshToken creates a cryptographically random refresh token.
// The raw token is handed to the credential store; only its hash is ever
// persisted server-side.
func GenerateRefreshToken() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashToken computes the SHA-256 hash of a raw token string for storage.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}
