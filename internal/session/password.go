package session

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters, sized for the single-board installs accessd
// targets: 32 MiB keeps a hash under ~100ms on a Pi-class CPU.
const (
	argonTime    = 4         // iterations
	argonMemory  = 32 * 1024 // KiB
	argonThreads = 2         // parallelism
	argonKeyLen  = 32        // derived key length
	argonSaltLen = 16        // salt length
)

var errMalformedHash = errors.New("malformed password hash")

// HashPassword derives an Argon2id hash of password and encodes it as a
// PHC string: $argon2id$v=19$m=32768,t=4,p=2$<salt>$<key>
func HashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword reports whether password matches the PHC-encoded hash.
// The cost parameters come from the hash itself, so accounts hashed
// under an earlier parameter set keep verifying after a re-tune.
func VerifyPassword(password, encoded string) (bool, error) {
	h, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey([]byte(password), h.salt, h.time, h.memory, h.threads, uint32(len(h.key))) //nolint:gosec // G115: key length always fits uint32

	return subtle.ConstantTimeCompare(h.key, candidate) == 1, nil
}

// phcHash is the decoded form of a PHC argon2id string.
type phcHash struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

// parsePHC splits $argon2id$v=19$m=...,t=...,p=...$<salt>$<key> into its
// components. Every field is required.
func parsePHC(encoded string) (*phcHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" { //nolint:mnd // PHC format has exactly 6 $-delimited parts
		return nil, errMalformedHash
	}
	if parts[1] != "argon2id" {
		return nil, fmt.Errorf("%w: unsupported algorithm %q", errMalformedHash, parts[1])
	}

	ver, ok := strings.CutPrefix(parts[2], "v=")
	if !ok {
		return nil, errMalformedHash
	}
	if _, err := strconv.Atoi(ver); err != nil {
		return nil, fmt.Errorf("%w: version: %w", errMalformedHash, err)
	}

	var h phcHash
	for _, field := range strings.Split(parts[3], ",") {
		name, value, ok := strings.Cut(field, "=")
		if !ok {
			return nil, errMalformedHash
		}
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: parameter %s: %w", errMalformedHash, name, err)
		}
		switch name {
		case "m":
			h.memory = uint32(n)
		case "t":
			h.time = uint32(n)
		case "p":
			if n > 255 {
				return nil, fmt.Errorf("%w: parallelism out of range", errMalformedHash)
			}
			h.threads = uint8(n)
		default:
			return nil, fmt.Errorf("%w: unknown parameter %q", errMalformedHash, name)
		}
	}
	if h.memory == 0 || h.time == 0 || h.threads == 0 {
		return nil, errMalformedHash
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, fmt.Errorf("%w: salt: %w", errMalformedHash, err)
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return nil, fmt.Errorf("%w: key: %w", errMalformedHash, err)
	}
	if len(h.salt) == 0 || len(h.key) == 0 {
		return nil, errMalformedHash
	}

	return &h, nil
}
