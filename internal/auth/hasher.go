// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hyperlab Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Supported hashing algorithms.
const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// DefaultBcryptCost is the work factor used for new bcrypt hashes.
const DefaultBcryptCost = 12

// Argon2Params are the argon2id parameters written into new hashes.
type Argon2Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	SaltLen uint32
	KeyLen  uint32
}

// DefaultArgon2Params are the OWASP-recommended argon2id parameters.
var DefaultArgon2Params = Argon2Params{
	Time:    1,
	Memory:  64 * 1024,
	Threads: 4,
	SaltLen: 16,
	KeyLen:  32,
}

// ErrEmptySecret is returned when attempting to hash an empty secret.
var ErrEmptySecret = oops.Code("AUTH_EMPTY_SECRET").Errorf("secret cannot be empty")

// PasswordHasher provides one-way salted hashing of secrets.
type PasswordHasher interface {
	// Hash produces a salted, self-describing hash of the secret.
	Hash(secret string) (string, error)

	// Verify checks if the secret matches the hash.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on invalid hash.
	Verify(secret, hash string) (bool, error)

	// NeedsUpgrade returns true if the hash was produced with other parameters
	// than the ones currently configured.
	NeedsUpgrade(hash string) bool
}

// HasherConfig selects the algorithm and work factor for new hashes.
type HasherConfig struct {
	Algorithm  string
	BcryptCost int
	Argon2     Argon2Params
}

// Hasher implements PasswordHasher. New hashes use the configured algorithm;
// verification accepts any supported algorithm so stored hashes survive a
// configuration change.
type Hasher struct {
	algorithm  string
	bcryptCost int
	argon      Argon2Params
}

// NewHasher creates a Hasher from cfg. Zero values fall back to bcrypt at
// DefaultBcryptCost and DefaultArgon2Params.
func NewHasher(cfg HasherConfig) (*Hasher, error) {
	h := &Hasher{
		algorithm:  cfg.Algorithm,
		bcryptCost: cfg.BcryptCost,
		argon:      cfg.Argon2,
	}
	if h.algorithm == "" {
		h.algorithm = AlgorithmBcrypt
	}
	if h.bcryptCost == 0 {
		h.bcryptCost = DefaultBcryptCost
	}
	if h.argon == (Argon2Params{}) {
		h.argon = DefaultArgon2Params
	}

	switch h.algorithm {
	case AlgorithmBcrypt, AlgorithmArgon2id:
	default:
		return nil, oops.Code("AUTH_HASHER_CONFIG").
			With("algorithm", h.algorithm).
			Errorf("unsupported hash algorithm: %s", h.algorithm)
	}
	if h.bcryptCost < bcrypt.MinCost || h.bcryptCost > bcrypt.MaxCost {
		return nil, oops.Code("AUTH_HASHER_CONFIG").
			With("bcrypt_cost", h.bcryptCost).
			Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if h.argon.Time == 0 || h.argon.Memory == 0 || h.argon.Threads == 0 || h.argon.SaltLen == 0 || h.argon.KeyLen == 0 {
		return nil, oops.Code("AUTH_HASHER_CONFIG").Errorf("argon2id parameters must be positive")
	}
	return h, nil
}

// Algorithm returns the algorithm used for new hashes.
func (h *Hasher) Algorithm() string {
	return h.algorithm
}

// Hash produces a hash of secret with the configured algorithm.
func (h *Hasher) Hash(secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	if h.algorithm == AlgorithmArgon2id {
		return h.hashArgon2id(secret)
	}

	out, err := bcrypt.GenerateFromPassword([]byte(secret), h.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", oops.Code("AUTH_SECRET_TOO_LONG").
				With("max_bytes", 72).
				Wrap(err)
		}
		return "", oops.Code("AUTH_HASH_FAILED").With("algorithm", AlgorithmBcrypt).Wrap(err)
	}
	return string(out), nil
}

// Verify checks if secret matches encodedHash.
func (h *Hasher) Verify(secret, encodedHash string) (bool, error) {
	switch {
	case isBcryptHash(encodedHash):
		err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(secret))
		if err == nil {
			return true, nil
		}
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, oops.Code("AUTH_INVALID_HASH").With("algorithm", AlgorithmBcrypt).Wrap(err)
	case strings.HasPrefix(encodedHash, "$argon2id$"):
		return verifyArgon2id(secret, encodedHash)
	default:
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported hash format")
	}
}

// NeedsUpgrade returns true if hash differs in algorithm or work factor from
// the current configuration.
func (h *Hasher) NeedsUpgrade(encodedHash string) bool {
	if h.algorithm == AlgorithmBcrypt {
		if !isBcryptHash(encodedHash) {
			return true
		}
		cost, err := bcrypt.Cost([]byte(encodedHash))
		return err != nil || cost != h.bcryptCost
	}

	params, _, _, err := decodeArgon2id(encodedHash)
	if err != nil {
		return true
	}
	return params.Time != h.argon.Time || params.Memory != h.argon.Memory || params.Threads != h.argon.Threads
}

func isBcryptHash(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$") || strings.HasPrefix(hash, "$2y$")
}

func (h *Hasher) hashArgon2id(secret string) (string, error) {
	salt := make([]byte, h.argon.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	key := argon2.IDKey([]byte(secret), salt, h.argon.Time, h.argon.Memory, h.argon.Threads, h.argon.KeyLen)

	// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.argon.Memory,
		h.argon.Time,
		h.argon.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func decodeArgon2id(encodedHash string) (params Argon2Params, salt, key []byte, err error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return params, nil, nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash format")
	}
	if parts[1] != AlgorithmArgon2id {
		return params, nil, nil, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err = fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return params, nil, nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if version != argon2.Version {
		return params, nil, nil, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported argon2 version: %d", version)
	}

	var threads uint32
	if _, err = fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Time, &threads); err != nil {
		return params, nil, nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if threads == 0 || threads > 255 {
		return params, nil, nil, oops.Code("AUTH_INVALID_HASH").Errorf("threads value %d out of range", threads)
	}
	params.Threads = uint8(threads)

	if salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return params, nil, nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return params, nil, nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if len(key) == 0 || len(key) > 1<<10 {
		return params, nil, nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash key length: %d", len(key))
	}
	params.SaltLen = uint32(len(salt))
	params.KeyLen = uint32(len(key))
	return params, salt, key, nil
}

func verifyArgon2id(secret, encodedHash string) (bool, error) {
	params, salt, expected, err := decodeArgon2id(encodedHash)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(secret), salt, params.Time, params.Memory, params.Threads, params.KeyLen)
	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}
