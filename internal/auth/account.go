// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hyperlab Contributors

package auth

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Username validation constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
	MaxEmailLength    = 254
	MaxDisplayName    = 80
)

// usernameRegex matches usernames that:
// - Start with a letter (a-z, A-Z)
// - Contain only letters, numbers, and underscores
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func fieldValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Account is the identity record owned by the AccountStore.
type Account struct {
	ID             ulid.ULID
	Username       string
	Email          string
	DisplayName    string
	CredentialHash string
	Reset          *PendingReset // nil when no reset is pending
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PendingReset is an outstanding password reset. Only hashes of the
// plaintext token are kept.
type PendingReset struct {
	// TokenHash is the salted hash of the plaintext token and is authoritative.
	TokenHash string
	// Lookup is the unsalted SHA-256 digest used only to find the account.
	Lookup    string
	ExpiresAt time.Time
}

// IsExpiredAt reports whether the reset is no longer redeemable at t.
func (r *PendingReset) IsExpiredAt(t time.Time) bool {
	return !r.ExpiresAt.After(t)
}

// Profile is the secret-free view of an account returned to callers.
type Profile struct {
	ID          ulid.ULID
	Username    string
	Email       string
	DisplayName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Profile projects the account without credential or reset material.
func (a *Account) Profile() Profile {
	return Profile{
		ID:          a.ID,
		Username:    a.Username,
		Email:       a.Email,
		DisplayName: a.DisplayName,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

// Clone returns a deep copy so stores can hand out records without aliasing.
func (a *Account) Clone() *Account {
	c := *a
	if a.Reset != nil {
		r := *a.Reset
		c.Reset = &r
	}
	return &c
}

// NewAccount creates a validated Account with a fresh ID.
func NewAccount(username, email, credentialHash string, now time.Time) (*Account, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if credentialHash == "" {
		return nil, oops.Code(CodeInvalidInput).Wrapf(ErrInvalidInput, "credential hash cannot be empty")
	}
	return &Account{
		ID:             ulid.Make(),
		Username:       username,
		Email:          NormalizeEmail(email),
		CredentialHash: credentialHash,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// ValidateUsername validates a username against rules.
// Username requirements:
// - Length: MinUsernameLength to MaxUsernameLength characters
// - Must start with a letter
// - Can contain only letters (a-z, A-Z), numbers (0-9), and underscores (_)
func ValidateUsername(username string) error {
	if username == "" {
		return oops.Code(CodeInvalidInput).With("field", "username").
			Wrapf(ErrInvalidInput, "username cannot be empty")
	}
	if len(username) < MinUsernameLength {
		return oops.Code(CodeInvalidInput).
			With("field", "username").
			With("min", MinUsernameLength).
			Wrapf(ErrInvalidInput, "username must be at least %d characters", MinUsernameLength)
	}
	if len(username) > MaxUsernameLength {
		return oops.Code(CodeInvalidInput).
			With("field", "username").
			With("max", MaxUsernameLength).
			Wrapf(ErrInvalidInput, "username must be at most %d characters", MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return oops.Code(CodeInvalidInput).With("field", "username").
			Wrapf(ErrInvalidInput, "username must start with a letter and contain only letters, numbers, and underscores")
	}
	return nil
}

// ValidateEmail checks that email is a plausible address.
func ValidateEmail(email string) error {
	if err := fieldValidator().Var(email, "required,email,max=254"); err != nil {
		return oops.Code(CodeInvalidInput).With("field", "email").
			Wrapf(ErrInvalidInput, "email must be a valid address of at most %d characters", MaxEmailLength)
	}
	return nil
}

// ValidateDisplayName checks the display name length.
func ValidateDisplayName(name string) error {
	if err := fieldValidator().Var(name, "max=80"); err != nil {
		return oops.Code(CodeInvalidInput).With("field", "display_name").
			Wrapf(ErrInvalidInput, "display name must be at most %d characters", MaxDisplayName)
	}
	return nil
}

// NormalizeEmail trims and lowercases an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
