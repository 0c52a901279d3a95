// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hyperlab Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// AccountStore owns all account persistence. Every method is individually
// atomic.
type AccountStore interface {
	// Create stores a new account. Returns ErrDuplicateIdentity if the
	// username is taken (case-insensitive), enforced atomically.
	Create(ctx context.Context, account *Account) error

	// FindByID retrieves an account. Returns ErrNotFound if absent.
	FindByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// FindByUsername retrieves an account by username (case-insensitive).
	// Returns ErrNotFound if absent.
	FindByUsername(ctx context.Context, username string) (*Account, error)

	// FindByEmail retrieves the oldest account with the normalized email.
	// Returns ErrNotFound if absent.
	FindByEmail(ctx context.Context, email string) (*Account, error)

	// FindByValidResetToken retrieves the account whose pending reset has the
	// given lookup digest and an expiry strictly after now. Expired or absent
	// resets never match; ErrNotFound is returned instead.
	FindByValidResetToken(ctx context.Context, lookup string, now time.Time) (*Account, error)

	// Update applies patch to the account and returns the stored result.
	// Returns ErrNotFound if the account is absent or patch.Guard does not hold.
	Update(ctx context.Context, id ulid.ULID, patch AccountPatch) (*Account, error)
}

// AccountPatch is the allow-list of mutable account fields. Nil fields are
// left unchanged.
type AccountPatch struct {
	Email          *string
	DisplayName    *string
	CredentialHash *string

	// SetReset replaces any pending reset. ClearReset removes it.
	// Setting both is invalid.
	SetReset   *PendingReset
	ClearReset bool

	UpdatedAt time.Time

	// Guard makes the update conditional on the stored reset still matching
	// Guard.Lookup with an expiry after Guard.Now.
	Guard *ResetGuard
}

// ResetGuard is the compare-and-swap condition for reset redemption.
type ResetGuard struct {
	Lookup string
	Now    time.Time
}

// Holds reports whether account satisfies the guard. A nil guard always holds.
func (g *ResetGuard) Holds(account *Account) bool {
	if g == nil {
		return true
	}
	return account.Reset != nil &&
		account.Reset.Lookup == g.Lookup &&
		!account.Reset.IsExpiredAt(g.Now)
}

// Apply mutates account according to p. Stores that hold records in memory
// use it to keep patch semantics identical to the SQL implementation.
func (p AccountPatch) Apply(account *Account) {
	if p.Email != nil {
		account.Email = *p.Email
	}
	if p.DisplayName != nil {
		account.DisplayName = *p.DisplayName
	}
	if p.CredentialHash != nil {
		account.CredentialHash = *p.CredentialHash
	}
	switch {
	case p.ClearReset:
		account.Reset = nil
	case p.SetReset != nil:
		r := *p.SetReset
		account.Reset = &r
	}
	if !p.UpdatedAt.IsZero() {
		account.UpdatedAt = p.UpdatedAt
	}
}

// Validate rejects patches that would break account invariants.
func (p AccountPatch) Validate() error {
	if p.SetReset != nil && p.ClearReset {
		return invalidPatch("cannot set and clear a reset in the same update")
	}
	if p.CredentialHash != nil && *p.CredentialHash == "" {
		return invalidPatch("credential hash cannot be empty")
	}
	if p.SetReset != nil && (p.SetReset.TokenHash == "" || p.SetReset.Lookup == "" || p.SetReset.ExpiresAt.IsZero()) {
		return invalidPatch("pending reset requires a token hash, lookup and expiry")
	}
	return nil
}

func invalidPatch(msg string) error {
	return oops.Code(CodeInvalidInput).With("operation", "update account").Wrapf(ErrInvalidInput, "%s", msg)
}
