// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hyperlab Contributors

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/oops"
)

// ResetInitiation is the result of InitiateReset. Token is the plaintext
// reset token; it is empty when the email matched no account.
type ResetInitiation struct {
	Token     string
	ExpiresAt time.Time
}

// InitiateReset issues a reset token for the account with email and hands it
// to the Notifier. Unknown emails yield an empty ResetInitiation and no error.
//
// The token is persisted before delivery is attempted. If delivery fails the
// token stays valid and the returned error matches ErrDeliveryFailed.
func (s *Service) InitiateReset(ctx context.Context, email string) (_ ResetInitiation, err error) {
	ctx, finish := s.start(ctx, OpInitiateReset)
	defer func() { finish(&err) }()

	account, err := s.accounts.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return ResetInitiation{}, storeFault("find by email", err)
		}
		s.equalizeResetTiming()
		return ResetInitiation{}, nil
	}

	token, lookup, err := GenerateResetToken()
	if err != nil {
		return ResetInitiation{}, oops.Code("RESET_REQUEST_FAILED").
			With("operation", "generate reset token").
			Wrap(err)
	}
	tokenHash, err := s.hasher.Hash(token)
	if err != nil {
		return ResetInitiation{}, oops.Code("RESET_REQUEST_FAILED").
			With("operation", "hash reset token").
			Wrap(err)
	}

	now := s.now()
	expiresAt := now.Add(s.resetTTL)
	// Overwrites any earlier pending reset.
	_, err = s.accounts.Update(ctx, account.ID, AccountPatch{
		SetReset:  &PendingReset{TokenHash: tokenHash, Lookup: lookup, ExpiresAt: expiresAt},
		UpdatedAt: now,
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Deleted between lookup and update.
			return ResetInitiation{}, nil
		}
		return ResetInitiation{}, storeFault("store pending reset", err)
	}

	receipt := ResetInitiation{Token: token, ExpiresAt: expiresAt}

	msg := resetMessage(account.Email, s.resetSubject, token, expiresAt)
	if sendErr := s.notifier.Send(ctx, msg); sendErr != nil {
		s.metrics.RecordNotificationFailure()
		s.logger.ErrorContext(ctx, "reset notification failed, token remains valid",
			"account_id", account.ID.String(),
			"expires_at", expiresAt,
			"error", sendErr)
		return receipt, oops.Code(CodeDeliveryFailed).
			With("account_id", account.ID.String()).
			Wrap(fmt.Errorf("%w: %w", ErrDeliveryFailed, sendErr))
	}

	s.logger.InfoContext(ctx, "password reset initiated",
		"account_id", account.ID.String(),
		"expires_at", expiresAt)
	return receipt, nil
}

// equalizeResetTiming does the token work of a real reset so unknown emails
// take comparable time.
func (s *Service) equalizeResetTiming() {
	token, _, err := GenerateResetToken()
	if err != nil {
		return
	}
	_, _ = s.hasher.Hash(token) //nolint:errcheck // timing only
}

// RedeemReset replaces the credential of the account holding token and clears
// the pending reset in the same update. A token redeems at most once; every
// failure to match returns ErrInvalidOrExpiredToken.
func (s *Service) RedeemReset(ctx context.Context, token, newPassword string) (err error) {
	ctx, finish := s.start(ctx, OpRedeemReset)
	defer func() { finish(&err) }()

	if newPassword == "" {
		return oops.Code(CodeInvalidInput).
			With("field", "password").
			Wrapf(ErrInvalidInput, "new password cannot be empty")
	}
	if !wellFormedResetToken(token) {
		return invalidResetToken()
	}

	now := s.now()
	lookup := ResetLookup(token)

	account, err := s.accounts.FindByValidResetToken(ctx, lookup, now)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return invalidResetToken()
		}
		return storeFault("find by reset token", err)
	}
	if account.Reset == nil || account.Reset.IsExpiredAt(now) {
		return invalidResetToken()
	}

	// The digest only locates the account; the salted hash decides.
	ok, verifyErr := s.hasher.Verify(token, account.Reset.TokenHash)
	if verifyErr != nil {
		s.logger.WarnContext(ctx, "stored reset hash unreadable",
			"account_id", account.ID.String(), "error", verifyErr)
		return invalidResetToken()
	}
	if !ok {
		return invalidResetToken()
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "hash password").
			With("account_id", account.ID.String()).
			Wrap(err)
	}

	_, err = s.accounts.Update(ctx, account.ID, AccountPatch{
		CredentialHash: &hash,
		ClearReset:     true,
		UpdatedAt:      now,
		Guard:          &ResetGuard{Lookup: lookup, Now: now},
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Redeemed or replaced concurrently.
			return invalidResetToken()
		}
		return storeFault("redeem reset", err)
	}

	s.logger.InfoContext(ctx, "password reset redeemed", "account_id", account.ID.String())
	return nil
}
