// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hyperlab Contributors

package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"
)

// ProfileUpdate lists the fields a profile update may change. Nil fields are
// left as they are.
type ProfileUpdate struct {
	Email       *string
	DisplayName *string
	// Password is rehashed before storage; a change also discards any
	// pending reset.
	Password *string
}

// IsEmpty reports whether the update changes nothing.
func (u ProfileUpdate) IsEmpty() bool {
	return u.Email == nil && u.DisplayName == nil && u.Password == nil
}

// Register creates an account. The strength policy runs before any other
// check so its feedback is never masked by an unrelated conflict.
func (s *Service) Register(ctx context.Context, username, email, password string) (_ Profile, err error) {
	ctx, finish := s.start(ctx, OpRegister)
	defer func() { finish(&err) }()

	username = strings.TrimSpace(username)
	email = NormalizeEmail(email)

	if err = checkStrength(s.policy, password, username, email); err != nil {
		return Profile{}, err
	}
	if err = ValidateUsername(username); err != nil {
		return Profile{}, err
	}
	if err = ValidateEmail(email); err != nil {
		return Profile{}, err
	}

	_, err = s.accounts.FindByUsername(ctx, username)
	switch {
	case err == nil:
		return Profile{}, duplicateUsername(username)
	case !errors.Is(err, ErrNotFound):
		return Profile{}, storeFault("find by username", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return Profile{}, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	account, err := NewAccount(username, email, hash, s.now())
	if err != nil {
		return Profile{}, err
	}

	// The store enforces uniqueness; the lookup above only gives an early answer.
	if err = s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, ErrDuplicateIdentity) {
			return Profile{}, duplicateUsername(username)
		}
		return Profile{}, storeFault("create account", err)
	}

	s.logger.InfoContext(ctx, "account registered", "account_id", account.ID.String())
	return account.Profile(), nil
}

// Login authenticates by email and password and issues a session.
// Unknown emails and wrong passwords produce the same error, and both paths
// run a full hash verification.
func (s *Service) Login(ctx context.Context, email, password string) (_ *Session, err error) {
	ctx, finish := s.start(ctx, OpLogin)
	defer func() { finish(&err) }()

	account, err := s.accounts.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, storeFault("find by email", err)
		}
		_, _ = s.hasher.Verify(password, s.dummyHash) //nolint:errcheck // timing only
		return nil, invalidCredential()
	}

	ok, err := s.hasher.Verify(password, account.CredentialHash)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("account_id", account.ID.String()).
			Wrap(err)
	}
	if !ok {
		return nil, invalidCredential()
	}

	if s.hasher.NeedsUpgrade(account.CredentialHash) {
		s.upgradeHash(ctx, account, password)
	}

	session, err := s.sessions.Issue(account.ID, s.now())
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "issue session").
			Wrap(err)
	}
	return session, nil
}

// upgradeHash rehashes a verified password with the current parameters.
// Failures are logged; the login proceeds regardless.
func (s *Service) upgradeHash(ctx context.Context, account *Account, password string) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.WarnContext(ctx, "credential hash upgrade failed",
			"account_id", account.ID.String(), "error", err)
		return
	}
	now := s.now()
	if _, err := s.accounts.Update(ctx, account.ID, AccountPatch{CredentialHash: &hash, UpdatedAt: now}); err != nil {
		s.logger.WarnContext(ctx, "credential hash upgrade not persisted",
			"account_id", account.ID.String(), "error", err)
	}
}

// VerifySession checks a session token and returns the authenticated
// account ID. It performs no store lookup.
func (s *Service) VerifySession(ctx context.Context, token string) (_ ulid.ULID, err error) {
	_, finish := s.start(ctx, OpVerifySession)
	defer func() { finish(&err) }()

	return s.sessions.Verify(token)
}

// UpdateProfile applies update to the account. accountID must come from a
// verified session. A new password goes through the strength policy and the
// hasher and is never stored as given.
func (s *Service) UpdateProfile(ctx context.Context, accountID ulid.ULID, update ProfileUpdate) (_ Profile, err error) {
	ctx, finish := s.start(ctx, OpUpdateProfile, attribute.String("account.id", accountID.String()))
	defer func() { finish(&err) }()

	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Profile{}, notFound(accountID)
		}
		return Profile{}, storeFault("find by id", err)
	}
	if update.IsEmpty() {
		return account.Profile(), nil
	}

	patch := AccountPatch{UpdatedAt: s.now()}

	if update.Email != nil {
		email := NormalizeEmail(*update.Email)
		if err = ValidateEmail(email); err != nil {
			return Profile{}, err
		}
		patch.Email = &email
	}
	if update.DisplayName != nil {
		name := strings.TrimSpace(*update.DisplayName)
		if err = ValidateDisplayName(name); err != nil {
			return Profile{}, err
		}
		patch.DisplayName = &name
	}
	if update.Password != nil {
		if err = checkStrength(s.policy, *update.Password, account.Username, account.Email); err != nil {
			return Profile{}, err
		}
		hash, hashErr := s.hasher.Hash(*update.Password)
		if hashErr != nil {
			return Profile{}, oops.Code("AUTH_UPDATE_FAILED").
				With("operation", "hash password").
				With("account_id", accountID.String()).
				Wrap(hashErr)
		}
		patch.CredentialHash = &hash
		// Also covers a reset issued after the read above.
		patch.ClearReset = true
	}

	updated, err := s.accounts.Update(ctx, accountID, patch)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Profile{}, notFound(accountID)
		}
		return Profile{}, storeFault("update account", err)
	}
	return updated.Profile(), nil
}

func duplicateUsername(username string) error {
	return oops.Code(CodeDuplicateIdentity).
		With("username", username).
		Wrap(ErrDuplicateIdentity)
}
