// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hyperlab Contributors

// Package memory provides an in-process AccountStore for development and
// tests.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/hyperlab/accountd/internal/auth"
)

// Store is a mutex-guarded AccountStore. Records are copied on the way in
// and out so callers never share memory with the store.
type Store struct {
	mu         sync.RWMutex
	byID       map[ulid.ULID]*auth.Account
	byUsername map[string]ulid.ULID // lowercased username
	byLookup   map[string]ulid.ULID // pending reset lookup digest
}

var _ auth.AccountStore = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{
		byID:       make(map[ulid.ULID]*auth.Account),
		byUsername: make(map[string]ulid.ULID),
		byLookup:   make(map[string]ulid.ULID),
	}
}

// Create implements auth.AccountStore.
func (s *Store) Create(ctx context.Context, account *auth.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if account == nil || account.CredentialHash == "" {
		return oops.Code(auth.CodeInvalidInput).Wrapf(auth.ErrInvalidInput, "account requires a credential hash")
	}
	key := strings.ToLower(account.Username)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byUsername[key]; taken {
		return oops.Code(auth.CodeDuplicateIdentity).
			With("username", account.Username).
			Wrap(auth.ErrDuplicateIdentity)
	}
	if _, exists := s.byID[account.ID]; exists {
		return oops.Code(auth.CodeDuplicateIdentity).
			With("account_id", account.ID.String()).
			Wrap(auth.ErrDuplicateIdentity)
	}

	stored := account.Clone()
	s.byID[stored.ID] = stored
	s.byUsername[key] = stored.ID
	if stored.Reset != nil {
		s.byLookup[stored.Reset.Lookup] = stored.ID
	}
	return nil
}

// FindByID implements auth.AccountStore.
func (s *Store) FindByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if a, ok := s.byID[id]; ok {
		return a.Clone(), nil
	}
	return nil, auth.ErrNotFound
}

// FindByUsername implements auth.AccountStore.
func (s *Store) FindByUsername(ctx context.Context, username string) (*auth.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.byUsername[strings.ToLower(username)]; ok {
		return s.byID[id].Clone(), nil
	}
	return nil, auth.ErrNotFound
}

// FindByEmail implements auth.AccountStore. Emails are not unique; the
// oldest matching account wins.
func (s *Store) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	email = auth.NormalizeEmail(email)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var oldest *auth.Account
	for _, a := range s.byID {
		if a.Email != email {
			continue
		}
		if oldest == nil || a.CreatedAt.Before(oldest.CreatedAt) ||
			(a.CreatedAt.Equal(oldest.CreatedAt) && a.ID.Compare(oldest.ID) < 0) {
			oldest = a
		}
	}
	if oldest == nil {
		return nil, auth.ErrNotFound
	}
	return oldest.Clone(), nil
}

// FindByValidResetToken implements auth.AccountStore.
func (s *Store) FindByValidResetToken(ctx context.Context, lookup string, now time.Time) (*auth.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byLookup[lookup]
	if !ok {
		return nil, auth.ErrNotFound
	}
	a := s.byID[id]
	if a.Reset == nil || a.Reset.Lookup != lookup || a.Reset.IsExpiredAt(now) {
		return nil, auth.ErrNotFound
	}
	return a.Clone(), nil
}

// Update implements auth.AccountStore. The guard check and the write happen
// under one lock.
func (s *Store) Update(ctx context.Context, id ulid.ULID, patch auth.AccountPatch) (*auth.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[id]
	if !ok || !patch.Guard.Holds(current) {
		return nil, auth.ErrNotFound
	}

	next := current.Clone()
	patch.Apply(next)

	if current.Reset != nil {
		delete(s.byLookup, current.Reset.Lookup)
	}
	if next.Reset != nil {
		s.byLookup[next.Reset.Lookup] = id
	}
	s.byID[id] = next
	return next.Clone(), nil
}

// Len returns the number of stored accounts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
