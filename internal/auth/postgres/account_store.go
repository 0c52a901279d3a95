// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hyperlab Contributors

// Package postgres implements auth.AccountStore on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/hyperlab/accountd/internal/auth"
)

// pool is the subset of *pgxpool.Pool used by the store. pgxmock satisfies it.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const accountColumns = `id, username, email, display_name, credential_hash,
	reset_token_hash, reset_token_lookup, reset_token_expires_at,
	created_at, updated_at`

// AccountStore implements auth.AccountStore using PostgreSQL.
type AccountStore struct {
	pool pool
}

var _ auth.AccountStore = (*AccountStore)(nil)

// NewAccountStore creates a new AccountStore. p is usually a *pgxpool.Pool.
func NewAccountStore(p pool) *AccountStore {
	return &AccountStore{pool: p}
}

// Create inserts a new account. The unique index on LOWER(username) makes
// the duplicate check atomic.
func (s *AccountStore) Create(ctx context.Context, account *auth.Account) error {
	var resetHash, resetLookup *string
	var resetExpires *time.Time
	if account.Reset != nil {
		resetHash = &account.Reset.TokenHash
		resetLookup = &account.Reset.Lookup
		resetExpires = &account.Reset.ExpiresAt
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		account.ID.String(),
		account.Username,
		account.Email,
		account.DisplayName,
		account.CredentialHash,
		resetHash,
		resetLookup,
		resetExpires,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code(auth.CodeDuplicateIdentity).
				With("username", account.Username).
				Wrap(auth.ErrDuplicateIdentity)
		}
		return storeError("insert account", err)
	}
	return nil
}

// FindByID retrieves an account by ID.
func (s *AccountStore) FindByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
	`, id.String())
	return s.scanOne(row, "get account by id", "id", id.String())
}

// FindByUsername retrieves an account by username (case-insensitive).
func (s *AccountStore) FindByUsername(ctx context.Context, username string) (*auth.Account, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE LOWER(username) = LOWER($1)
	`, username)
	return s.scanOne(row, "get account by username", "username", username)
}

// FindByEmail retrieves the oldest account with the given email.
func (s *AccountStore) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE LOWER(email) = LOWER($1)
		ORDER BY created_at, id
		LIMIT 1
	`, auth.NormalizeEmail(email))
	return s.scanOne(row, "get account by email", "", "")
}

// FindByValidResetToken retrieves the account whose pending reset matches
// lookup and expires strictly after now.
func (s *AccountStore) FindByValidResetToken(ctx context.Context, lookup string, now time.Time) (*auth.Account, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE reset_token_lookup = $1
		  AND reset_token_expires_at > $2
	`, lookup, now)
	return s.scanOne(row, "get account by reset token", "", "")
}

// Update applies patch in a single statement. When patch.Guard is set the
// WHERE clause re-checks the pending reset, so concurrent redemptions of one
// token update at most one row.
func (s *AccountStore) Update(ctx context.Context, id ulid.ULID, patch auth.AccountPatch) (*auth.Account, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	var setHash, setLookup *string
	var setExpires *time.Time
	if patch.SetReset != nil {
		setHash = &patch.SetReset.TokenHash
		setLookup = &patch.SetReset.Lookup
		setExpires = &patch.SetReset.ExpiresAt
	}
	var updatedAt *time.Time
	if !patch.UpdatedAt.IsZero() {
		updatedAt = &patch.UpdatedAt
	}
	var guardLookup *string
	var guardNow *time.Time
	if patch.Guard != nil {
		guardLookup = &patch.Guard.Lookup
		guardNow = &patch.Guard.Now
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE accounts SET
			email = COALESCE($2::text, email),
			display_name = COALESCE($3::text, display_name),
			credential_hash = COALESCE($4::text, credential_hash),
			reset_token_hash = CASE
				WHEN $5::boolean THEN NULL
				WHEN $6::text IS NOT NULL THEN $6::text
				ELSE reset_token_hash END,
			reset_token_lookup = CASE
				WHEN $5::boolean THEN NULL
				WHEN $6::text IS NOT NULL THEN $7::text
				ELSE reset_token_lookup END,
			reset_token_expires_at = CASE
				WHEN $5::boolean THEN NULL
				WHEN $6::text IS NOT NULL THEN $8::timestamptz
				ELSE reset_token_expires_at END,
			updated_at = COALESCE($9::timestamptz, updated_at)
		WHERE id = $1
		  AND ($10::text IS NULL OR (reset_token_lookup = $10::text AND reset_token_expires_at > $11::timestamptz))
		RETURNING `+accountColumns,
		id.String(),
		patch.Email,
		patch.DisplayName,
		patch.CredentialHash,
		patch.ClearReset,
		setHash,
		setLookup,
		setExpires,
		updatedAt,
		guardLookup,
		guardNow,
	)
	return s.scanOne(row, "update account", "id", id.String())
}

func (s *AccountStore) scanOne(row pgx.Row, op, key, value string) (*auth.Account, error) {
	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		e := oops.Code(auth.CodeNotFound)
		if key != "" {
			e = e.With(key, value)
		}
		return nil, e.Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, storeError(op, err)
	}
	return account, nil
}

func scanAccount(row pgx.Row) (*auth.Account, error) {
	var (
		a            auth.Account
		id           string
		resetHash    *string
		resetLookup  *string
		resetExpires *time.Time
	)
	if err := row.Scan(
		&id,
		&a.Username,
		&a.Email,
		&a.DisplayName,
		&a.CredentialHash,
		&resetHash,
		&resetLookup,
		&resetExpires,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}

	parsed, err := ulid.Parse(id)
	if err != nil {
		return nil, oops.With("id", id).Wrapf(err, "parse account id")
	}
	a.ID = parsed

	if resetHash != nil && resetLookup != nil && resetExpires != nil {
		a.Reset = &auth.PendingReset{
			TokenHash: *resetHash,
			Lookup:    *resetLookup,
			ExpiresAt: *resetExpires,
		}
	}
	return &a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func storeError(op string, err error) error {
	return oops.Code(auth.CodeStoreFailed).
		With("operation", op).
		Wrap(&auth.StoreError{Op: op, Err: err})
}
