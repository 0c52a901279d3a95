// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hyperlab Contributors

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session token configuration.
const (
	DefaultSessionTTL    = 24 * time.Hour
	DefaultSessionIssuer = "accountd"
	MinSessionSecretLen  = 32
)

// Session is a signed, stateless proof of a successful login.
type Session struct {
	Token     string
	AccountID ulid.ULID
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// SessionConfig configures a SessionIssuer.
type SessionConfig struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
	// Now is the clock used to check expiry. Defaults to time.Now.
	Now func() time.Time
}

// SessionIssuer signs and verifies HS256 session tokens.
// The secret is copied at construction and never mutated.
type SessionIssuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewSessionIssuer creates an issuer. It fails if the secret is shorter than
// MinSessionSecretLen bytes.
func NewSessionIssuer(cfg SessionConfig) (*SessionIssuer, error) {
	if len(cfg.Secret) < MinSessionSecretLen {
		return nil, oops.Code("AUTH_SESSION_CONFIG").
			With("min_length", MinSessionSecretLen).
			Errorf("session secret must be at least %d bytes", MinSessionSecretLen)
	}
	if cfg.TTL < 0 {
		return nil, oops.Code("AUTH_SESSION_CONFIG").Errorf("session TTL cannot be negative")
	}
	s := &SessionIssuer{
		secret: append([]byte(nil), cfg.Secret...),
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
		now:    cfg.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.ttl == 0 {
		s.ttl = DefaultSessionTTL
	}
	if s.issuer == "" {
		s.issuer = DefaultSessionIssuer
	}
	return s, nil
}

// TTL returns the lifetime of issued tokens.
func (s *SessionIssuer) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for accountID issued at now.
func (s *SessionIssuer) Issue(accountID ulid.ULID, now time.Time) (*Session, error) {
	if accountID == (ulid.ULID{}) {
		return nil, oops.Code("AUTH_SESSION_ISSUE_FAILED").Errorf("account ID cannot be zero")
	}
	now = now.Truncate(time.Second)
	expires := now.Add(s.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   accountID.String(),
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
		ID:        uuid.NewString(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, oops.Code("AUTH_SESSION_ISSUE_FAILED").Wrap(err)
	}
	return &Session{Token: signed, AccountID: accountID, IssuedAt: now, ExpiresAt: expires}, nil
}

// Verify checks the signature and claims of token and returns the account ID.
// Every failure maps to ErrInvalidSession.
func (s *SessionIssuer) Verify(token string) (ulid.ULID, error) {
	if s == nil || len(s.secret) == 0 {
		return ulid.ULID{}, oops.Code(CodeInvalidSession).Wrapf(ErrInvalidSession, "session secret not configured")
	}
	if token == "" {
		return ulid.ULID{}, oops.Code(CodeInvalidSession).Wrapf(ErrInvalidSession, "session token cannot be empty")
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return ulid.ULID{}, oops.Code(CodeInvalidSession).Wrapf(ErrInvalidSession, "verify session token: %v", err)
	}

	id, err := ulid.ParseStrict(claims.Subject)
	if err != nil || id == (ulid.ULID{}) {
		return ulid.ULID{}, oops.Code(CodeInvalidSession).Wrapf(ErrInvalidSession, "session subject is not an account ID")
	}
	return id, nil
}
