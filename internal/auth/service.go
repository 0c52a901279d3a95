// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hyperlab Contributors

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hyperlab/accountd/pkg/errutil"
)

var tracer = otel.Tracer("accountd/auth")

// Operation names used for spans and metrics.
const (
	OpRegister      = "register"
	OpLogin         = "login"
	OpVerifySession = "verify_session"
	OpUpdateProfile = "update_profile"
	OpInitiateReset = "initiate_reset"
	OpRedeemReset   = "redeem_reset"
)

// dummySecret is hashed once at construction. Its hash is verified against
// when a login names an unknown email so both paths pay the hashing cost.
//
//nolint:gosec // G101: not a credential.
const dummySecret = "accountd-timing-equalizer"

// MetricsRecorder receives per-operation outcomes. Implemented by
// internal/observability.
type MetricsRecorder interface {
	RecordOutcome(operation, outcome string)
	RecordNotificationFailure()
}

type noopRecorder struct{}

func (noopRecorder) RecordOutcome(string, string) {}
func (noopRecorder) RecordNotificationFailure()   {}

// Service orchestrates registration, login, profile updates and password
// resets. It holds no per-request state; all state lives in the AccountStore.
type Service struct {
	accounts AccountStore
	hasher   PasswordHasher
	policy   StrengthPolicy
	sessions *SessionIssuer
	notifier Notifier

	logger       *slog.Logger
	metrics      MetricsRecorder
	now          func() time.Time
	resetTTL     time.Duration
	resetSubject string
	dummyHash    string
}

// Option configures a Service during construction.
type Option func(*Service)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithMetrics records operation outcomes to m.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithResetTTL sets how long reset tokens stay redeemable. Defaults to one hour.
func WithResetTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.resetTTL = ttl
	}
}

// WithResetSubject sets the subject line of reset messages.
func WithResetSubject(subject string) Option {
	return func(s *Service) {
		s.resetSubject = subject
	}
}

// NewService creates a Service. All collaborators are required.
func NewService(
	accounts AccountStore,
	hasher PasswordHasher,
	policy StrengthPolicy,
	sessions *SessionIssuer,
	notifier Notifier,
	opts ...Option,
) (*Service, error) {
	switch {
	case accounts == nil:
		return nil, oops.Code("AUTH_SERVICE_CONFIG").Errorf("account store is required")
	case hasher == nil:
		return nil, oops.Code("AUTH_SERVICE_CONFIG").Errorf("password hasher is required")
	case policy == nil:
		return nil, oops.Code("AUTH_SERVICE_CONFIG").Errorf("strength policy is required")
	case sessions == nil:
		return nil, oops.Code("AUTH_SERVICE_CONFIG").Errorf("session issuer is required")
	case notifier == nil:
		return nil, oops.Code("AUTH_SERVICE_CONFIG").Errorf("notifier is required")
	}

	s := &Service{
		accounts:     accounts,
		hasher:       hasher,
		policy:       policy,
		sessions:     sessions,
		notifier:     notifier,
		logger:       slog.Default(),
		metrics:      noopRecorder{},
		now:          time.Now,
		resetTTL:     DefaultResetTokenTTL,
		resetSubject: DefaultResetSubject,
	}
	for _, opt := range opts {
		opt(s)
	}

	switch {
	case s.logger == nil:
		return nil, oops.Code("AUTH_SERVICE_CONFIG").Errorf("logger cannot be nil")
	case s.metrics == nil:
		return nil, oops.Code("AUTH_SERVICE_CONFIG").Errorf("metrics recorder cannot be nil")
	case s.now == nil:
		return nil, oops.Code("AUTH_SERVICE_CONFIG").Errorf("clock cannot be nil")
	case s.resetTTL <= 0:
		return nil, oops.Code("AUTH_SERVICE_CONFIG").
			With("reset_ttl", s.resetTTL).
			Errorf("reset TTL must be positive")
	case s.resetSubject == "":
		return nil, oops.Code("AUTH_SERVICE_CONFIG").Errorf("reset subject cannot be empty")
	}

	dummy, err := hasher.Hash(dummySecret)
	if err != nil {
		return nil, oops.Code("AUTH_SERVICE_CONFIG").
			With("operation", "hash timing equalizer").
			Wrap(err)
	}
	s.dummyHash = dummy

	return s, nil
}

// start opens a span for op. The returned function ends it and records the
// outcome of *errp.
func (s *Service) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(errp *error)) {
	ctx, span := tracer.Start(ctx, "auth."+op, trace.WithAttributes(attrs...))
	return ctx, func(errp *error) {
		var err error
		if errp != nil {
			err = *errp
		}
		outcome := Outcome(err)
		s.metrics.RecordOutcome(op, outcome)
		span.SetAttributes(attribute.String("auth.outcome", outcome))
		if outcome == OutcomeError {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			errutil.LogError(s.logger, op+" failed", err)
		}
		span.End()
	}
}

// Outcome labels.
const (
	OutcomeSuccess        = "success"
	OutcomeWeakCredential = "weak_credential"
	OutcomeDuplicate      = "duplicate_identity"
	OutcomeInvalidCreds   = "invalid_credentials"
	OutcomeNotFound       = "not_found"
	OutcomeInvalidToken   = "invalid_or_expired_token"
	OutcomeDeliveryFailed = "delivery_failed"
	OutcomeInvalidSession = "invalid_session"
	OutcomeInvalidInput   = "invalid_input"
	OutcomeError          = "error"
)

// Outcome classifies err into a metrics label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrWeakCredential):
		return OutcomeWeakCredential
	case errors.Is(err, ErrDuplicateIdentity):
		return OutcomeDuplicate
	case errors.Is(err, ErrInvalidCredential):
		return OutcomeInvalidCreds
	case errors.Is(err, ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrInvalidOrExpiredToken):
		return OutcomeInvalidToken
	case errors.Is(err, ErrDeliveryFailed):
		return OutcomeDeliveryFailed
	case errors.Is(err, ErrInvalidSession):
		return OutcomeInvalidSession
	case errors.Is(err, ErrInvalidInput):
		return OutcomeInvalidInput
	default:
		return OutcomeError
	}
}

// storeFault wraps a persistence error so that it always matches ErrStore.
func storeFault(op string, err error) error {
	if !errors.Is(err, ErrStore) {
		err = &StoreError{Op: op, Err: err}
	}
	return oops.Code(CodeStoreFailed).With("operation", op).Wrap(err)
}

func notFound(id fmt.Stringer) error {
	return oops.Code(CodeNotFound).With("account_id", id.String()).Wrap(ErrNotFound)
}

func invalidCredential() error {
	return oops.Code(CodeInvalidCredentials).Wrap(ErrInvalidCredential)
}

func invalidResetToken() error {
	return oops.Code(CodeInvalidOrExpiredToken).Wrap(ErrInvalidOrExpiredToken)
}
