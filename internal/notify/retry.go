// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hyperlab Contributors

package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/hyperlab/accountd/internal/auth"
)

// Retry defaults.
const (
	DefaultAttempts   = 3
	DefaultBackoff    = 200 * time.Millisecond
	DefaultMaxBackoff = 2 * time.Second
)

// RetryConfig bounds the retry loop.
type RetryConfig struct {
	Attempts   uint64
	Backoff    time.Duration
	MaxBackoff time.Duration
}

// Retrying retries a wrapped notifier with capped exponential backoff.
// Permanent failures and context cancellation end the loop early.
type Retrying struct {
	next   auth.Notifier
	cfg    RetryConfig
	logger *slog.Logger
}

var _ auth.Notifier = (*Retrying)(nil)

// NewRetrying wraps next. Zero fields in cfg take the defaults.
func NewRetrying(next auth.Notifier, cfg RetryConfig, logger *slog.Logger) *Retrying {
	if cfg.Attempts == 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultMaxBackoff
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrying{next: next, cfg: cfg, logger: logger}
}

// Send implements auth.Notifier.
func (r *Retrying) Send(ctx context.Context, msg auth.Message) error {
	b := retry.NewExponential(r.cfg.Backoff)
	b = retry.WithCappedDuration(r.cfg.MaxBackoff, b)
	b = retry.WithMaxRetries(r.cfg.Attempts-1, b)

	attempt := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := r.next.Send(ctx, msg)
		if err == nil {
			return nil
		}
		if IsPermanent(err) || ctx.Err() != nil {
			return err
		}
		r.logger.WarnContext(ctx, "notification attempt failed",
			"attempt", attempt,
			"max_attempts", r.cfg.Attempts,
			"error", err)
		return retry.RetryableError(err)
	})
	if err != nil {
		return oops.With("attempts", attempt).Wrap(err)
	}
	return nil
}
