// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hyperlab Contributors

// Package store manages the PostgreSQL connection pool and schema
// migrations for the account database.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Default connection settings.
const (
	DefaultConnectAttempts = 5
	DefaultConnectBackoff  = 500 * time.Millisecond
	DefaultMaxConns        = 10
)

// PoolConfig controls how Connect opens the pool.
type PoolConfig struct {
	URL      string
	MaxConns int32
	// Attempts bounds the number of pings before Connect gives up.
	Attempts uint64
	Backoff  time.Duration
	Logger   *slog.Logger
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Connect opens a pgx pool and waits until the database answers a ping.
func Connect(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	if cfg.URL == "" {
		return nil, oops.Code("DB_CONFIG_INVALID").Errorf("database url is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}
	if err := waitForPing(ctx, pool, cfg); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func waitForPing(ctx context.Context, db pinger, cfg PoolConfig) error {
	attempts := cfg.Attempts
	if attempts == 0 {
		attempts = DefaultConnectAttempts
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = DefaultConnectBackoff
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	b := retry.WithMaxRetries(attempts-1, retry.NewExponential(backoff))
	var tries int
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		tries++
		if err := db.Ping(ctx); err != nil {
			logger.Warn("database not ready", "attempt", tries, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			With("attempts", tries).
			Wrap(err)
	}
	return nil
}
