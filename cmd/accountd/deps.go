// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hyperlab Contributors

package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/hyperlab/accountd/internal/auth"
	"github.com/hyperlab/accountd/internal/auth/memory"
	"github.com/hyperlab/accountd/internal/auth/postgres"
	"github.com/hyperlab/accountd/internal/config"
	"github.com/hyperlab/accountd/internal/notify"
	"github.com/hyperlab/accountd/internal/observability"
	"github.com/hyperlab/accountd/internal/store"
)

// Deps contains injectable dependencies for the CLI.
// All fields with nil values will use their default implementations.
type Deps struct {
	// StoreOpener opens the account store selected by the database config.
	// Default: openStore
	StoreOpener func(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*Store, error)

	// MigratorFactory opens a schema migrator for a database URL.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)

	// ObservabilityServerFactory creates the metrics and health server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer

	// Environ returns the process environment.
	// Default: os.Environ
	Environ func() []string

	// Clock is handed to the service and session issuer.
	// Default: time.Now
	Clock func() time.Time
}

// Store is an opened account store plus its lifecycle hooks.
type Store struct {
	Accounts auth.AccountStore
	Ping     func(ctx context.Context) error
	Close    func()
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Status() (store.Status, error)
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

func (d *Deps) withDefaults() *Deps {
	out := &Deps{}
	if d != nil {
		*out = *d
	}
	if out.StoreOpener == nil {
		out.StoreOpener = openStore
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(databaseURL string) (Migrator, error) {
			return store.NewMigrator(databaseURL)
		}
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, ready, logger)
		}
	}
	if out.Environ == nil {
		out.Environ = os.Environ
	}
	if out.Clock == nil {
		out.Clock = time.Now
	}
	return out
}

// openStore connects to PostgreSQL, or returns a process-local store for
// the memory driver.
func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*Store, error) {
	if cfg.Driver == config.DriverMemory {
		logger.Warn("using in-memory account store, accounts are lost on exit")
		return &Store{
			Accounts: memory.New(),
			Ping:     func(context.Context) error { return nil },
			Close:    func() {},
		}, nil
	}

	pool, err := store.Connect(ctx, store.PoolConfig{
		URL:      cfg.URL,
		MaxConns: cfg.MaxConns,
		Attempts: cfg.ConnectAttempts,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	return &Store{
		Accounts: postgres.NewAccountStore(pool),
		Ping:     pool.Ping,
		Close:    pool.Close,
	}, nil
}

// buildNotifier wraps the configured delivery adapter in the retry policy.
// The log driver prints messages to out.
func buildNotifier(cfg config.NotifierConfig, out io.Writer, logger *slog.Logger) (auth.Notifier, error) {
	var (
		base auth.Notifier
		err  error
	)
	switch cfg.Driver {
	case config.NotifierFile:
		base, err = notify.NewFile(cfg.File.Dir)
	case config.NotifierPostmark:
		base, err = notify.NewPostmark(notify.PostmarkConfig{
			ServerToken: cfg.Postmark.ServerToken,
			From:        cfg.Postmark.From,
			Tag:         cfg.Postmark.Tag,
			BaseURL:     cfg.Postmark.BaseURL,
		})
	default:
		base = notify.NewWriter(out)
	}
	if err != nil {
		return nil, err
	}
	return notify.NewRetrying(base, notify.RetryConfig{
		Attempts:   cfg.Retry.Attempts,
		Backoff:    cfg.Retry.Backoff,
		MaxBackoff: cfg.Retry.MaxBackoff,
	}, logger), nil
}

// buildService assembles the auth service from cfg. metrics may be nil.
func buildService(
	cfg *config.Config,
	accounts auth.AccountStore,
	notifier auth.Notifier,
	logger *slog.Logger,
	metrics auth.MetricsRecorder,
	clock func() time.Time,
) (*auth.Service, error) {
	hasher, err := auth.NewHasher(auth.HasherConfig{
		Algorithm:  cfg.Hasher.Algorithm,
		BcryptCost: cfg.Hasher.BcryptCost,
		Argon2:     argon2Params(cfg.Hasher.Argon2),
	})
	if err != nil {
		return nil, err
	}
	policy, err := auth.NewZxcvbnPolicy(cfg.Strength.MinScore)
	if err != nil {
		return nil, err
	}
	sessions, err := auth.NewSessionIssuer(auth.SessionConfig{
		Secret: []byte(cfg.Session.Secret),
		TTL:    cfg.Session.TTL,
		Issuer: cfg.Session.Issuer,
		Now:    clock,
	})
	if err != nil {
		return nil, err
	}

	opts := []auth.Option{
		auth.WithLogger(logger),
		auth.WithClock(clock),
		auth.WithResetTTL(cfg.Reset.TTL),
		auth.WithResetSubject(cfg.Reset.Subject),
	}
	if metrics != nil {
		opts = append(opts, auth.WithMetrics(metrics))
	}
	return auth.NewService(accounts, hasher, policy, sessions, notifier, opts...)
}

// argon2Params overlays the configured argon2id settings on the defaults.
func argon2Params(c config.Argon2Config) auth.Argon2Params {
	p := auth.DefaultArgon2Params
	if c.Time > 0 {
		p.Time = c.Time
	}
	if c.MemoryKiB > 0 {
		p.Memory = c.MemoryKiB
	}
	if c.Threads > 0 {
		p.Threads = c.Threads
	}
	return p
}
