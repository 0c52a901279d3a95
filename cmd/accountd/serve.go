// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hyperlab Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/hyperlab/accountd/internal/auth"
	"github.com/hyperlab/accountd/internal/config"
	"github.com/hyperlab/accountd/pkg/errutil"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run accountd with metrics and health endpoints",
		Long: `Connect to the account store, optionally apply pending migrations,
and serve Prometheus metrics plus liveness and readiness probes until
interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd, opts)
		},
	}
}

func runServe(ctx context.Context, cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := opts.load(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return oops.Wrapf(err, "invalid configuration")
	}
	logger, err := opts.logger(cmd, cfg)
	if err != nil {
		return err
	}
	warnConfig(logger, cfg)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.Database.AutoMigrate && cfg.Database.Driver == config.DriverPostgres {
		if err := applyMigrations(opts.deps, cfg.Database.URL, logger); err != nil {
			return err
		}
	}

	st, err := opts.deps.StoreOpener(ctx, cfg.Database, logger)
	if err != nil {
		return oops.Code("STORE_OPEN_FAILED").With("driver", cfg.Database.Driver).Wrap(err)
	}
	defer st.Close()

	var (
		obsServer ObservabilityServer
		metrics   auth.MetricsRecorder
	)
	if cfg.Observability.Addr != "" {
		obsServer = opts.deps.ObservabilityServerFactory(cfg.Observability.Addr, st.Ping, logger)
		metrics = obsServer.Metrics()
	}

	notifier, err := buildNotifier(cfg.Notifier, cmd.OutOrStdout(), logger)
	if err != nil {
		return err
	}
	if _, err := buildService(cfg, st.Accounts, notifier, logger, metrics, opts.deps.Clock); err != nil {
		return oops.Code("SERVICE_INIT_FAILED").Wrap(err)
	}

	if obsServer != nil {
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").With("addr", cfg.Observability.Addr).Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability", logger)
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	cmd.Println("accountd started")
	logger.Info("accountd ready",
		"store", cfg.Database.Driver,
		"notifier", cfg.Notifier.Driver,
		"hasher", cfg.Hasher.Algorithm,
	)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			errutil.LogError(logger, "error stopping observability server", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// monitorServerErrors cancels ctx when a server reports an error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			logger.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
