// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hyperlab Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hyperlab/accountd/internal/config"
	"github.com/hyperlab/accountd/internal/logging"
)

const serviceName = "accountd"

// rootOptions holds the global flags and the dependencies shared by every
// subcommand.
type rootOptions struct {
	configFile string
	envFiles   []string
	deps       *Deps
}

// NewRootCmd creates the root command for the accountd CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(nil)
}

func newRootCmd(deps *Deps) *cobra.Command {
	opts := &rootOptions{deps: deps.withDefaults()}

	cmd := &cobra.Command{
		Use:   serviceName,
		Short: "accountd - account authentication and credential recovery",
		Long: `accountd registers accounts, verifies logins, issues signed session
tokens, and runs the password reset flow against a PostgreSQL account store.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/accountd/config.yaml)")
	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, ".env files merged beneath the environment")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newMigrateCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newAccountCmd(opts))

	return cmd
}

// load reads the layered configuration for cmd.
func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(cmd.Flags(), config.Options{
		File:     o.configFile,
		EnvFiles: o.envFiles,
		Environ:  o.deps.Environ,
	})
}

// logger builds the structured logger described by cfg. Logs go to stderr so
// stdout stays parseable.
func (o *rootOptions) logger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.Setup(serviceName, cmd.Root().Version, cfg.Log.Format, level, cmd.ErrOrStderr()), nil
}

// warnConfig logs every config.Warnings entry.
func warnConfig(logger *slog.Logger, cfg *config.Config) {
	for _, w := range cfg.Warnings() {
		logger.Warn("unsafe configuration", "warning", w)
	}
}
