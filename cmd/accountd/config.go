// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hyperlab Contributors

package main

import (
	"fmt"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}

			redacted := cfg.Redacted()
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(&redacted); err != nil {
				return oops.Code("CONFIG_ENCODE_FAILED").Wrap(err)
			}
			if err := enc.Close(); err != nil {
				return oops.Code("CONFIG_ENCODE_FAILED").Wrap(err)
			}

			if check {
				for _, w := range cfg.Warnings() {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
				}
				return cfg.Validate()
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "exit non-zero when the configuration is invalid")
	return cmd
}
