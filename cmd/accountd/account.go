// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hyperlab Contributors

package main

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/hyperlab/accountd/internal/auth"
)

func newAccountCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Register, authenticate, and recover accounts",
	}
	cmd.AddCommand(newRegisterCmd(opts))
	cmd.AddCommand(newLoginCmd(opts))
	cmd.AddCommand(newVerifyCmd(opts))
	cmd.AddCommand(newUpdateCmd(opts))
	cmd.AddCommand(newResetCmd(opts))
	return cmd
}

// openService loads and validates the config and assembles the auth
// service. The returned func releases the store.
func (o *rootOptions) openService(cmd *cobra.Command) (*auth.Service, func(), error) {
	cfg, err := o.load(cmd)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, oops.Wrapf(err, "invalid configuration")
	}
	logger, err := o.logger(cmd, cfg)
	if err != nil {
		return nil, nil, err
	}
	warnConfig(logger, cfg)

	st, err := o.deps.StoreOpener(cmd.Context(), cfg.Database, logger)
	if err != nil {
		return nil, nil, oops.Code("STORE_OPEN_FAILED").With("driver", cfg.Database.Driver).Wrap(err)
	}
	notifier, err := buildNotifier(cfg.Notifier, cmd.OutOrStdout(), logger)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	svc, err := buildService(cfg, st.Accounts, notifier, logger, nil, o.deps.Clock)
	if err != nil {
		st.Close()
		return nil, nil, oops.Code("SERVICE_INIT_FAILED").Wrap(err)
	}
	return svc, st.Close, nil
}

func newRegisterCmd(opts *rootOptions) *cobra.Command {
	var displayName string

	cmd := &cobra.Command{
		Use:   "register USERNAME EMAIL",
		Short: "Create an account; the password is read from the terminal or stdin",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := newSecretReader(cmd.InOrStdin(), cmd.ErrOrStderr()).ReadNew("Password")
			if err != nil {
				return err
			}

			svc, release, err := opts.openService(cmd)
			if err != nil {
				return err
			}
			defer release()

			profile, err := svc.Register(cmd.Context(), args[0], args[1], password)
			if err != nil {
				return err
			}
			if displayName != "" {
				profile, err = svc.UpdateProfile(cmd.Context(), profile.ID, auth.ProfileUpdate{DisplayName: &displayName})
				if err != nil {
					return err
				}
			}
			printProfile(cmd, profile)
			return nil
		},
	}
	cmd.Flags().StringVar(&displayName, "display-name", "", "display name shown instead of the username")
	return cmd
}

func newLoginCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login EMAIL",
		Short: "Verify credentials and print a session token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := newSecretReader(cmd.InOrStdin(), cmd.ErrOrStderr()).Read("Password")
			if err != nil {
				return err
			}

			svc, release, err := opts.openService(cmd)
			if err != nil {
				return err
			}
			defer release()

			session, err := svc.Login(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), session.Token)
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Session for %s expires %s\n",
				session.AccountID, session.ExpiresAt.UTC().Format(time.RFC3339))
			return nil
		},
	}
}

func newVerifyCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify TOKEN",
		Short: "Check a session token and print its account ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, release, err := opts.openService(cmd)
			if err != nil {
				return err
			}
			defer release()

			id, err := svc.VerifySession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

func newUpdateCmd(opts *rootOptions) *cobra.Command {
	var (
		email       string
		displayName string
		password    bool
	)

	cmd := &cobra.Command{
		Use:   "update ACCOUNT_ID",
		Short: "Change the email, display name, or password of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := ulid.Parse(args[0])
			if err != nil {
				return oops.Code(auth.CodeInvalidInput).With("account_id", args[0]).Wrap(err)
			}

			var update auth.ProfileUpdate
			if cmd.Flags().Changed("email") {
				update.Email = &email
			}
			if cmd.Flags().Changed("display-name") {
				update.DisplayName = &displayName
			}
			if password {
				secret, err := newSecretReader(cmd.InOrStdin(), cmd.ErrOrStderr()).ReadNew("New password")
				if err != nil {
					return err
				}
				update.Password = &secret
			}
			if update.IsEmpty() {
				return oops.Code(auth.CodeInvalidInput).Errorf("nothing to update: pass --email, --display-name or --password")
			}

			svc, release, err := opts.openService(cmd)
			if err != nil {
				return err
			}
			defer release()

			profile, err := svc.UpdateProfile(cmd.Context(), id, update)
			if err != nil {
				return err
			}
			printProfile(cmd, profile)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "new email address")
	cmd.Flags().StringVar(&displayName, "display-name", "", "new display name")
	cmd.Flags().BoolVar(&password, "password", false, "prompt for a new password")
	return cmd
}

func newResetCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Run the password reset flow",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "request EMAIL",
		Short: "Issue a reset token and deliver it through the configured notifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, release, err := opts.openService(cmd)
			if err != nil {
				return err
			}
			defer release()

			if _, err := svc.InitiateReset(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "If an account with that email exists, a reset message has been sent.")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "redeem TOKEN",
		Short: "Set a new password using a reset token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := newSecretReader(cmd.InOrStdin(), cmd.ErrOrStderr()).ReadNew("New password")
			if err != nil {
				return err
			}

			svc, release, err := opts.openService(cmd)
			if err != nil {
				return err
			}
			defer release()

			if err := svc.RedeemReset(cmd.Context(), args[0], password); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Password updated")
			return nil
		},
	})

	return cmd
}

func printProfile(cmd *cobra.Command, p auth.Profile) {
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "ID:           %s\n", p.ID)
	_, _ = fmt.Fprintf(out, "Username:     %s\n", p.Username)
	_, _ = fmt.Fprintf(out, "Email:        %s\n", p.Email)
	if p.DisplayName != "" {
		_, _ = fmt.Fprintf(out, "Display name: %s\n", p.DisplayName)
	}
	_, _ = fmt.Fprintf(out, "Created:      %s\n", p.CreatedAt.UTC().Format(time.RFC3339))
}
