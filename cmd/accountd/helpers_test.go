// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hyperlab Contributors

package main

import (
	"bytes"
	"context"
	"log/slog"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperlab/accountd/internal/auth/memory"
	"github.com/hyperlab/accountd/internal/config"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testPassword = "tangerine-Kayak-93-nebula!"
)

// harness runs CLI invocations against one shared in-memory store.
type harness struct {
	deps     *Deps
	accounts *memory.Store
	env      []string
}

func newHarness(t *testing.T, extraEnv ...string) *harness {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	h := &harness{accounts: memory.New()}
	h.env = append([]string{
		"ACCOUNTD_SESSION_SECRET=" + testSecret,
		"ACCOUNTD_DATABASE_DRIVER=memory",
		"ACCOUNTD_HASHER_BCRYPT_COST=4",
		"ACCOUNTD_LOG_LEVEL=error",
	}, extraEnv...)
	h.deps = &Deps{
		StoreOpener: func(context.Context, config.DatabaseConfig, *slog.Logger) (*Store, error) {
			return &Store{
				Accounts: h.accounts,
				Ping:     func(context.Context) error { return nil },
				Close:    func() {},
			}, nil
		},
		Environ: func() []string { return h.env },
	}
	return h
}

type result struct {
	stdout string
	stderr string
	err    error
}

func (h *harness) run(stdin string, args ...string) result {
	return h.runContext(context.Background(), stdin, args...)
}

func (h *harness) runContext(ctx context.Context, stdin string, args ...string) result {
	cmd := newRootCmd(h.deps)
	var stdout, stderr bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

var profileID = regexp.MustCompile(`(?m)^ID:\s+(\S+)$`)

// register creates an account and returns its ID.
func (h *harness) register(t *testing.T, username, email string) string {
	t.Helper()
	res := h.run(testPassword+"\n", "account", "register", username, email)
	require.NoError(t, res.err, res.stderr)
	m := profileID.FindStringSubmatch(res.stdout)
	require.Len(t, m, 2, "register output: %s", res.stdout)
	return m[1]
}
