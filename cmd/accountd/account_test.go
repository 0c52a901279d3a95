// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hyperlab Contributors

package main

import (
	"regexp"
	"strings"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperlab/accountd/internal/auth"
	"github.com/hyperlab/accountd/pkg/errutil"
)

var resetToken = regexp.MustCompile(`reset your password: (\S+)`)

func TestAccount_RegisterLoginVerify(t *testing.T) {
	h := newHarness(t)
	id := h.register(t, "alice", "Alice@Example.com")

	login := h.run(testPassword+"\n", "account", "login", "alice@example.com")
	require.NoError(t, login.err, login.stderr)
	token := strings.TrimSpace(login.stdout)
	require.NotEmpty(t, token)
	assert.Contains(t, login.stderr, "expires")

	verify := h.run("", "account", "verify", token)
	require.NoError(t, verify.err)
	assert.Equal(t, id, strings.TrimSpace(verify.stdout))
}

func TestAccount_RegisterWithDisplayName(t *testing.T) {
	h := newHarness(t)
	res := h.run(testPassword+"\n", "account", "register", "bob", "bob@example.com", "--display-name", "Bobby")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "Display name: Bobby")
}

func TestAccount_RegisterFailures(t *testing.T) {
	h := newHarness(t)
	h.register(t, "alice", "alice@example.com")

	t.Run("weak password", func(t *testing.T) {
		res := h.run("password\n", "account", "register", "carol", "carol@example.com")
		require.ErrorIs(t, res.err, auth.ErrWeakCredential)
	})

	t.Run("duplicate username ignores case", func(t *testing.T) {
		res := h.run(testPassword+"\n", "account", "register", "ALICE", "other@example.com")
		require.ErrorIs(t, res.err, auth.ErrDuplicateIdentity)
	})

	t.Run("no password on stdin", func(t *testing.T) {
		res := h.run("", "account", "register", "dave", "dave@example.com")
		require.Error(t, res.err)
		errutil.AssertErrorCode(t, res.err, "INPUT_READ_FAILED")
	})
}

func TestAccount_LoginWrongPassword(t *testing.T) {
	h := newHarness(t)
	h.register(t, "alice", "alice@example.com")

	res := h.run("not-the-password\n", "account", "login", "alice@example.com")
	require.ErrorIs(t, res.err, auth.ErrInvalidCredential)
	assert.Empty(t, res.stdout)

	unknown := h.run(testPassword+"\n", "account", "login", "nobody@example.com")
	require.ErrorIs(t, unknown.err, auth.ErrInvalidCredential)
}

func TestAccount_VerifyRejectsGarbage(t *testing.T) {
	h := newHarness(t)
	res := h.run("", "account", "verify", "not-a-token")
	require.ErrorIs(t, res.err, auth.ErrInvalidSession)
}

func TestAccount_Update(t *testing.T) {
	h := newHarness(t)
	id := h.register(t, "alice", "alice@example.com")

	t.Run("display name and email", func(t *testing.T) {
		res := h.run("", "account", "update", id, "--display-name", "Alice A.", "--email", "New@Example.com")
		require.NoError(t, res.err, res.stderr)
		assert.Contains(t, res.stdout, "Display name: Alice A.")
		assert.Contains(t, res.stdout, "Email:        new@example.com")
	})

	t.Run("password", func(t *testing.T) {
		const next = "violet-Harbor-27-quasar?"
		res := h.run(next+"\n", "account", "update", id, "--password")
		require.NoError(t, res.err, res.stderr)

		login := h.run(next+"\n", "account", "login", "new@example.com")
		require.NoError(t, login.err)
	})

	t.Run("nothing to update", func(t *testing.T) {
		res := h.run("", "account", "update", id)
		require.Error(t, res.err)
		errutil.AssertErrorCode(t, res.err, auth.CodeInvalidInput)
	})

	t.Run("malformed id", func(t *testing.T) {
		res := h.run("", "account", "update", "not-a-ulid", "--display-name", "x")
		require.Error(t, res.err)
		errutil.AssertErrorCode(t, res.err, auth.CodeInvalidInput)
	})

	t.Run("unknown id", func(t *testing.T) {
		res := h.run("", "account", "update", ulid.Make().String(), "--display-name", "x")
		require.ErrorIs(t, res.err, auth.ErrNotFound)
	})
}

func TestAccount_ResetFlow(t *testing.T) {
	h := newHarness(t)
	h.register(t, "alice", "alice@example.com")

	request := h.run("", "account", "reset", "request", "alice@example.com")
	require.NoError(t, request.err, request.stderr)
	assert.Contains(t, request.stdout, "Subject: "+auth.DefaultResetSubject)
	m := resetToken.FindStringSubmatch(request.stdout)
	require.Len(t, m, 2, "notifier output: %s", request.stdout)

	const next = "violet-Harbor-27-quasar?"
	redeem := h.run(next+"\n", "account", "reset", "redeem", m[1])
	require.NoError(t, redeem.err, redeem.stderr)
	assert.Contains(t, redeem.stderr, "Password updated")

	assert.ErrorIs(t, h.run(testPassword+"\n", "account", "login", "alice@example.com").err, auth.ErrInvalidCredential)
	assert.NoError(t, h.run(next+"\n", "account", "login", "alice@example.com").err)

	again := h.run("orchid-Falcon-55-zenith#\n", "account", "reset", "redeem", m[1])
	require.ErrorIs(t, again.err, auth.ErrInvalidOrExpiredToken)
}

func TestAccount_ResetRequestUnknownEmailLooksTheSame(t *testing.T) {
	h := newHarness(t)
	h.register(t, "alice", "alice@example.com")

	known := h.run("", "account", "reset", "request", "alice@example.com")
	unknown := h.run("", "account", "reset", "request", "nobody@example.com")
	require.NoError(t, known.err)
	require.NoError(t, unknown.err)

	assert.Equal(t, known.stderr, unknown.stderr)
	assert.Empty(t, unknown.stdout, "nothing is delivered for unknown emails")
}

func TestAccount_RequiresSessionSecret(t *testing.T) {
	h := newHarness(t)
	h.env = []string{"ACCOUNTD_DATABASE_DRIVER=memory"}

	res := h.run("", "account", "verify", "token")
	require.Error(t, res.err)
	errutil.AssertErrorCode(t, res.err, "CONFIG_INVALID")
}
