// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hyperlab Contributors

package notify_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperlab/accountd/internal/notify"
)

func TestFile_WritesMessage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "outbox")
	f, err := notify.NewFile(dir)
	require.NoError(t, err)

	require.NoError(t, f.Send(context.Background(), resetMsg))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "alice_example.com")

	info, err := entries[0].Info()
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, resetMsg.To, rec["to"])
	assert.Equal(t, resetMsg.Subject, rec["subject"])
	assert.Equal(t, resetMsg.Body, rec["body"])
}

func TestFile_RequiresDirectory(t *testing.T) {
	_, err := notify.NewFile("")
	assert.Error(t, err)
}

func TestFile_HonorsCancelledContext(t *testing.T) {
	f, err := notify.NewFile(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, f.Send(ctx, resetMsg), context.Canceled)
}
