// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hyperlab Contributors

package notify_test

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hyperlab/accountd/internal/auth"
	"github.com/hyperlab/accountd/internal/notify"
)

// flakyNotifier fails the first failures calls with err.
type flakyNotifier struct {
	failures int32
	err      error
	calls    atomic.Int32
}

func (f *flakyNotifier) Send(context.Context, auth.Message) error {
	if f.calls.Add(1) <= f.failures {
		return f.err
	}
	return nil
}

var fastRetry = notify.RetryConfig{Attempts: 3, Backoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestRetrying_SucceedsAfterTransientFailures(t *testing.T) {
	defer goleak.VerifyNone(t)

	next := &flakyNotifier{failures: 2, err: errors.New("connection reset")}
	r := notify.NewRetrying(next, fastRetry, quietLogger())

	require.NoError(t, r.Send(context.Background(), resetMsg))
	assert.Equal(t, int32(3), next.calls.Load())
}

func TestRetrying_GivesUpAfterAttempts(t *testing.T) {
	defer goleak.VerifyNone(t)

	sendErr := errors.New("connection reset")
	next := &flakyNotifier{failures: 10, err: sendErr}
	r := notify.NewRetrying(next, fastRetry, quietLogger())

	err := r.Send(context.Background(), resetMsg)
	require.ErrorIs(t, err, sendErr)
	assert.Equal(t, int32(3), next.calls.Load())
}

func TestRetrying_StopsOnPermanentFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	next := &flakyNotifier{failures: 10, err: errors.Join(notify.ErrPermanent, errors.New("bad address"))}
	r := notify.NewRetrying(next, fastRetry, quietLogger())

	err := r.Send(context.Background(), resetMsg)
	require.Error(t, err)
	assert.True(t, notify.IsPermanent(err))
	assert.Equal(t, int32(1), next.calls.Load())
}

func TestRetrying_StopsWhenContextEnds(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancelling := auth.NotifierFunc(func(context.Context, auth.Message) error {
		cancel()
		return errors.New("timeout")
	})
	r := notify.NewRetrying(cancelling, notify.RetryConfig{Attempts: 5, Backoff: time.Hour}, quietLogger())

	done := make(chan error, 1)
	go func() { done <- r.Send(ctx, resetMsg) }()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Send did not return after cancellation")
	}
}

func TestNewRetrying_Defaults(t *testing.T) {
	next := &flakyNotifier{}
	r := notify.NewRetrying(next, notify.RetryConfig{}, nil)
	require.NoError(t, r.Send(context.Background(), resetMsg))
	assert.Equal(t, int32(1), next.calls.Load())
}
