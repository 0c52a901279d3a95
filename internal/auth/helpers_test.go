// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hyperlab Contributors

package auth_test

import (
	"bytes"
	"context"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/hyperlab/accountd/internal/auth"
	"github.com/hyperlab/accountd/internal/auth/memory"
)

// stubPolicy returns a fixed result for every password.
type stubPolicy struct {
	result auth.StrengthResult
}

func (p stubPolicy) Evaluate(string, ...string) auth.StrengthResult {
	return p.result
}

var acceptAll = stubPolicy{result: auth.StrengthResult{Score: 4, Acceptable: true}}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// captureNotifier records messages and optionally fails.
type captureNotifier struct {
	mu   sync.Mutex
	msgs []auth.Message
	err  error
}

func (n *captureNotifier) Send(_ context.Context, msg auth.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return n.err
}

func (n *captureNotifier) Messages() []auth.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]auth.Message(nil), n.msgs...)
}

type recordingMetrics struct {
	mu                   sync.Mutex
	outcomes             map[string][]string
	notificationFailures int
}

func (m *recordingMetrics) RecordOutcome(op, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomes == nil {
		m.outcomes = make(map[string][]string)
	}
	m.outcomes[op] = append(m.outcomes[op], outcome)
}

func (m *recordingMetrics) RecordNotificationFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notificationFailures++
}

func (m *recordingMetrics) Outcomes(op string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.outcomes[op]...)
}

// harness wires a Service to the in-memory store, a fast bcrypt hasher and a
// fixed clock.
type harness struct {
	svc      *auth.Service
	store    *memory.Store
	hasher   *auth.Hasher
	issuer   *auth.SessionIssuer
	clock    *fakeClock
	notifier *captureNotifier
	metrics  *recordingMetrics
	logs     *bytes.Buffer
}

func newHarness(t *testing.T, policy auth.StrengthPolicy) *harness {
	t.Helper()

	h := &harness{
		store:    memory.New(),
		clock:    &fakeClock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)},
		notifier: &captureNotifier{},
		metrics:  &recordingMetrics{},
		logs:     &bytes.Buffer{},
	}

	var err error
	h.hasher, err = auth.NewHasher(auth.HasherConfig{BcryptCost: bcrypt.MinCost})
	require.NoError(t, err)
	h.issuer, err = auth.NewSessionIssuer(auth.SessionConfig{Secret: testSecret, Now: h.clock.Now})
	require.NoError(t, err)

	logger := slog.New(slog.NewJSONHandler(h.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h.svc, err = auth.NewService(h.store, h.hasher, policy, h.issuer, h.notifier,
		auth.WithClock(h.clock.Now),
		auth.WithLogger(logger),
		auth.WithMetrics(h.metrics),
	)
	require.NoError(t, err)
	return h
}

func (h *harness) register(t *testing.T, username, email, password string) auth.Profile {
	t.Helper()
	p, err := h.svc.Register(context.Background(), username, email, password)
	require.NoError(t, err)
	return p
}

// afterReadStore runs afterRead once, right after the first FindByID.
type afterReadStore struct {
	*memory.Store
	once      sync.Once
	afterRead func()
}

func (s *afterReadStore) FindByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	a, err := s.Store.FindByID(ctx, id)
	s.once.Do(s.afterRead)
	return a, err
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

const (
	// timingRuns is the sample count per case in timing comparisons.
	timingRuns = 41
	// timingTolerance bounds the ratio between two medians.
	timingTolerance = 1.5
)

// medianDurations runs a and b alternately n times each, after one warm-up
// call, and returns the median duration of each.
func medianDurations(n int, a, b func()) (time.Duration, time.Duration) {
	a()
	b()
	da := make([]time.Duration, n)
	db := make([]time.Duration, n)
	for i := range n {
		start := time.Now()
		a()
		da[i] = time.Since(start)

		start = time.Now()
		b()
		db[i] = time.Since(start)
	}
	slices.Sort(da)
	slices.Sort(db)
	return da[n/2], db[n/2]
}

func assertSimilarDuration(t *testing.T, a, b time.Duration, what string) {
	t.Helper()
	require.Positive(t, a)
	require.Positive(t, b)
	ratio := float64(a) / float64(b)
	assert.True(t, ratio <= timingTolerance && ratio >= 1/timingTolerance,
		"%s: medians %v vs %v (ratio %.2f)", what, a, b, ratio)
}
