// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hyperlab Contributors

package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hyperlab/accountd/internal/auth"
)

// Metrics holds the accountd Prometheus collectors and implements
// auth.MetricsRecorder.
type Metrics struct {
	OperationsTotal      *prometheus.CounterVec
	NotificationFailures prometheus.Counter
}

var _ auth.MetricsRecorder = (*Metrics)(nil)

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accountd_auth_operations_total",
				Help: "Auth service operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		NotificationFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "accountd_notification_failures_total",
				Help: "Reset notifications that could not be delivered",
			},
		),
	}
	reg.MustRegister(m.OperationsTotal, m.NotificationFailures)
	return m
}

// RecordOutcome implements auth.MetricsRecorder.
func (m *Metrics) RecordOutcome(operation, outcome string) {
	m.OperationsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordNotificationFailure implements auth.MetricsRecorder.
func (m *Metrics) RecordNotificationFailure() {
	m.NotificationFailures.Inc()
}
