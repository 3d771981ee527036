package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/siddartha1192/bharat-crm-sub009/internal/service/reminder"
)

var (
	callsInitiated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bcrm",
			Subsystem: "call",
			Name:      "initiated_total",
			Help:      "Total number of outbound calls initiated",
		},
		[]string{"call_type"},
	)

	callsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bcrm",
			Subsystem: "call",
			Name:      "failed_total",
			Help:      "Total number of outbound call initiations that failed",
		},
		[]string{"call_type"},
	)

	turnsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bcrm",
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Total number of conversation turns processed",
		},
		[]string{"kind"},
	)

	sweepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bcrm",
			Subsystem: "reminder",
			Name:      "sweeps_total",
			Help:      "Total number of reminder sweeps run",
		},
		[]string{"result"},
	)

	webhooksRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bcrm",
			Subsystem: "webhook",
			Name:      "rejected_total",
			Help:      "Total number of webhooks rejected by signature validation",
		},
		[]string{"path"},
	)
)

// promMetrics feeds the handler counters into Prometheus.
type promMetrics struct{}

func (promMetrics) CallInitiated(callType string) {
	callsInitiated.WithLabelValues(callType).Inc()
}

func (promMetrics) CallFailed(callType string) {
	callsFailed.WithLabelValues(callType).Inc()
}

func (promMetrics) TurnProcessed(kind string) {
	turnsProcessed.WithLabelValues(kind).Inc()
}

func (promMetrics) WebhookRejected(path string) {
	webhooksRejected.WithLabelValues(path).Inc()
}

// meteredSweeper counts sweep outcomes around the real sweep.
type meteredSweeper struct {
	inner reminder.Sweeper
}

func (m meteredSweeper) Sweep(ctx context.Context) error {
	err := m.inner.Sweep(ctx)
	if err != nil {
		sweepsTotal.WithLabelValues("error").Inc()
		return err
	}
	sweepsTotal.WithLabelValues("ok").Inc()
	return nil
}
