// Package metrics provides the Prometheus counters of the moderation pipeline.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics is safe to use through a nil pointer; every method is then
// a no-op, which keeps tests free of registry setup.
type PipelineMetrics struct {
	MessagesTotal      *prometheus.CounterVec // by stage, outcome
	EventsTotal        *prometheus.CounterVec // by kind, verdict
	RedeliveriesTotal  *prometheus.CounterVec // by stage, action: retry, dead_letter, discard
	CleanupTotal       *prometheus.CounterVec // by result: deleted, absent, heuristic_skipped, no_target
	NotificationsTotal *prometheus.CounterVec // by result: sent, failed, ignored, duplicate, no_record
	OutboxPublished    prometheus.Counter
}

func NewPipelineMetrics(registry prometheus.Registerer) (*PipelineMetrics, error) {
	m := &PipelineMetrics{
		MessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_messages_total",
				Help: "Transport messages handled by stage and outcome",
			},
			[]string{"stage", "outcome"},
		),
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_events_total",
				Help: "Classified events by kind and gate verdict",
			},
			[]string{"kind", "verdict"},
		),
		RedeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_redeliveries_total",
				Help: "Failed messages by stage and what was done with them",
			},
			[]string{"stage", "action"},
		),
		CleanupTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_cleanup_total",
				Help: "Cleanup attempts by result",
			},
			[]string{"result"},
		),
		NotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_notifications_total",
				Help: "Outcome notifications by result",
			},
			[]string{"result"},
		),
		OutboxPublished: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pipeline_outbox_published_total",
				Help: "Change-feed rows published by the outbox relay",
			},
		),
	}

	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register pipeline metrics: %w", err)
	}

	return m, nil
}

func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.MessagesTotal.Describe(ch)
	m.EventsTotal.Describe(ch)
	m.RedeliveriesTotal.Describe(ch)
	m.CleanupTotal.Describe(ch)
	m.NotificationsTotal.Describe(ch)
	m.OutboxPublished.Describe(ch)
}

func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.MessagesTotal.Collect(ch)
	m.EventsTotal.Collect(ch)
	m.RedeliveriesTotal.Collect(ch)
	m.CleanupTotal.Collect(ch)
	m.NotificationsTotal.Collect(ch)
	m.OutboxPublished.Collect(ch)
}

func (m *PipelineMetrics) Message(stage, outcome string) {
	if m == nil {
		return
	}
	m.MessagesTotal.WithLabelValues(stage, outcome).Inc()
}

func (m *PipelineMetrics) Event(kind, verdict string) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(kind, verdict).Inc()
}

func (m *PipelineMetrics) Redelivery(stage, action string) {
	if m == nil {
		return
	}
	m.RedeliveriesTotal.WithLabelValues(stage, action).Inc()
}

func (m *PipelineMetrics) Cleanup(result string) {
	if m == nil {
		return
	}
	m.CleanupTotal.WithLabelValues(result).Inc()
}

func (m *PipelineMetrics) Notification(result string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(result).Inc()
}

func (m *PipelineMetrics) Published(n int) {
	if m == nil {
		return
	}
	m.OutboxPublished.Add(float64(n))
}
