package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineMetricsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewPipelineMetrics(reg)
	require.NoError(t, err)

	m.Message("events", "done")
	m.Message("events", "done")
	m.Event("BlobCreated", "escalate")
	m.Cleanup("deleted")
	m.Notification("sent")
	m.Published(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.MessagesTotal.WithLabelValues("events", "done")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsTotal.WithLabelValues("BlobCreated", "escalate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CleanupTotal.WithLabelValues("deleted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("sent")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.OutboxPublished))
}

func TestPipelineMetricsDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPipelineMetrics(reg)
	require.NoError(t, err)

	_, err = NewPipelineMetrics(reg)
	assert.Error(t, err)
}

func TestNilPipelineMetrics(t *testing.T) {
	var m *PipelineMetrics

	assert.NotPanics(t, func() {
		m.Message("events", "done")
		m.Event("BlobCreated", "accept")
		m.Redelivery("events", "retry")
		m.Cleanup("absent")
		m.Notification("failed")
		m.Published(1)
	})
}
