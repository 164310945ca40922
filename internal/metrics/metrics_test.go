package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, c.Write(metric))
	return metric.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, g.Write(metric))
	return metric.GetGauge().GetValue()
}

func TestPlacementMetrics_Counters(t *testing.T) {
	m := NewPlacementMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordPlaced()
	m.RecordPlaced()
	m.RecordRejected("PRODUCT_NOT_FOUND")
	m.RecordPersistenceFailed()
	m.RecordDrift()
	m.RecordStatusChange("PAID")
	m.RecordTimelineEvent()
	m.RecordOutboxEvent()

	assert.Equal(t, 2.0, counterValue(t, m.ordersPlaced))
	assert.Equal(t, 1.0, counterValue(t, m.ordersRejected.WithLabelValues("PRODUCT_NOT_FOUND")))
	assert.Equal(t, 0.0, counterValue(t, m.ordersRejected.WithLabelValues("PRODUCT_INACTIVE")))
	assert.Equal(t, 1.0, counterValue(t, m.persistenceFailed))
	assert.Equal(t, 1.0, counterValue(t, m.driftRecorded))
	assert.Equal(t, 1.0, counterValue(t, m.statusChanges.WithLabelValues("PAID")))
	assert.Equal(t, 1.0, counterValue(t, m.timelineEvents))
	assert.Equal(t, 1.0, counterValue(t, m.outboxEvents))
}

func TestPlacementMetrics_InFlightAndDuration(t *testing.T) {
	m := NewPlacementMetricsWithRegisterer(prometheus.NewRegistry())

	done := m.PlacementStarted()
	assert.Equal(t, 1.0, gaugeValue(t, m.inFlight))
	done()
	assert.Equal(t, 0.0, gaugeValue(t, m.inFlight))

	metric := &dto.Metric{}
	require.NoError(t, m.placementDuration.Write(metric))
	assert.Equal(t, uint64(1), metric.GetHistogram().GetSampleCount())

	m.RecordStepDuration(StepFetchProduct, 50*time.Millisecond)
	m.RecordStepDuration(StepFetchProduct, 150*time.Millisecond)
	step := &dto.Metric{}
	require.NoError(t, m.stepDuration.WithLabelValues(StepFetchProduct).(prometheus.Histogram).Write(step))
	assert.Equal(t, uint64(2), step.GetHistogram().GetSampleCount())
	assert.InDelta(t, 0.2, step.GetHistogram().GetSampleSum(), 0.001)
}

func TestPlacementMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewPlacementMetricsWithRegisterer(reg)
	second := NewPlacementMetricsWithRegisterer(reg)

	first.RecordPlaced()
	second.RecordPlaced()

	assert.Equal(t, 2.0, counterValue(t, first.ordersPlaced))
}

func TestRegister_PanicsOnTypeMismatch(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = gauge(reg, "storefront_test_metric", "gauge")

	assert.Panics(t, func() {
		_ = counter(reg, "storefront_test_metric", "counter")
	})
}

func TestDriftMetrics(t *testing.T) {
	m := NewDriftMetricsWithRegisterer(prometheus.NewRegistry())
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	m.RecordAttempt(DriftResultRetry)
	m.RecordAttempt(DriftResultResolved)
	m.SetBacklog(3, now.Add(-30*time.Second), now)

	assert.Equal(t, 1.0, counterValue(t, m.attempts.WithLabelValues(DriftResultRetry)))
	assert.Equal(t, 1.0, counterValue(t, m.attempts.WithLabelValues(DriftResultResolved)))
	assert.Equal(t, 3.0, gaugeValue(t, m.pendingRecords))
	assert.Equal(t, 30.0, gaugeValue(t, m.oldestPendingAge))

	m.SetBacklog(0, time.Time{}, now)
	assert.Equal(t, 0.0, gaugeValue(t, m.pendingRecords))
	assert.Equal(t, 0.0, gaugeValue(t, m.oldestPendingAge))
}

func TestOutboxMetrics(t *testing.T) {
	m := NewOutboxMetricsWithRegisterer(prometheus.NewRegistry())
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	m.RecordPublish(OutboxResultSent)
	m.RecordPublish(OutboxResultSent)
	m.RecordPublish(OutboxResultFailed)
	m.SetBacklog(1, now.Add(-5*time.Second), now)

	assert.Equal(t, 2.0, counterValue(t, m.publishAttempts.WithLabelValues(OutboxResultSent)))
	assert.Equal(t, 1.0, counterValue(t, m.publishAttempts.WithLabelValues(OutboxResultFailed)))
	assert.Equal(t, 1.0, gaugeValue(t, m.pendingRecords))
	assert.Equal(t, 5.0, gaugeValue(t, m.oldestPendingAge))

	// Часы назад не дают отрицательного возраста.
	m.SetBacklog(1, now.Add(time.Minute), now)
	assert.Equal(t, 0.0, gaugeValue(t, m.oldestPendingAge))
}

func TestHTTPMetrics_Instrument(t *testing.T) {
	m := NewHTTPMetricsWithRegisterer(prometheus.NewRegistry(), "catalog")
	handler := m.Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/products", "/products", "/missing"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, counterValue(t, m.requests.WithLabelValues("200", "get")))
	assert.Equal(t, 1.0, counterValue(t, m.requests.WithLabelValues("404", "get")))
	assert.Equal(t, 0.0, gaugeValue(t, m.inFlight))
}
