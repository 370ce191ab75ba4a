package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics records reconciliation and read-path counters.
type SyncMetrics struct {
	passDuration *prometheus.HistogramVec
	pushes       *prometheus.CounterVec
	failures     *prometheus.CounterVec
	fallbacks    *prometheus.CounterVec
}

// NewSyncMetrics registers the sync metrics on the provided registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	passDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sync_pass_duration_seconds",
		Help:    "Duration of reconciliation passes in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"scope"})
	pushes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_pushes_total",
		Help: "Confirmed remote pushes by entity and action.",
	}, []string{"entity", "action"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_push_failures_total",
		Help: "Failed remote pushes by entity.",
	}, []string{"entity"})
	fallbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "read_cache_fallbacks_total",
		Help: "Reads served from the local cache after a connectivity failure.",
	}, []string{"entity"})
	reg.MustRegister(passDuration, pushes, failures, fallbacks)
	return &SyncMetrics{
		passDuration: passDuration,
		pushes:       pushes,
		failures:     failures,
		fallbacks:    fallbacks,
	}
}

// ObservePassDuration records the duration of one reconciliation pass.
func (m *SyncMetrics) ObservePassDuration(scope string, duration time.Duration) {
	if m == nil || m.passDuration == nil {
		return
	}
	m.passDuration.WithLabelValues(normalizeLabel(scope)).Observe(duration.Seconds())
}

// IncPush increments the confirmed-push counter.
func (m *SyncMetrics) IncPush(entity, action string) {
	if m == nil || m.pushes == nil {
		return
	}
	m.pushes.WithLabelValues(normalizeLabel(entity), normalizeLabel(action)).Inc()
}

// IncFailure increments the failed-push counter.
func (m *SyncMetrics) IncFailure(entity string) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(normalizeLabel(entity)).Inc()
}

// IncFallback increments the cache-fallback counter.
func (m *SyncMetrics) IncFallback(entity string) {
	if m == nil || m.fallbacks == nil {
		return
	}
	m.fallbacks.WithLabelValues(normalizeLabel(entity)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
