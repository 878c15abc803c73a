package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type eventMetrics struct {
	transfers *prometheus.CounterVec
	emitted   *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking bank transfers and emitted
// host events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "counting",
				Subsystem: "events",
				Name:      "transfers_total",
				Help:      "Count of bank transfer legs segmented by denom.",
			}, []string{"denom"}),
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "counting",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Host events handed to emitters segmented by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(eventRegistry.transfers, eventRegistry.emitted)
	})
	return eventRegistry
}

// RecordTransfer increments the transfer counter for the supplied denom.
func (m *eventMetrics) RecordTransfer(denom string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(denom)
	if normalized == "" {
		normalized = "unknown"
	}
	m.transfers.WithLabelValues(normalized).Inc()
}

// RecordEmitted increments the emitted counter for the event type.
func (m *eventMetrics) RecordEmitted(eventType string) {
	if m == nil {
		return
	}
	m.emitted.WithLabelValues(eventType).Inc()
}
