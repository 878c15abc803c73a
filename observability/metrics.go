package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ContractMetricsRegistry tracks counting-contract business outcomes.
type ContractMetricsRegistry struct {
	donations   *prometheus.CounterVec
	forwards    prometheus.Counter
	withdrawals *prometheus.CounterVec
	migrations  *prometheus.CounterVec
}

// HostMetricsRegistry tracks top-level host calls.
type HostMetricsRegistry struct {
	calls    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	messages *prometheus.CounterVec
}

var (
	contractMetricsOnce sync.Once
	contractRegistry    *ContractMetricsRegistry

	hostMetricsOnce sync.Once
	hostRegistry    *HostMetricsRegistry
)

// ContractMetrics returns the lazily-initialised contract metrics registry.
func ContractMetrics() *ContractMetricsRegistry {
	contractMetricsOnce.Do(func() {
		contractRegistry = &ContractMetricsRegistry{
			donations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "counting",
				Subsystem: "contract",
				Name:      "donations_total",
				Help:      "Donate calls segmented by whether they met the threshold.",
			}, []string{"outcome"}),
			forwards: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "counting",
				Subsystem: "contract",
				Name:      "cascade_forwards_total",
				Help:      "Donations forwarded to a parent contract.",
			}),
			withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "counting",
				Subsystem: "contract",
				Name:      "withdrawals_total",
				Help:      "Withdraw calls segmented by kind and outcome.",
			}, []string{"kind", "outcome"}),
			migrations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "counting",
				Subsystem: "contract",
				Name:      "migrations_total",
				Help:      "Migration attempts segmented by source version and outcome.",
			}, []string{"from", "outcome"}),
		}
		prometheus.MustRegister(
			contractRegistry.donations,
			contractRegistry.forwards,
			contractRegistry.withdrawals,
			contractRegistry.migrations,
		)
	})
	return contractRegistry
}

// RecordDonation counts a donate call.
func (m *ContractMetricsRegistry) RecordDonation(eligible bool) {
	if m == nil {
		return
	}
	outcome := "ineligible"
	if eligible {
		outcome = "eligible"
	}
	m.donations.WithLabelValues(outcome).Inc()
}

// RecordForward counts a cascade forward.
func (m *ContractMetricsRegistry) RecordForward() {
	if m == nil {
		return
	}
	m.forwards.Inc()
}

// RecordWithdrawal counts a withdraw or withdraw_to attempt.
func (m *ContractMetricsRegistry) RecordWithdrawal(kind string, err error) {
	if m == nil {
		return
	}
	m.withdrawals.WithLabelValues(kind, outcomeOf(err)).Inc()
}

// RecordMigration counts a migration attempt from the given stored version.
func (m *ContractMetricsRegistry) RecordMigration(from string, err error) {
	if m == nil {
		return
	}
	if from == "" {
		from = "unknown"
	}
	m.migrations.WithLabelValues(from, outcomeOf(err)).Inc()
}

// Donations exposes the donation counter for tests and dashboards.
func (m *ContractMetricsRegistry) Donations() *prometheus.CounterVec { return m.donations }

// Forwards exposes the cascade counter.
func (m *ContractMetricsRegistry) Forwards() prometheus.Counter { return m.forwards }

// Withdrawals exposes the withdrawal counter.
func (m *ContractMetricsRegistry) Withdrawals() *prometheus.CounterVec { return m.withdrawals }

// Migrations exposes the migration counter.
func (m *ContractMetricsRegistry) Migrations() *prometheus.CounterVec { return m.migrations }

// ContractOutcomes buffers the outcomes contract code reports during one host
// call. Apply hands all of them to the registry once the call commits. Drop
// keeps only failed attempts, since nothing else of a rolled-back call
// happened. A nil *ContractOutcomes discards everything.
type ContractOutcomes struct {
	registry *ContractMetricsRegistry
	pending  []pendingOutcome
}

type pendingOutcome struct {
	failed bool
	apply  func(*ContractMetricsRegistry)
}

// Begin opens an outcome buffer for one host call.
func (m *ContractMetricsRegistry) Begin() *ContractOutcomes {
	return &ContractOutcomes{registry: m}
}

func (o *ContractOutcomes) add(failed bool, apply func(*ContractMetricsRegistry)) {
	if o == nil {
		return
	}
	o.pending = append(o.pending, pendingOutcome{failed: failed, apply: apply})
}

// RecordDonation buffers a donate call.
func (o *ContractOutcomes) RecordDonation(eligible bool) {
	o.add(false, func(m *ContractMetricsRegistry) { m.RecordDonation(eligible) })
}

// RecordForward buffers a cascade forward.
func (o *ContractOutcomes) RecordForward() {
	o.add(false, func(m *ContractMetricsRegistry) { m.RecordForward() })
}

// RecordWithdrawal buffers a withdraw or withdraw_to attempt.
func (o *ContractOutcomes) RecordWithdrawal(kind string, err error) {
	o.add(err != nil, func(m *ContractMetricsRegistry) { m.RecordWithdrawal(kind, err) })
}

// RecordMigration buffers a migration attempt.
func (o *ContractOutcomes) RecordMigration(from string, err error) {
	o.add(err != nil, func(m *ContractMetricsRegistry) { m.RecordMigration(from, err) })
}

// Apply records every buffered outcome.
func (o *ContractOutcomes) Apply() {
	o.flush(false)
}

// Drop records only the failed attempts and forgets the rest.
func (o *ContractOutcomes) Drop() {
	o.flush(true)
}

func (o *ContractOutcomes) flush(failedOnly bool) {
	if o == nil {
		return
	}
	for _, p := range o.pending {
		if failedOnly && !p.failed {
			continue
		}
		if o.registry != nil {
			p.apply(o.registry)
		}
	}
	o.pending = nil
}

// HostMetrics returns the lazily-initialised host call registry.
func HostMetrics() *HostMetricsRegistry {
	hostMetricsOnce.Do(func() {
		hostRegistry = &HostMetricsRegistry{
			calls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "counting",
				Subsystem: "host",
				Name:      "calls_total",
				Help:      "Top-level host calls segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "counting",
				Subsystem: "host",
				Name:      "call_duration_seconds",
				Help:      "Latency distribution for top-level host calls.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			messages: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "counting",
				Subsystem: "host",
				Name:      "dispatched_messages_total",
				Help:      "Outbound contract messages dispatched by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(hostRegistry.calls, hostRegistry.latency, hostRegistry.messages)
	})
	return hostRegistry
}

// ObserveCall records the outcome and latency of a top-level call.
func (m *HostMetricsRegistry) ObserveCall(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	m.calls.WithLabelValues(operation, outcomeOf(err)).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordMessage counts one dispatched outbound message.
func (m *HostMetricsRegistry) RecordMessage(msgType string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(msgType).Inc()
}

// Calls exposes the call counter.
func (m *HostMetricsRegistry) Calls() *prometheus.CounterVec { return m.calls }

func outcomeOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
