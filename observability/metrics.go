package observability

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

// LedgerMetrics tracks instruction execution inside the ledger.
type LedgerMetrics struct {
	requests   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	valueMoved *prometheus.CounterVec
	events     *prometheus.CounterVec
	commits    prometheus.Counter
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	ledgerMetricsOnce sync.Once
	ledgerRegistry    *LedgerMetrics
)

// ModuleMetrics returns the lazily-initialised registry used to record RPC
// route activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cowdfund",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total RPC requests segmented by route, method and outcome.",
			}, []string{"route", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cowdfund",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total RPC errors segmented by route, method and status code.",
			}, []string{"route", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "cowdfund",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cowdfund",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of RPC requests rejected due to throttling policies.",
			}, []string{"route", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of an RPC request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(route, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(route, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied route and
// reason. Reasons should be stable strings such as "rate_limit".
func (m *moduleMetrics) RecordThrottle(route, reason string) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(route, reason).Inc()
}

// Ledger returns the singleton ledger metrics registry.
func Ledger() *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cowdfund",
				Subsystem: "ledger",
				Name:      "instructions_total",
				Help:      "Instructions processed segmented by instruction and outcome code.",
			}, []string{"instruction", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "cowdfund",
				Subsystem: "ledger",
				Name:      "instruction_duration_seconds",
				Help:      "Time spent executing and committing an instruction.",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
			}, []string{"instruction"}),
			valueMoved: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cowdfund",
				Subsystem: "ledger",
				Name:      "value_moved_total",
				Help:      "Value counted into vaults or paid out to beneficiaries.",
			}, []string{"instruction"}),
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cowdfund",
				Subsystem: "ledger",
				Name:      "events_total",
				Help:      "Events emitted by applied requests segmented by type.",
			}, []string{"type"}),
			commits: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "cowdfund",
				Subsystem: "ledger",
				Name:      "state_commits_total",
				Help:      "State roots persisted to the database.",
			}),
		}
		prometheus.MustRegister(
			ledgerRegistry.requests,
			ledgerRegistry.latency,
			ledgerRegistry.valueMoved,
			ledgerRegistry.events,
			ledgerRegistry.commits,
		)
	})
	return ledgerRegistry
}

// ObserveInstruction records one processed instruction. outcome is "ok" or a
// stable error code.
func (m *LedgerMetrics) ObserveInstruction(instruction, outcome string, value uint64, duration time.Duration) {
	if m == nil {
		return
	}
	if instruction == "" {
		instruction = "unknown"
	}
	m.requests.WithLabelValues(instruction, outcome).Inc()
	m.latency.WithLabelValues(instruction).Observe(duration.Seconds())
	if value > 0 {
		m.valueMoved.WithLabelValues(instruction).Add(float64(value))
	}
}

// RecordCommit counts a persisted state root.
func (m *LedgerMetrics) RecordCommit() {
	if m == nil {
		return
	}
	m.commits.Inc()
}

// RecordEvent counts an event emitted by an applied request.
func (m *LedgerMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	if eventType = strings.TrimSpace(eventType); eventType == "" {
		eventType = "unknown"
	}
	m.events.WithLabelValues(eventType).Inc()
}
