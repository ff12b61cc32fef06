package observability

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestLedgerMetricsRecordEvent(t *testing.T) {
	m := Ledger()
	opened := m.events.WithLabelValues("crowdfund.opened")
	unknown := m.events.WithLabelValues("unknown")
	beforeOpened, beforeUnknown := counterValue(t, opened), counterValue(t, unknown)

	m.RecordEvent("crowdfund.opened")
	m.RecordEvent("   ")

	require.Equal(t, beforeOpened+1, counterValue(t, opened))
	require.Equal(t, beforeUnknown+1, counterValue(t, unknown))
}

func TestLedgerMetricsValueMovedOnlyWhenPositive(t *testing.T) {
	m := Ledger()
	moved := m.valueMoved.WithLabelValues("contribute")
	before := counterValue(t, moved)

	m.ObserveInstruction("contribute", "ok", 250, time.Millisecond)
	m.ObserveInstruction("contribute", "target_reached", 0, time.Millisecond)

	require.Equal(t, before+250, counterValue(t, moved))
	require.GreaterOrEqual(t, counterValue(t, m.requests.WithLabelValues("contribute", "target_reached")), float64(1))
}

func TestModuleMetricsCountsErrors(t *testing.T) {
	m := ModuleMetrics()
	errs := m.errors.WithLabelValues("/v1/transactions", http.MethodPost, "422")
	before := counterValue(t, errs)

	m.Observe("/v1/transactions", http.MethodPost, http.StatusOK, time.Millisecond)
	m.Observe("/v1/transactions", http.MethodPost, http.StatusUnprocessableEntity, time.Millisecond)

	require.Equal(t, before+1, counterValue(t, errs))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var ledger *LedgerMetrics
	ledger.ObserveInstruction("open", "ok", 1, time.Millisecond)
	ledger.RecordEvent("x")
	ledger.RecordCommit()

	var module *moduleMetrics
	module.Observe("/", http.MethodGet, http.StatusOK, time.Millisecond)
	module.RecordThrottle("/", "rate_limit")
}
