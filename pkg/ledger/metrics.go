package ledger

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the ledger's prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	assignTotal   *prometheus.CounterVec
	unassignTotal *prometheus.CounterVec
	lockWait      prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		assignTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduler",
			Subsystem: "ledger",
			Name:      "assign_total",
			Help:      "Assign requests by outcome.",
		}, []string{"outcome"}),
		unassignTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduler",
			Subsystem: "ledger",
			Name:      "unassign_total",
			Help:      "Unassign requests by outcome.",
		}, []string{"outcome"}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "scheduler",
			Subsystem: "ledger",
			Name:      "lock_wait_seconds",
			Help:      "Time spent waiting for shift and staff-day locks.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.assignTotal, m.unassignTotal, m.lockWait)
	}
	return m
}

func (m *Metrics) observeAssign(err error) {
	if m == nil {
		return
	}
	m.assignTotal.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) observeUnassign(err error) {
	if m == nil {
		return
	}
	m.unassignTotal.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) observeLockWait(d time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.Observe(d.Seconds())
}

func outcome(err error) string {
	var conflict *ConflictError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &conflict):
		return string(conflict.Reason)
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}
