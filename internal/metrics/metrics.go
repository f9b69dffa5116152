// Package metrics defines the Prometheus collectors exported by the
// workspace engine.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Switch results.
const (
	ResultOK    = "ok"
	ResultBusy  = "busy"
	ResultError = "error"
)

// Metrics groups the engine's collectors. A Metrics built with a nil
// registerer still counts; it is simply not exported.
type Metrics struct {
	Switches       *prometheus.CounterVec
	SwitchDuration prometheus.Histogram
	StoreMutations *prometheus.CounterVec
	SyncRuns       *prometheus.CounterVec
	SyncApplied    prometheus.Counter
}

// New creates the collectors and registers them with reg when reg is
// non-nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Switches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workspaces",
			Name:      "switches_total",
			Help:      "Workspace switch attempts by result.",
		}, []string{"result"}),
		SwitchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "workspaces",
			Name:      "switch_duration_seconds",
			Help:      "Duration of completed workspace switches.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		StoreMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workspaces",
			Name:      "store_mutations_total",
			Help:      "Committed store mutations by operation.",
		}, []string{"op"}),
		SyncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workspaces",
			Name:      "sync_runs_total",
			Help:      "Sync cycles by result.",
		}, []string{"result"}),
		SyncApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "workspaces",
			Name:      "sync_applied_records_total",
			Help:      "Remote records applied to the local store.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Switches, m.SwitchDuration, m.StoreMutations, m.SyncRuns, m.SyncApplied)
	}
	return m
}

// Mutation counts one committed store mutation.
func (m *Metrics) Mutation(op string) {
	m.StoreMutations.WithLabelValues(op).Inc()
}
