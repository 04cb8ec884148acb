package listsync

import "github.com/prometheus/client_golang/prometheus"

// Metric names
const (
	MetricRefreshesTotal        = "customerdir_listsync_refreshes_total"
	MetricStaleCompletionsTotal = "customerdir_listsync_stale_completions_total"
	MetricMutationsTotal        = "customerdir_listsync_mutations_total"
)

// Metrics counts controller outcomes. A nil *Metrics records nothing.
type Metrics struct {
	Refreshes        *prometheus.CounterVec
	StaleCompletions prometheus.Counter
	Mutations        *prometheus.CounterVec
}

// NewMetrics creates the controller collectors and registers them with reg when it is not nil
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRefreshesTotal,
				Help: "Total number of applied refresh completions by resulting state",
			},
			[]string{"state"},
		),
		StaleCompletions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricStaleCompletionsTotal,
				Help: "Total number of refresh completions discarded because a newer refresh was issued",
			},
		),
		Mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricMutationsTotal,
				Help: "Total number of create, update and delete operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.Refreshes, m.StaleCompletions, m.Mutations)
	}
	return m
}

func (m *Metrics) refreshed(kind StateKind) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) staleCompletion() {
	if m == nil {
		return
	}
	m.StaleCompletions.Inc()
}

func (m *Metrics) mutated(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.Mutations.WithLabelValues(operation, outcome).Inc()
}
