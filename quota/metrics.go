package quota

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "fuelquota_"

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	TripsEvaluated *prometheus.CounterVec
	Litres         prometheus.Counter
	RegistryErrors prometheus.Counter
	Reconciliation prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TripsEvaluated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "trips_evaluated_total",
			Help: "Trips evaluated by the quota calculator, by outcome",
		}, []string{"outcome"}),
		Litres: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "litres_attributed_total",
			Help: "Quota litres attributed to eligible trips",
		}),
		RegistryErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "registry_errors_total",
			Help: "Quota computations aborted by a failed registry read",
		}),
		Reconciliation: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricPrefix + "reconciliation_duration_seconds",
			Help:    "Duration of driver/month reconciliation reports",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.TripsEvaluated, m.Litres, m.RegistryErrors, m.Reconciliation)
	}
	return m
}

// Outcome is the label value recorded for a result.
func Outcome(r Result) string {
	if r.Skip == SkipNone {
		return "eligible"
	}
	return string(r.Skip)
}

func (m *Metrics) observe(r Result) {
	if m == nil {
		return
	}
	m.TripsEvaluated.WithLabelValues(Outcome(r)).Inc()
	if r.Eligible() {
		m.Litres.Add(r.Litres.InexactFloat64())
	}
}

func (m *Metrics) registryError() {
	if m == nil {
		return
	}
	m.RegistryErrors.Inc()
}

func (m *Metrics) observeReconciliation(d time.Duration) {
	if m == nil {
		return
	}
	m.Reconciliation.Observe(d.Seconds())
}
