package ldap

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/isometry/entrysync/internal/entry"
)

// Metrics counts what Session.Apply sends. A nil *Metrics records nothing.
type Metrics struct {
	modifications  *prometheus.CounterVec
	modifyRequests *prometheus.CounterVec
	modifyDuration prometheus.Histogram
	adds           *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		modifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entrysync_ldap_modifications_total",
				Help: "Attribute modifications sent, by kind",
			},
			[]string{"kind"},
		),
		modifyRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entrysync_ldap_modify_requests_total",
				Help: "Modify requests by result (success, error, empty)",
			},
			[]string{"result"},
		),
		modifyDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "entrysync_ldap_modify_duration_seconds",
				Help:    "Duration of modify requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		adds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entrysync_ldap_add_requests_total",
				Help: "Add requests by result (success, error)",
			},
			[]string{"result"},
		),
	}

	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Collectors returns every collector owned by m.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.modifications,
		m.modifyRequests,
		m.modifyDuration,
		m.adds,
	}
}

func (m *Metrics) observeModify(req *entry.ModifyRequest, duration time.Duration, err error) {
	if m == nil {
		return
	}
	if req.IsEmpty() {
		m.modifyRequests.WithLabelValues("empty").Inc()
		return
	}

	m.modifyDuration.Observe(duration.Seconds())
	if err != nil {
		m.modifyRequests.WithLabelValues("error").Inc()
		return
	}

	m.modifyRequests.WithLabelValues("success").Inc()
	for _, mod := range req.Modifications {
		m.modifications.WithLabelValues(mod.Kind.String()).Inc()
	}
}

func (m *Metrics) observeAdd(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.adds.WithLabelValues("error").Inc()
		return
	}
	m.adds.WithLabelValues("success").Inc()
}
