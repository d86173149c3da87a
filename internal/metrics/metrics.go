// Package metrics exposes Prometheus counters for the zoo simulation.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups every collector the simulation reports.
type Metrics struct {
	admissions  *prometheus.CounterVec
	feedings    *prometheus.CounterVec
	events      *prometheus.CounterVec
	departures  *prometheus.CounterVec
	persistence *prometheus.CounterVec
	tick        prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "birdzoo",
			Name:      "admissions_total",
			Help:      "Resident and visitor admissions by result.",
		}, []string{"kind", "result"}),
		feedings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "birdzoo",
			Name:      "feedings_total",
			Help:      "Feeding attempts by outcome.",
		}, []string{"outcome"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "birdzoo",
			Name:      "events_total",
			Help:      "Narrative events appended to event logs, by generator.",
		}, []string{"type"}),
		departures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "birdzoo",
			Name:      "departures_total",
			Help:      "Birds leaving the zoo.",
		}, []string{"kind"}),
		persistence: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "birdzoo",
			Name:      "persistence_failures_total",
			Help:      "Failed snapshot loads and saves.",
		}, []string{"op"}),
		tick: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "birdzoo",
			Name:      "tick_duration_seconds",
			Help:      "Duration of a population scheduler tick.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.admissions, m.feedings, m.events, m.departures, m.persistence, m.tick)
	}
	return m
}

// Admission counts an admission attempt. kind is resident or visitor.
func (m *Metrics) Admission(kind, result string) {
	if m == nil {
		return
	}
	m.admissions.WithLabelValues(kind, result).Inc()
}

// Feeding counts a feeding attempt by tier or failure reason.
func (m *Metrics) Feeding(outcome string) {
	if m == nil {
		return
	}
	m.feedings.WithLabelValues(outcome).Inc()
}

// Event counts a generated event. Parameterized types such as
// "temperature(暑い)" are reported under their base name.
func (m *Metrics) Event(eventType string) {
	if m == nil {
		return
	}
	if i := strings.IndexByte(eventType, '('); i > 0 {
		eventType = eventType[:i]
	}
	m.events.WithLabelValues(eventType).Inc()
}

// Departure counts a resident departure or visitor expiry.
func (m *Metrics) Departure(kind string) {
	if m == nil {
		return
	}
	m.departures.WithLabelValues(kind).Inc()
}

// PersistenceFailure counts a failed load or save.
func (m *Metrics) PersistenceFailure(op string) {
	if m == nil {
		return
	}
	m.persistence.WithLabelValues(op).Inc()
}

// ObserveTick records how long a scheduler tick took.
func (m *Metrics) ObserveTick(d time.Duration) {
	if m == nil {
		return
	}
	m.tick.Observe(d.Seconds())
}
