// Package metrics exposes Prometheus collectors for the listing intake flow.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tlcbot"

// Metrics groups the intake collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	sessionsActive    prometheus.Gauge
	transitions       *prometheus.CounterVec
	listingsPublished *prometheus.CounterVec
	sendsFailed       *prometheus.CounterVec
	photosResolved    *prometheus.CounterVec
	updates           *prometheus.CounterVec
	updateDuration    *prometheus.HistogramVec
}

// MustNewMetrics registers the collectors with reg, reusing ones that are already registered.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "intake",
			Name:      "sessions_active",
			Help:      "Listing sessions currently in progress.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "intake",
			Name:      "transitions_total",
			Help:      "Accepted conversation transitions.",
		}, []string{"from", "to"}),
		listingsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "publish",
			Name:      "listings_total",
			Help:      "Listings composed and handed to the transport.",
		}, []string{"type"}),
		sendsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "publish",
			Name:      "send_failures_total",
			Help:      "Listing sends that failed, by destination.",
		}, []string{"destination"}),
		photosResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "album",
			Name:      "photos_total",
			Help:      "Photo events processed by the album collector, by outcome.",
		}, []string{"status"}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegram",
			Name:      "updates_total",
			Help:      "Telegram updates handled, by kind and result.",
		}, []string{"kind", "status"}),
		updateDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "telegram",
			Name:      "update_duration_seconds",
			Help:      "Time spent handling one Telegram update.",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"kind"}),
	}

	m.sessionsActive = register(reg, m.sessionsActive)
	m.transitions = register(reg, m.transitions)
	m.listingsPublished = register(reg, m.listingsPublished)
	m.sendsFailed = register(reg, m.sendsFailed)
	m.photosResolved = register(reg, m.photosResolved)
	m.updates = register(reg, m.updates)
	m.updateDuration = register(reg, m.updateDuration)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// SetSessions records the number of active sessions.
func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.sessionsActive.Set(float64(n))
}

// Transition counts an accepted move between steps.
func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// Published counts a composed listing.
func (m *Metrics) Published(listingType string) {
	if m == nil {
		return
	}
	m.listingsPublished.WithLabelValues(listingType).Inc()
}

// SendFailed counts a failed send to destination ("user" or "admin").
func (m *Metrics) SendFailed(destination string) {
	if m == nil {
		return
	}
	m.sendsFailed.WithLabelValues(destination).Inc()
}

// PhotoResolved counts a photo outcome: stored, skipped, stale or rejected.
func (m *Metrics) PhotoResolved(status string) {
	if m == nil {
		return
	}
	m.photosResolved.WithLabelValues(status).Inc()
}

// ObserveUpdate records one handled Telegram update.
func (m *Metrics) ObserveUpdate(kind string, took time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "fail"
	}
	m.updates.WithLabelValues(kind, status).Inc()
	m.updateDuration.WithLabelValues(kind).Observe(took.Seconds())
}
