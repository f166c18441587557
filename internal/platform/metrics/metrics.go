// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package metrics defines the Prometheus metrics of the portal.

Metrics live in a dedicated [Registry] served on /metrics, next to the Go
runtime and process collectors.

Naming follows Prometheus conventions:
  - washpass_ prefix for all custom metrics
  - _total suffix for counters
*/
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Transition outcomes.
const (
	OutcomeAuthenticated = "authenticated"
	OutcomeAnonymous     = "anonymous"
	OutcomeFailed        = "failed"
	OutcomeSuperseded    = "superseded"
)

// Registry holds every portal metric.
var Registry = prometheus.NewRegistry()

var (
	// SessionTransitionsTotal counts session machine transitions by domain,
	// operation and outcome.
	SessionTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "washpass_session_transitions_total",
			Help: "Total session transitions by domain, operation and outcome.",
		},
		[]string{"domain", "operation", "outcome"},
	)

	// GuardDecisionsTotal counts route guard decisions by outcome.
	GuardDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "washpass_guard_decisions_total",
			Help: "Total route guard decisions by outcome.",
		},
		[]string{"outcome"},
	)

	// HandoffsTotal counts adopted handoff tokens by domain.
	HandoffsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "washpass_handoffs_total",
			Help: "Total handoff tokens adopted from page URLs.",
		},
		[]string{"domain"},
	)

	// MountedPortals is the number of origins with a mounted portal.
	MountedPortals = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "washpass_mounted_portals",
			Help: "Number of origins with a mounted portal.",
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		SessionTransitionsTotal,
		GuardDecisionsTotal,
		HandoffsTotal,
		MountedPortals,
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordTransition records one session transition.
func RecordTransition(domain, operation, outcome string) {
	SessionTransitionsTotal.WithLabelValues(domain, operation, outcome).Inc()
}

// RecordGuardDecision records one route guard decision.
func RecordGuardDecision(outcome string) {
	GuardDecisionsTotal.WithLabelValues(outcome).Inc()
}

// RecordHandoff records one adopted handoff token.
func RecordHandoff(domain string) {
	HandoffsTotal.WithLabelValues(domain).Inc()
}

// SetMountedPortals records the current number of mounted portals.
func SetMountedPortals(n int) {
	MountedPortals.Set(float64(n))
}
