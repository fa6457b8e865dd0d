// Package metrics exposes prometheus collectors for analysis runs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is private to the module so tests and the server see the same set.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		StageDuration, StageFailures,
		ModelCalls, ModelRetries,
		SearchQueries, Reports,
	)
}

// StageDuration is the wall time of each orchestrator stage in seconds.
var StageDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "evidentia_stage_duration_seconds",
		Help:    "Duration of analysis stages in seconds.",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"stage"},
)

// StageFailures counts stages that fell back to defaults or failed the run.
var StageFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "evidentia_stage_failures_total",
		Help: "Stages that failed and degraded to defaults.",
	},
	[]string{"stage"},
)

// ModelCalls counts model gateway calls by final outcome.
var ModelCalls = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "evidentia_model_calls_total",
		Help: "Model gateway calls by outcome.",
	},
	[]string{"outcome"}, // ok | transient_exhausted | error | missing_credential | canceled
)

// ModelRetries counts retry sleeps taken by the gateway.
var ModelRetries = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "evidentia_model_retries_total",
		Help: "Retries issued by the model gateway.",
	},
)

// SearchQueries counts external search queries.
var SearchQueries = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "evidentia_search_queries_total",
		Help: "External search queries by provider and outcome.",
	},
	[]string{"provider", "outcome"}, // ok | error | cached
)

// Reports counts produced reports by source and error code.
var Reports = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "evidentia_reports_total",
		Help: "Reports produced by source and error code.",
	},
	[]string{"source", "error_code"},
)

// Handler serves the registry in the prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
