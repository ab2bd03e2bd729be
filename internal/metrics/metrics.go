// Package metrics registers the prometheus collectors the service exports
// on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsIngested counts credential events admitted to the pipeline.
	EventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "brute",
		Name:      "events_ingested_total",
		Help:      "Credential events admitted to the aggregation pipeline.",
	}, []string{"protocol"})

	// EventsRejected counts submissions that failed validation, labelled by
	// the offending field.
	EventsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "brute",
		Name:      "events_rejected_total",
		Help:      "Credential submissions rejected during validation.",
	}, []string{"reason"})

	// PipelineFailures counts aborted pipelines by failing step.
	PipelineFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "brute",
		Name:      "pipeline_failures_total",
		Help:      "Aggregation pipelines aborted, labelled by the step that failed.",
	}, []string{"step"})

	// PipelineDuration observes the wall time of one full pipeline run.
	PipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "brute",
		Name:      "pipeline_duration_seconds",
		Help:      "Wall time spent aggregating a single event.",
		Buckets:   prometheus.DefBuckets,
	})

	// EnrichmentCacheHits counts lookups answered from persisted enrichment.
	EnrichmentCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "brute",
		Name:      "enrichment_cache_hits_total",
		Help:      "IP lookups answered from recently persisted enrichment rows.",
	})

	// ProviderCalls counts outbound IP-intelligence requests.
	ProviderCalls = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "brute",
		Name:      "enrichment_provider_calls_total",
		Help:      "Outbound IP-intelligence provider calls.",
	})

	// ProviderFailures counts IP-intelligence requests that errored.
	ProviderFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "brute",
		Name:      "enrichment_provider_failures_total",
		Help:      "IP-intelligence provider calls that failed.",
	})

	// Broadcasts counts enriched records fanned out to subscribers.
	Broadcasts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "brute",
		Name:      "broadcasts_total",
		Help:      "Enriched records fanned out over the WebSocket bus.",
	})

	// WSSubscribers tracks currently connected WebSocket sessions.
	WSSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "brute",
		Name:      "ws_subscribers",
		Help:      "Currently connected WebSocket subscribers.",
	})
)
