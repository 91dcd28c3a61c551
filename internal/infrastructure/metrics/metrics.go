// Package metrics holds the prometheus collectors of both binaries.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "billing"

// Label names
const (
	LabelProvider = "provider"
	LabelOrigin   = "origin"
	LabelStatus   = "status"
	LabelResult   = "result"
	LabelMethod   = "method"
	LabelPath     = "path"
)

// HTTP Metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{LabelMethod, LabelPath, LabelStatus},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelMethod, LabelPath},
	)
)

// Pipeline Metrics
var (
	WebhooksReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_received_total",
			Help:      "Webhook log records created, by provider and origin",
		},
		[]string{LabelProvider, LabelOrigin},
	)

	SignatureInvalid = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_signature_invalid_total",
			Help:      "Webhooks whose signature did not verify",
		},
		[]string{LabelProvider},
	)

	WebhookOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_outcomes_total",
			Help:      "Terminal webhook log statuses",
		},
		[]string{LabelProvider, LabelStatus},
	)

	ProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "webhook_processing_duration_seconds",
			Help:      "Time from claim to terminal status",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelProvider},
	)

	DispatchRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_rejected_total",
			Help:      "Records left for the sweeper because the worker queue was full",
		},
	)

	SweptRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeper_redispatched_total",
			Help:      "Stale records handed back to the workers",
		},
	)

	ProviderLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_lookups_total",
			Help:      "Outbound provider lookups by result",
		},
		[]string{LabelProvider, LabelResult},
	)
)

// Relay Metrics
var (
	RelayAccepted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_accepted_total",
			Help:      "Deliveries recorded by the relay",
		},
		[]string{LabelProvider},
	)

	RelayForwards = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_forwards_total",
			Help:      "Relay forward results",
		},
		[]string{LabelStatus},
	)
)
