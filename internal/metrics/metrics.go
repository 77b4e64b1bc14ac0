package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Delivery metrics
var (
	SendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_sends_total",
			Help: "Total number of transport send attempts",
		},
		[]string{"provider", "status"}, // status: sent, failed
	)

	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_retries_total",
			Help: "Total number of send retries after retryable failures",
		},
		[]string{"provider"},
	)

	FailoversTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_failovers_total",
			Help: "Total number of times a provider was abandoned for the next in the chain",
		},
		[]string{"provider"},
	)

	SendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_send_duration_seconds",
			Help:    "Duration of single provider send calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)
)

// Sweep metrics
var (
	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_sweep_duration_seconds",
			Help:    "Duration of due-campaign sweeps",
			Buckets: prometheus.DefBuckets,
		},
	)

	CampaignsDeliveredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_campaigns_delivered_total",
			Help: "Total number of campaigns marked sent",
		},
	)

	RecipientsSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_recipients_skipped_total",
			Help: "Recipients excluded before delivery",
		},
		[]string{"reason"}, // unsubscribed
	)
)

// Analytics metrics
var (
	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_webhook_events_total",
			Help: "Provider webhook events received, by normalized type",
		},
		[]string{"provider", "event"},
	)

	StatsSyncFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_stats_sync_failures_total",
			Help: "Campaign stat fetches that fell back to zero values",
		},
	)
)
