package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NotificationsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vaxtrace_notifications_accepted_total",
		Help: "Total number of change notifications accepted and enqueued.",
	})

	NotificationsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaxtrace_notifications_rejected_total",
		Help: "Total number of change notifications rejected at the gate, labelled by reason.",
	}, []string{"reason"})

	EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaxtrace_events_processed_total",
		Help: "Total number of change events fully processed, labelled by kind.",
	}, []string{"kind"})

	EventRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vaxtrace_event_retries_total",
		Help: "Total number of failed processing passes left queued for retry.",
	})

	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vaxtrace_events_dropped_total",
		Help: "Total number of events dropped for an unknown kind.",
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vaxtrace_queue_depth",
		Help: "Number of change events currently queued.",
	})

	OldestQueuedAge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vaxtrace_queue_oldest_age_seconds",
		Help: "Age of the oldest queued event; grows when an event is stuck retrying.",
	})

	ProcessingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vaxtrace_event_processing_duration_seconds",
		Help:    "Time taken to process one change event.",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	})

	AlertsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaxtrace_alerts_created_total",
		Help: "Total number of alerts created, labelled by kind.",
	}, []string{"kind"})

	AlertsDeduplicated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaxtrace_alerts_deduplicated_total",
		Help: "Total number of alert raises suppressed by the dedup ledger.",
	}, []string{"kind"})

	NoticesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaxtrace_invalidation_notices_published_total",
		Help: "Total number of invalidation notices published, labelled by topic.",
	}, []string{"topic"})

	CacheFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaxtrace_cache_failures_total",
		Help: "Total number of best-effort cache operations that failed, labelled by op.",
	}, []string{"op"})

	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vaxtrace_gateway_connected_clients",
		Help: "Number of live websocket connections.",
	})

	BroadcastsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vaxtrace_gateway_broadcasts_total",
		Help: "Total number of messages fanned out to clients, labelled by event.",
	}, []string{"event"})
)
