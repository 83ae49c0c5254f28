package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SamplesEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ranch_samples_enqueued_total",
		Help: "Total number of position samples placed on the ingest queue.",
	})

	SamplesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ranch_samples_processed_total",
		Help: "Total number of position samples applied by the tracker.",
	})

	SamplesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ranch_samples_rejected_total",
		Help: "Total number of samples dropped, labelled by reason.",
	}, []string{"reason"})

	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ranch_transitions_total",
		Help: "Total number of boundary transitions, labelled by direction.",
	}, []string{"direction"})

	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ranch_notifications_created_total",
		Help: "Total number of notifications created, labelled by category.",
	}, []string{"category"})

	NotificationsDeduped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ranch_notifications_deduped_total",
		Help: "Total number of violation notifications refreshed instead of duplicated.",
	})

	NotificationsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ranch_notifications_expired_total",
		Help: "Total number of notifications removed by the expiry sweep.",
	})

	EventsBroadcast = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ranch_events_broadcast_total",
		Help: "Total number of envelopes fanned out to all subscribers.",
	})

	ConnectionsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ranch_connections_dropped_total",
		Help: "Total number of connections closed by the hub, labelled by cause.",
	}, []string{"cause"})

	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ranch_active_connections",
		Help: "Number of currently registered stream subscribers.",
	})

	IngestQueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ranch_ingest_queue_utilization_ratio",
		Help: "Current sample ingest queue utilization (0–1).",
	})
)
