package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the escrow service.
type Metrics struct {
	// --- Escrow operations ---
	OperationsApplied  *prometheus.CounterVec
	OperationsRejected *prometheus.CounterVec
	OperationDuration  *prometheus.HistogramVec
	OperationSequence  prometheus.Gauge

	// --- Ledger state ---
	ProposalsOpen     prometheus.Gauge
	LockedTotal       prometheus.Gauge
	NativeBalance     prometheus.Gauge
	CompensationsRun  *prometheus.CounterVec

	// --- Facility calls ---
	FacilityCalls    *prometheus.CounterVec
	FacilityCallDur  *prometheus.HistogramVec
	FacilityFailures *prometheus.CounterVec

	// --- Persistence ---
	PersistEventsWritten    prometheus.Counter
	PersistTransfersWritten prometheus.Counter
	PersistBatchSize        prometheus.Histogram
	PersistBatchDur         prometheus.Histogram
	PersistErrors           *prometheus.CounterVec
	PersistLastSequence     prometheus.Gauge

	// --- Projections & publishing ---
	ProjectionUpdates *prometheus.CounterVec
	ProjectionDrops   prometheus.Counter
	PublishDrops      prometheus.Counter
	PublishedEvents   *prometheus.CounterVec

	// --- HTTP API ---
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics registers all metrics on the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers all metrics on the given registerer. Tests use
// private registries so repeated construction does not collide.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		OperationsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gig_escrow_operations_applied_total",
			Help: "Escrow operations that completed successfully, by operation.",
		}, []string{"operation"}),
		OperationsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gig_escrow_operations_rejected_total",
			Help: "Escrow operations aborted before taking effect, by operation and reason.",
		}, []string{"operation", "reason"}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gig_escrow_operation_duration_seconds",
			Help:    "End-to-end duration of escrow operations, external calls included.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		OperationSequence: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gig_escrow_operation_sequence",
			Help: "Current operation-log sequence number.",
		}),

		ProposalsOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gig_escrow_proposals_open",
			Help: "Number of currently open proposals.",
		}),
		LockedTotal: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gig_escrow_locked_total",
			Help: "Sum of all locked amounts (principal outstanding in the facility).",
		}),
		NativeBalance: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gig_escrow_native_balance",
			Help: "Native-currency balance held by the escrow system.",
		}),
		CompensationsRun: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gig_escrow_compensations_total",
			Help: "Compensating rollbacks executed after a failed external call.",
		}, []string{"operation"}),

		FacilityCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gig_escrow_facility_calls_total",
			Help: "Calls made to the lending facility, by method.",
		}, []string{"method"}),
		FacilityCallDur: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gig_escrow_facility_call_duration_seconds",
			Help:    "Latency of lending-facility calls, by method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		FacilityFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gig_escrow_facility_failures_total",
			Help: "Lending-facility calls that returned an error, by method.",
		}, []string{"method"}),

		PersistEventsWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "gig_escrow_persist_events_written_total",
			Help: "Event rows written to the operation log.",
		}),
		PersistTransfersWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "gig_escrow_persist_transfers_written_total",
			Help: "Transfer legs written to the operation log.",
		}),
		PersistBatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gig_escrow_persist_batch_size",
			Help:    "Events per flushed persistence batch.",
			Buckets: prometheus.LinearBuckets(1, 10, 10),
		}),
		PersistBatchDur: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gig_escrow_persist_batch_duration_seconds",
			Help:    "Duration of persistence batch flushes.",
			Buckets: prometheus.DefBuckets,
		}),
		PersistErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gig_escrow_persist_errors_total",
			Help: "Persistence failures, by stage.",
		}, []string{"stage"}),
		PersistLastSequence: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gig_escrow_persist_last_sequence",
			Help: "Highest sequence durably written to Postgres.",
		}),

		ProjectionUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gig_escrow_projection_updates_total",
			Help: "Projection table updates, by event type.",
		}, []string{"event_type"}),
		ProjectionDrops: factory.NewCounter(prometheus.CounterOpts{
			Name: "gig_escrow_projection_drops_total",
			Help: "Projection outputs dropped because the channel was full.",
		}),
		PublishDrops: factory.NewCounter(prometheus.CounterOpts{
			Name: "gig_escrow_publish_drops_total",
			Help: "Outbound events dropped because the publish channel was full.",
		}),
		PublishedEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gig_escrow_published_events_total",
			Help: "Events published to NATS, by event type.",
		}, []string{"event_type"}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gig_escrow_http_requests_total",
			Help: "HTTP API requests, by route and status.",
		}, []string{"route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gig_escrow_http_request_duration_seconds",
			Help:    "HTTP API request latency, by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}
