package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	PendingResponsesCount   prometheus.Gauge
	ResponsesProcessed      *prometheus.CounterVec
	LLMFallbacks            prometheus.Counter
	LeaderChanges           prometheus.Counter
	ReclaimedResponses      prometheus.Counter
	BatchSize               prometheus.Gauge
	ResponseProcessDuration prometheus.Histogram
	BatchProcessDuration    prometheus.Histogram
	LLMRequestDuration      prometheus.Histogram
	StoreOperationDuration  *prometheus.HistogramVec
	LeaderElectionDuration  prometheus.Histogram
}

// NewMetrics registers the collectors on reg. Passing a fresh registry keeps
// tests from colliding on the default one.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PendingResponsesCount: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pending_responses_count",
			Help: "Current number of intern responses waiting to be processed",
		}),
		ResponsesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "responses_processed_total",
			Help: "Total number of responses processed, by terminal status",
		}, []string{"status"}),
		LLMFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "llm_fallback_responses_total",
			Help: "Total number of auto-responses that used the fallback text",
		}),
		LeaderChanges: factory.NewCounter(prometheus.CounterOpts{
			Name: "processor_leader_changes_total",
			Help: "Total number of leader changes",
		}),
		ReclaimedResponses: factory.NewCounter(prometheus.CounterOpts{
			Name: "reclaimed_responses_total",
			Help: "Total number of stale claims returned to pending",
		}),
		BatchSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "last_batch_size",
			Help: "Number of responses claimed by the most recent batch",
		}),
		ResponseProcessDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "response_process_duration_seconds",
			Help:    "Time taken to process a single response",
			Buckets: prometheus.DefBuckets,
		}),
		BatchProcessDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "batch_process_duration_seconds",
			Help:    "Time taken to process a batch of responses",
			Buckets: prometheus.DefBuckets,
		}),
		LLMRequestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "Time taken for chat completion requests",
			Buckets: prometheus.DefBuckets,
		}),
		StoreOperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Time taken for store operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"backend", "operation"}),
		LeaderElectionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "leader_election_duration_seconds",
			Help:    "Time taken for leader election operations",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
