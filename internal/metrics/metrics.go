package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	ScansStarted     prometheus.Counter
	ScanBatches      prometheus.Counter
	ScanFailures     prometheus.Counter
	EmailsClassified *prometheus.CounterVec
	LLMCalls         *prometheus.CounterVec
	LLMFailures      *prometheus.CounterVec
	ClassifyDuration prometheus.Histogram
	ActionsExecuted  prometheus.Counter
	ActionsFailed    prometheus.Counter
	ActionsUndone    prometheus.Counter
	UndoExpired      prometheus.Counter
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
}

// NewMetrics creates new Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ScansStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inbox_janitor_scans_started_total",
			Help: "Total number of scans started",
		}),
		ScanBatches: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inbox_janitor_scan_batches_total",
			Help: "Total number of scan batches processed",
		}),
		ScanFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inbox_janitor_scan_failures_total",
			Help: "Total number of scans that ended in the failed phase",
		}),
		EmailsClassified: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "inbox_janitor_emails_classified_total",
			Help: "Total number of emails classified, by resolution source",
		}, []string{"source"}),
		LLMCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "inbox_janitor_llm_calls_total",
			Help: "Total number of LLM classification calls, by provider",
		}, []string{"provider"}),
		LLMFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "inbox_janitor_llm_failures_total",
			Help: "Total number of failed LLM classification calls, by provider",
		}, []string{"provider"}),
		ClassifyDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "inbox_janitor_classify_duration_seconds",
			Help:    "Time spent classifying one scan batch",
			Buckets: prometheus.DefBuckets,
		}),
		ActionsExecuted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inbox_janitor_actions_executed_total",
			Help: "Total number of mailbox actions executed successfully",
		}),
		ActionsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inbox_janitor_actions_failed_total",
			Help: "Total number of mailbox actions that failed",
		}),
		ActionsUndone: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inbox_janitor_actions_undone_total",
			Help: "Total number of executed actions reverted via undo",
		}),
		UndoExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inbox_janitor_undo_expired_total",
			Help: "Total number of undo attempts past the undo window",
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inbox_janitor_sender_cache_hits_total",
			Help: "Total number of sender cache hits above the reuse threshold",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "inbox_janitor_sender_cache_misses_total",
			Help: "Total number of sender cache misses",
		}),
	}
}
