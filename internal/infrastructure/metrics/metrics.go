package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iho/splitledger/internal/domain"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Ledger metrics
	EntriesAppended *prometheus.CounterVec
	AppendDuration  *prometheus.HistogramVec
	AppendErrors    *prometheus.CounterVec
	ContextsCreated *prometheus.CounterVec
	StorageRetries  *prometheus.CounterVec

	// Balance cache metrics
	CacheLookups *prometheus.CounterVec

	// Authentication metrics
	AuthFailures *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics on the default registerer.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all metrics on reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EntriesAppended: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "splitledger_entries_appended_total",
				Help: "Total number of entries appended by kind and context type",
			},
			[]string{"kind", "context_type"},
		),
		AppendDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "splitledger_append_duration_seconds",
				Help:    "Duration of append operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		AppendErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "splitledger_append_errors_total",
				Help: "Total number of rejected or failed appends by reason",
			},
			[]string{"reason"},
		),
		ContextsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "splitledger_contexts_created_total",
				Help: "Total number of friend and group contexts created",
			},
			[]string{"context_type"},
		),
		StorageRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "splitledger_storage_retries_total",
				Help: "Appends re-run after a lock conflict, by SQLSTATE",
			},
			[]string{"code"},
		),

		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "splitledger_balance_cache_lookups_total",
				Help: "Balance cache lookups by result",
			},
			[]string{"result"},
		),

		AuthFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "splitledger_auth_failures_total",
				Help: "Total authentication failures",
			},
			[]string{"reason"},
		),

		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "splitledger_rate_limit_hits_total",
				Help: "Total rate limit hits",
			},
			[]string{"ip"},
		),
	}
}

// EntryAppended records a committed append.
func (m *Metrics) EntryAppended(kind domain.EntryKind, contextType domain.ContextType, elapsed time.Duration) {
	m.EntriesAppended.WithLabelValues(string(kind), string(contextType)).Inc()
	m.AppendDuration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

// AppendFailed records an append that did not commit.
func (m *Metrics) AppendFailed(reason string) {
	m.AppendErrors.WithLabelValues(reason).Inc()
}

// ContextCreated records a new friend or group context.
func (m *Metrics) ContextCreated(contextType domain.ContextType) {
	m.ContextsCreated.WithLabelValues(string(contextType)).Inc()
}

// CacheLookup records a balance cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}

	m.CacheLookups.WithLabelValues(result).Inc()
}

// StorageRetried records an append re-run after a lock conflict.
func (m *Metrics) StorageRetried(code string) {
	m.StorageRetries.WithLabelValues(code).Inc()
}
