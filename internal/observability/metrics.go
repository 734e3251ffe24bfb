package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the ledger and reconciliation core.
type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler

	entriesPosted  *prometheus.CounterVec
	numberRetries  prometheus.Counter
	retryExhausted prometheus.Counter
	agentsBlocked  prometheus.Counter
	agingDuration  prometheus.Histogram
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	entries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relaybooks_journal_entries_posted_total",
		Help: "Journal entries posted by source type.",
	}, []string{"source_type"})
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relaybooks_entry_number_retries_total",
		Help: "Entry number unique-violation retries.",
	})
	exhausted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relaybooks_entry_number_retry_exhausted_total",
		Help: "Postings that failed after exhausting entry number retries.",
	})
	blocked := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relaybooks_agents_blocked_total",
		Help: "Agents blocked, manually or by the auto-block sweep.",
	})
	aging := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "relaybooks_aging_refresh_duration_seconds",
		Help:    "Duration of agent aging bucket refreshes.",
		Buckets: prometheus.DefBuckets,
	})
	registry.MustRegister(entries, retries, exhausted, blocked, aging)
	return &Metrics{
		registry:       registry,
		handler:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		entriesPosted:  entries,
		numberRetries:  retries,
		retryExhausted: exhausted,
		agentsBlocked:  blocked,
		agingDuration:  aging,
	}
}

// Registerer exposes the underlying registry so auxiliary collectors end
// up on the same /metrics endpoint.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// EntryPosted records a successfully posted journal entry.
func (m *Metrics) EntryPosted(sourceType string) {
	if m == nil {
		return
	}
	m.entriesPosted.WithLabelValues(sourceType).Inc()
}

// EntryNumberRetry records one unique-violation retry.
func (m *Metrics) EntryNumberRetry() {
	if m == nil {
		return
	}
	m.numberRetries.Inc()
}

// EntryNumberExhausted records a posting abandoned after all retries.
func (m *Metrics) EntryNumberExhausted() {
	if m == nil {
		return
	}
	m.retryExhausted.Inc()
}

// AgentBlocked records a block event.
func (m *Metrics) AgentBlocked() {
	if m == nil {
		return
	}
	m.agentsBlocked.Inc()
}

// AgingRefreshObserved records the duration of an aging refresh.
func (m *Metrics) AgingRefreshObserved(d time.Duration) {
	if m == nil {
		return
	}
	m.agingDuration.Observe(d.Seconds())
}
