// Package metrics exposes Prometheus instruments for the relay.
package metrics

import (
	"net/http"
	"time"

	"github.com/matheus3301/wprelay/internal/status"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sync results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics holds the relay instruments. A nil *Metrics records nothing.
type Metrics struct {
	reg *prometheus.Registry

	syncDuration    *prometheus.HistogramVec
	syncsTotal      *prometheus.CounterVec
	primaryAttempts *prometheus.CounterVec
	chatsSynced     prometheus.Gauge
	entriesIngested *prometheus.CounterVec
	sessionState    *prometheus.GaugeVec
	deferredResyncs prometheus.Counter
}

// New registers the relay instruments on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		syncDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wprelay_chat_sync_duration_seconds",
			Help:    "Duration of chat list syncs in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"path", "result"}),
		syncsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wprelay_chat_syncs_total",
			Help: "Total number of chat list syncs",
		}, []string{"path", "result"}),
		primaryAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wprelay_primary_attempts_total",
			Help: "Primary chat listing attempts by outcome",
		}, []string{"result"}),
		chatsSynced: f.NewGauge(prometheus.GaugeOpts{
			Name: "wprelay_chats_synced",
			Help: "Number of chats returned by the last successful sync",
		}),
		entriesIngested: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wprelay_entries_ingested_total",
			Help: "Entries written to the store",
		}, []string{"source", "result"}),
		sessionState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wprelay_session_state",
			Help: "1 for the current relay session state, 0 otherwise",
		}, []string{"state"}),
		deferredResyncs: f.NewCounter(prometheus.CounterOpts{
			Name: "wprelay_deferred_resyncs_total",
			Help: "Deferred primary resyncs armed after a fallback startup sync",
		}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// ObserveSync records one completed or failed chat sync.
func (m *Metrics) ObserveSync(path status.SyncPath, result string, d time.Duration, chats int) {
	if m == nil {
		return
	}
	p := string(path)
	if p == "" {
		p = "none"
	}
	m.syncDuration.WithLabelValues(p, result).Observe(d.Seconds())
	m.syncsTotal.WithLabelValues(p, result).Inc()
	if result == ResultSuccess {
		m.chatsSynced.Set(float64(chats))
	}
}

// PrimaryAttempt records the outcome of one primary listing call.
func (m *Metrics) PrimaryAttempt(err error) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	m.primaryAttempts.WithLabelValues(result).Inc()
}

// EntryIngested records one entry write. source is "live" or "resync".
func (m *Metrics) EntryIngested(source string, n int, err error) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	m.entriesIngested.WithLabelValues(source, result).Add(float64(n))
}

// SetState marks s as the current session state.
func (m *Metrics) SetState(s status.State) {
	if m == nil {
		return
	}
	for _, st := range status.States() {
		v := 0.0
		if st == s {
			v = 1
		}
		m.sessionState.WithLabelValues(string(st)).Set(v)
	}
}

// DeferredResync records an armed deferred resync.
func (m *Metrics) DeferredResync() {
	if m == nil {
		return
	}
	m.deferredResyncs.Inc()
}
