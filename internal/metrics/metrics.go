// Package metrics holds the prometheus collectors for the ledger app and the
// decryption relay. Each Metrics value owns its registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "eng"

type Metrics struct {
	Registry *prometheus.Registry

	// TxCounter (app) delivered txs by type and result code/codespace
	TxCounter *prometheus.CounterVec
	// BlockHeight (app) last finalized height
	BlockHeight prometheus.Gauge
	// EntropyPool (app) unspent tickets in the pool
	EntropyPool prometheus.Gauge
	// Players (app) player records by status
	Players *prometheus.GaugeVec

	// DecryptRequests (relay) decryption requests by outcome
	DecryptRequests *prometheus.CounterVec
	// DecryptLatency (relay) time to answer a decryption request
	DecryptLatency prometheus.Histogram
	// CacheLookups (relay) lru lookups by cache and result
	CacheLookups *prometheus.CounterVec
	// HTTPInFlight (relay) requests currently being served
	HTTPInFlight prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		TxCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tx_total",
			Help:      "Number of delivered transactions",
		}, []string{"type", "codespace", "code"}),
		BlockHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "block_height",
			Help:      "Height of the last finalized block",
		}),
		EntropyPool: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "entropy_pool_tickets",
			Help:      "Unspent entropy tickets",
		}),
		Players: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "players",
			Help:      "Player records by status",
		}, []string{"status"}),
		DecryptRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "decrypt_requests_total",
			Help:      "Decryption requests by outcome",
		}, []string{"outcome"}),
		DecryptLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "decrypt_duration_seconds",
			Help:      "Histogram of decryption request latencies",
			Buckets:   prometheus.DefBuckets,
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "cache_lookups_total",
			Help:      "LRU cache lookups",
		}, []string{"cache", "result"}),
		HTTPInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "http_in_flight",
			Help:      "A gauge of requests currently being served.",
		}),
	}
	m.Registry.MustRegister(
		m.TxCounter,
		m.BlockHeight,
		m.EntropyPool,
		m.Players,
		m.DecryptRequests,
		m.DecryptLatency,
		m.CacheLookups,
		m.HTTPInFlight,
	)
	return m
}

// WithProcessCollectors adds the go runtime and process collectors. Only the
// long running daemons want these.
func (m *Metrics) WithProcessCollectors() *Metrics {
	m.Registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// InstrumentHandler tracks in-flight requests on h.
func (m *Metrics) InstrumentHandler(h http.Handler) http.Handler {
	return promhttp.InstrumentHandlerInFlight(m.HTTPInFlight, h)
}
