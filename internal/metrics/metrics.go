package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_requests_latency_seconds",
			Help:    "Latency of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method", "status"},
	)

	// Ledger
	LedgerEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_entries_total",
			Help: "Ledger entries committed",
		},
		[]string{"kind"},
	)
	LedgerDuplicatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_duplicates_total",
			Help: "ApplyEntry calls answered with an existing entry",
		},
		[]string{"kind"},
	)
	LedgerFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_failures_total",
			Help: "ApplyEntry calls that failed",
		},
		[]string{"kind", "reason"},
	)

	// Chain scanner
	ChainLookupSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chain_receipt_lookup_seconds",
			Help:    "Latency of receipt lookups per chain",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"chain", "outcome"}, // found|miss|error
	)
	SettlementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_verifications_total",
			Help: "Mint verification outcomes",
		},
		[]string{"outcome"},
	)

	// Worker kuyruğu
	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Current worker queue depth",
		},
	)

	initOnce sync.Once
)

// /metrics endpoint'i için handler
var Handler = promhttp.Handler

func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestsTotal,
			HTTPLatency,
			LedgerEntriesTotal,
			LedgerDuplicatesTotal,
			LedgerFailuresTotal,
			ChainLookupSeconds,
			SettlementsTotal,
			WorkerQueueDepth,
		)
	})
}
