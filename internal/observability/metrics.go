// Package observability exposes the node's Prometheus metrics.
package observability

import (
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pegswap"

// Metrics holds every collector of one node. Collectors are registered on the
// registry passed to New, so tests can use a private one.
type Metrics struct {
	reg *prometheus.Registry

	// Engine
	OperationsTotal  *prometheus.CounterVec
	OperationLatency *prometheus.HistogramVec
	SwapVolume       *prometheus.CounterVec
	SwapsTotal       *prometheus.CounterVec
	Liquidity        *prometheus.GaugeVec

	// State
	CommitsTotal  *prometheus.CounterVec
	CommitLatency prometheus.Histogram
	BlockHeight   prometheus.Gauge

	// Journal
	JournalWrites *prometheus.CounterVec

	// HTTP
	RequestsTotal   *prometheus.CounterVec
	RequestLatency  *prometheus.HistogramVec
	OutboundLatency *prometheus.HistogramVec
}

// New registers all collectors on reg, or on a fresh registry when reg is nil.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,

		OperationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "operations_total",
				Help:      "Engine operations by name and error code (empty on success)",
			},
			[]string{"op", "code"},
		),
		OperationLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "operation_duration_seconds",
				Help:      "Engine operation latency in seconds",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
			},
			[]string{"op"},
		),
		SwapVolume: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "swap_volume_total",
				Help:      "Committed swap volume in base units of the source token",
			},
			[]string{"source", "target"},
		),
		SwapsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "swaps_total",
				Help:      "Committed swaps per direction",
			},
			[]string{"source", "target"},
		),
		Liquidity: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "liquidity",
				Help:      "Swappable amount per direction after the last committed change",
			},
			[]string{"source", "target"},
		),

		CommitsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "state",
				Name:      "commits_total",
				Help:      "World state commits by status",
			},
			[]string{"status"},
		),
		CommitLatency: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "state",
				Name:      "commit_duration_seconds",
				Help:      "World state commit latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		BlockHeight: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "state",
				Name:      "block_height",
				Help:      "Height of the last sealed block",
			},
		),

		JournalWrites: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "journal",
				Name:      "writes_total",
				Help:      "Swap journal inserts by outcome",
			},
			[]string{"outcome"},
		),

		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Served HTTP requests by route and status",
			},
			[]string{"route", "status"},
		),
		RequestLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Served HTTP request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		OutboundLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "client",
				Name:      "request_duration_seconds",
				Help:      "Outbound HTTP request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "host", "status"},
		),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) ObserveOperation(op, code string, elapsed time.Duration) {
	m.OperationsTotal.WithLabelValues(op, code).Inc()
	m.OperationLatency.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveSwap(source, target common.Address, amount *uint256.Int) {
	m.SwapsTotal.WithLabelValues(source.Hex(), target.Hex()).Inc()
	m.SwapVolume.WithLabelValues(source.Hex(), target.Hex()).Add(toFloat(amount))
}

func (m *Metrics) ObserveLiquidity(source, target common.Address, amount *uint256.Int) {
	m.Liquidity.WithLabelValues(source.Hex(), target.Hex()).Set(toFloat(amount))
}

func (m *Metrics) ObserveJournalWrite(outcome string) {
	m.JournalWrites.WithLabelValues(outcome).Inc()
}

// ObserveCommit records one state commit and, on success, the sealed height.
func (m *Metrics) ObserveCommit(height uint64, elapsed time.Duration, err error) {
	m.CommitLatency.Observe(elapsed.Seconds())
	if err != nil {
		m.CommitsTotal.WithLabelValues("error").Inc()
		return
	}
	m.CommitsTotal.WithLabelValues("ok").Inc()
	m.BlockHeight.Set(float64(height))
}

func (m *Metrics) ObserveRequest(route string, status int, elapsed time.Duration) {
	m.RequestsTotal.WithLabelValues(route, http.StatusText(status)).Inc()
	m.RequestLatency.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveOutbound(method, host string, status int, elapsed time.Duration) {
	label := "error"
	if status > 0 {
		label = http.StatusText(status)
	}
	m.OutboundLatency.WithLabelValues(method, host, label).Observe(elapsed.Seconds())
}

func toFloat(v *uint256.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v.ToBig()).Float64()
	return f
}
