// Package metrics exposes Prometheus collectors for the orchestrator fan-outs
// and per-chain state.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chainwatch"

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics groups every collector. A nil *Metrics is a valid no-op sink.
type Metrics struct {
	FanoutRuns             *prometheus.CounterVec
	FanoutDuration         *prometheus.HistogramVec
	ChainPrice             *prometheus.GaugeVec
	ChainBlockHeight       *prometheus.GaugeVec
	ActiveValidators       *prometheus.GaugeVec
	SubscriptionConnected  *prometheus.GaugeVec
	SubscriptionReconnects *prometheus.CounterVec
}

// New builds the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FanoutRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_runs_total",
			Help:      "Per-chain units run by orchestrator fan-outs.",
		}, []string{"operation", "chain", "outcome"}),
		FanoutDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fanout_duration_seconds",
			Help:      "Duration of per-chain fan-out units.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"operation", "chain"}),
		ChainPrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chain_price",
			Help:      "Latest market price of the chain's native token.",
		}, []string{"chain"}),
		ChainBlockHeight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chain_block_height",
			Help:      "Latest observed block height.",
		}, []string{"chain"}),
		ActiveValidators: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chain_active_validators",
			Help:      "Validators present in the latest validator set snapshot.",
		}, []string{"chain"}),
		SubscriptionConnected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscription_connected",
			Help:      "1 while the block event subscription is connected.",
		}, []string{"chain"}),
		SubscriptionReconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscription_reconnects_total",
			Help:      "Event subscription reconnect attempts.",
		}, []string{"chain"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.FanoutRuns,
			m.FanoutDuration,
			m.ChainPrice,
			m.ChainBlockHeight,
			m.ActiveValidators,
			m.SubscriptionConnected,
			m.SubscriptionReconnects,
		)
	}
	return m
}

// ObserveFanout records the outcome of one per-chain unit.
func (m *Metrics) ObserveFanout(operation, chain string, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.FanoutRuns.WithLabelValues(operation, chain, outcome).Inc()
	m.FanoutDuration.WithLabelValues(operation, chain).Observe(d.Seconds())
}

// SetPrice publishes a price, or drops the series when no price is available.
func (m *Metrics) SetPrice(chain string, price *float64) {
	if m == nil {
		return
	}
	if price == nil {
		m.ChainPrice.DeleteLabelValues(chain)
		return
	}
	m.ChainPrice.WithLabelValues(chain).Set(*price)
}

func (m *Metrics) SetBlockHeight(chain string, height int64) {
	if m == nil {
		return
	}
	m.ChainBlockHeight.WithLabelValues(chain).Set(float64(height))
}

func (m *Metrics) SetActiveValidators(chain string, n int) {
	if m == nil {
		return
	}
	m.ActiveValidators.WithLabelValues(chain).Set(float64(n))
}

func (m *Metrics) SetSubscriptionConnected(chain string, connected bool) {
	if m == nil {
		return
	}
	v := 0.0
	if connected {
		v = 1
	}
	m.SubscriptionConnected.WithLabelValues(chain).Set(v)
}

func (m *Metrics) IncSubscriptionReconnects(chain string) {
	if m == nil {
		return
	}
	m.SubscriptionReconnects.WithLabelValues(chain).Inc()
}
