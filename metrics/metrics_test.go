package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveFanout(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveFanout("data", "osmosis", nil, 10*time.Millisecond)
	m.ObserveFanout("data", "osmosis", nil, 20*time.Millisecond)
	m.ObserveFanout("data", "kyve", errors.New("boom"), time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FanoutRuns.WithLabelValues("data", "osmosis", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FanoutRuns.WithLabelValues("data", "kyve", OutcomeFailure)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.FanoutRuns.WithLabelValues("data", "kyve", OutcomeSuccess)))
}

func TestSetPrice(t *testing.T) {
	m := New(prometheus.NewRegistry())

	price := 0.42
	m.SetPrice("axelar", &price)
	assert.Equal(t, 0.42, testutil.ToFloat64(m.ChainPrice.WithLabelValues("axelar")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ChainPrice))

	m.SetPrice("axelar", nil)
	assert.Equal(t, 0, testutil.CollectAndCount(m.ChainPrice))
}

func TestGauges(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SetBlockHeight("secret", 12345)
	m.SetActiveValidators("secret", 80)
	m.SetSubscriptionConnected("secret", true)
	m.IncSubscriptionReconnects("secret")

	assert.Equal(t, 12345.0, testutil.ToFloat64(m.ChainBlockHeight.WithLabelValues("secret")))
	assert.Equal(t, 80.0, testutil.ToFloat64(m.ActiveValidators.WithLabelValues("secret")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SubscriptionConnected.WithLabelValues("secret")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SubscriptionReconnects.WithLabelValues("secret")))

	m.SetSubscriptionConnected("secret", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SubscriptionConnected.WithLabelValues("secret")))
}

func TestRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)

	assert.Panics(t, func() { New(reg) }, "duplicate registration must panic")

	families, err := reg.Gather()
	require.NoError(t, err)
	// Vectors without observed series are not gathered
	assert.Empty(t, families)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	price := 1.0
	assert.NotPanics(t, func() {
		m.ObserveFanout("data", "evmos", nil, time.Second)
		m.SetPrice("evmos", &price)
		m.SetBlockHeight("evmos", 1)
		m.SetActiveValidators("evmos", 1)
		m.SetSubscriptionConnected("evmos", true)
		m.IncSubscriptionReconnects("evmos")
	})
}
