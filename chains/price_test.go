package chains

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdatePrice(t *testing.T) {
	t.Run("stores price and records snapshot", func(t *testing.T) {
		c := newTestChain(t, testConfig("osmosis", "http://127.0.0.1:1"), newStatus("osmosis-1", 1, time.Now()))

		price := 0.82
		require.NoError(t, c.UpdatePrice(context.Background(), &price))
		price = 100

		snap := c.Snapshot()
		require.NotNil(t, snap.Price)
		assert.Equal(t, 0.82, *snap.Price)
		assert.False(t, snap.PriceUpdatedAt.IsZero())

		rows, err := c.DB().ListPriceSnapshots(0)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.True(t, rows[0].Available)
		assert.Equal(t, 0.82, rows[0].Price)
		assert.Equal(t, "usd", rows[0].Currency)
	})

	t.Run("nil clears the stored price", func(t *testing.T) {
		c := newTestChain(t, testConfig("osmosis", "http://127.0.0.1:1"), newStatus("osmosis-1", 1, time.Now()))

		price := 1.5
		require.NoError(t, c.UpdatePrice(context.Background(), &price))
		require.NoError(t, c.UpdatePrice(context.Background(), nil))

		assert.Nil(t, c.Snapshot().Price)

		rows, err := c.DB().ListPriceSnapshots(0)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.False(t, rows[0].Available)
		assert.True(t, rows[1].Available)
	})

	t.Run("old snapshots are pruned", func(t *testing.T) {
		c := newTestChain(t, testConfig("osmosis", "http://127.0.0.1:1"), newStatus("osmosis-1", 1, time.Now()))

		c.opts.PriceRetention = 50 * time.Millisecond

		price := 1.0
		require.NoError(t, c.UpdatePrice(context.Background(), &price))
		time.Sleep(100 * time.Millisecond)

		price = 2.0
		require.NoError(t, c.UpdatePrice(context.Background(), &price))

		rows, err := c.DB().ListPriceSnapshots(0)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, 2.0, rows[0].Price)
	})

	t.Run("works without a database", func(t *testing.T) {
		c := newTestChain(t, testConfig("osmosis", "http://127.0.0.1:1"), newStatus("osmosis-1", 1, time.Now()), withoutDB())
		price := 3.0
		require.NoError(t, c.UpdatePrice(context.Background(), &price))
		assert.Equal(t, 3.0, *c.Snapshot().Price)
	})

	t.Run("cancelled context", func(t *testing.T) {
		c := newTestChain(t, testConfig("osmosis", "http://127.0.0.1:1"), newStatus("osmosis-1", 1, time.Now()))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		price := 3.0
		assert.ErrorIs(t, c.UpdatePrice(ctx, &price), context.Canceled)
		assert.Nil(t, c.Snapshot().Price)
	})
}
