package chains

import (
	"context"
	"time"

	chainerrors "github.com/chainwatch/chainwatch/errors"
)

// UpdatePrice applies the latest market price. A nil price means the feed
// had none for this chain; the stored price is cleared rather than kept stale.
func (c *Chain) UpdatePrice(ctx context.Context, price *float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var stored *float64
	if price != nil {
		p := *price
		stored = &p
	}

	c.mu.Lock()
	c.price = stored
	c.priceUpdatedAt = time.Now()
	c.mu.Unlock()

	c.metrics.SetPrice(c.cfg.Name, stored)

	if stored == nil {
		c.logger.Warn().Msg("no price available")
	} else {
		c.logger.Debug().Float64("price", *stored).Str("currency", c.opts.PriceCurrency).Msg("price updated")
	}

	if c.db == nil {
		return nil
	}
	if err := c.db.RecordPriceSnapshot(c.opts.PriceCurrency, stored); err != nil {
		return chainerrors.NewDatabaseError(c.cfg.Name, "record price snapshot", err)
	}
	deleted, err := c.db.DeleteOldPriceSnapshots(c.opts.PriceRetention)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to prune price history")
	} else if deleted > 0 {
		c.logger.Debug().Int64("deleted", deleted).Msg("pruned price history")
	}
	return nil
}
