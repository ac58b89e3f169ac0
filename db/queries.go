package db

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chainwatch/chainwatch/store"
)

// validatorUpdateColumns are overwritten on every snapshot. proposed_blocks
// and created_at survive re-syncs.
var validatorUpdateColumns = []string{
	"updated_at",
	"account_address",
	"consensus_address",
	"hex_address",
	"moniker",
	"identity",
	"website",
	"details",
	"tokens",
	"commission_rate",
	"status",
	"jailed",
	"removed",
	"last_seen_at",
}

// GetChainState returns the single chain state row, or nil if none was written yet.
func (d *DB) GetChainState() (*store.ChainState, error) {
	var state store.ChainState
	err := d.client.Order("id ASC").First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load chain state")
	}
	return &state, nil
}

// SaveChainState merges the non-zero fields of update into the chain state row.
// A lower height never overwrites a higher one.
func (d *DB) SaveChainState(update store.ChainState) error {
	return d.client.Transaction(func(tx *gorm.DB) error {
		var current store.ChainState
		err := tx.Order("id ASC").First(&current).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := tx.Create(&update).Error; err != nil {
				return errors.Wrap(err, "failed to create chain state")
			}
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "failed to load chain state")
		}

		if update.NetworkID != "" {
			current.NetworkID = update.NetworkID
		}
		if update.LatestHeight > current.LatestHeight {
			current.LatestHeight = update.LatestHeight
			if !update.LatestBlockTime.IsZero() {
				current.LatestBlockTime = update.LatestBlockTime
			}
			if update.LastProposer != "" {
				current.LastProposer = update.LastProposer
			}
		}

		if err := tx.Save(&current).Error; err != nil {
			return errors.Wrap(err, "failed to update chain state")
		}
		return nil
	})
}

// UpsertValidators writes a full validator set snapshot. Rows are keyed by
// operator address. retained lists operators present in the snapshot whose
// rows could not be rebuilt; they keep their stored columns and are only
// marked seen. Every other validator absent from the snapshot is flagged
// removed.
func (d *DB) UpsertValidators(validators []store.Validator, retained []string, seenAt time.Time) error {
	return d.client.Transaction(func(tx *gorm.DB) error {
		for i := range validators {
			validators[i].Removed = false
			validators[i].LastSeenAt = seenAt
		}

		if len(validators) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "operator_address"}},
				DoUpdates: clause.AssignmentColumns(validatorUpdateColumns),
			}).CreateInBatches(validators, 100).Error
			if err != nil {
				return errors.Wrap(err, "failed to upsert validators")
			}
		}

		if len(retained) > 0 {
			err := tx.Model(&store.Validator{}).
				Where("operator_address IN ?", retained).
				Updates(map[string]any{"last_seen_at": seenAt, "removed": false}).Error
			if err != nil {
				return errors.Wrap(err, "failed to mark retained validators seen")
			}
		}

		err := tx.Model(&store.Validator{}).
			Where("last_seen_at < ? AND removed = ?", seenAt, false).
			Update("removed", true).Error
		if err != nil {
			return errors.Wrap(err, "failed to flag removed validators")
		}
		return nil
	})
}

// IncrementProposedBlocks bumps the proposer counter of the validator with
// the given hex consensus address. Returns false if no validator matched.
func (d *DB) IncrementProposedBlocks(hexAddress string) (bool, error) {
	res := d.client.Model(&store.Validator{}).
		Where("hex_address = ?", hexAddress).
		UpdateColumn("proposed_blocks", gorm.Expr("proposed_blocks + ?", 1))
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "failed to increment proposed blocks for %s", hexAddress)
	}
	return res.RowsAffected > 0, nil
}

// ListValidators returns validators ordered by bonded tokens, largest first.
// A non-positive limit returns all rows.
func (d *DB) ListValidators(limit int, includeRemoved bool) ([]store.Validator, error) {
	query := d.client.Order("tokens DESC").Order("operator_address ASC")
	if !includeRemoved {
		query = query.Where("removed = ?", false)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var validators []store.Validator
	if err := query.Find(&validators).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list validators")
	}
	return validators, nil
}

// RecordPriceSnapshot appends a price update to the chain's price history.
// A nil price is recorded as unavailable.
func (d *DB) RecordPriceSnapshot(currency string, price *float64) error {
	snapshot := store.PriceSnapshot{Currency: currency}
	if price != nil {
		snapshot.Price = *price
		snapshot.Available = true
	}
	if err := d.client.Create(&snapshot).Error; err != nil {
		return errors.Wrap(err, "failed to record price snapshot")
	}
	return nil
}

// ListPriceSnapshots returns the most recent price history, newest first.
// A non-positive limit returns all rows.
func (d *DB) ListPriceSnapshots(limit int) ([]store.PriceSnapshot, error) {
	query := d.client.Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var snapshots []store.PriceSnapshot
	if err := query.Find(&snapshots).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list price snapshots")
	}
	return snapshots, nil
}

// DeleteOldPriceSnapshots removes price history older than the retention period.
// A zero retention keeps everything.
func (d *DB) DeleteOldPriceSnapshots(retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-retention)
	res := d.client.Unscoped().Where("created_at < ?", cutoff).Delete(&store.PriceSnapshot{})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "failed to delete old price snapshots")
	}
	return res.RowsAffected, nil
}
