package chains

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	chainerrors "github.com/chainwatch/chainwatch/errors"
	"github.com/chainwatch/chainwatch/store"
)

type validatorsResponse struct {
	Validators []validatorJSON `json:"validators"`
	Pagination struct {
		NextKey string `json:"next_key"`
		Total   string `json:"total"`
	} `json:"pagination"`
}

type validatorJSON struct {
	OperatorAddress string `json:"operator_address"`
	ConsensusPubkey struct {
		Type string `json:"@type"`
		Key  string `json:"key"`
	} `json:"consensus_pubkey"`
	Jailed      bool   `json:"jailed"`
	Status      string `json:"status"`
	Tokens      string `json:"tokens"`
	Description struct {
		Moniker  string `json:"moniker"`
		Identity string `json:"identity"`
		Website  string `json:"website"`
		Details  string `json:"details"`
	} `json:"description"`
	Commission struct {
		CommissionRates struct {
			Rate string `json:"rate"`
		} `json:"commission_rates"`
	} `json:"commission"`
}

// UpdateValidatorDatabase pages through the full validator set and writes
// it to the chain database. Validators that left the set are flagged removed.
func (c *Chain) UpdateValidatorDatabase(ctx context.Context) error {
	if c.db == nil {
		return chainerrors.NewConfigError(c.cfg.Name, "validator database is not configured")
	}

	raw, err := c.fetchValidators(ctx)
	if err != nil {
		return err
	}

	validators := make([]store.Validator, 0, len(raw))
	var retained []string
	for _, v := range raw {
		row, err := c.toValidatorRow(v)
		if err != nil {
			// Still in the set; its stored row is kept as is
			c.logger.Warn().Err(err).Str("operator", v.OperatorAddress).Msg("skipping validator")
			if v.OperatorAddress != "" {
				retained = append(retained, v.OperatorAddress)
			}
			continue
		}
		validators = append(validators, row)
	}

	// An empty set from a chain that answered is treated as an upstream fault,
	// not as every validator leaving.
	if len(validators) == 0 {
		return chainerrors.NewValidationError(c.cfg.Name, "validator set is empty", nil)
	}

	if err := c.db.UpsertValidators(validators, retained, time.Now()); err != nil {
		return chainerrors.NewDatabaseError(c.cfg.Name, "upsert validators", err)
	}

	active := 0
	for _, v := range validators {
		if v.Status == "BOND_STATUS_BONDED" {
			active++
		}
	}
	c.metrics.SetActiveValidators(c.cfg.Name, active)

	c.logger.Info().
		Int("validators", len(validators)).
		Int("bonded", active).
		Msg("validator database updated")
	return nil
}

func (c *Chain) fetchValidators(ctx context.Context) ([]validatorJSON, error) {
	var all []validatorJSON
	seen := make(map[string]struct{})
	key := ""

	for {
		query := url.Values{}
		query.Set("pagination.limit", strconv.Itoa(c.opts.ValidatorPageLimit))
		if key != "" {
			query.Set("pagination.key", key)
		}

		var resp validatorsResponse
		if err := c.rest.GetJSON(ctx, "/cosmos/staking/v1beta1/validators", query, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Validators...)

		key = resp.Pagination.NextKey
		if key == "" {
			return all, nil
		}
		if _, dup := seen[key]; dup {
			return nil, chainerrors.NewValidationError(c.cfg.Name,
				fmt.Sprintf("pagination key %q repeated", key), nil)
		}
		seen[key] = struct{}{}
	}
}

func (c *Chain) toValidatorRow(v validatorJSON) (store.Validator, error) {
	account, err := accountFromValoper(v.OperatorAddress, c.cfg.ValoperPrefix, c.cfg.BasePrefix)
	if err != nil {
		return store.Validator{}, err
	}

	row := store.Validator{
		OperatorAddress: v.OperatorAddress,
		AccountAddress:  account,
		Moniker:         v.Description.Moniker,
		Identity:        v.Description.Identity,
		Website:         v.Description.Website,
		Details:         v.Description.Details,
		Status:          v.Status,
		Jailed:          v.Jailed,
	}

	cons, hex, err := consensusAddresses(v.ConsensusPubkey.Type, v.ConsensusPubkey.Key, c.cfg.ConsPrefix)
	if err != nil {
		// Still tracked, but proposer matching is unavailable
		c.logger.Debug().Err(err).Str("operator", v.OperatorAddress).Msg("no consensus address")
	} else {
		row.ConsensusAddress = cons
		row.HexAddress = hex
	}

	if v.Tokens != "" {
		tokens, err := parseAmount(v.Tokens)
		if err != nil {
			return store.Validator{}, fmt.Errorf("tokens: %w", err)
		}
		row.Tokens = c.toDisplay(tokens)
	}
	if rate := v.Commission.CommissionRates.Rate; rate != "" {
		dec, err := parseAmount(rate)
		if err != nil {
			return store.Validator{}, fmt.Errorf("commission rate: %w", err)
		}
		row.CommissionRate, _ = dec.Float64()
	}
	return row, nil
}
