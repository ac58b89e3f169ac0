package chains

import (
	"context"
	"fmt"
	"net/url"
	"time"

	sdkmath "cosmossdk.io/math"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"

	chainerrors "github.com/chainwatch/chainwatch/errors"
	"github.com/chainwatch/chainwatch/store"
)

type stakingPoolResponse struct {
	Pool struct {
		NotBondedTokens string `json:"not_bonded_tokens"`
		BondedTokens    string `json:"bonded_tokens"`
	} `json:"pool"`
}

type inflationResponse struct {
	Inflation string `json:"inflation"`
}

type supplyResponse struct {
	Amount struct {
		Denom  string `json:"denom"`
		Amount string `json:"amount"`
	} `json:"amount"`
}

type evmInfo struct {
	blockNumber uint64
	chainID     string
}

// UpdateData refreshes node status, staking pool, inflation and supply and,
// on EVM-enabled chains, the EVM head. Only a failure of both the node status
// and the staking pool fails the update; other gaps are logged.
func (c *Chain) UpdateData(ctx context.Context) error {
	status, statusErr := c.fetchStatus(ctx)
	if statusErr != nil {
		c.logger.Warn().Err(statusErr).Msg("failed to fetch node status")
	}

	pool, poolErr := c.fetchStakingPool(ctx)
	if poolErr != nil {
		c.logger.Warn().Err(poolErr).Msg("failed to fetch staking pool")
	}

	if statusErr != nil && poolErr != nil {
		return chainerrors.Join(statusErr, poolErr)
	}

	inflation, inflationErr := c.fetchInflation(ctx)
	if inflationErr != nil {
		c.logger.Debug().Err(inflationErr).Msg("inflation unavailable")
	}

	supply, supplyErr := c.fetchSupply(ctx)
	if supplyErr != nil {
		c.logger.Warn().Err(supplyErr).Msg("failed to fetch total supply")
	}

	var evm *evmInfo
	if c.cfg.JSONRPCURL != "" {
		info, err := c.fetchEVM(ctx)
		if err != nil {
			c.logger.Warn().Err(err).Msg("failed to fetch evm head")
		} else {
			evm = info
		}
	}

	c.mu.Lock()
	if status != nil {
		c.data.NetworkID = status.NodeInfo.Network
		if status.SyncInfo.LatestBlockHeight > c.data.LatestHeight {
			c.data.LatestHeight = status.SyncInfo.LatestBlockHeight
			c.data.LatestBlockTime = status.SyncInfo.LatestBlockTime
		}
		c.data.CatchingUp = status.SyncInfo.CatchingUp
	}
	if pool != nil {
		c.data.BondedTokens = c.toDisplay(pool.bonded)
		c.data.NotBondedTokens = c.toDisplay(pool.notBonded)
	}
	if supplyErr == nil {
		c.data.TotalSupply = c.toDisplay(supply)
		if pool != nil {
			c.data.BondedRatio = ratio(pool.bonded, supply)
		}
	}
	if inflationErr == nil {
		c.data.Inflation = inflation
	}
	c.data.StakingAPR = stakingAPR(c.data.Inflation, c.data.BondedRatio)
	if evm != nil {
		c.data.EVMBlockNumber = evm.blockNumber
		c.data.EVMChainID = evm.chainID
	}
	c.data.UpdatedAt = time.Now()
	data := c.data
	c.mu.Unlock()

	if status != nil {
		c.metrics.SetBlockHeight(c.cfg.Name, data.LatestHeight)
		if c.db != nil {
			err := c.db.SaveChainState(store.ChainState{
				NetworkID:       data.NetworkID,
				LatestHeight:    status.SyncInfo.LatestBlockHeight,
				LatestBlockTime: status.SyncInfo.LatestBlockTime,
			})
			if err != nil {
				return chainerrors.NewDatabaseError(c.cfg.Name, "save chain state", err)
			}
		}
	}

	c.logger.Debug().
		Int64("height", data.LatestHeight).
		Float64("bonded_ratio", data.BondedRatio).
		Float64("apr", data.StakingAPR).
		Msg("chain data updated")
	return nil
}

func (c *Chain) fetchStatus(ctx context.Context) (*coretypes.ResultStatus, error) {
	client, err := c.statusClient()
	if err != nil {
		return nil, chainerrors.NewConfigError(c.cfg.Name, fmt.Sprintf("rpc client for %s: %v", c.cfg.RPCURL, err))
	}

	var status *coretypes.ResultStatus
	err = c.rpcRetry.ExecuteWithRetry(ctx, "status", func() error {
		res, err := client.Status(ctx)
		if err != nil {
			return chainerrors.NewRPCError(c.cfg.Name, "status", err)
		}
		status = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

type stakingPool struct {
	bonded    sdkmath.LegacyDec
	notBonded sdkmath.LegacyDec
}

func (c *Chain) fetchStakingPool(ctx context.Context) (*stakingPool, error) {
	var resp stakingPoolResponse
	if err := c.rest.GetJSON(ctx, "/cosmos/staking/v1beta1/pool", nil, &resp); err != nil {
		return nil, err
	}

	bonded, err := parseAmount(resp.Pool.BondedTokens)
	if err != nil {
		return nil, chainerrors.NewValidationError(c.cfg.Name, "bonded_tokens", err)
	}
	notBonded, err := parseAmount(resp.Pool.NotBondedTokens)
	if err != nil {
		return nil, chainerrors.NewValidationError(c.cfg.Name, "not_bonded_tokens", err)
	}
	return &stakingPool{bonded: bonded, notBonded: notBonded}, nil
}

func (c *Chain) fetchInflation(ctx context.Context) (float64, error) {
	var resp inflationResponse
	if err := c.rest.GetJSON(ctx, "/cosmos/mint/v1beta1/inflation", nil, &resp); err != nil {
		return 0, err
	}
	dec, err := parseAmount(resp.Inflation)
	if err != nil {
		return 0, chainerrors.NewValidationError(c.cfg.Name, "inflation", err)
	}
	return dec.Float64()
}

// fetchSupply queries the supply of the main denom. SDK v0.46 moved the
// denom from the path to a query parameter.
func (c *Chain) fetchSupply(ctx context.Context) (sdkmath.LegacyDec, error) {
	path := "/cosmos/bank/v1beta1/supply/" + url.PathEscape(c.cfg.MainDenom)
	var query url.Values
	if c.cfg.SDKVersion > 45 {
		path = "/cosmos/bank/v1beta1/supply/by_denom"
		query = url.Values{"denom": []string{c.cfg.MainDenom}}
	}

	var resp supplyResponse
	if err := c.rest.GetJSON(ctx, path, query, &resp); err != nil {
		return sdkmath.LegacyDec{}, err
	}
	if resp.Amount.Denom != "" && resp.Amount.Denom != c.cfg.MainDenom {
		return sdkmath.LegacyDec{}, chainerrors.NewValidationError(c.cfg.Name,
			fmt.Sprintf("supply returned denom %q, want %q", resp.Amount.Denom, c.cfg.MainDenom), nil)
	}
	amount, err := parseAmount(resp.Amount.Amount)
	if err != nil {
		return sdkmath.LegacyDec{}, chainerrors.NewValidationError(c.cfg.Name, "supply amount", err)
	}
	return amount, nil
}

func (c *Chain) fetchEVM(ctx context.Context) (*evmInfo, error) {
	client, err := c.evmClient(ctx)
	if err != nil {
		return nil, chainerrors.NewNetworkError(c.cfg.Name, "dial json-rpc", err)
	}

	info := &evmInfo{}
	err = c.rpcRetry.ExecuteWithRetry(ctx, "evm_head", func() error {
		height, err := client.BlockNumber(ctx)
		if err != nil {
			return chainerrors.NewRPCError(c.cfg.Name, "eth_blockNumber", err)
		}
		chainID, err := client.ChainID(ctx)
		if err != nil {
			return chainerrors.NewRPCError(c.cfg.Name, "eth_chainId", err)
		}
		info.blockNumber = height
		info.chainID = chainID.String()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// toDisplay divides a base-denom amount by the chain's scaling factor.
func (c *Chain) toDisplay(amount sdkmath.LegacyDec) float64 {
	if amount.IsNil() {
		return 0
	}
	f, err := amount.QuoInt64(c.cfg.DecimalsPow).Float64()
	if err != nil {
		return 0
	}
	return f
}

func parseAmount(s string) (sdkmath.LegacyDec, error) {
	if s == "" {
		return sdkmath.LegacyDec{}, fmt.Errorf("empty amount")
	}
	return sdkmath.LegacyNewDecFromStr(s)
}

func ratio(part, total sdkmath.LegacyDec) float64 {
	if part.IsNil() || total.IsNil() || !total.IsPositive() {
		return 0
	}
	f, err := part.Quo(total).Float64()
	if err != nil {
		return 0
	}
	return f
}

// stakingAPR is the nominal staking yield: new issuance shared by bonded stake.
func stakingAPR(inflation, bondedRatio float64) float64 {
	if bondedRatio <= 0 {
		return 0
	}
	return inflation / bondedRatio
}
