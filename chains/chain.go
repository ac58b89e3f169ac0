// Package chains implements the per-network adapter: on-chain data, price,
// validator database and block event subscription for one cosmos-sdk chain.
package chains

import (
	"context"
	"math/big"
	"net/http"
	"sync"
	"time"

	rpchttp "github.com/cometbft/cometbft/rpc/client/http"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"github.com/chainwatch/chainwatch/chains/common"
	"github.com/chainwatch/chainwatch/db"
	"github.com/chainwatch/chainwatch/metrics"
)

const (
	defaultValidatorPageLimit = 200
	defaultEventStaleTimeout  = 2 * time.Minute
	defaultPriceCurrency      = "usd"
)

// StatusClient is the subset of the CometBFT RPC client used for node status.
type StatusClient interface {
	Status(ctx context.Context) (*coretypes.ResultStatus, error)
}

// EVMClient is the subset of the go-ethereum client used on EVM-enabled chains.
type EVMClient interface {
	BlockNumber(ctx context.Context) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
	Close()
}

// Data is the latest on-chain picture of a network. Token amounts are in
// display units.
type Data struct {
	NetworkID       string    `json:"network_id"`
	LatestHeight    int64     `json:"latest_height"`
	LatestBlockTime time.Time `json:"latest_block_time"`
	CatchingUp      bool      `json:"catching_up"`
	LastProposer    string    `json:"last_proposer,omitempty"`
	BondedTokens    float64   `json:"bonded_tokens"`
	NotBondedTokens float64   `json:"not_bonded_tokens"`
	TotalSupply     float64   `json:"total_supply"`
	BondedRatio     float64   `json:"bonded_ratio"`
	Inflation       float64   `json:"inflation"`
	StakingAPR      float64   `json:"staking_apr"`
	EVMBlockNumber  uint64    `json:"evm_block_number,omitempty"`
	EVMChainID      string    `json:"evm_chain_id,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Snapshot is a read-only copy of an adapter's state.
type Snapshot struct {
	Name           string    `json:"name"`
	CoinGeckoID    string    `json:"coingecko_id,omitempty"`
	MainDenom      string    `json:"main_denom"`
	Data           Data      `json:"data"`
	Price          *float64  `json:"price"`
	PriceCurrency  string    `json:"price_currency"`
	PriceUpdatedAt time.Time `json:"price_updated_at"`
	Subscription   string    `json:"subscription"`
	LastEventAt    time.Time `json:"last_event_at"`
	Reconnects     int       `json:"reconnects"`
}

// Options carries the collaborators shared by every adapter.
type Options struct {
	HTTPClient         *http.Client
	DB                 *db.DB
	Metrics            *metrics.Metrics
	Logger             zerolog.Logger
	ValidatorPageLimit int
	PriceCurrency      string
	PriceRetention     time.Duration
	EventStaleTimeout  time.Duration
}

// Chain is the adapter of one network. It is safe for concurrent use; the
// orchestrator may run data, price and database updates at the same time.
type Chain struct {
	cfg     Config
	opts    Options
	rest    *RESTClient
	db      *db.DB
	metrics *metrics.Metrics
	logger  zerolog.Logger

	rpcRetry  *common.RetryManager
	reconnect *common.RetryManager
	conn      *common.ConnectionTracker

	clientMu        sync.Mutex
	status          StatusClient
	evm             EVMClient
	newStatusClient func() (StatusClient, error)
	newEVMClient    func(ctx context.Context) (EVMClient, error)

	mu             sync.RWMutex
	data           Data
	price          *float64
	priceUpdatedAt time.Time
}

// New builds an adapter. No network connection is made until the first
// update.
func New(cfg Config, opts Options) (*Chain, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.ValidatorPageLimit <= 0 {
		opts.ValidatorPageLimit = defaultValidatorPageLimit
	}
	if opts.EventStaleTimeout <= 0 {
		opts.EventStaleTimeout = defaultEventStaleTimeout
	}
	if opts.PriceCurrency == "" {
		opts.PriceCurrency = defaultPriceCurrency
	}

	logger := opts.Logger.With().Str("component", "chain").Str("chain", cfg.Name).Logger()

	c := &Chain{
		cfg:       cfg,
		opts:      opts,
		rest:      NewRESTClient(cfg.Name, cfg.RESTURL, opts.HTTPClient),
		db:        opts.DB,
		metrics:   opts.Metrics,
		logger:    logger,
		rpcRetry:  common.NewRetryManager(common.DefaultRetryConfig(), logger),
		reconnect: common.NewRetryManager(common.ReconnectConfig(), logger),
		conn:      common.NewConnectionTracker(),
	}

	c.newStatusClient = func() (StatusClient, error) {
		return rpchttp.NewWithClient(cfg.RPCURL, "/websocket", opts.HTTPClient)
	}
	c.newEVMClient = func(ctx context.Context) (EVMClient, error) {
		return ethclient.DialContext(ctx, cfg.JSONRPCURL)
	}

	return c, nil
}

func (c *Chain) Name() string {
	return c.cfg.Name
}

func (c *Chain) Config() Config {
	return c.cfg
}

// PriceFeedKey returns the CoinGecko id and whether the chain is price-eligible.
func (c *Chain) PriceFeedKey() (string, bool) {
	return c.cfg.PriceFeedKey()
}

// DB returns the chain's database, nil when the adapter runs without persistence.
func (c *Chain) DB() *db.DB {
	return c.db
}

func (c *Chain) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var price *float64
	if c.price != nil {
		p := *c.price
		price = &p
	}

	return Snapshot{
		Name:           c.cfg.Name,
		CoinGeckoID:    c.cfg.CoinGeckoID,
		MainDenom:      c.cfg.MainDenom,
		Data:           c.data,
		Price:          price,
		PriceCurrency:  c.opts.PriceCurrency,
		PriceUpdatedAt: c.priceUpdatedAt,
		Subscription:   c.conn.State().String(),
		LastEventAt:    c.conn.LastEventAt(),
		Reconnects:     c.conn.Reconnects(),
	}
}

// Close releases lazily dialled clients.
func (c *Chain) Close() {
	c.clientMu.Lock()
	defer c.clientMu.Unlock()
	if c.evm != nil {
		c.evm.Close()
		c.evm = nil
	}
	c.status = nil
}

func (c *Chain) statusClient() (StatusClient, error) {
	c.clientMu.Lock()
	defer c.clientMu.Unlock()
	if c.status != nil {
		return c.status, nil
	}
	client, err := c.newStatusClient()
	if err != nil {
		return nil, err
	}
	c.status = client
	return client, nil
}

func (c *Chain) evmClient(ctx context.Context) (EVMClient, error) {
	c.clientMu.Lock()
	defer c.clientMu.Unlock()
	if c.evm != nil {
		return c.evm, nil
	}
	client, err := c.newEVMClient(ctx)
	if err != nil {
		return nil, err
	}
	c.evm = client
	return client, nil
}
