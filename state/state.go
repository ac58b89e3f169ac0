// Package state holds the registry of monitored chains and fans the recurring
// refresh operations out to all of them.
package state

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/chainwatch/chainwatch/chains"
	"github.com/chainwatch/chainwatch/config"
	"github.com/chainwatch/chainwatch/constant"
	"github.com/chainwatch/chainwatch/db"
	chainerrors "github.com/chainwatch/chainwatch/errors"
	"github.com/chainwatch/chainwatch/metrics"
	"github.com/chainwatch/chainwatch/pricefeed"
)

// Chain is the capability set the orchestrator dispatches to. Implementations
// must be safe for concurrent use.
type Chain interface {
	Name() string
	// PriceFeedKey returns the price-feed id and false when the chain does
	// not track prices.
	PriceFeedKey() (string, bool)
	UpdateData(ctx context.Context) error
	// UpdatePrice receives nil when the feed had no price for the chain.
	UpdatePrice(ctx context.Context, price *float64) error
	UpdateValidatorDatabase(ctx context.Context) error
	SubscribeToEvents(ctx context.Context) error
}

// PriceFeed fetches prices for a set of keys in one round trip. It never
// fails as a whole; keys without a price are absent from the result.
type PriceFeed interface {
	GetPrices(ctx context.Context, client *http.Client, keys []string) pricefeed.Prices
}

// State is the immutable chain registry. Every method is safe for
// concurrent use.
type State struct {
	chains  []Chain
	byName  map[string]Chain
	feed    PriceFeed
	client  *http.Client
	dbs     *db.ChainDBManager
	metrics *metrics.Metrics
	logger  zerolog.Logger

	chainConfigs []chains.Config
}

type Option func(*State)

// WithMetrics records every fan-out unit, and passes m on to the adapters
// built by New.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *State) { s.metrics = m }
}

// WithDBManager gives each adapter built by New its own database.
func WithDBManager(m *db.ChainDBManager) Option {
	return func(s *State) { s.dbs = m }
}

// WithChainConfigs replaces the compiled-in chain table used by New.
func WithChainConfigs(cfgs []chains.Config) Option {
	return func(s *State) { s.chainConfigs = cfgs }
}

// New builds the registry from the compiled-in chain table. All adapters and
// the CoinGecko feed share one HTTP client. No network call is made; any
// invalid entry fails the whole construction.
func New(cfg config.Config, logger zerolog.Logger, opts ...Option) (*State, error) {
	s := &State{chainConfigs: chains.DefaultConfigs()}
	for _, opt := range opts {
		opt(s)
	}

	client := &http.Client{Timeout: cfg.HTTPTimeout()}

	adapters := make([]Chain, 0, len(s.chainConfigs))
	for _, chainCfg := range s.chainConfigs {
		var database *db.DB
		if s.dbs != nil {
			var err error
			database, err = s.dbs.GetChainDB(chainCfg.Name)
			if err != nil {
				return nil, fmt.Errorf("open database for %s: %w", chainCfg.Name, err)
			}
		}

		adapter, err := chains.New(chainCfg, chains.Options{
			HTTPClient:         client,
			DB:                 database,
			Metrics:            s.metrics,
			Logger:             logger,
			ValidatorPageLimit: cfg.ValidatorPageLimit,
			PriceCurrency:      cfg.PriceCurrency,
			PriceRetention:     cfg.PriceRetention(),
			EventStaleTimeout:  cfg.EventStaleTimeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("invalid chain config %q: %w", chainCfg.Name, err)
		}
		adapters = append(adapters, adapter)
	}

	feed := pricefeed.NewCoinGecko(cfg.CoinGeckoBaseURL, cfg.PriceCurrency, logger)
	return build(s, adapters, feed, client, logger)
}

// NewWithChains builds a registry around already constructed adapters, kept
// in the given order. Names must be unique.
func NewWithChains(adapters []Chain, feed PriceFeed, client *http.Client, logger zerolog.Logger, opts ...Option) (*State, error) {
	s := &State{}
	for _, opt := range opts {
		opt(s)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return build(s, adapters, feed, client, logger)
}

func build(s *State, adapters []Chain, feed PriceFeed, client *http.Client, logger zerolog.Logger) (*State, error) {
	if feed == nil {
		return nil, fmt.Errorf("price feed must be non-nil")
	}

	s.byName = make(map[string]Chain, len(adapters))
	for _, c := range adapters {
		if c == nil {
			return nil, fmt.Errorf("chain must be non-nil")
		}
		name := c.Name()
		if _, exists := s.byName[name]; exists {
			return nil, fmt.Errorf("chain %q registered twice", name)
		}
		s.byName[name] = c
	}

	s.chains = append([]Chain(nil), adapters...)
	s.feed = feed
	s.client = client
	s.logger = logger.With().Str("component", "state").Logger()
	s.chainConfigs = nil

	s.logger.Info().Strs("chains", s.Names()).Msg("chain registry ready")
	return s, nil
}

// Get returns the adapter registered under exactly name.
func (s *State) Get(name string) (Chain, error) {
	c, ok := s.byName[name]
	if !ok {
		return nil, &UnsupportedChainError{Name: name}
	}
	return c, nil
}

// Names returns the registered identifiers in registry order.
func (s *State) Names() []string {
	names := make([]string, 0, len(s.chains))
	for _, c := range s.chains {
		names = append(names, c.Name())
	}
	return names
}

// Chains returns the registered adapters in registry order.
func (s *State) Chains() []Chain {
	return append([]Chain(nil), s.chains...)
}

// HTTPClient returns the client shared by every adapter and the price feed.
func (s *State) HTTPClient() *http.Client {
	return s.client
}

// DatabaseStats reports the chain databases, false when the state runs
// without persistence.
func (s *State) DatabaseStats() (db.DatabaseStats, bool) {
	if s.dbs == nil {
		return db.DatabaseStats{}, false
	}
	return s.dbs.GetDatabaseStats(), true
}

// UpdateData refreshes the on-chain data of every chain concurrently.
func (s *State) UpdateData(ctx context.Context) Report {
	return s.fanout(ctx, constant.OperationData, s.chains, func(ctx context.Context, c Chain) error {
		return c.UpdateData(ctx)
	})
}

// UpdatePrices fetches the prices of all price-eligible chains in one call,
// then hands every eligible chain its entry. Chains missing from the feed's
// answer receive nil. Chains without a price-feed key are skipped.
func (s *State) UpdatePrices(ctx context.Context) Report {
	var (
		eligible []Chain
		keys     []string
		keyOf    = make(map[string]string)
	)
	for _, c := range s.chains {
		key, ok := c.PriceFeedKey()
		if !ok {
			continue
		}
		eligible = append(eligible, c)
		keys = append(keys, key)
		keyOf[c.Name()] = key
	}

	prices := s.feed.GetPrices(ctx, s.client, keys)
	s.logger.Debug().
		Int("requested", len(keys)).
		Int("received", len(prices)).
		Msg("fetched prices")

	return s.fanout(ctx, constant.OperationPrices, eligible, func(ctx context.Context, c Chain) error {
		return c.UpdatePrice(ctx, prices.Lookup(keyOf[c.Name()]))
	})
}

// UpdateDatabase refreshes the validator database of every chain concurrently.
func (s *State) UpdateDatabase(ctx context.Context) Report {
	return s.fanout(ctx, constant.OperationDatabase, s.chains, func(ctx context.Context, c Chain) error {
		return c.UpdateValidatorDatabase(ctx)
	})
}

// SubscribeToEvents runs the event subscription of every chain and returns
// once all of them have ended, normally when ctx is cancelled. A session
// ended by that cancellation is not reported as a failure.
func (s *State) SubscribeToEvents(ctx context.Context) Report {
	return s.fanout(ctx, constant.OperationSubscribe, s.chains, func(ctx context.Context, c Chain) error {
		err := c.SubscribeToEvents(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil
		}
		return err
	})
}

// Run dispatches a fan-out by operation name.
func (s *State) Run(ctx context.Context, operation string) (Report, error) {
	switch operation {
	case constant.OperationData:
		return s.UpdateData(ctx), nil
	case constant.OperationPrices:
		return s.UpdatePrices(ctx), nil
	case constant.OperationDatabase:
		return s.UpdateDatabase(ctx), nil
	default:
		return Report{}, fmt.Errorf("unknown operation %q", operation)
	}
}

// Close releases adapter clients and closes the chain databases.
func (s *State) Close() error {
	for _, c := range s.chains {
		if closer, ok := c.(interface{ Close() }); ok {
			closer.Close()
		}
	}
	if s.dbs != nil {
		return s.dbs.CloseAll()
	}
	return nil
}

// fanout runs fn once per chain, each in its own goroutine, and waits for all.
// Errors and panics are recorded per chain and never cancel the siblings.
func (s *State) fanout(ctx context.Context, operation string, targets []Chain, fn func(context.Context, Chain) error) Report {
	results := make([]Result, len(targets))

	var g errgroup.Group
	for i, c := range targets {
		i, c := i, c
		g.Go(func() error {
			results[i] = s.runUnit(ctx, operation, c, fn)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Operation: operation, Results: results}
	s.logReport(report)
	return report
}

func (s *State) runUnit(ctx context.Context, operation string, c Chain, fn func(context.Context, Chain) error) (res Result) {
	res.Chain = c.Name()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			res.Err = chainerrors.NewInternalError(res.Chain, operation+" panicked", fmt.Errorf("%v", r))
			s.logger.Error().
				Str("operation", operation).
				Str("chain", res.Chain).
				Str("stack", string(debug.Stack())).
				Msg("recovered from panic")
		}
		res.Duration = time.Since(start)
		s.metrics.ObserveFanout(operation, res.Chain, res.Err, res.Duration)
	}()

	res.Err = fn(ctx, c)
	return res
}

func (s *State) logReport(report Report) {
	failed := report.Failed()
	if len(failed) == 0 {
		s.logger.Info().
			Str("operation", report.Operation).
			Int("chains", len(report.Results)).
			Msg("fan-out completed")
		return
	}

	for _, res := range report.Results {
		if res.Err == nil {
			continue
		}
		severity := chainerrors.GetSeverity(res.Err)
		event := s.logger.Warn()
		if severity == chainerrors.SeverityCritical || severity == chainerrors.SeverityHigh {
			event = s.logger.Error()
		}
		event.
			Err(res.Err).
			Str("severity", string(severity)).
			Str("operation", report.Operation).
			Str("chain", res.Chain).
			Dur("took", res.Duration).
			Msg("chain update failed")
	}
	s.logger.Warn().
		Str("operation", report.Operation).
		Int("chains", len(report.Results)).
		Strs("failed", failed).
		Msg("fan-out completed with failures")
}
