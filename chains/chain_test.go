package chains

import (
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cometbft/cometbft/p2p"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/chainwatch/chainwatch/chains/common"
	"github.com/chainwatch/chainwatch/db"
	chainerrors "github.com/chainwatch/chainwatch/errors"
)

// fakeStatus is a canned CometBFT status endpoint.
type fakeStatus struct {
	res   *coretypes.ResultStatus
	err   error
	calls int32
}

func (f *fakeStatus) Status(ctx context.Context) (*coretypes.ResultStatus, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.res, f.err
}

func newStatus(network string, height int64, blockTime time.Time) *fakeStatus {
	return &fakeStatus{res: &coretypes.ResultStatus{
		NodeInfo: p2p.DefaultNodeInfo{Network: network},
		SyncInfo: coretypes.SyncInfo{
			LatestBlockHeight: height,
			LatestBlockTime:   blockTime,
		},
	}}
}

// mockEVMClient is a mock implementation of the EVM client for testing
type mockEVMClient struct {
	mock.Mock
}

func (m *mockEVMClient) BlockNumber(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockEVMClient) ChainID(ctx context.Context) (*big.Int, error) {
	args := m.Called(ctx)
	if id := args.Get(0); id != nil {
		return id.(*big.Int), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockEVMClient) Close() {
	m.Called()
}

func testConfig(name, serverURL string) Config {
	wsURL := "ws" + strings.TrimPrefix(serverURL, "http") + "/websocket"
	return Config{
		Name:          name,
		CoinGeckoID:   name,
		BasePrefix:    "osmo",
		ValoperPrefix: "osmovaloper",
		ConsPrefix:    "osmovalcons",
		MainDenom:     "uosmo",
		DecimalsPow:   100,
		RPCURL:        serverURL,
		RESTURL:       serverURL,
		WSSURL:        wsURL,
		SDKVersion:    45,
	}
}

type testChainOption func(*Options)

func withoutDB() testChainOption {
	return func(o *Options) { o.DB = nil }
}

// newTestChain builds an adapter with an in-memory database, fast retries
// and the given status client.
func newTestChain(t *testing.T, cfg Config, status StatusClient, opts ...testChainOption) *Chain {
	t.Helper()

	database, err := db.OpenInMemoryDB(true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	o := Options{
		HTTPClient:        &http.Client{Timeout: 5 * time.Second},
		DB:                database,
		Logger:            zerolog.New(zerolog.NewTestWriter(t)),
		EventStaleTimeout: time.Second,
		PriceRetention:    time.Hour,
	}
	for _, opt := range opts {
		opt(&o)
	}

	c, err := New(cfg, o)
	require.NoError(t, err)

	fast := &common.RetryConfig{
		MaxRetries:    1,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
	}
	c.rpcRetry = common.NewRetryManager(fast, zerolog.Nop())
	c.reconnect = common.NewRetryManager(&common.RetryConfig{
		InitialDelay:  10 * time.Millisecond,
		MaxDelay:      50 * time.Millisecond,
		BackoffFactor: 2.0,
	}, zerolog.Nop())
	c.rest.retry = &chainerrors.RetryConfig{
		MaxAttempts:     2,
		InitialDelay:    time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		Multiplier:      2.0,
		RetryableErrors: []chainerrors.ErrorCode{chainerrors.ErrCodeNetwork, chainerrors.ErrCodeRPC},
	}
	c.newStatusClient = func() (StatusClient, error) { return status, nil }
	return c
}

func TestNew(t *testing.T) {
	t.Run("rejects invalid config", func(t *testing.T) {
		cfg := testConfig("osmosis", "http://127.0.0.1:1")
		cfg.RESTURL = ""
		_, err := New(cfg, Options{Logger: zerolog.Nop()})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rest_url is required")
	})

	t.Run("applies defaults", func(t *testing.T) {
		c, err := New(testConfig("osmosis", "http://127.0.0.1:1"), Options{Logger: zerolog.Nop()})
		require.NoError(t, err)
		assert.Equal(t, "osmosis", c.Name())
		assert.Equal(t, defaultValidatorPageLimit, c.opts.ValidatorPageLimit)
		assert.Equal(t, defaultEventStaleTimeout, c.opts.EventStaleTimeout)
		assert.Equal(t, defaultPriceCurrency, c.opts.PriceCurrency)
		assert.NotNil(t, c.opts.HTTPClient)
		assert.Nil(t, c.DB())
	})

	t.Run("price feed key", func(t *testing.T) {
		cfg := testConfig("kyve", "http://127.0.0.1:1")
		cfg.CoinGeckoID = ""
		c, err := New(cfg, Options{Logger: zerolog.Nop()})
		require.NoError(t, err)
		_, ok := c.PriceFeedKey()
		assert.False(t, ok)
	})
}

func TestSnapshotIsACopy(t *testing.T) {
	c := newTestChain(t, testConfig("osmosis", "http://127.0.0.1:1"), newStatus("osmosis-1", 1, time.Now()))

	price := 2.0
	require.NoError(t, c.UpdatePrice(context.Background(), &price))

	snap := c.Snapshot()
	require.NotNil(t, snap.Price)
	*snap.Price = 99

	again := c.Snapshot()
	assert.Equal(t, 2.0, *again.Price)
	assert.Equal(t, "disconnected", again.Subscription)
	assert.Equal(t, "usd", again.PriceCurrency)
}

func TestClose(t *testing.T) {
	c := newTestChain(t, testConfig("evmos", "http://127.0.0.1:1"), newStatus("evmos_9001-2", 1, time.Now()))

	evm := new(mockEVMClient)
	evm.On("Close").Return().Once()
	c.evm = evm

	c.Close()
	c.Close()
	evm.AssertExpectations(t)
}

func TestRESTClient(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		switch r.URL.Path {
		case "/flaky":
			if n == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(`{"ok":true}`))
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/garbage":
			_, _ = w.Write([]byte(`{`))
		}
	}))
	defer server.Close()

	rest := NewRESTClient("osmosis", server.URL+"/", server.Client())
	rest.retry = &chainerrors.RetryConfig{
		MaxAttempts:     3,
		InitialDelay:    time.Millisecond,
		MaxDelay:        time.Millisecond,
		Multiplier:      1,
		RetryableErrors: []chainerrors.ErrorCode{chainerrors.ErrCodeRPC},
	}

	t.Run("retries server errors", func(t *testing.T) {
		var out struct{ OK bool }
		require.NoError(t, rest.GetJSON(context.Background(), "/flaky", nil, &out))
		assert.True(t, out.OK)
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		atomic.StoreInt32(&calls, 0)
		var out struct{}
		err := rest.GetJSON(context.Background(), "/missing", nil, &out)
		require.Error(t, err)
		assert.True(t, chainerrors.IsChainError(err, chainerrors.ErrCodeValidation))
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("decode errors", func(t *testing.T) {
		var out struct{}
		err := rest.GetJSON(context.Background(), "/garbage", nil, &out)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decode")
	})
}
