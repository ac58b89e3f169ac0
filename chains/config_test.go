package chains

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigs(t *testing.T) {
	configs := DefaultConfigs()

	names := make([]string, 0, len(configs))
	for _, cfg := range configs {
		require.NoError(t, cfg.Validate(), cfg.Name)
		names = append(names, cfg.Name)
	}
	assert.Equal(t, []string{"axelar", "evmos", "kyve", "osmosis", "secret"}, names)

	t.Run("kyve has no price feed", func(t *testing.T) {
		for _, cfg := range configs {
			key, ok := cfg.PriceFeedKey()
			if cfg.Name == "kyve" {
				assert.False(t, ok)
				assert.Empty(t, key)
				continue
			}
			assert.True(t, ok)
			assert.Equal(t, cfg.Name, key)
		}
	})

	t.Run("only evmos exposes json-rpc", func(t *testing.T) {
		for _, cfg := range configs {
			if cfg.Name == "evmos" {
				assert.NotEmpty(t, cfg.JSONRPCURL)
				assert.Equal(t, int64(100000000000000), cfg.DecimalsPow)
				continue
			}
			assert.Empty(t, cfg.JSONRPCURL, cfg.Name)
		}
	})

	t.Run("returns a fresh table", func(t *testing.T) {
		a := DefaultConfigs()
		a[0].Name = "changed"
		assert.Equal(t, "axelar", DefaultConfigs()[0].Name)
	})
}

func TestConfigValidate(t *testing.T) {
	base := DefaultConfigs()[3]

	testCases := []struct {
		name     string
		mutate   func(*Config)
		errorMsg string
	}{
		{"missing name", func(c *Config) { c.Name = "" }, "name is required"},
		{"missing denom", func(c *Config) { c.MainDenom = "" }, "main_denom is required"},
		{"decimals not power of ten", func(c *Config) { c.DecimalsPow = 250 }, "not a positive power of ten"},
		{"decimals one", func(c *Config) { c.DecimalsPow = 1 }, "not a positive power of ten"},
		{"negative decimals", func(c *Config) { c.DecimalsPow = -100 }, "not a positive power of ten"},
		{"sdk version", func(c *Config) { c.SDKVersion = 0 }, "sdk_version must be positive"},
		{"rpc scheme", func(c *Config) { c.RPCURL = "ftp://rpc.example.com" }, "rpc_url"},
		{"wss scheme", func(c *Config) { c.WSSURL = "https://rpc.example.com/websocket" }, "wss_url"},
		{"rest without host", func(c *Config) { c.RESTURL = "https://" }, "has no host"},
		{"bad json-rpc", func(c *Config) { c.JSONRPCURL = "eth.example.com" }, "jsonrpc_url"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errorMsg)
		})
	}
}

func TestIsPowerOfTen(t *testing.T) {
	for _, n := range []int64{10, 100, 1000000, 100000000000000} {
		assert.True(t, isPowerOfTen(n), n)
	}
	for _, n := range []int64{-10, 0, 1, 11, 20, 1001} {
		assert.False(t, isPowerOfTen(n), n)
	}
}
