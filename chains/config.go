package chains

import (
	"fmt"
	"net/url"
)

// Config describes one monitored network. CoinGeckoID is empty for
// networks without a market price.
type Config struct {
	Name          string `json:"name"`
	CoinGeckoID   string `json:"coingecko_id,omitempty"`
	BasePrefix    string `json:"base_prefix"`
	ValoperPrefix string `json:"valoper_prefix"`
	ConsPrefix    string `json:"cons_prefix"`
	MainDenom     string `json:"main_denom"`
	DecimalsPow   int64  `json:"decimals_pow"` // divisor turning base-denom amounts into display units
	RPCURL        string `json:"rpc_url"`
	JSONRPCURL    string `json:"jsonrpc_url,omitempty"`
	RESTURL       string `json:"rest_url"`
	WSSURL        string `json:"wss_url"`
	SDKVersion    int    `json:"sdk_version"` // minor version of the cosmos-sdk, e.g. 45 for v0.45
}

// DefaultConfigs is the compiled-in registry, in registry order.
func DefaultConfigs() []Config {
	return []Config{
		{
			Name:          "axelar",
			CoinGeckoID:   "axelar",
			BasePrefix:    "axelar",
			ValoperPrefix: "axelarvaloper",
			ConsPrefix:    "axelarvalcons",
			MainDenom:     "uaxl",
			DecimalsPow:   100,
			RPCURL:        "https://rpc.cosmos.directory/axelar",
			RESTURL:       "https://axelar-api.polkachu.com",
			WSSURL:        "wss://axelar-rpc.chainode.tech/websocket",
			SDKVersion:    45,
		},
		{
			Name:          "evmos",
			CoinGeckoID:   "evmos",
			BasePrefix:    "evmos",
			ValoperPrefix: "evmosvaloper",
			ConsPrefix:    "evmosvalcons",
			MainDenom:     "aevmos",
			DecimalsPow:   100000000000000,
			RPCURL:        "https://rpc.cosmos.directory/evmos",
			JSONRPCURL:    "https://eth.bd.evmos.org:8545/",
			RESTURL:       "https://evmos-api.polkachu.com",
			WSSURL:        "wss://rpc-evmos.ecostake.com/websocket",
			SDKVersion:    45,
		},
		{
			Name:          "kyve",
			BasePrefix:    "kyve",
			ValoperPrefix: "kyvevaloper",
			ConsPrefix:    "kyvevalcons",
			MainDenom:     "tkyve",
			DecimalsPow:   100,
			RPCURL:        "https://rpc.beta.kyve.network",
			RESTURL:       "https://api.beta.kyve.network",
			WSSURL:        "wss://rpc.beta.kyve.network/websocket",
			SDKVersion:    45,
		},
		{
			Name:          "osmosis",
			CoinGeckoID:   "osmosis",
			BasePrefix:    "osmo",
			ValoperPrefix: "osmovaloper",
			ConsPrefix:    "osmovalcons",
			MainDenom:     "uosmo",
			DecimalsPow:   100,
			RPCURL:        "https://rpc.cosmos.directory/osmosis",
			RESTURL:       "https://rest.cosmos.directory/osmosis",
			WSSURL:        "wss://rpc.osmosis.interbloc.org/websocket",
			SDKVersion:    45,
		},
		{
			Name:          "secret",
			CoinGeckoID:   "secret",
			BasePrefix:    "secret",
			ValoperPrefix: "secretvaloper",
			ConsPrefix:    "secretvalcons",
			MainDenom:     "uscrt",
			DecimalsPow:   100,
			RPCURL:        "https://rpc.cosmos.directory/secretnetwork",
			RESTURL:       "https://rest.cosmos.directory/secretnetwork",
			WSSURL:        "wss://scrt-rpc.blockpane.com/websocket",
			SDKVersion:    45,
		},
	}
}

// PriceFeedKey returns the price-feed identifier and whether the chain takes
// part in price updates at all.
func (c Config) PriceFeedKey() (string, bool) {
	return c.CoinGeckoID, c.CoinGeckoID != ""
}

// Validate rejects a config with a missing field, a malformed URL or a
// scaling factor that is not a positive power of ten.
func (c Config) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"name", c.Name},
		{"base_prefix", c.BasePrefix},
		{"valoper_prefix", c.ValoperPrefix},
		{"cons_prefix", c.ConsPrefix},
		{"main_denom", c.MainDenom},
		{"rpc_url", c.RPCURL},
		{"rest_url", c.RESTURL},
		{"wss_url", c.WSSURL},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("chain %q: %s is required", c.Name, r.field)
		}
	}

	if !isPowerOfTen(c.DecimalsPow) {
		return fmt.Errorf("chain %q: decimals_pow %d is not a positive power of ten", c.Name, c.DecimalsPow)
	}
	if c.SDKVersion <= 0 {
		return fmt.Errorf("chain %q: sdk_version must be positive", c.Name)
	}

	urls := []struct {
		field   string
		value   string
		schemes []string
	}{
		{"rpc_url", c.RPCURL, []string{"http", "https"}},
		{"rest_url", c.RESTURL, []string{"http", "https"}},
		{"wss_url", c.WSSURL, []string{"ws", "wss"}},
		{"jsonrpc_url", c.JSONRPCURL, []string{"http", "https"}},
	}
	for _, u := range urls {
		if u.value == "" {
			continue
		}
		if err := checkURL(u.value, u.schemes); err != nil {
			return fmt.Errorf("chain %q: %s: %w", c.Name, u.field, err)
		}
	}
	return nil
}

func checkURL(raw string, schemes []string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Host == "" {
		return fmt.Errorf("%q has no host", raw)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%q must use one of the schemes %v", raw, schemes)
}

func isPowerOfTen(n int64) bool {
	if n < 10 {
		return false
	}
	for n%10 == 0 {
		n /= 10
	}
	return n == 1
}
