package config

import "time"

type Config struct {
	// Log Config
	LogLevel   int    `json:"log_level" mapstructure:"log_level"`     // e.g., 0 = debug, 1 = info, etc.
	LogFormat  string `json:"log_format" mapstructure:"log_format"`   // "json" or "console"
	LogSampler bool   `json:"log_sampler" mapstructure:"log_sampler"` // if true, samples logs (e.g., 1 in 5)

	// Node Config
	NodeHome string `json:"node_home" mapstructure:"node_home"` // Node home directory (default: ~/.chainwatch)

	// Query Server Config
	QueryServerPort int `json:"query_server_port" mapstructure:"query_server_port"` // Port for HTTP query server (default: 8080)

	// Shared HTTP client used by every chain adapter and the price feed
	HTTPTimeoutSeconds int `json:"http_timeout_seconds" mapstructure:"http_timeout_seconds"` // default: 30

	// Refresh schedule
	DataRefreshIntervalSeconds     int `json:"data_refresh_interval_seconds" mapstructure:"data_refresh_interval_seconds"`         // default: 60
	PriceRefreshIntervalSeconds    int `json:"price_refresh_interval_seconds" mapstructure:"price_refresh_interval_seconds"`       // default: 300
	DatabaseRefreshIntervalSeconds int `json:"database_refresh_interval_seconds" mapstructure:"database_refresh_interval_seconds"` // default: 3600
	RefreshTimeoutSeconds          int `json:"refresh_timeout_seconds" mapstructure:"refresh_timeout_seconds"`                     // per run bound (default: 120)

	// Price feed
	CoinGeckoBaseURL string `json:"coingecko_base_url" mapstructure:"coingecko_base_url"` // default: https://api.coingecko.com/api/v3
	PriceCurrency    string `json:"price_currency" mapstructure:"price_currency"`         // default: usd

	// Price history kept in each chain database
	PriceRetentionSeconds int `json:"price_retention_seconds" mapstructure:"price_retention_seconds"` // default: 604800 (7 days)

	// Validator database
	ValidatorPageLimit int `json:"validator_page_limit" mapstructure:"validator_page_limit"` // default: 200

	// Event subscription
	EventStaleTimeoutSeconds int `json:"event_stale_timeout_seconds" mapstructure:"event_stale_timeout_seconds"` // reconnect when no block arrives (default: 120)
}

func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

func (c *Config) DataRefreshInterval() time.Duration {
	return time.Duration(c.DataRefreshIntervalSeconds) * time.Second
}

func (c *Config) PriceRefreshInterval() time.Duration {
	return time.Duration(c.PriceRefreshIntervalSeconds) * time.Second
}

func (c *Config) DatabaseRefreshInterval() time.Duration {
	return time.Duration(c.DatabaseRefreshIntervalSeconds) * time.Second
}

func (c *Config) RefreshTimeout() time.Duration {
	return time.Duration(c.RefreshTimeoutSeconds) * time.Second
}

func (c *Config) PriceRetention() time.Duration {
	return time.Duration(c.PriceRetentionSeconds) * time.Second
}

func (c *Config) EventStaleTimeout() time.Duration {
	return time.Duration(c.EventStaleTimeoutSeconds) * time.Second
}
