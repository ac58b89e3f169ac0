package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/chainwatch/chainwatch/constant"
)

//go:embed default_config.json
var defaultConfigJSON []byte

func validateConfig(cfg *Config) error {
	// Validate log level
	if cfg.LogLevel < 0 || cfg.LogLevel > 5 {
		return fmt.Errorf("log level must be between 0 and 5")
	}

	// Validate log format
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return fmt.Errorf("log format must be 'json' or 'console'")
	}

	if cfg.QueryServerPort == 0 {
		cfg.QueryServerPort = 8080
	}
	if cfg.QueryServerPort < 0 || cfg.QueryServerPort > 65535 {
		return fmt.Errorf("query server port must be between 1 and 65535")
	}

	if cfg.HTTPTimeoutSeconds == 0 {
		cfg.HTTPTimeoutSeconds = 30
	}

	// Set defaults for the refresh schedule
	if cfg.DataRefreshIntervalSeconds == 0 {
		cfg.DataRefreshIntervalSeconds = 60
	}
	if cfg.PriceRefreshIntervalSeconds == 0 {
		cfg.PriceRefreshIntervalSeconds = 300
	}
	if cfg.DatabaseRefreshIntervalSeconds == 0 {
		cfg.DatabaseRefreshIntervalSeconds = 3600
	}
	if cfg.RefreshTimeoutSeconds == 0 {
		cfg.RefreshTimeoutSeconds = 120
	}

	// Set defaults for the price feed
	if cfg.CoinGeckoBaseURL == "" {
		cfg.CoinGeckoBaseURL = "https://api.coingecko.com/api/v3"
	}
	if u, err := url.Parse(cfg.CoinGeckoBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("coingecko base url %q is not an absolute url", cfg.CoinGeckoBaseURL)
	}
	if cfg.PriceCurrency == "" {
		cfg.PriceCurrency = "usd"
	}
	cfg.PriceCurrency = strings.ToLower(cfg.PriceCurrency)
	if cfg.PriceRetentionSeconds == 0 {
		cfg.PriceRetentionSeconds = 604800
	}

	if cfg.ValidatorPageLimit == 0 {
		cfg.ValidatorPageLimit = 200
	}
	if cfg.EventStaleTimeoutSeconds == 0 {
		cfg.EventStaleTimeoutSeconds = 120
	}

	if cfg.HTTPTimeoutSeconds < 0 || cfg.DataRefreshIntervalSeconds < 0 ||
		cfg.PriceRefreshIntervalSeconds < 0 || cfg.DatabaseRefreshIntervalSeconds < 0 ||
		cfg.RefreshTimeoutSeconds < 0 || cfg.ValidatorPageLimit < 0 || cfg.EventStaleTimeoutSeconds < 0 ||
		cfg.PriceRetentionSeconds < 0 {
		return fmt.Errorf("intervals, timeouts and limits must not be negative")
	}

	return nil
}

// LoadDefaultConfig returns the embedded default configuration.
func LoadDefaultConfig() (Config, error) {
	var cfg Config
	if err := json.Unmarshal(defaultConfigJSON, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal default config: %w", err)
	}
	if err := validateConfig(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid default config: %w", err)
	}
	return cfg, nil
}

// Save writes the given config to <NodeDir>/config/chainwatch_config.json.
func Save(cfg *Config, basePath string) error {
	if err := validateConfig(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	configDir := filepath.Join(basePath, constant.ConfigSubdir)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := filepath.Join(configDir, constant.ConfigFileName)
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Load reads the config from <BasePath>/config/chainwatch_config.json.
// Every key can be overridden with a CHAINWATCH_<KEY> environment variable,
// e.g. CHAINWATCH_LOG_LEVEL=0.
func Load(basePath string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(filepath.Join(basePath, constant.ConfigSubdir, constant.ConfigFileName))
	v.SetConfigType("json")
	v.SetEnvPrefix(constant.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := registerDefaults(v); err != nil {
		return Config{}, err
	}

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.NodeHome == "" {
		cfg.NodeHome = basePath
	}

	if err := validateConfig(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// registerDefaults makes every known key visible to viper so that
// environment overrides apply even when the file omits the key.
func registerDefaults(v *viper.Viper) error {
	var defaults map[string]any
	if err := json.Unmarshal(defaultConfigJSON, &defaults); err != nil {
		return fmt.Errorf("failed to unmarshal default config: %w", err)
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return nil
}
