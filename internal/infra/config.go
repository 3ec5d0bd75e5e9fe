package infra

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration. Sensitive or
// deployment-specific values can be overridden through environment
// variables after loading.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Server struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Market struct {
		RestURL           string   `yaml:"rest_url"`
		WSURL             string   `yaml:"ws_url"` // Optional streaming feed
		Symbols           []string `yaml:"symbols"`
		RequestTimeoutSec int      `yaml:"request_timeout_sec"`
		FreshWindowSec    int      `yaml:"fresh_window_sec"`
		CacheTTLMin       int      `yaml:"cache_ttl_min"`
	} `yaml:"market"`

	Trading struct {
		InitialCash decimal.Decimal `yaml:"initial_cash"`
	} `yaml:"trading"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file, applies environment
// overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server listen address is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if c.Market.RestURL == "" || (!hasPrefix(c.Market.RestURL, "http://") && !hasPrefix(c.Market.RestURL, "https://")) {
		return fmt.Errorf("invalid market REST URL: %s", c.Market.RestURL)
	}
	if c.Market.WSURL != "" && !hasPrefix(c.Market.WSURL, "ws://") && !hasPrefix(c.Market.WSURL, "wss://") {
		return fmt.Errorf("invalid market WS URL: %s", c.Market.WSURL)
	}
	if c.Market.RequestTimeoutSec <= 0 {
		return fmt.Errorf("market request timeout must be positive")
	}

	if !c.Trading.InitialCash.IsPositive() {
		return fmt.Errorf("initial cash must be positive")
	}

	return nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[0:len(prefix)] == prefix
}

// overrideWithEnv applies environment variable overrides when present.
func overrideWithEnv(cfg *Config) {
	if addr := os.Getenv("AIGO_LISTEN_ADDR"); addr != "" {
		cfg.Server.ListenAddr = addr
	}
	if path := os.Getenv("AIGO_DB_PATH"); path != "" {
		cfg.Database.Path = path
	}
	if u := os.Getenv("AIGO_MARKET_REST_URL"); u != "" {
		cfg.Market.RestURL = u
	}
	if u := os.Getenv("AIGO_MARKET_WS_URL"); u != "" {
		cfg.Market.WSURL = u
	}
	if level := os.Getenv("AIGO_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}
