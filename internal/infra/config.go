package infra

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the viewer and maker binaries.
// Secrets are overridden from the environment after the file is parsed.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	API struct {
		RestURL   string `yaml:"rest_url"`
		WSURL     string `yaml:"ws_url"`
		APIKey    string `yaml:"api_key"`
		APISecret string `yaml:"api_secret"`
	} `yaml:"api"`

	Maker MakerConfig `yaml:"maker"`

	Viewer struct {
		DepthLevels int `yaml:"depth_levels"`
	} `yaml:"viewer"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// MakerConfig carries the quoting-loop knobs. Defaults mirror a conservative
// small-account setup; the exchange's symbol filters can widen increments and
// precisions at startup.
type MakerConfig struct {
	Symbol     string `yaml:"symbol"`
	LedgerPath string `yaml:"ledger_path"`

	QuoteBudget     float64 `yaml:"quote_budget"`
	MinQuoteOrder   float64 `yaml:"min_quote_order"`
	MinBaseQuantity float64 `yaml:"min_base_quantity"`

	SpreadBPS         float64 `yaml:"spread_bps"`
	MinEdgeBPS        float64 `yaml:"min_edge_bps"`
	InventoryTarget   float64 `yaml:"inventory_target"`
	InventoryTol      float64 `yaml:"inventory_tolerance"`
	MaxInventoryRatio float64 `yaml:"max_inventory_ratio"`
	EscapeBPS         float64 `yaml:"escape_bps"`
	EscapeHystBPS     float64 `yaml:"escape_hysteresis_bps"`
	MakerFee          float64 `yaml:"maker_fee"`
	TakerFee          float64 `yaml:"taker_fee"`

	QuantityIncrement float64 `yaml:"quantity_increment"`
	QuoteIncrement    float64 `yaml:"quote_increment"`
	PricePrecision    int     `yaml:"price_precision"`
	QuantityPrecision int     `yaml:"quantity_precision"`
	QuotePrecision    int     `yaml:"quote_precision"`

	MaxDrawdownPct float64 `yaml:"max_drawdown_pct"`
	MaxDrawdownUSD float64 `yaml:"max_drawdown_usd"`

	RefreshIntervalMS         int `yaml:"refresh_interval_ms"`
	AccountStalenessMS        int `yaml:"account_staleness_ms"`
	OrderStatusPollMS         int `yaml:"order_status_poll_ms"`
	OrderStatusTimeoutMS      int `yaml:"order_status_timeout_ms"`
	RiskCooldownMS            int `yaml:"risk_cooldown_ms"`
	TakerEscapeCooldownMS     int `yaml:"taker_escape_cooldown_ms"`
	MaxTakerEscapesPerMin     int `yaml:"max_taker_escapes_per_min"`
	RateLimitBackoffMSInitial int `yaml:"rate_limit_backoff_ms_initial"`
	RateLimitBackoffMSMax     int `yaml:"rate_limit_backoff_ms_max"`
	FillPollIntervalMS        int `yaml:"fill_poll_interval_ms"`
	MinEscapeIntervalMS       int `yaml:"min_escape_interval_ms"`
}

// DefaultConfig returns the built-in configuration used when no config file
// is present.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.App.Name = "mexc-go"
	cfg.App.Version = "dev"
	cfg.API.RestURL = "https://api.mexc.com/api/v3"
	cfg.API.WSURL = "wss://wbs-api.mexc.com/ws"
	cfg.Maker = DefaultMakerConfig()
	cfg.Viewer.DepthLevels = 10
	cfg.Logging.Level = "info"
	return cfg
}

// DefaultMakerConfig mirrors the defaults the maker ran with before the
// config file existed.
func DefaultMakerConfig() MakerConfig {
	return MakerConfig{
		Symbol:                    "SPYXUSDT",
		LedgerPath:                "", // resolved under the workspace dir when empty
		QuoteBudget:               10.0,
		MinQuoteOrder:             1.0,
		MinBaseQuantity:           0.0005,
		SpreadBPS:                 20.0,
		MinEdgeBPS:                5.0,
		InventoryTarget:           0.5,
		InventoryTol:              0.10,
		MaxInventoryRatio:         0.8,
		EscapeBPS:                 25.0,
		EscapeHystBPS:             5.0,
		MakerFee:                  0.0,
		TakerFee:                  0.0005,
		QuantityIncrement:         0.0001,
		QuoteIncrement:            0.01,
		PricePrecision:            4,
		QuantityPrecision:         4,
		QuotePrecision:            2,
		MaxDrawdownPct:            0.2,
		MaxDrawdownUSD:            10.0,
		RefreshIntervalMS:         1000,
		AccountStalenessMS:        2000,
		OrderStatusPollMS:         200,
		OrderStatusTimeoutMS:      2000,
		RiskCooldownMS:            60000,
		TakerEscapeCooldownMS:     5000,
		MaxTakerEscapesPerMin:     6,
		RateLimitBackoffMSInitial: 750,
		RateLimitBackoffMSMax:     10000,
		FillPollIntervalMS:        2000,
		MinEscapeIntervalMS:       1500,
	}
}

// LoadConfig reads and parses the config file. A missing file is not an
// error: the built-in defaults are returned so the viewer can run without
// any local setup. Environment variables override file-provided secrets.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.API.RestURL, "http://") && !strings.HasPrefix(c.API.RestURL, "https://") {
		return fmt.Errorf("invalid REST URL: %s", c.API.RestURL)
	}
	if !strings.HasPrefix(c.API.WSURL, "ws://") && !strings.HasPrefix(c.API.WSURL, "wss://") {
		return fmt.Errorf("invalid WS URL: %s", c.API.WSURL)
	}
	if c.Maker.Symbol == "" {
		return fmt.Errorf("maker symbol is required")
	}
	if c.Maker.RefreshIntervalMS <= 0 {
		return fmt.Errorf("refresh interval must be positive")
	}
	if c.Maker.PricePrecision < 0 || c.Maker.QuantityPrecision < 0 || c.Maker.QuotePrecision < 0 {
		return fmt.Errorf("precisions must be non-negative")
	}
	if c.Viewer.DepthLevels <= 0 {
		return fmt.Errorf("viewer depth levels must be positive")
	}
	return nil
}

// overrideWithEnv applies environment variables over file values. Secrets in
// the environment always win over secrets in the file.
func overrideWithEnv(cfg *Config) {
	if cfg.API.APIKey != "" || cfg.API.APISecret != "" {
		fmt.Println("⚠️  SECURITY WARNING: API secrets found in config file.")
		fmt.Println("   Recommendation: use MEXC_API_KEY / MEXC_API_SECRET instead.")
	}

	if key := os.Getenv("MEXC_API_KEY"); key != "" {
		cfg.API.APIKey = key
	}
	if secret := os.Getenv("MEXC_API_SECRET"); secret != "" {
		cfg.API.APISecret = secret
	}
}
