package infra

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Maker.Symbol == "" || cfg.API.RestURL == "" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
maker:
  symbol: BTCUSDT
  refresh_interval_ms: 500
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Maker.Symbol != "BTCUSDT" {
		t.Errorf("symbol = %q", cfg.Maker.Symbol)
	}
	if cfg.Maker.RefreshIntervalMS != 500 {
		t.Errorf("refresh = %d", cfg.Maker.RefreshIntervalMS)
	}
	// Untouched fields keep their defaults.
	if cfg.API.RestURL == "" {
		t.Error("defaults lost on partial file")
	}
}

func TestLoadConfig_EnvOverridesSecrets(t *testing.T) {
	t.Setenv("MEXC_API_KEY", "env-key")
	t.Setenv("MEXC_API_SECRET", "env-secret")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.API.APIKey != "env-key" || cfg.API.APISecret != "env-secret" {
		t.Errorf("env override not applied: %+v", cfg.API)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}

	bad := DefaultConfig()
	bad.API.WSURL = "http://not-a-ws-url"
	if err := bad.Validate(); err == nil {
		t.Error("non-ws URL should fail validation")
	}

	bad = DefaultConfig()
	bad.Maker.Symbol = ""
	if err := bad.Validate(); err == nil {
		t.Error("empty symbol should fail validation")
	}

	bad = DefaultConfig()
	bad.Maker.RefreshIntervalMS = 0
	if err := bad.Validate(); err == nil {
		t.Error("zero refresh interval should fail validation")
	}
}
