package app

import (
	"log/slog"
	"strings"

	"github.com/joho/godotenv"

	"mexc_go/internal/infra"
)

// Bootstrap orchestrates the startup sequence shared by the viewer and the
// maker: environment, configuration, logging, banner.
type Bootstrap struct {
	Config *infra.Config
}

// NewBootstrap creates a new Bootstrap instance.
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization. symbolOverride, when
// non-empty, replaces the configured symbol (uppercased). trading selects
// the banner variant.
func (b *Bootstrap) Initialize(symbolOverride string, trading bool) error {
	// Secrets come from .env when present; a missing file is fine.
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		return err
	}
	if symbolOverride != "" {
		cfg.Maker.Symbol = strings.ToUpper(symbolOverride)
	}
	b.Config = cfg

	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	infra.PrintBanner(cfg, trading)

	if err := infra.EnsureDir(infra.GetWorkspaceDir()); err != nil {
		return err
	}

	return nil
}
