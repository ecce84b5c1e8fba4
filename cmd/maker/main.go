package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"mexc_go/internal/app"
	"mexc_go/internal/infra"
	"mexc_go/internal/maker"
	"mexc_go/internal/mexc"
	"mexc_go/internal/storage"
)

func main() {
	symbol := ""
	if len(os.Args) > 1 {
		symbol = os.Args[1]
	}

	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(symbol, true); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	cfg := bootstrap.Config

	if cfg.API.APIKey == "" || cfg.API.APISecret == "" {
		slog.Error("MEXC_API_KEY / MEXC_API_SECRET are required for trading")
		os.Exit(1)
	}

	client := mexc.NewClient(cfg.API.RestURL, cfg.API.APIKey, cfg.API.APISecret)
	defer client.Close()

	serverTime, err := client.ServerTime()
	if err != nil {
		slog.Error("MEXC connectivity check failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("MEXC connectivity check",
		"server_time", serverTime,
		"rest_latency_ms", client.LastRequestMS())

	storePath := infra.DefaultFillStorePath(cfg.Maker.Symbol)
	if err := infra.EnsureDir(filepath.Dir(storePath)); err != nil {
		slog.Error("Failed to prepare data directory", slog.Any("error", err))
		os.Exit(1)
	}
	fillStore, err := storage.NewFillStore(storePath)
	if err != nil {
		slog.Error("Failed to open fill archive", slog.Any("error", err))
		os.Exit(1)
	}
	defer fillStore.Close()

	sessionStart := time.Now().UnixMilli()
	if err := fillStore.UpsertMetadata(context.Background(), "session_start",
		strconv.FormatInt(sessionStart, 10), sessionStart); err != nil {
		slog.Warn("Failed to record session start", slog.Any("error", err))
	}

	quoter, err := maker.New(client, cfg.Maker, fillStore)
	if err != nil {
		slog.Error("Failed to initialize quoter", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := quoter.Run(ctx); err != nil {
		slog.Error("Quoter halted", slog.Any("error", err))
		quoter.CancelAllQuotes()
		os.Exit(1)
	}

	slog.Info("Shutting down; cancelling open quotes")
	quoter.CancelAllQuotes()
}
