package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mexc_go/internal/app"
	"mexc_go/internal/book"
	"mexc_go/internal/mexc"
	"mexc_go/internal/view"
)

func main() {
	symbol := ""
	if len(os.Args) > 1 {
		symbol = os.Args[1]
	}

	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(symbol, false); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	cfg := bootstrap.Config

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rest := mexc.NewClient(cfg.API.RestURL, cfg.API.APIKey, cfg.API.APISecret)
	defer rest.Close()

	ws := mexc.NewWsClient(cfg.API.WSURL)

	slog.Info("Connecting to MEXC WebSocket...", "url", cfg.API.WSURL)
	ws.Connect(ctx)

	// Give the dialer a moment before issuing the subscription.
	for i := 0; i < 50 && !ws.IsConnected(); i++ {
		time.Sleep(100 * time.Millisecond)
	}
	if !ws.IsConnected() {
		slog.Error("Failed to connect to WebSocket")
		ws.Close()
		os.Exit(1)
	}

	manager := book.NewManager(cfg.Maker.Symbol)
	display := view.NewDisplay(cfg.Maker.Symbol, cfg.Viewer.DepthLevels)

	manager.SetUpdateSink(func(snapshot book.Snapshot) {
		display.Render(snapshot, manager.LatencyTracker().FormatStats())
	})

	if !manager.Subscribe(ws, rest) {
		slog.Error("Depth subscription failed")
		manager.ClearUpdateSink()
		ws.Close()
		os.Exit(1)
	}

	slog.Info("Viewer running; Ctrl+C to exit", "symbol", cfg.Maker.Symbol)
	<-ctx.Done()

	// Shutdown order matters: stop the stream, clear the sink (draining any
	// in-flight render), then close the transports.
	manager.Unsubscribe(ws)
	manager.ClearUpdateSink()
	ws.Close()

	slog.Info("Viewer stopped")
}
