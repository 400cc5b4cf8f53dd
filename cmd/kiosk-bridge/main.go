package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/BrandonDHaskell/kioskauth/internal/bridge"
	"github.com/BrandonDHaskell/kioskauth/internal/config"
	"github.com/BrandonDHaskell/kioskauth/internal/kiosk/types"
)

func main() {
	logger := log.New(os.Stdout, "kiosk-bridge ", log.LstdFlags|log.LUTC)

	cfg, err := config.BridgeFromEnv()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	logger.Printf("config gateway=%s post_path=%s device=%s source=%s debounce=%s wire=%s",
		cfg.GatewayURL, cfg.PostPath, cfg.DeviceID, cfg.Source, cfg.Debounce(), cfg.Wire)

	source := types.Source(cfg.Source)
	if !source.Valid() {
		logger.Fatalf("config: unsupported source %q", cfg.Source)
	}

	in, name, err := openReader(cfg.ReaderPath)
	if err != nil {
		logger.Fatalf("open reader: %v", err)
	}
	defer in.Close()

	poster := bridge.NewPoster(bridge.PosterConfig{
		GatewayURL: cfg.GatewayURL,
		DeviceID:   cfg.DeviceID,
		Routes:     bridge.Routes{types.KindTag: cfg.PostPath},
		Wire:       bridge.Wire(cfg.Wire),
	}, logger)

	adapter := bridge.NewAdapter(bridge.AdapterConfig{
		DeviceID:          cfg.DeviceID,
		Source:            source,
		Debounce:          cfg.Debounce(),
		HeartbeatInterval: cfg.HeartbeatInterval(),
	}, bridge.NewLineReader(name, in), poster, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Printf("waiting for card reads on %s", name)
	if err := adapter.Run(ctx); err != nil {
		logger.Printf("bridge stopped: %v", err)
	}
	logger.Printf("shutting down")
}

func openReader(path string) (io.ReadCloser, string, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), "stdin", nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	return f, path, nil
}
