// Package main is the entry point for the livedash service.
//
// It loads configuration, builds the state window, the ingestion engine, and
// the live-stream hub, wires the HTTP API on the core chassis (middleware,
// routing, health check), and starts serving. The engine begins ticking
// immediately; the control API can pause, reconfigure, or resume it at
// runtime.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"livedash/internal/api/handlers"
	"livedash/internal/config"
	"livedash/internal/core"
	"livedash/internal/engine"
	"livedash/internal/stream"
	"livedash/internal/window"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("livedash starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
		"mode", cfg.Engine.Mode,
		"interval_ms", cfg.Engine.IntervalMs,
	)

	win := window.New(cfg.Engine.HistoryCapacity)
	hub := stream.NewHub(logger)

	eng := engine.New(engine.Config{
		Window:      win,
		Mode:        cfg.Engine.Mode,
		Interval:    time.Duration(cfg.Engine.IntervalMs) * time.Millisecond,
		EndpointURL: cfg.Remote.EndpointURL,
		SensorIDs:   cfg.Engine.SensorIDs,
		Seed:        cfg.Engine.Seed,
		HTTPClient:  &http.Client{Timeout: cfg.Remote.Timeout},
		UserAgent:   cfg.Remote.UserAgent,
		Sink:        hub,
		Logger:      logger,
	})

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		handlers.NewTelemetryHandler(eng, logger).RegisterRoutes,
		handlers.NewControlHandler(eng, srv.Validator, logger).RegisterRoutes,
		handlers.NewExportHandler(eng, logger).RegisterRoutes,
		handlers.NewLiveHandler(eng, hub, logger).RegisterRoutes,
	)
	srv.MountRoutes()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		eng.Start()
		<-gctx.Done()
		eng.Close()
		return nil
	})

	g.Go(func() error {
		logger.Info("http server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("livedash stopped")
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: false,
	})
	return slog.New(handler)
}
