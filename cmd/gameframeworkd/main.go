// Package main implements the bridge daemon: it hosts the message
// routing and binary transfer bridge between an embedded game engine and
// a UI frontend, speaking NATS or WebSocket to the UI side and exposing
// Prometheus metrics.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/gameframework/bridge"
	"github.com/xraph/gameframework/config"
	"github.com/xraph/gameframework/engine"
	"github.com/xraph/gameframework/metric"
	"github.com/xraph/gameframework/router"
	"github.com/xraph/gameframework/transfer"
	"github.com/xraph/gameframework/transport"
	"github.com/xraph/gameframework/transport/natsbridge"
	"github.com/xraph/gameframework/transport/wsbridge"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "gameframeworkd"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("daemon failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	cfg, err := loadConfig(cliCfg.ConfigPath)
	if err != nil {
		return err
	}

	if cliCfg.Validate {
		logger.Info("configuration is valid")
		return nil
	}

	logger.Info("starting bridge daemon",
		"version", Version,
		"transport", cfg.Transport.Kind,
		"config_path", cliCfg.ConfigPath,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsRegistry := metric.NewMetricsRegistry()

	tr, err := buildTransport(cfg, logger)
	if err != nil {
		return err
	}

	b := bridge.New(tr, engine.NewHeadless(logger),
		bridge.WithLogger(logger),
		bridge.WithMetrics(metricsRegistry.CoreMetrics()),
		bridge.WithChunkSize(cfg.Transfer.ChunkSize),
		bridge.WithRouterOptions(
			router.WithQueueing(cfg.Router.QueueUnknownTargets),
			router.WithMaxQueueSize(cfg.Router.MaxQueueSize),
		),
		bridge.WithTransferOptions(
			transfer.WithTTL(cfg.Transfer.TTL),
			transfer.WithMaxActive(cfg.Transfer.MaxActive),
		),
	)

	if err := b.Start(ctx); err != nil {
		return fmt.Errorf("start bridge: %w", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)

	if cfg.Metrics.Enabled {
		group.Go(func() error {
			return serveMetrics(groupCtx, cfg.Metrics.Addr, metricsRegistry, logger)
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down", "timeout", cliCfg.ShutdownTimeout)

		// Tear the engine down first so stale state cannot leak into a
		// restarted session, then close the transport side.
		b.Quit()

		done := make(chan error, 1)
		go func() { done <- b.Close() }()
		select {
		case err := <-done:
			return err
		case <-time.After(cliCfg.ShutdownTimeout):
			return fmt.Errorf("shutdown timed out after %s", cliCfg.ShutdownTimeout)
		}
	})

	return group.Wait()
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.DefaultConfig(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func buildTransport(cfg config.Config, logger *slog.Logger) (transport.Transport, error) {
	switch cfg.Transport.Kind {
	case config.TransportNATS:
		return natsbridge.New(cfg.Transport.NATS.URL,
			natsbridge.WithSubjectPrefix(cfg.Transport.NATS.SubjectPrefix),
			natsbridge.WithName(cfg.Transport.NATS.Name),
			natsbridge.WithMaxReconnects(cfg.Transport.NATS.MaxReconnects),
			natsbridge.WithReconnectWait(cfg.Transport.NATS.ReconnectWait),
			natsbridge.WithCredentials(cfg.Transport.NATS.Username, cfg.Transport.NATS.Password),
			natsbridge.WithToken(cfg.Transport.NATS.Token),
			natsbridge.WithLogger(logger),
		)

	case config.TransportWebSocket:
		return wsbridge.New(cfg.Transport.WebSocket.Addr,
			wsbridge.WithPath(cfg.Transport.WebSocket.Path),
			wsbridge.WithLogger(logger),
		)

	default:
		// Loopback: both ends live in this process. The peer endpoint is
		// only useful for smoke testing, so it runs started but silent.
		engineSide, uiSide := transport.NewLoopbackPair()
		if err := uiSide.Start(context.Background()); err != nil {
			return nil, err
		}
		logger.Warn("using loopback transport, no external UI can connect")
		return engineSide, nil
	}
}

func serveMetrics(ctx context.Context, addr string, registry *metric.MetricsRegistry, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		registry.PrometheusRegistry(),
		promhttp.HandlerOpts{},
	))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint started", "addr", addr, "path", "/metrics")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
