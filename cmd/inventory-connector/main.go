// Package main implements the inventory-connector entry point. The
// connector links one tenant inventory (a SQL table or a REST endpoint) to
// the hub and answers the hub's inventory queries.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Gondolav/inventory-connector/config"
	errs "github.com/Gondolav/inventory-connector/errors"
	"github.com/Gondolav/inventory-connector/health"
	"github.com/Gondolav/inventory-connector/hubclient"
	"github.com/Gondolav/inventory-connector/metric"
	"github.com/Gondolav/inventory-connector/pkg/retry"
	"github.com/Gondolav/inventory-connector/pkg/tlsutil"
	"github.com/Gondolav/inventory-connector/querier"
	"github.com/Gondolav/inventory-connector/router"
	"github.com/Gondolav/inventory-connector/translate"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "inventory-connector"
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

	if err := run(os.Args[1:]); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run(args []string) error {
	if err := loadEnvFile(args); err != nil {
		return err
	}

	settings := &Settings{}
	cmd := newRootCmd(settings, func(cmd *cobra.Command) error {
		return serve(cmd.Context(), settings)
	})
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

// serve loads the tenant configuration and runs the connector until a
// shutdown signal or a fatal hub error
func serve(ctx context.Context, s *Settings) error {
	logger := setupLogger(s.LogLevel, s.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting inventory connector",
		"version", Version,
		"build_time", BuildTime,
		"config_path", s.ConfigPath)

	// configuration errors surface before any connection is attempted
	cfg, err := config.Parse(s.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if s.Validate {
		slog.Info("Configuration is valid", "tenant", cfg.ID, "kind", cfg.Kind)
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := metric.NewMetricsRegistry()
	monitor := health.NewMonitor()
	tr := translate.New(cfg.Fields)

	q, err := connectBackend(ctx, cfg, tr, s, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := q.Disconnect(); err != nil {
			slog.Warn("Backend disconnect failed", "error", err)
		}
		slog.Info("Backend disconnected")
	}()
	monitor.Update("backend", health.NewHealthy("backend", "connected"))

	m, embedder, err := buildMatcher(s, cfg, logger)
	if err != nil {
		return err
	}
	if embedder != nil {
		defer embedder.Close()
	}

	backend := strings.ToLower(string(cfg.Kind))
	rt := router.New(q, m,
		router.WithQueryTimeout(s.QueryTimeout),
		router.WithMetrics(registry.CoreMetrics(), backend),
		router.WithLogger(logger))

	hubCfg, err := hubConfig(s, cfg)
	if err != nil {
		return err
	}
	client, err := hubclient.New(hubCfg, rt,
		hubclient.WithLogger(logger),
		hubclient.WithMetrics(registry.CoreMetrics()),
		hubclient.WithPoolMetrics(registry))
	if err != nil {
		return fmt.Errorf("create hub client: %w", err)
	}
	monitor.Update("hub", client.Health())
	client.OnStateChange(func(_, _ hubclient.State) {
		monitor.Update("hub", client.Health())
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.Run(gctx)
	})
	if s.MetricsPort > 0 {
		srv := metric.NewServer(s.MetricsPort, "/metrics", registry, func() health.Status {
			return monitor.AggregateHealth(appName)
		})
		slog.Info("Serving metrics", "address", srv.Address())
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down")
		return client.Close()
	})

	slog.Info("Inventory connector started", "tenant", cfg.ID, "backend", backend, "matcher", s.Matcher)
	if err := g.Wait(); err != nil {
		return fmt.Errorf("connector stopped: %w", err)
	}
	slog.Info("Inventory connector shutdown complete")
	return nil
}

// connectBackend creates the querier and connects it, retrying transient
// failures
func connectBackend(
	ctx context.Context,
	cfg *config.Config,
	tr *translate.Translator,
	s *Settings,
	logger *slog.Logger,
) (querier.Querier, error) {
	opts := []querier.Option{querier.WithLogger(logger)}
	if s.APIRateLimit > 0 {
		opts = append(opts, querier.WithRateLimit(s.APIRateLimit, s.APIBurst))
	}

	q, err := querier.New(cfg, tr, opts...)
	if err != nil {
		return nil, fmt.Errorf("create querier: %w", err)
	}

	slog.Info("Connecting to backend", "kind", cfg.Kind)
	if err := connectWithRetry(ctx, q, errs.DefaultRetryConfig()); err != nil {
		_ = q.Disconnect()
		return nil, fmt.Errorf("connect backend: %w", err)
	}
	return q, nil
}

// connectWithRetry connects q, retrying only the errors rc.ShouldRetry
// accepts
func connectWithRetry(ctx context.Context, q querier.Querier, rc errs.RetryConfig) error {
	attempt := 0
	return retry.Do(ctx, rc.ToRetryConfig(), func() error {
		err := q.Connect(ctx)
		if err == nil {
			return nil
		}
		if !rc.ShouldRetry(err, attempt) {
			return retry.NonRetryable(err)
		}
		attempt++
		slog.Warn("Backend not reachable yet", "attempt", attempt, "class", errs.Classify(err), "error", err)
		return err
	})
}

func hubConfig(s *Settings, cfg *config.Config) (hubclient.Config, error) {
	hubCfg := hubclient.DefaultConfig(s.HubURL, cfg.Token)
	hubCfg.PingInterval = s.PingInterval
	hubCfg.Workers = s.Workers
	hubCfg.QueueSize = s.QueueSize
	hubCfg.Reconnect.MaxRetries = s.HubMaxRetries
	if s.ShutdownTimeout > 0 {
		hubCfg.DrainTimeout = s.ShutdownTimeout
	}

	tlsCfg := tlsutil.ClientConfig{
		CAFiles:            s.HubCAFiles,
		CertFile:           s.HubCertFile,
		KeyFile:            s.HubKeyFile,
		MinVersion:         s.HubTLSMinVersion,
		InsecureSkipVerify: s.HubInsecureSkipVerify,
	}
	if !tlsCfg.Empty() {
		tc, err := tlsutil.LoadClientConfig(tlsCfg)
		if err != nil {
			return hubCfg, fmt.Errorf("load hub TLS config: %w", err)
		}
		if s.HubInsecureSkipVerify {
			slog.Warn("Hub certificate verification is disabled")
		}
		hubCfg.TLS = tc
	}
	return hubCfg, nil
}
