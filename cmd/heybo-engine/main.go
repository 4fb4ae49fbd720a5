// Package main runs the HeyBo ordering engine as a standalone backend
// for a single widget instance, such as an in-store kiosk. It wires the
// session manager, validators, recovery manager, recommendation
// resolver and rating service together, persists state in a JetStream
// key-value bucket when NATS is configured, and serves health and
// Prometheus metrics endpoints.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jrkphani/heybo-engine/config"
	"github.com/jrkphani/heybo-engine/errors"
	"github.com/jrkphani/heybo-engine/flow"
	"github.com/jrkphani/heybo-engine/health"
	"github.com/jrkphani/heybo-engine/menu"
	"github.com/jrkphani/heybo-engine/metric"
	"github.com/jrkphani/heybo-engine/natsclient"
	"github.com/jrkphani/heybo-engine/pkg/clock"
	"github.com/jrkphani/heybo-engine/rating"
	"github.com/jrkphani/heybo-engine/recommend"
	"github.com/jrkphani/heybo-engine/recovery"
	"github.com/jrkphani/heybo-engine/session"
	"github.com/jrkphani/heybo-engine/storage"
)

const (
	Version = "0.1.0"
	appName = "heybo-engine"

	ratingSubject    = "heybo.ratings.submitted"
	recommendSubject = "heybo.recommendations.fetch"

	ratingFlushInterval = time.Minute
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
		slog.Error("engine failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if cliCfg.ShowVersion {
		fmt.Printf("%s %s\n", appName, Version)
		return nil
	}
	if err := validateFlags(cliCfg); err != nil {
		return err
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	loader := config.NewLoader()
	loader.EnableValidation(true)
	if cliCfg.ConfigPath != "" {
		loader.AddLayer(cliCfg.ConfigPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if cliCfg.Validate {
		logger.Info("configuration is valid", "path", cliCfg.ConfigPath)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := metric.New()
	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	monitor := health.NewMonitor()

	nc, store, err := setupStorage(ctx, cfg, monitor, logger)
	if err != nil {
		return err
	}
	if nc != nil {
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), cliCfg.ShutdownTimeout)
			defer cancel()
			_ = nc.Close(closeCtx)
		}()
	}

	catalog, err := loadCatalog(cfg, monitor, logger)
	if err != nil {
		return err
	}

	sched := clock.NewSystem()
	rec := recovery.NewManager(sched, logger, metrics)
	sessions := session.NewManager(sched, session.NewRepository(store), rec, metrics, logger, cfg.Session)
	monitor.UpdateHealthy("sessions", "session manager running")

	ratings := rating.NewService(rating.NewStore(store), ratingSubmitter(nc), rec, metrics, logger, sched)
	if err := ratings.Start(ctx); err != nil {
		return fmt.Errorf("start rating delivery: %w", err)
	}
	defer func() {
		if err := ratings.Stop(cliCfg.ShutdownTimeout); err != nil {
			logger.Warn("rating delivery stop", "error", err)
		}
	}()
	monitor.UpdateHealthy("ratings", "delivery workers running")

	recommender := recommend.NewResolver(recommendSource(nc), catalog, rec, metrics, logger, sched, recommend.Options{})

	orchestrator, err := flow.NewOrchestrator(flow.Deps{
		Sessions:    sessions,
		Recovery:    rec,
		Recommender: recommender,
		Ratings:     ratings,
		Catalog:     catalog,
		Metrics:     metrics,
		Logger:      logger,
		Sched:       sched,
	})
	if err != nil {
		return fmt.Errorf("build flow orchestrator: %w", err)
	}

	go ratingFlushLoop(ctx, ratings, logger)

	srv := startHTTPServer(cliCfg.HealthPort, monitor, registry, orchestrator, logger)

	logger.Info("engine started",
		"configPath", cliCfg.ConfigPath,
		"healthPort", cliCfg.HealthPort,
		"natsConfigured", nc != nil,
	)

	<-ctx.Done()
	logger.Info("shutting down", "timeout", cliCfg.ShutdownTimeout)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cliCfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http server shutdown", "error", err)
		}
	}
	return nil
}

// setupStorage connects to NATS when configured and binds the session
// bucket. Without NATS, or when the bucket cannot be reached, the
// engine degrades to in-memory state so a kiosk keeps taking orders.
func setupStorage(ctx context.Context, cfg *config.Config, monitor *health.Monitor, logger *slog.Logger) (*natsclient.Client, storage.KV, error) {
	if len(cfg.NATS.URLs) == 0 {
		monitor.UpdateDegraded("store", "no NATS configured, sessions are in-memory only")
		return nil, storage.NewMemory(), nil
	}

	opts := []natsclient.Option{
		natsclient.WithName(appName),
		natsclient.WithLogger(logger),
		natsclient.WithHealthChange(func(healthy bool) {
			if healthy {
				monitor.UpdateHealthy("nats", "connected")
			} else {
				monitor.UpdateUnhealthy("nats", "connection lost")
			}
		}),
	}
	if cfg.NATS.MaxReconnects != 0 {
		opts = append(opts, natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects))
	}
	if cfg.NATS.ReconnectWait > 0 {
		opts = append(opts, natsclient.WithReconnectWait(cfg.NATS.ReconnectWait))
	}
	if cfg.NATS.Username != "" {
		opts = append(opts, natsclient.WithCredentials(cfg.NATS.Username, cfg.NATS.Password))
	}
	if cfg.NATS.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.NATS.Token))
	}

	nc, err := natsclient.New(cfg.NATS.URLs[0], opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("build NATS client: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := nc.Connect(connectCtx); err != nil {
		logger.Warn("NATS unreachable, degrading to in-memory sessions", "error", err)
		monitor.UpdateDegraded("store", "NATS unreachable, sessions are in-memory only")
		return nc, storage.NewMemory(), nil
	}

	js, err := nc.JetStream()
	if err != nil {
		return nc, storage.NewMemory(), nil
	}

	kvOpts := storage.DefaultNATSKVOptions()
	if cfg.NATS.Bucket != "" {
		kvOpts.Bucket = cfg.NATS.Bucket
	}
	kv, err := storage.NewNATSKV(ctx, js, kvOpts)
	if err != nil {
		logger.Warn("session bucket unavailable, degrading to in-memory sessions", "error", err)
		monitor.UpdateDegraded("store", "session bucket unavailable")
		return nc, storage.NewMemory(), nil
	}

	monitor.UpdateHealthy("store", "JetStream session bucket bound")
	return nc, kv, nil
}

// loadCatalog reads the ingredient catalog from the configured path,
// or starts with an empty catalog when none is configured.
func loadCatalog(cfg *config.Config, monitor *health.Monitor, logger *slog.Logger) (*menu.Catalog, error) {
	if cfg.Catalog.Path == "" {
		monitor.UpdateDegraded("catalog", "no catalog configured")
		return menu.NewCatalog(nil, nil)
	}

	data, err := os.ReadFile(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", cfg.Catalog.Path, err)
	}
	catalog, err := menu.LoadCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", cfg.Catalog.Path, err)
	}

	logger.Info("catalog loaded", "path", cfg.Catalog.Path)
	monitor.UpdateHealthy("catalog", "catalog loaded")
	return catalog, nil
}

// ratingSubmitter publishes submitted ratings to the order platform.
// Without a connection every delivery fails, which parks ratings on
// the durable retry queue until connectivity returns.
func ratingSubmitter(nc *natsclient.Client) rating.SubmitterFunc {
	return func(_ context.Context, r rating.Rating) error {
		if nc == nil {
			return errors.ErrStoreUnavailable
		}
		conn := nc.Conn()
		if conn == nil || !conn.IsConnected() {
			return natsclient.ErrNotConnected
		}
		payload, err := json.Marshal(r)
		if err != nil {
			return err
		}
		return conn.Publish(ratingSubject, payload)
	}
}

// recommendSource requests personalized recommendations over NATS.
// Failures here are absorbed by the resolver's fallback chain.
func recommendSource(nc *natsclient.Client) recommend.SourceFunc {
	return func(ctx context.Context, q recommend.Query) ([]recommend.Item, float64, error) {
		if nc == nil {
			return nil, 0, errors.ErrSourceUnavailable
		}
		conn := nc.Conn()
		if conn == nil || !conn.IsConnected() {
			return nil, 0, natsclient.ErrNotConnected
		}

		payload, err := json.Marshal(q)
		if err != nil {
			return nil, 0, err
		}
		msg, err := conn.RequestWithContext(ctx, recommendSubject, payload)
		if err != nil {
			return nil, 0, err
		}

		var resp struct {
			Recommendations []recommend.Item `json:"recommendations"`
			Confidence      float64          `json:"confidence"`
		}
		if err := json.Unmarshal(msg.Data, &resp); err != nil {
			return nil, 0, err
		}
		return resp.Recommendations, resp.Confidence, nil
	}
}

// ratingFlushLoop periodically retries queued ratings.
func ratingFlushLoop(ctx context.Context, ratings *rating.Service, logger *slog.Logger) {
	ticker := time.NewTicker(ratingFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ratings.Flush(ctx); err != nil {
				logger.Warn("rating flush", "error", err)
			}
		}
	}
}

func startHTTPServer(port int, monitor *health.Monitor, registry *prometheus.Registry, orchestrator *flow.Orchestrator, logger *slog.Logger) *http.Server {
	if port == 0 {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/healthz", monitor.Handler(appName))
	mux.Handle("/readyz", monitor.Handler(appName))
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/state", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(orchestrator.State(r.Context()))
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", "error", err)
		}
	}()
	return srv
}
