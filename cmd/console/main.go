package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/melih/lighthouse-console/internal/adapters/backend"
	"github.com/melih/lighthouse-console/internal/adapters/http"
	"github.com/melih/lighthouse-console/internal/adapters/prefs"
	"github.com/melih/lighthouse-console/internal/adapters/push"
	"github.com/melih/lighthouse-console/internal/adapters/view"
	"github.com/melih/lighthouse-console/internal/config"
	"github.com/melih/lighthouse-console/internal/core/cache"
	"github.com/melih/lighthouse-console/internal/core/services"
	"github.com/melih/lighthouse-console/internal/observability"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	configPath string
	listen     string
	backendURL string
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:          "lighthouse-console",
		Short:        "Live board and drag-and-drop console for a Lighthouse backend",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	cmd.Flags().StringVar(&opts.listen, "listen", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&opts.backendURL, "backend", "", "backend base URL (overrides config)")
	return cmd
}

func loadConfig(opts options) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if opts.listen != "" {
		cfg.Listen = opts.listen
	}
	if opts.backendURL != "" {
		cfg.Backend.BaseURL = opts.backendURL
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func run(ctx context.Context, opts options) error {
	// 1. Configuration and logging
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger := cfg.Logger()

	// 2. Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	// 3. Initialize Adapters (Infrastructure)
	dataCache := cache.New(cfg.CacheOptions(), cache.WithObserver(metrics))

	client, err := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout,
		backend.WithLogger(logger.With("component", "backend")))
	if err != nil {
		return fmt.Errorf("failed to initialize backend client: %w", err)
	}

	dialer, err := push.NewDialer(cfg.Backend.BaseURL, cfg.Backend.PushPath,
		push.WithLogger(logger.With("component", "push")))
	if err != nil {
		return fmt.Errorf("failed to initialize push dialer: %w", err)
	}

	store, err := prefs.Open(cfg.Preferences.File, logger.With("component", "prefs"))
	if err != nil {
		return fmt.Errorf("failed to open preferences: %w", err)
	}

	board := view.NewBoard(nil)

	// 4. Sync engine
	svc := services.NewSyncService(cfg.ServiceConfig(), services.Dependencies{
		Backend: client,
		Dialer:  dialer,
		Prefs:   store,
		Surface: board,
		Cache:   dataCache,
		Metrics: metrics,
		Logger:  logger,
	})
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start sync service: %w", err)
	}
	defer svc.Stop()

	go func() {
		err := store.Watch(ctx, func(v prefs.Values) {
			logger.Info("preferences changed on disk", "auto_update", v.AutoUpdate, "refresh_interval", v.RefreshInterval)
			if err := svc.PreferencesChanged(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("failed to apply preferences", "error", err)
			}
		})
		if err != nil {
			logger.Warn("preferences watcher stopped", "error", err)
		}
	}()

	// 5. HTTP Handlers (Interface Adapters)
	consoleHandler := http.NewConsoleHandler(svc, board, store)

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	api := app.Group("/api")
	v1 := api.Group("/v1")
	consoleHandler.Register(v1)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	if cfg.Proxy.Enabled {
		proxy := http.NewProxyHandler(client.BaseURL(), "/backend", svc, dataCache,
			cfg.Proxy.CachePrefixes, metrics, logger.With("component", "proxy"))
		app.All("/backend/*", proxy.ProxyRequest)
	}

	// 6. Start Server
	errCh := make(chan error, 1)
	go func() {
		logger.Info("console listening", "addr", cfg.Listen, "backend", cfg.Backend.BaseURL)
		errCh <- app.Listen(cfg.Listen)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
