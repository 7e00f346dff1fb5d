// Package main is the entry point for the pricewatch service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/autobot-tf/pricewatch/business/history"
	historyDI "github.com/autobot-tf/pricewatch/business/history/di"
	"github.com/autobot-tf/pricewatch/business/notify"
	notifyDI "github.com/autobot-tf/pricewatch/business/notify/di"
	"github.com/autobot-tf/pricewatch/business/pricelist"
	pricelistDI "github.com/autobot-tf/pricewatch/business/pricelist/di"
	"github.com/autobot-tf/pricewatch/business/schema"
	"github.com/autobot-tf/pricewatch/business/web"
	webDI "github.com/autobot-tf/pricewatch/business/web/di"
	"github.com/autobot-tf/pricewatch/internal/apm"
	"github.com/autobot-tf/pricewatch/internal/config"
	"github.com/autobot-tf/pricewatch/internal/health"
	"github.com/autobot-tf/pricewatch/internal/logger"
	"github.com/autobot-tf/pricewatch/internal/metrics"
	"github.com/autobot-tf/pricewatch/internal/monolith"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("pricewatch %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(os.Stderr, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, nil)
	log.Info(ctx, "starting pricewatch",
		"version", version,
		"environment", cfg.App.Environment,
	)

	// Observability is optional and never blocks startup.
	var traceProvider apm.TraceProvider
	if cfg.Telemetry.Enabled {
		traceProvider, err = apm.NewTraceProvider(ctx, apm.ProviderConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Exporter:    apm.Exporter(cfg.Telemetry.TraceExporter),
			Endpoint:    cfg.Telemetry.OTLPEndpoint,
			Headers:     cfg.Telemetry.OTLPHeadersMap(),
			Insecure:    cfg.Telemetry.OTLPInsecure,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		log.Info(ctx, "tracing initialized", "exporter", cfg.Telemetry.TraceExporter)

		metricProvider, err := metrics.NewProvider(ctx,
			metrics.WithServiceName(cfg.Telemetry.ServiceName),
			metrics.WithExporter(metrics.ExporterCfg{Exporter: metrics.ExporterPrometheus}),
		)
		if err != nil {
			return fmt.Errorf("failed to initialize metrics: %w", err)
		}
		defer metricProvider.Shutdown(context.Background())

		go func() {
			if err := metrics.ServePrometheusMetrics(cfg.Telemetry.PrometheusPort); err != nil {
				log.Warn(ctx, "prometheus metrics server stopped", "error", err)
			}
		}()
		log.Info(ctx, "prometheus metrics server started", "port", cfg.Telemetry.PrometheusPort)
	}
	defer func() {
		if traceProvider != nil {
			if err := traceProvider.Stop(); err != nil {
				log.Warn(ctx, "failed to stop trace provider", "error", err)
			}
		}
	}()

	healthServer := health.NewServer(cfg.Health.Port, version, log)

	mono := monolith.New(cfg, log)

	// Listener modules start before pricelist so they subscribe to the
	// store before the stream connects. Web starts last so every request
	// sees an initialized store.
	modules := []monolith.Module{
		&schema.Module{},
		&notify.Module{},
		&history.Module{},
		&pricelist.Module{},
		&web.Module{},
	}

	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}

	store := pricelistDI.GetStore(mono.Services())
	pricer := pricelistDI.GetPricer(mono.Services())
	healthServer.RegisterCheck("pricelist", func(ctx context.Context) (bool, string) {
		if !store.Initialized() {
			return false, "pricelist not initialized"
		}
		return true, fmt.Sprintf("%d entries", store.Len())
	})
	healthServer.RegisterCheck("price_stream", func(ctx context.Context) (bool, string) {
		if pricer.IsConnected() {
			return true, "connected"
		}
		if pricer.IsConnecting() {
			return false, "connecting"
		}
		return false, "disconnected"
	})
	if cfg.History.Enabled {
		recorder := historyDI.GetRecorder(mono.Services())
		healthServer.RegisterCheck("history", func(ctx context.Context) (bool, string) {
			if pinger, ok := recorder.(interface{ Ping(context.Context) error }); ok {
				if err := pinger.Ping(ctx); err != nil {
					return false, err.Error()
				}
			}
			return true, "ok"
		})
	}

	if err := healthServer.Start(); err != nil {
		log.Warn(ctx, "failed to start health server", "error", err)
	} else {
		log.Info(ctx, "health server started", "port", cfg.Health.Port)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := healthServer.Stop(stopCtx); err != nil {
			log.Warn(ctx, "failed to stop health server", "error", err)
		}
	}()

	if err := mono.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}
	log.Info(ctx, "all modules started")

	<-ctx.Done()
	log.Info(ctx, "shutting down")

	shutdown(cfg, log, mono)
	return nil
}

// shutdown drains the pipeline back to front: stop the monitor first so no
// new reconciliation starts, close the upstream connection, then drain the
// web server and the listeners.
func shutdown(cfg *config.Config, log logger.LoggerInterface, mono monolith.Monolith) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pricelistDI.GetMonitor(mono.Services()).Stop()

	if err := pricelistDI.GetPricer(mono.Services()).Shutdown(ctx); err != nil {
		log.Error(ctx, "error shutting down pricer", "error", err)
	}

	if err := webDI.GetServer(mono.Services()).Stop(ctx); err != nil {
		log.Error(ctx, "error stopping web server", "error", err)
	}

	if cfg.Discord.Enabled {
		notifyDI.GetDispatcher(mono.Services()).Stop()
	}

	if cfg.History.Enabled {
		if err := historyDI.GetJournal(mono.Services()).Stop(); err != nil {
			log.Error(ctx, "error closing history journal", "error", err)
		}
	}

	log.Info(ctx, "shutdown complete")
}
