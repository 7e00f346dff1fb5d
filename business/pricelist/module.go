// Package pricelist implements the price synchronization bounded context:
// the in-memory store, the feed client and the feed health monitor.
package pricelist

import (
	"context"

	"github.com/autobot-tf/pricewatch/business/pricelist/app"
	pricelistDI "github.com/autobot-tf/pricewatch/business/pricelist/di"
	"github.com/autobot-tf/pricewatch/business/pricelist/infra/pricestf"
	schemaDI "github.com/autobot-tf/pricewatch/business/schema/di"
	"github.com/autobot-tf/pricewatch/internal/config"
	"github.com/autobot-tf/pricewatch/internal/di"
	"github.com/autobot-tf/pricewatch/internal/logger"
	"github.com/autobot-tf/pricewatch/internal/monolith"
)

// Module implements the pricelist bounded context.
type Module struct{}

// RegisterServices registers the feed client, the store and the monitor.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, pricelistDI.Pricer, func(sr di.ServiceRegistry) app.Pricer {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		pricer, err := pricestf.NewPricer(pricestf.Config{
			APIURL:              cfg.Pricer.APIURL,
			WebSocketURL:        cfg.Pricer.WebSocketURL,
			PageLimit:           cfg.Pricer.PageLimit,
			PageDelay:           cfg.Pricer.PageDelay,
			MaxSnapshotAttempts: cfg.Pricer.MaxSnapshotAttempts,
			SnapshotBackoff:     cfg.Pricer.SnapshotBackoff,
			ServerErrorDelay:    cfg.Pricer.ServerErrorDelay,
			MaxReconnects:       cfg.Pricer.MaxReconnects,
			InitialBackoff:      cfg.Pricer.InitialBackoff,
			MaxBackoff:          cfg.Pricer.MaxBackoff,
		}, log)
		if err != nil {
			panic("failed to create prices.tf client: " + err.Error())
		}
		return pricer
	})

	di.RegisterToken(c, pricelistDI.Store, func(sr di.ServiceRegistry) *app.Store {
		log := sr.Get("logger").(logger.LoggerInterface)
		pricer := pricelistDI.GetPricer(sr)
		schema := schemaDI.GetService(sr)

		store, err := app.NewStore(pricer, schema, log)
		if err != nil {
			panic("failed to create pricelist store: " + err.Error())
		}
		return store
	})

	di.RegisterToken(c, pricelistDI.Monitor, func(sr di.ServiceRegistry) *app.Monitor {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		return app.NewMonitor(app.MonitorConfig{
			Interval:      cfg.Monitor.Interval,
			IdleThreshold: cfg.Monitor.IdleThreshold,
			Cooldown:      cfg.Monitor.Cooldown,
		}, pricelistDI.GetStore(sr), pricelistDI.GetPricer(sr), log)
	})

	return nil
}

// Startup runs the store initialization protocol and starts the health
// monitor. Initialization failure aborts startup.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	store := pricelistDI.GetStore(mono.Services())
	if err := store.Init(ctx); err != nil {
		return err
	}

	monitor := pricelistDI.GetMonitor(mono.Services())
	monitor.Start(ctx)

	log.Info(ctx, "pricelist module started", "entries", store.Len())
	return nil
}
