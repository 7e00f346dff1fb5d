// Package web implements the presentation bounded context: the public JSON
// API over the in-memory pricelist.
package web

import (
	"context"

	historyapp "github.com/autobot-tf/pricewatch/business/history/app"
	historyDI "github.com/autobot-tf/pricewatch/business/history/di"
	pricelistDI "github.com/autobot-tf/pricewatch/business/pricelist/di"
	"github.com/autobot-tf/pricewatch/business/web/app"
	webDI "github.com/autobot-tf/pricewatch/business/web/di"
	"github.com/autobot-tf/pricewatch/internal/config"
	"github.com/autobot-tf/pricewatch/internal/di"
	"github.com/autobot-tf/pricewatch/internal/logger"
	"github.com/autobot-tf/pricewatch/internal/monolith"
)

// Module implements the web bounded context.
type Module struct{}

// RegisterServices registers the JSON API server.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, webDI.Server, func(sr di.ServiceRegistry) *app.Server {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		var journal *historyapp.Journal
		if cfg.History.Enabled {
			journal = historyDI.GetJournal(sr)
		}

		return app.NewServer(app.Config{
			Port:              cfg.Web.Port,
			RequestsPerMinute: cfg.Web.RequestsPerMinute,
			ReadTimeout:       cfg.Web.ReadTimeout,
			WriteTimeout:      cfg.Web.WriteTimeout,
			ShutdownTimeout:   cfg.Web.ShutdownTimeout,
		}, pricelistDI.GetStore(sr), pricelistDI.GetPricer(sr), journal, log)
	})

	return nil
}

// Startup brings the HTTP listener up. It runs last so every read already
// sees a fully initialized store.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	server := webDI.GetServer(mono.Services())
	server.Start(ctx)
	return nil
}
