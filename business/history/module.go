// Package history implements the price history bounded context: a sqlite
// journal of accepted price changes.
package history

import (
	"context"

	"github.com/autobot-tf/pricewatch/business/history/app"
	historyDI "github.com/autobot-tf/pricewatch/business/history/di"
	"github.com/autobot-tf/pricewatch/business/history/infra/sqlite"
	pricelistDI "github.com/autobot-tf/pricewatch/business/pricelist/di"
	"github.com/autobot-tf/pricewatch/internal/config"
	"github.com/autobot-tf/pricewatch/internal/di"
	"github.com/autobot-tf/pricewatch/internal/logger"
	"github.com/autobot-tf/pricewatch/internal/monolith"
)

// Module implements the history bounded context.
type Module struct{}

// RegisterServices registers the sqlite recorder and the journal.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, historyDI.Recorder, func(sr di.ServiceRegistry) app.Recorder {
		cfg := sr.Get("config").(*config.Config)
		store, err := sqlite.Open(cfg.History.Path)
		if err != nil {
			panic("failed to open history database: " + err.Error())
		}
		return store
	})

	di.RegisterToken(c, historyDI.Journal, func(sr di.ServiceRegistry) *app.Journal {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		return app.NewJournal(historyDI.GetRecorder(sr), cfg.History.Retention, log)
	})

	return nil
}

// Startup subscribes the journal to the pricelist store and starts the
// retention sweep. With history disabled the module is a no-op.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	if !mono.Config().History.Enabled {
		log.Info(ctx, "history module disabled")
		return nil
	}

	journal := historyDI.GetJournal(mono.Services())
	pricelistDI.GetStore(mono.Services()).AddListener(journal)
	journal.StartRetention(ctx)

	log.Info(ctx, "history module started", "path", mono.Config().History.Path)
	return nil
}
