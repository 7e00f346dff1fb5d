// Package schema implements the item schema bounded context.
package schema

import (
	"context"

	"github.com/autobot-tf/pricewatch/business/schema/app"
	schemaDI "github.com/autobot-tf/pricewatch/business/schema/di"
	"github.com/autobot-tf/pricewatch/internal/di"
	"github.com/autobot-tf/pricewatch/internal/logger"
	"github.com/autobot-tf/pricewatch/internal/monolith"
)

// Module implements the schema bounded context.
type Module struct{}

// RegisterServices registers the schema service.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, schemaDI.Service, func(sr di.ServiceRegistry) *app.Service {
		log := sr.Get("logger").(logger.LoggerInterface)
		return app.NewService(log)
	})
	return nil
}

// Startup loads the local items file, if configured.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	svc := schemaDI.GetService(mono.Services())
	if err := svc.LoadFile(ctx, mono.Config().Schema.ItemsFile); err != nil {
		return err
	}
	mono.Logger().Info(ctx, "schema module started")
	return nil
}
