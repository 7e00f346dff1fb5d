// Package notify implements the notification bounded context: a coalescing
// dispatcher feeding Discord webhooks.
package notify

import (
	"context"

	"github.com/autobot-tf/pricewatch/business/notify/app"
	notifyDI "github.com/autobot-tf/pricewatch/business/notify/di"
	"github.com/autobot-tf/pricewatch/business/notify/infra/discord"
	pricelistDI "github.com/autobot-tf/pricewatch/business/pricelist/di"
	"github.com/autobot-tf/pricewatch/internal/config"
	"github.com/autobot-tf/pricewatch/internal/di"
	"github.com/autobot-tf/pricewatch/internal/logger"
	"github.com/autobot-tf/pricewatch/internal/monolith"
)

// Module implements the notify bounded context.
type Module struct{}

// RegisterServices registers the Discord sender and the dispatcher.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, notifyDI.Sender, func(sr di.ServiceRegistry) app.Sender {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		sender, err := discord.NewWebhook(discord.Config{
			PriceWebhookURLs: cfg.Discord.PriceWebhookURLs,
			KeyWebhookURLs:   cfg.Discord.KeyWebhookURLs,
			KeyMentionRoleID: cfg.Discord.KeyMentionRoleID,
		}, log)
		if err != nil {
			panic("failed to create discord webhook: " + err.Error())
		}
		return sender
	})

	di.RegisterToken(c, notifyDI.Dispatcher, func(sr di.ServiceRegistry) *app.Dispatcher {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		return app.NewDispatcher(notifyDI.GetSender(sr), cfg.Discord.RequestsPerMinute, log)
	})

	return nil
}

// Startup subscribes the dispatcher to the pricelist store and starts the
// drain loop. With Discord disabled the module is a no-op.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	if !mono.Config().Discord.Enabled {
		log.Info(ctx, "notify module disabled")
		return nil
	}

	dispatcher := notifyDI.GetDispatcher(mono.Services())
	pricelistDI.GetStore(mono.Services()).AddListener(dispatcher)
	dispatcher.Start(ctx)

	log.Info(ctx, "notify module started",
		"price_webhooks", len(mono.Config().Discord.PriceWebhookURLs),
		"key_webhooks", len(mono.Config().Discord.KeyWebhookURLs))
	return nil
}
