// Package di contains dependency injection tokens for the pricelist context.
package di

import (
	"github.com/autobot-tf/pricewatch/business/pricelist/app"
	"github.com/autobot-tf/pricewatch/internal/di"
)

// Public service tokens, exposed to other modules.
var (
	Store   = di.NewToken[*app.Store]("pricelist.Store")
	Monitor = di.NewToken[*app.Monitor]("pricelist.Monitor")
)

// Private dependency tokens, internal to the pricelist module.
var (
	Pricer = di.NewToken[app.Pricer]("pricelist:pricer")
)

func GetStore(c di.ServiceRegistry) *app.Store {
	return di.GetToken(c, Store)
}

func GetMonitor(c di.ServiceRegistry) *app.Monitor {
	return di.GetToken(c, Monitor)
}

func GetPricer(c di.ServiceRegistry) app.Pricer {
	return di.GetToken(c, Pricer)
}
