// Package di contains dependency injection tokens for the schema context.
package di

import (
	"github.com/autobot-tf/pricewatch/business/schema/app"
	"github.com/autobot-tf/pricewatch/internal/di"
)

// Service is public: the pricelist and web contexts resolve names through it.
var Service = di.NewToken[*app.Service]("schema.Service")

func GetService(c di.ServiceRegistry) *app.Service {
	return di.GetToken(c, Service)
}
