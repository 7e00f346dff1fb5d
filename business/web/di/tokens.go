// Package di exposes the web context's service tokens.
package di

import (
	webapp "github.com/autobot-tf/pricewatch/business/web/app"
	"github.com/autobot-tf/pricewatch/internal/di"
)

// Server resolves the JSON API server.
var Server = di.NewToken[*webapp.Server]("web.Server")

func GetServer(sr di.ServiceRegistry) *webapp.Server {
	return di.GetToken(sr, Server)
}
