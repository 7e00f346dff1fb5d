// Package di contains dependency injection tokens for the notify context.
package di

import (
	"github.com/autobot-tf/pricewatch/business/notify/app"
	"github.com/autobot-tf/pricewatch/internal/di"
)

// Dispatcher is public so main can stop it on shutdown.
var Dispatcher = di.NewToken[*app.Dispatcher]("notify.Dispatcher")

// Sender is private to the notify module.
var Sender = di.NewToken[app.Sender]("notify:sender")

func GetDispatcher(c di.ServiceRegistry) *app.Dispatcher {
	return di.GetToken(c, Dispatcher)
}

func GetSender(c di.ServiceRegistry) app.Sender {
	return di.GetToken(c, Sender)
}
