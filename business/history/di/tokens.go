// Package di contains dependency injection tokens for the history context.
package di

import (
	"github.com/autobot-tf/pricewatch/business/history/app"
	"github.com/autobot-tf/pricewatch/internal/di"
)

// Journal is public: the web context reads history through it.
var Journal = di.NewToken[*app.Journal]("history.Journal")

// Recorder is private to the history module.
var Recorder = di.NewToken[app.Recorder]("history:recorder")

func GetJournal(c di.ServiceRegistry) *app.Journal {
	return di.GetToken(c, Journal)
}

func GetRecorder(c di.ServiceRegistry) app.Recorder {
	return di.GetToken(c, Recorder)
}
