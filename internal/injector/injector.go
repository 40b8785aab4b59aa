//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/playscope/internal/core/dom"
	"github.com/zeusync/playscope/internal/core/runtime"
)

func InitializeApp(doc *dom.Document, cfg runtime.Config) *App {
	wire.Build(ProviderSet)
	return nil
}
