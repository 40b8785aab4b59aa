package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/playscope/internal/core/dom"
	"github.com/zeusync/playscope/internal/core/observability/log"
	"github.com/zeusync/playscope/internal/core/platform"
	"github.com/zeusync/playscope/internal/core/runtime"
	"github.com/zeusync/playscope/internal/core/scope"
	"github.com/zeusync/playscope/internal/core/script"
)

// App is everything a host process needs to boot games from a document.
type App struct {
	Runtime  *runtime.Runtime
	Launcher *scope.Launcher
	Bridge   *platform.Bridge
	Scripts  *script.Library
}

var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideRuntime,
	ProvideBridge,
	ProvideLauncher,
	ProvideScripts,
	wire.Struct(new(App), "*"),
)

// ProvideLogger builds a logger at the configured level. The first one built
// becomes the process logger.
func ProvideLogger(cfg runtime.Config) log.Log {
	return log.New(cfg.Merge(runtime.DefaultConfig()).Level())
}

func ProvideRuntime(doc *dom.Document, cfg runtime.Config, logger log.Log) *runtime.Runtime {
	return runtime.New(doc, cfg, logger)
}

// ProvideBridge attaches the platform bridge to the document root.
func ProvideBridge(rt *runtime.Runtime) *platform.Bridge {
	return platform.NewBridge(rt.Document().Root(), rt.Events(), rt.Logger())
}

func ProvideLauncher(rt *runtime.Runtime, bridge *platform.Bridge) *scope.Launcher {
	return scope.NewLauncher(rt, bridge)
}

func ProvideScripts(logger log.Log) *script.Library {
	return script.NewLibrary(logger)
}
