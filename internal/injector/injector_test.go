package injector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/playscope/internal/core/dom"
	"github.com/zeusync/playscope/internal/core/platform"
	"github.com/zeusync/playscope/internal/core/runtime"
	"github.com/zeusync/playscope/internal/core/scope"
)

func TestInitializeAppWiresLauncherToBridge(t *testing.T) {
	doc, err := dom.ParseString(`<div id="game"><section class="screen"></section></div>`)
	require.NoError(t, err)
	doc.MarkReady()

	app := InitializeApp(doc, runtime.Config{LogLevel: "error", FrameRate: 24})
	require.NotNil(t, app.Runtime)
	require.NotNil(t, app.Scripts)
	assert.Equal(t, 24, app.Runtime.Config().FrameRate)
	assert.Equal(t, "pl-", app.Runtime.Prefix())

	g := app.Launcher.Register("#game", nil, nil)
	app.Launcher.Boot(context.Background())
	require.Equal(t, scope.StateInitialized, app.Launcher.State())
	assert.True(t, g.Running())
	assert.Equal(t, []string{platform.EventInit}, app.Bridge.Sent())
}
