package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/playscope/internal/core/dom"
	"github.com/zeusync/playscope/internal/core/observability/log"
	"github.com/zeusync/playscope/internal/core/platform"
	"github.com/zeusync/playscope/internal/core/scope"
	"github.com/zeusync/playscope/internal/injector"
	"github.com/zeusync/playscope/internal/manifest"
)

func main() {
	manifestPath := flag.String("manifest", "playscope.yaml", "manifest declaring components and games")
	htmlPath := flag.String("html", "index.html", "HTML document the games bind to")
	frames := flag.Int("frames", 0, "frames to run before exiting, 0 runs until interrupted")
	watch := flag.Bool("watch", false, "reload scripts when their files change")
	wsURL := flag.String("ws", "", "platform host websocket URL")
	level := flag.String("log-level", "", "overrides the manifest log level")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *manifestPath, *htmlPath, *frames, *watch, *wsURL, *level); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "playscope:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, manifestPath, htmlPath string, frames int, watch bool, wsURL, level string) error {
	m, err := manifest.LoadFile(manifestPath)
	if err != nil {
		return err
	}
	if level != "" {
		m.Runtime.LogLevel = level
	}
	doc, err := parseDocument(htmlPath)
	if err != nil {
		return err
	}

	app := injector.InitializeApp(doc, m.Runtime)
	rt := app.Runtime
	logger := rt.Logger().With(log.String("component", "main"))
	defer rt.Close()

	if _, err := m.Build(rt, app.Launcher, app.Scripts); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	clock := rt.Scheduler()
	if wsURL != "" {
		host, err := platform.DialHost(ctx, wsURL, rt.Logger())
		if err != nil {
			return err
		}
		defer host.Close()
		app.Bridge.SetHost(host)
		g.Go(func() error {
			return host.Pump(ctx, func(raw []byte) error {
				clock.Post(func() {
					if err := app.Bridge.Receive(raw); err != nil {
						logger.Warn("platform message dropped", log.Error(err))
					}
				})
				return nil
			})
		})
	}

	if watch {
		files := []string{manifestPath}
		for path := range m.ScriptFiles() {
			files = append(files, path)
		}
		w, err := manifest.NewWatcher(rt.Logger(), files...)
		if err != nil {
			return err
		}
		defer w.Close()
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case path, ok := <-w.Events():
					if !ok {
						return nil
					}
					clock.Post(func() { reload(m, app, logger, manifestPath, path) })
				}
			}
		})
	}

	app.Launcher.Boot(ctx)
	doc.MarkReady()
	if app.Launcher.State() == scope.StateFailed {
		return app.Launcher.Err()
	}

	g.Go(func() error {
		defer func() {
			for _, game := range app.Launcher.Games() {
				game.Quit()
			}
			app.Launcher.Close()
		}()
		if err := clock.Run(ctx, rt.Config().FrameRate, uint64(frames)); err != nil {
			return err
		}
		logger.Info("frame budget spent", log.Int("frames", frames))
		return errFramesDone
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errFramesDone) {
		return err
	}
	return nil
}

// errFramesDone ends the run group once the frame budget is spent.
var errFramesDone = errors.New("frame budget spent")

func reload(m *manifest.Manifest, app *injector.App, logger log.Log, manifestPath, path string) {
	ok, err := m.Reload(app.Scripts, path)
	switch {
	case err != nil:
		logger.Error("script reload failed", log.String("path", path), log.Error(err))
	case ok:
		logger.Info("script reloaded", log.String("path", path))
	default:
		logger.Warn("manifest changed, restart to apply", log.String("manifest", manifestPath))
	}
}

func parseDocument(path string) (*dom.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return dom.Parse(f)
}
