package manifest

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zeusync/playscope/internal/core/observability/log"
)

const debounce = 100 * time.Millisecond

// Watcher reports changes to a fixed set of files, such as a manifest and
// its scripts. Directories are watched so editors that replace files on
// save are still seen.
type Watcher struct {
	fs     *fsnotify.Watcher
	files  map[string]struct{}
	events chan string
	errors chan error
	done   chan struct{}
	once   sync.Once
	logger log.Log
}

func NewWatcher(logger log.Log, files ...string) (*Watcher, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fs:     fw,
		files:  make(map[string]struct{}, len(files)),
		events: make(chan string, 16),
		errors: make(chan error, 1),
		done:   make(chan struct{}),
		logger: logger.With(log.String("component", "watcher")),
	}
	dirs := make(map[string]struct{})
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			_ = fw.Close()
			return nil, err
		}
		w.files[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			return nil, err
		}
	}
	go w.run()
	return w, nil
}

// Events yields the absolute path of every changed file.
func (w *Watcher) Events() <-chan string { return w.events }
func (w *Watcher) Errors() <-chan error  { return w.errors }

func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fs.Close()
	})
	return err
}

func (w *Watcher) run() {
	defer close(w.events)
	defer close(w.errors)
	last := make(map[string]time.Time)
	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			path := filepath.Clean(ev.Name)
			if _, watched := w.files[path]; !watched {
				continue
			}
			now := time.Now()
			if t, ok := last[path]; ok && now.Sub(t) < debounce {
				continue
			}
			last[path] = now
			w.logger.Debug("file changed", log.String("path", path), log.String("op", ev.Op.String()))
			select {
			case w.events <- path:
			case <-w.done:
				return
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
				w.logger.Warn("watch error dropped", log.Error(err))
			}
		case <-w.done:
			return
		}
	}
}
