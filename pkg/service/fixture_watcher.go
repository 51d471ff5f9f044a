package service

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultReloadDelay coalesces the burst of events an editor produces when
// saving a file.
const DefaultReloadDelay = 100 * time.Millisecond

// FixtureWatcher reloads a fixture file into a TableServer whenever the
// file changes. A file that fails to parse is logged and the server keeps
// its current fixtures.
type FixtureWatcher struct {
	path    string
	server  *TableServer
	logger  *slog.Logger
	watcher *fsnotify.Watcher
	delay   time.Duration

	reloaded chan struct{}
}

// WatchFixtures starts watching path. The directory is watched rather than
// the file so that rename-on-save editors are followed.
func WatchFixtures(path string, server *TableServer, logger *slog.Logger) (*FixtureWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	return &FixtureWatcher{
		path:     abs,
		server:   server,
		logger:   logger,
		watcher:  watcher,
		delay:    DefaultReloadDelay,
		reloaded: make(chan struct{}, 1),
	}, nil
}

// Reloaded receives a value after each successful reload.
func (w *FixtureWatcher) Reloaded() <-chan struct{} {
	return w.reloaded
}

// Run processes file events until ctx is done.
func (w *FixtureWatcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.delay, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("fixture watcher error", slog.Any("error", err))
		}
	}
}

func (w *FixtureWatcher) reload() {
	fixtures, err := LoadFixtures(w.path)
	if err != nil {
		w.logger.Warn("fixture reload failed, keeping previous fixtures",
			slog.String("path", w.path), slog.Any("error", err))
		return
	}
	w.server.SetFixtures(fixtures)

	select {
	case w.reloaded <- struct{}{}:
	default:
	}
}
