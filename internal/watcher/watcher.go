// Package watcher monitors a local uploads folder for new footage.
// Files dropped there by capture software are ingested and appended to
// their camera lane without a manual manifest push.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

type Watcher interface {
	Watch(ctx context.Context, path string) error
	Stop() error
	OnFile(callback func(path string))
}

// videoExtensions are the container formats capture rigs produce.
var videoExtensions = map[string]bool{
	".mp4": true,
	".mov": true,
	".mkv": true,
	".avi": true,
	".m4v": true,
}

// PollWatcher scans the folder on an interval and reports files that
// have stopped growing. Polling is deliberate: uploads land over SMB
// shares where inotify events are unreliable.
type PollWatcher struct {
	logger       *slog.Logger
	pollInterval time.Duration
	settleDelay  time.Duration
	callback     func(path string)

	mu     sync.Mutex
	seen   map[string]fileState
	cancel context.CancelFunc
}

type fileState struct {
	size     int64
	modTime  time.Time
	reported bool
}

func NewPollWatcher(logger *slog.Logger) *PollWatcher {
	return &PollWatcher{
		logger:       logger,
		pollInterval: 5 * time.Second,
		settleDelay:  10 * time.Second,
		seen:         make(map[string]fileState),
	}
}

func (w *PollWatcher) OnFile(callback func(path string)) {
	w.mu.Lock()
	w.callback = callback
	w.mu.Unlock()
}

func (w *PollWatcher) Watch(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()

	w.logger.Info("watching uploads folder", "path", path, "poll_interval", w.pollInterval)

	// Prime the seen set so files already present are not re-ingested.
	w.scan(path, false)

	go func() {
		ticker := time.NewTicker(w.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				w.logger.Info("watcher stopping", "path", path)
				return
			case <-ticker.C:
				w.scan(path, true)
			}
		}
	}()
	return nil
}

func (w *PollWatcher) Stop() error {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// scan walks the folder once. When report is true, files whose size has
// been stable past the settle delay are handed to the callback exactly
// once; with report false they are only recorded as already present.
func (w *PollWatcher) scan(root string, report bool) {
	entries, err := os.ReadDir(root)
	if err != nil {
		w.logger.Warn("uploads folder scan failed", "path", root, "error", err)
		return
	}

	now := time.Now()
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") || !videoExtensions[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(root, name)

		w.mu.Lock()
		prev, known := w.seen[path]
		state := fileState{size: info.Size(), modTime: info.ModTime(), reported: prev.reported}

		if !report {
			state.reported = true // pre-existing file
			w.seen[path] = state
			w.mu.Unlock()
			continue
		}

		settled := known && prev.size == info.Size() &&
			now.Sub(info.ModTime()) >= w.settleDelay
		fire := settled && !prev.reported
		if fire {
			state.reported = true
		}
		w.seen[path] = state
		callback := w.callback
		w.mu.Unlock()

		if fire && callback != nil {
			w.logger.Info("upload settled", "path", path, "size", info.Size())
			callback(path)
		}
	}
}

// StubWatcher is used when no uploads folder is configured.
type StubWatcher struct {
	logger   *slog.Logger
	callback func(path string)
}

func NewStubWatcher(logger *slog.Logger) *StubWatcher {
	return &StubWatcher{logger: logger}
}

func (w *StubWatcher) Watch(ctx context.Context, path string) error {
	w.logger.Info("watcher stub: watch requested", "path", path)
	return nil
}

func (w *StubWatcher) Stop() error {
	w.logger.Info("watcher stub: stop requested")
	return nil
}

func (w *StubWatcher) OnFile(callback func(path string)) {
	w.callback = callback
}
