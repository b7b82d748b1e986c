package server

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/aimagist/openrtklaw/internal/gate"
	"github.com/aimagist/openrtklaw/internal/metrics"
	"github.com/aimagist/openrtklaw/internal/rewrite"
)

const defaultDebounce = 200 * time.Millisecond

// ErrWatcherStopped is returned by Reload once Stop has been called.
var ErrWatcherStopped = errors.New("rules watcher stopped")

// BuildFunc rebuilds the engine from the files on disk.
type BuildFunc func() (*rewrite.Engine, error)

// WatcherConfig configures a RulesWatcher.
type WatcherConfig struct {
	Paths    []string // rules and policy files; empty entries are ignored
	Build    BuildFunc
	Gate     *gate.Gate
	Metrics  *metrics.Metrics
	Debounce time.Duration
	Logger   *slog.Logger
}

// RulesWatcher rebuilds the engine when a watched file changes. A failed
// rebuild keeps the previous engine.
type RulesWatcher struct {
	cfg     WatcherConfig
	names   map[string]bool // cleaned absolute paths of watched files
	watcher *fsnotify.Watcher

	stopChan chan struct{}
	wg       sync.WaitGroup

	timerMu      sync.Mutex
	pendingTimer *time.Timer

	// reloadMu serializes reloads with Stop; no reload starts once stopped.
	reloadMu sync.Mutex
	stopped  bool
}

// NewRulesWatcher watches the directories holding cfg.Paths. Directories are
// watched rather than files so that editors replacing a file on save are
// still noticed.
func NewRulesWatcher(cfg WatcherConfig) (*RulesWatcher, error) {
	if cfg.Build == nil || cfg.Gate == nil {
		return nil, fmt.Errorf("rules watcher needs a build function and a gate")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	names := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, p := range cfg.Paths {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", p, err)
		}
		names[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no files to watch")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("watching %s: %w", dir, err)
		}
	}

	return &RulesWatcher{
		cfg:      cfg,
		names:    names,
		watcher:  fsw,
		stopChan: make(chan struct{}),
	}, nil
}

// Start processes file events in the background until Stop.
func (w *RulesWatcher) Start() {
	w.wg.Add(1)
	go w.run()
	w.cfg.Logger.Info("watching rule files for changes", "files", len(w.names))
}

// Stop ends watching and waits for the event loop and any reload in
// progress to finish. The gate is not updated after Stop returns.
func (w *RulesWatcher) Stop() error {
	close(w.stopChan)
	w.wg.Wait()

	w.timerMu.Lock()
	if w.pendingTimer != nil {
		w.pendingTimer.Stop()
	}
	w.timerMu.Unlock()

	w.reloadMu.Lock()
	w.stopped = true
	w.reloadMu.Unlock()

	return w.watcher.Close()
}

func (w *RulesWatcher) run() {
	defer w.wg.Done()
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !w.names[filepath.Clean(ev.Name)] {
				continue
			}
			w.schedule()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.cfg.Logger.Warn("rule watcher error", "error", err)
		case <-w.stopChan:
			return
		}
	}
}

// schedule coalesces bursts of events into one reload.
func (w *RulesWatcher) schedule() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()
	if w.pendingTimer != nil {
		w.pendingTimer.Stop()
	}
	w.pendingTimer = time.AfterFunc(w.cfg.Debounce, func() { _ = w.Reload() })
}

// Reload rebuilds the engine now and returns the build error, if any.
func (w *RulesWatcher) Reload() error {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()
	if w.stopped {
		return ErrWatcherStopped
	}

	engine, err := w.cfg.Build()
	if err != nil {
		w.cfg.Metrics.ObserveReload(false)
		w.cfg.Logger.Error("rule reload failed, keeping previous table", "error", err)
		return err
	}
	w.cfg.Gate.Update(engine)
	w.cfg.Metrics.ObserveReload(true)
	return nil
}
