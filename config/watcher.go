package config

import (
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/fleetsys/fleet/logger"
)

// Watcher re-feeds a RuntimeConfig whenever its primary file changes on
// disk, logging what changed rather than silently swapping values in. It
// never mutates
// a running Executor's task sequence — callers decide what to do with the
// refreshed config, typically just picking up new budgets for the next
// DoInitialize.
type Watcher struct {
	path     string
	feeders  []Feeder
	log      logger.Logger
	onChange func(RuntimeConfig, []Diff)

	startedGuard atomic.Bool
	stoppedOnce  sync.Once

	mu      sync.Mutex
	current RuntimeConfig

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher builds a Watcher seeded with an already-loaded config and the
// feeders used to produce it (re-run on every write event to path).
func NewWatcher(path string, current RuntimeConfig, feeders []Feeder, log logger.Logger, onChange func(RuntimeConfig, []Diff)) *Watcher {
	if log == nil {
		log = logger.Default()
	}
	return &Watcher{path: path, feeders: feeders, log: log, onChange: onChange, current: current}
}

// Started reports whether the executor this config feeds has already
// begun running — once true, a reload only logs a warning instead of
// calling onChange, per "mutation during run is undefined".
func (w *Watcher) Started() bool { return w.startedGuard.Load() }

// MarkStarted records that DoStart has run; subsequent reload events are
// downgraded to warnings.
func (w *Watcher) MarkStarted() { w.startedGuard.Store(true) }

// Start begins watching path in the background. Call Stop to release the
// underlying fsnotify watcher.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.path); err != nil {
		fsw.Close()
		return err
	}
	w.watcher = fsw
	w.done = make(chan struct{})
	go w.run()
	return nil
}

// Stop releases the underlying fsnotify watcher. Idempotent.
func (w *Watcher) Stop() {
	if w.watcher == nil {
		return
	}
	w.stoppedOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.reload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("config watcher error", "path", w.path, "error", err)
		}
	}
}

func (w *Watcher) reload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	updated, err := Load(w.feeders...)
	if err != nil {
		w.log.Warn("config reload failed", "path", w.path, "error", err)
		return
	}

	diffs := DiffRuntimeConfig(w.current, updated)
	if len(diffs) == 0 {
		return
	}

	if w.Started() {
		w.log.Warn("config file changed after startup; change is not applied to the running executor",
			"path", w.path, "fieldsChanged", len(diffs), "diffs", diffs)
		return
	}

	w.current = updated
	w.log.Info("config reloaded", "path", w.path, "fieldsChanged", len(diffs), "diffs", diffs)
	if w.onChange != nil {
		w.onChange(updated, diffs)
	}
}
