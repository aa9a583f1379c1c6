package knowledge

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// Watcher holds the live knowledge snapshot and hot-reloads it when the
// directory signature changes. The check runs on a fixed interval via cron;
// polling plus signature comparison keeps behavior identical across
// platforms, unlike OS file-watch APIs.
type Watcher struct {
	loader   *Loader
	interval time.Duration
	logger   *slog.Logger

	current atomic.Pointer[Snapshot]

	// reloadMu serializes Load calls. Readers never take it: they go
	// straight through the atomic pointer.
	reloadMu sync.Mutex
	lastSig  string

	cron *cron.Cron
}

// NewWatcher creates a Watcher around the given loader.
func NewWatcher(loader *Loader, interval time.Duration, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	w := &Watcher{
		loader:   loader,
		interval: interval,
		logger:   logger.With("component", "knowledge_watcher"),
	}
	w.current.Store(emptySnapshot())
	return w
}

// Start performs the initial load and schedules the periodic signature
// check. A failed initial load degrades to an empty snapshot instead of
// aborting: the directory may appear later.
func (w *Watcher) Start() error {
	if _, err := w.Reload(); err != nil {
		w.logger.Warn("initial knowledge load failed, serving empty snapshot", "error", err)
	}

	w.cron = cron.New()
	spec := fmt.Sprintf("@every %s", w.interval)
	if _, err := w.cron.AddFunc(spec, w.checkAndReload); err != nil {
		return fmt.Errorf("scheduling knowledge watcher: %w", err)
	}
	w.cron.Start()
	w.logger.Info("knowledge watcher started", "interval", w.interval.String())
	return nil
}

// Stop halts the periodic check and waits for an in-flight reload.
func (w *Watcher) Stop() {
	if w.cron != nil {
		<-w.cron.Stop().Done()
	}
}

// Snapshot returns the current snapshot. Always non-nil and fully formed.
func (w *Watcher) Snapshot() *Snapshot {
	return w.current.Load()
}

// Reload rebuilds the snapshot unconditionally and swaps it in atomically.
// Used by Start and by the manual reload endpoint.
func (w *Watcher) Reload() (*Snapshot, error) {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	snap, err := w.loader.Load()
	if err != nil {
		return nil, err
	}
	w.lastSig = snap.Signature
	w.current.Store(snap)
	return snap, nil
}

// checkAndReload compares the directory signature with the last known one
// and reloads only on change.
func (w *Watcher) checkAndReload() {
	sig, err := w.loader.Signature()
	if err != nil {
		w.logger.Warn("signature check failed", "error", err)
		return
	}

	w.reloadMu.Lock()
	changed := sig != w.lastSig
	w.reloadMu.Unlock()
	if !changed {
		return
	}

	w.logger.Info("knowledge directory changed, reloading")
	if _, err := w.Reload(); err != nil {
		w.logger.Error("knowledge reload failed, keeping previous snapshot", "error", err)
	}
}
