package core

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"noesis/internal/logging"
)

// KBWatcher watches the knowledge directory for changes to *.rules, *.ops,
// *.conf and *.pref files and reloads the associative and procedural memories between
// cognition cycles. Rapid editor saves are debounced.
type KBWatcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	kernel      *Kernel
	kbDir       string
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	stats KBWatcherStats
}

// KBWatcherStats tracks watcher activity for inspection and tests.
type KBWatcherStats struct {
	FilesCreated  int
	FilesModified int
	FilesDeleted  int
	Reloads       int
	Errors        int
	LastEventPath string
	LastEventType string
}

// NewKBWatcher creates a watcher over the kernel's knowledge directory.
func NewKBWatcher(kernel *Kernel) (*KBWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &KBWatcher{
		watcher:     watcher,
		kernel:      kernel,
		kbDir:       kernel.Config().KB.Dir,
		debounceMap: make(map[string]time.Time),
		debounceDur: 500 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching (non-blocking).
func (kw *KBWatcher) Start(ctx context.Context) error {
	kw.mu.Lock()
	if kw.running {
		kw.mu.Unlock()
		return nil
	}
	kw.running = true
	kw.mu.Unlock()

	if err := os.MkdirAll(kw.kbDir, 0755); err != nil {
		logging.KBWarn("watcher: failed to create kb dir %s: %v", kw.kbDir, err)
	}
	if err := kw.watcher.Add(kw.kbDir); err != nil {
		logging.KBWarn("watcher: initial watch failed: %v", err)
	} else {
		logging.KB("watcher: watching directory %s", kw.kbDir)
	}

	go kw.run(ctx)
	return nil
}

// Stop halts the watcher and waits for cleanup.
func (kw *KBWatcher) Stop() {
	kw.mu.Lock()
	if !kw.running {
		kw.mu.Unlock()
		return
	}
	kw.running = false
	kw.mu.Unlock()

	close(kw.stopCh)
	<-kw.doneCh

	if err := kw.watcher.Close(); err != nil {
		logging.KBError("watcher: error closing: %v", err)
	}
	logging.KB("watcher: stopped")
}

// IsWatching reports whether the watcher is running.
func (kw *KBWatcher) IsWatching() bool {
	kw.mu.RLock()
	defer kw.mu.RUnlock()
	return kw.running
}

// GetStats returns a snapshot of watcher statistics.
func (kw *KBWatcher) GetStats() KBWatcherStats {
	kw.mu.RLock()
	defer kw.mu.RUnlock()
	return kw.stats
}

// run is the main event loop.
func (kw *KBWatcher) run(ctx context.Context) {
	defer close(kw.doneCh)

	debounceTicker := time.NewTicker(100 * time.Millisecond)
	defer debounceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-kw.stopCh:
			return
		case event, ok := <-kw.watcher.Events:
			if !ok {
				return
			}
			kw.handleEvent(event)
		case err, ok := <-kw.watcher.Errors:
			if !ok {
				return
			}
			logging.KBError("watcher: %v", err)
			kw.mu.Lock()
			kw.stats.Errors++
			kw.mu.Unlock()
		case <-debounceTicker.C:
			kw.processDebounced()
		}
	}
}

// knowledgeFile filters for the file types the watcher cares about.
func knowledgeFile(name string) bool {
	return strings.HasSuffix(name, ".rules") || strings.HasSuffix(name, ".ops") ||
		strings.HasSuffix(name, ".conf") || strings.HasSuffix(name, ".pref")
}

// handleEvent records a filesystem event for debounced processing.
func (kw *KBWatcher) handleEvent(event fsnotify.Event) {
	if !knowledgeFile(event.Name) {
		return
	}
	var eventType string
	switch {
	case event.Op&fsnotify.Create != 0:
		eventType = "create"
	case event.Op&fsnotify.Write != 0:
		eventType = "modify"
	case event.Op&fsnotify.Remove != 0:
		eventType = "delete"
	case event.Op&fsnotify.Rename != 0:
		eventType = "rename"
	default:
		return // ignore chmod, etc.
	}

	kw.mu.Lock()
	kw.stats.LastEventPath = event.Name
	kw.stats.LastEventType = eventType
	switch eventType {
	case "create":
		kw.stats.FilesCreated++
	case "modify":
		kw.stats.FilesModified++
	default:
		kw.stats.FilesDeleted++
	}
	kw.debounceMap[event.Name] = time.Now()
	kw.mu.Unlock()
}

// processDebounced reloads the knowledge base once events have settled.
func (kw *KBWatcher) processDebounced() {
	kw.mu.Lock()
	now := time.Now()
	settled := false
	for path, when := range kw.debounceMap {
		if now.Sub(when) >= kw.debounceDur {
			delete(kw.debounceMap, path)
			settled = true
		}
	}
	kw.mu.Unlock()

	if !settled {
		return
	}
	kw.reload()
}

// reload replaces the rule and operator collections from disk. A load
// failure leaves the previous collections untouched.
func (kw *KBWatcher) reload() {
	amem := NewAssocMem()
	if _, err := amem.LoadDir(kw.kbDir); err != nil {
		logging.KBError("watcher: rule reload failed: %v", err)
		kw.mu.Lock()
		kw.stats.Errors++
		kw.mu.Unlock()
		return
	}
	pmem := NewProcMem()
	if _, err := pmem.LoadDir(kw.kbDir); err != nil {
		logging.KBError("watcher: operator reload failed: %v", err)
		kw.mu.Lock()
		kw.stats.Errors++
		kw.mu.Unlock()
		return
	}

	kw.kernel.Amem.rules = amem.rules
	kw.kernel.Amem.nr = amem.nr
	kw.kernel.Pmem.ops = pmem.ops
	kw.kernel.Pmem.np = pmem.np

	kw.mu.Lock()
	kw.stats.Reloads++
	kw.mu.Unlock()
	logging.KB("watcher: reloaded %d rules, %d operators from %s",
		amem.nr, pmem.np, kw.kbDir)
}
