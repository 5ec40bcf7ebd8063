// Package daemon runs the background sync loop for automatic mode.
//
// The daemon:
//  1. Pulls remote state on startup
//  2. Watches the local store file for writes from other processes
//  3. Debounces changes, then reloads and mirrors them to the remote store
//  4. Periodically refreshes from the remote store
//  5. Handles graceful shutdown
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/studentpro/studysync/internal/document"
	"github.com/studentpro/studysync/internal/engine"
)

// Config holds configuration for the daemon.
type Config struct {
	// PullInterval is how often to refresh local state from the remote store.
	PullInterval time.Duration

	// DebounceInterval is how long a store-file change must sit quiet before
	// it is processed. Batches rapid writes together.
	DebounceInterval time.Duration

	// Logger for daemon activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		PullInterval:     5 * time.Minute,
		DebounceInterval: 2 * time.Second,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon orchestrates store-file watching and remote synchronization.
type Daemon struct {
	engine    *engine.Engine
	storePath string
	config    *Config

	watcher *fsnotify.Watcher

	mu            sync.Mutex
	pendingChange time.Time // zero when nothing is queued
	ownWriteUntil time.Time // ignore watcher events caused by our own syncs

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a daemon for the given engine and store file path.
func New(eng *engine.Engine, storePath string, config *Config) (*Daemon, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if storePath == "" {
		return nil, fmt.Errorf("storePath cannot be empty")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		engine:    eng,
		storePath: storePath,
		config:    config,
		watcher:   watcher,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Start begins the daemon's operation. It blocks until ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting sync daemon")

	// Initial pull. Offline start is fine; the periodic pull retries.
	d.markOwnWrite()
	if err := d.engine.Download(ctx); err != nil {
		d.config.Logger.Printf("WARNING: initial download failed: %v", err)
	}

	// fsnotify watches directories; the store file may be replaced by
	// rename, which would drop a file-level watch.
	dir := filepath.Dir(d.storePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	if err := d.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch store directory: %w", err)
	}
	d.config.Logger.Printf("Watching: %s", d.storePath)

	d.wg.Add(3)
	go d.watchFileEvents()
	go d.processChanges()
	go d.periodicPull()

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping daemon")

	d.cancel()
	if err := d.watcher.Close(); err != nil {
		d.config.Logger.Printf("Error closing watcher: %v", err)
	}
	d.wg.Wait()

	d.config.Logger.Println("Daemon stopped")
	return nil
}

// watchFileEvents monitors filesystem events and queues store changes.
func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != filepath.Clean(d.storePath) {
				continue
			}
			d.queueChange()

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// queueChange records that the store file changed, unless the change was one
// of our own writes.
func (d *Daemon) queueChange() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if time.Now().Before(d.ownWriteUntil) {
		return
	}
	d.pendingChange = time.Now()
}

// markOwnWrite opens a window during which store-file events are ignored.
// Engine operations the daemon itself triggers persist the document, and
// reacting to those writes would loop forever.
func (d *Daemon) markOwnWrite() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ownWriteUntil = time.Now().Add(d.config.DebounceInterval + time.Second)
}

// processChanges reloads and uploads once a queued change has sat quiet for
// the debounce interval.
func (d *Daemon) processChanges() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DebounceInterval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.mu.Lock()
			pending := d.pendingChange
			ready := !pending.IsZero() && time.Since(pending) >= d.config.DebounceInterval
			if ready {
				d.pendingChange = time.Time{}
			}
			d.mu.Unlock()

			if ready {
				d.syncLocalChange()
			}
		}
	}
}

// syncLocalChange reloads the store file and mirrors it to the remote store
// when automatic mode is on.
func (d *Daemon) syncLocalChange() {
	d.config.Logger.Println("Store file changed, reloading")

	if err := d.engine.Reload(); err != nil {
		d.config.Logger.Printf("Error reloading store: %v", err)
		return
	}

	if d.engine.Document().Settings.SyncMode != document.SyncAutomatic {
		d.config.Logger.Println("Manual sync mode, not uploading")
		return
	}

	d.markOwnWrite()
	if err := d.engine.MirrorUpload(d.ctx); err != nil {
		d.config.Logger.Printf("Error uploading local changes: %v", err)
	}
}

// periodicPull refreshes local state from the remote store on an interval.
func (d *Daemon) periodicPull() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.PullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.markOwnWrite()
			if err := d.engine.Download(d.ctx); err != nil {
				d.config.Logger.Printf("Error pulling remote state: %v", err)
			}
		}
	}
}
