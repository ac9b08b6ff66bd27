// Package engine ties the clipboard watcher, the history store and the
// backup backend together and exposes the actions the menu bar, hotkey and
// CLI trigger.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mindmorass/clipshelf/internal/backend"
	"github.com/mindmorass/clipshelf/internal/clipboard"
	"github.com/mindmorass/clipshelf/internal/storage"
)

// DefaultBackupInterval is how often a changed history is backed up
const DefaultBackupInterval = 15 * time.Minute

// backupTimeout bounds a single scheduled backup
const backupTimeout = 2 * time.Minute

var (
	ErrItemNotFound  = errors.New("history item not found")
	ErrImageMissing  = errors.New("image data unavailable")
	ErrNothingToCopy = errors.New("no previous history item")
)

// StatusHandler is called when engine status changes
type StatusHandler func(status Status)

// Status represents the current engine state
type Status int

const (
	StatusIdle Status = iota
	StatusWatching
	StatusPaused
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "Idle"
	case StatusWatching:
		return "Watching"
	case StatusPaused:
		return "Paused"
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Store is the part of the history store the engine uses
type Store interface {
	Items() []clipboard.Item
	Get(id string) (clipboard.Item, bool)
	Image(item clipboard.Item) ([]byte, bool)
	Snapshot() *storage.Snapshot
	Import(snap *storage.Snapshot) error
	Subscribe() (<-chan struct{}, func())
}

// Watcher is the pasteboard watcher lifecycle
type Watcher interface {
	Start()
	Stop()
	Pause()
	Resume()
	IsPaused() bool
	OnStatusChange(handler clipboard.StatusHandler)
}

// Copier writes entries back to the pasteboard
type Copier interface {
	CopyText(text string) error
	CopyImage(png []byte) error
}

// Options configures an Engine
type Options struct {
	// BackupInterval between scheduled backups; zero disables them
	BackupInterval time.Duration
}

// Engine coordinates capture, copy-back and backups
type Engine struct {
	store   Store
	watcher Watcher
	copier  Copier
	backend backend.Backend
	opts    Options

	status         Status
	lastError      error
	lastBackupTime time.Time
	dirty          bool
	onStatusChange StatusHandler

	running  bool
	stopChan chan struct{}
	done     chan struct{}
	mu       sync.Mutex
}

// New creates an engine. A nil backend disables backups.
func New(store Store, watcher Watcher, copier Copier, b backend.Backend, opts Options) *Engine {
	if b == nil {
		b = backend.NewNoneBackend()
	}
	e := &Engine{
		store:   store,
		watcher: watcher,
		copier:  copier,
		backend: b,
		opts:    opts,
		status:  StatusIdle,
	}
	watcher.OnStatusChange(e.onWatcherStatus)
	return e
}

// OnStatusChange sets the status change handler
func (e *Engine) OnStatusChange(handler StatusHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onStatusChange = handler
}

// Start begins capturing and the backup schedule
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = true
	e.stopChan = make(chan struct{})
	e.done = make(chan struct{})
	changes, cancel := e.store.Subscribe()
	e.mu.Unlock()

	go e.run(changes, cancel)
	e.watcher.Start()

	if e.watcher.IsPaused() {
		e.setStatus(StatusPaused)
	} else {
		e.setStatus(StatusWatching)
	}
	return nil
}

// Stop halts capturing and waits for the backup loop to exit
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stopChan)
	done := e.done
	e.mu.Unlock()

	e.watcher.Stop()
	<-done
	e.setStatus(StatusIdle)
}

// Pause suspends capturing
func (e *Engine) Pause() {
	e.watcher.Pause()
}

// Resume resumes capturing
func (e *Engine) Resume() {
	e.watcher.Resume()
}

// IsPaused returns true while capturing is suspended
func (e *Engine) IsPaused() bool {
	return e.watcher.IsPaused()
}

// IsRunning returns true if the engine is running
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// GetStatus returns the current status
func (e *Engine) GetStatus() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// GetLastBackupTime returns the time of the last successful backup
func (e *Engine) GetLastBackupTime() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastBackupTime
}

// GetLastError returns the last backup error
func (e *Engine) GetLastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastError
}

// Backend returns the configured backup backend
func (e *Engine) Backend() backend.Backend {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.backend
}

// SetBackupLocation points the backend at a new location and initializes it
func (e *Engine) SetBackupLocation(ctx context.Context, location string) error {
	e.mu.Lock()
	b := e.backend
	e.mu.Unlock()

	if err := b.SetLocation(location); err != nil {
		return err
	}
	if location != "" {
		if err := b.Init(ctx); err != nil {
			return err
		}
	}

	e.mu.Lock()
	e.dirty = true
	e.mu.Unlock()

	slog.Info("backup location set", "backend", b.Type(), "location", b.GetLocation())
	return nil
}

// CopyBack writes the entry with the given ID to the pasteboard
func (e *Engine) CopyBack(id string) error {
	item, ok := e.store.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}

	if item.IsImage() {
		data, ok := e.store.Image(item)
		if !ok {
			return fmt.Errorf("%w: %s", ErrImageMissing, item.ImageFilename)
		}
		if err := e.copier.CopyImage(data); err != nil {
			return fmt.Errorf("copy image: %w", err)
		}
	} else if err := e.copier.CopyText(item.Text); err != nil {
		return fmt.Errorf("copy text: %w", err)
	}

	slog.Debug("copied history item to pasteboard", "id", id, "kind", item.Kind)
	return nil
}

// CopyPrevious puts the entry before the newest back on the pasteboard
func (e *Engine) CopyPrevious() error {
	items := e.store.Items()
	if len(items) < 2 {
		return ErrNothingToCopy
	}
	return e.CopyBack(items[1].ID)
}

// BackupNow writes a snapshot of the history to the backend
func (e *Engine) BackupNow(ctx context.Context) error {
	e.mu.Lock()
	b := e.backend
	e.dirty = false
	e.mu.Unlock()

	if b.Type() == backend.BackendNone {
		return backend.ErrNotConfigured
	}

	snap := e.store.Snapshot()
	if err := b.Write(ctx, snap); err != nil {
		slog.Error("backup failed", "backend", b.Type(), "err", err)
		e.mu.Lock()
		e.dirty = true
		e.lastError = err
		e.mu.Unlock()
		e.setStatus(StatusError)
		return fmt.Errorf("backup: %w", err)
	}

	e.mu.Lock()
	e.lastBackupTime = time.Now()
	e.lastError = nil
	recovered := e.status == StatusError
	e.mu.Unlock()

	slog.Info("history backed up", "backend", b.Type(), "location", b.GetLocation(), "items", len(snap.Items))
	if recovered {
		e.setStatus(e.activeStatus())
	}
	return nil
}

// Restore replaces the local history with the backend's snapshot
func (e *Engine) Restore(ctx context.Context) error {
	e.mu.Lock()
	b := e.backend
	e.mu.Unlock()

	snap, err := b.Read(ctx)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	if err := e.store.Import(snap); err != nil {
		return fmt.Errorf("import backup: %w", err)
	}
	return nil
}

func (e *Engine) run(changes <-chan struct{}, cancel func()) {
	defer close(e.done)
	defer cancel()

	e.seedLastBackup()

	var tick <-chan time.Time
	if e.opts.BackupInterval > 0 {
		ticker := time.NewTicker(e.opts.BackupInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-changes:
			e.mu.Lock()
			e.dirty = true
			e.mu.Unlock()
		case <-tick:
			e.backupIfDirty()
		case <-e.stopChan:
			return
		}
	}
}

// seedLastBackup reads the archive time left by a previous run
func (e *Engine) seedLastBackup() {
	e.mu.Lock()
	b := e.backend
	e.mu.Unlock()
	if b.Type() == backend.BackendNone {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	mod, err := b.GetModTime(ctx)
	if err != nil {
		return
	}

	e.mu.Lock()
	if e.lastBackupTime.IsZero() {
		e.lastBackupTime = mod
	}
	e.mu.Unlock()
}

func (e *Engine) backupIfDirty() {
	e.mu.Lock()
	dirty := e.dirty
	e.mu.Unlock()
	if !dirty || e.Backend().Type() == backend.BackendNone {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), backupTimeout)
	defer cancel()
	_ = e.BackupNow(ctx)
}

func (e *Engine) onWatcherStatus(paused bool) {
	e.mu.Lock()
	running := e.running
	e.mu.Unlock()
	if !running {
		return
	}
	if paused {
		e.setStatus(StatusPaused)
	} else {
		e.setStatus(StatusWatching)
	}
}

func (e *Engine) activeStatus() Status {
	e.mu.Lock()
	running := e.running
	e.mu.Unlock()
	switch {
	case !running:
		return StatusIdle
	case e.watcher.IsPaused():
		return StatusPaused
	default:
		return StatusWatching
	}
}

func (e *Engine) setStatus(status Status) {
	e.mu.Lock()
	if e.status == status {
		e.mu.Unlock()
		return
	}
	e.status = status
	handler := e.onStatusChange
	e.mu.Unlock()

	if handler != nil {
		handler(status)
	}
}
