// Package app wires the clipboard watcher, history store, backups, the global
// hotkey and the menu bar into the running application.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mindmorass/clipshelf/internal/backend"
	"github.com/mindmorass/clipshelf/internal/clipboard"
	"github.com/mindmorass/clipshelf/internal/engine"
	"github.com/mindmorass/clipshelf/internal/hotkey"
	"github.com/mindmorass/clipshelf/internal/logging"
	"github.com/mindmorass/clipshelf/internal/storage"
	"github.com/mindmorass/clipshelf/internal/ui"
	"github.com/mindmorass/clipshelf/internal/update"
)

// ErrAlreadyRunning is returned when another instance holds the data directory
var ErrAlreadyRunning = errors.New("another clipshelf instance is running")

// App is the main application
type App struct {
	configs       *ConfigStore
	store         *storage.Store
	engine        *engine.Engine
	menubar       *ui.Menubar
	updateChecker *update.Checker
	version       string

	mu       sync.Mutex
	config   *Config
	hotkey   hotkey.Source
	presses  chan struct{}
	quitChan chan struct{}
	quitOnce sync.Once
}

// New creates a new application instance from a loaded configuration
func New(version string, configs *ConfigStore, cfg *Config) (*App, error) {
	store, err := storage.Open(storage.Options{
		Dir:      cfg.DataDir,
		Capacity: cfg.HistoryCapacity,
	})
	if errors.Is(err, storage.ErrLocked) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, cfg.DataDir)
	}
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}

	board := clipboard.New()
	signal := clipboard.NewSignal()
	watcher := clipboard.NewWatcher(board, store, signal, cfg.PollInterval)
	copier := clipboard.NewCopier(board, signal)

	b := openBackend(cfg)

	app := &App{
		configs: configs,
		store:   store,
		engine: engine.New(store, watcher, copier, b, engine.Options{
			BackupInterval: cfg.BackupInterval,
		}),
		version:  version,
		config:   cfg,
		presses:  make(chan struct{}, 1),
		quitChan: make(chan struct{}),
	}
	if cfg.CheckUpdates {
		app.updateChecker = update.NewChecker(version)
	}

	app.menubar = ui.NewMenubar(app)

	return app, nil
}

// openBackend creates and initializes the configured backup destination.
// Failures leave backups disabled rather than preventing capture.
func openBackend(cfg *Config) backend.Backend {
	b, err := backend.New(cfg.BackendConfig())
	if err != nil {
		slog.Warn("failed to create backup backend, backups disabled", "type", cfg.BackendType, "err", err)
		return backend.NewNoneBackend()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := b.Init(ctx); err != nil {
		// a local folder that doesn't exist yet is created on first backup
		slog.Warn("failed to initialize backup backend", "type", b.Type(), "err", err)
	}
	return b
}

// Run starts the application and blocks until it quits
func (a *App) Run() error {
	if err := a.engine.Start(); err != nil {
		slog.Warn("failed to start engine", "err", err)
	}

	// on macOS registration completes on the main run loop, which the
	// menubar owns
	go func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.bindHotkey(a.config.Hotkey)
	}()
	go a.dispatchPresses()

	a.configs.Watch(a.applyConfig)

	// blocks until the menubar exits
	a.menubar.Run()

	a.shutdown()
	return nil
}

// bindHotkey replaces the registered hotkey; mu must be held
func (a *App) bindHotkey(binding hotkey.Binding) {
	if a.hotkey != nil {
		if err := a.hotkey.Unregister(); err != nil {
			slog.Warn("failed to unregister hotkey", "err", err)
		}
		a.hotkey = nil
	}

	source, err := hotkey.New(binding)
	if err != nil {
		slog.Error("invalid hotkey binding", "hotkey", binding.String(), "err", err)
		return
	}
	if err := source.Register(a.pressed); err != nil {
		slog.Error("failed to register hotkey", "hotkey", binding.String(), "err", err)
		return
	}
	a.hotkey = source
	slog.Info("hotkey registered", "hotkey", binding.String())
}

// pressed queues a hotkey press; presses arriving while one is pending collapse
func (a *App) pressed() {
	select {
	case a.presses <- struct{}{}:
	default:
	}
}

func (a *App) dispatchPresses() {
	for {
		select {
		case <-a.presses:
			if err := a.engine.CopyPrevious(); err != nil {
				slog.Debug("hotkey copy skipped", "err", err)
			}
		case <-a.quitChan:
			return
		}
	}
}

// applyConfig reacts to edits of the config file
func (a *App) applyConfig(cfg *Config) {
	a.mu.Lock()
	defer a.mu.Unlock()

	prev := a.config
	a.config = cfg

	if !cfg.Hotkey.Equal(prev.Hotkey) {
		a.bindHotkey(cfg.Hotkey)
	}
	if cfg.LogLevel != prev.LogLevel {
		logging.SetLevel(logging.ParseLevel(cfg.LogLevel))
		slog.Info("log level changed", "level", cfg.LogLevel)
	}
	if cfg.DataDir != prev.DataDir ||
		cfg.HistoryCapacity != prev.HistoryCapacity ||
		cfg.PollInterval != prev.PollInterval ||
		cfg.BackendType != prev.BackendType ||
		cfg.BackupInterval != prev.BackupInterval {
		slog.Warn("configuration change takes effect after restart")
	}
}

// GetEngine returns the capture engine
func (a *App) GetEngine() *engine.Engine {
	return a.engine
}

// Items returns the history, newest first
func (a *App) Items() []clipboard.Item {
	return a.store.Items()
}

// Subscribe reports history changes
func (a *App) Subscribe() (<-chan struct{}, func()) {
	return a.store.Subscribe()
}

// ClearHistory deletes every entry and stored image
func (a *App) ClearHistory() {
	a.store.Clear()
	slog.Info("history cleared")
}

// SetBackupLocation updates the backup folder and persists it
func (a *App) SetBackupLocation(path string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.engine.SetBackupLocation(ctx, path); err != nil {
		return err
	}

	a.mu.Lock()
	cfg := *a.config
	cfg.BackupLocation = path
	a.config = &cfg
	a.mu.Unlock()

	if err := a.configs.Save(&cfg); err != nil {
		slog.Warn("failed to save config", "err", err)
	}
	return nil
}

// GetBackupLocation returns the current backup location
func (a *App) GetBackupLocation() string {
	return a.engine.Backend().GetLocation()
}

// GetVersion returns the application version
func (a *App) GetVersion() string {
	return a.version
}

// GetUpdateChecker returns the update checker, nil when checks are disabled
func (a *App) GetUpdateChecker() *update.Checker {
	return a.updateChecker
}

// Quit stops the application
func (a *App) Quit() {
	a.menubar.Quit()
}

// shutdown releases everything Run acquired. Safe to call more than once.
func (a *App) shutdown() {
	a.quitOnce.Do(func() {
		close(a.quitChan)
		a.engine.Stop()

		a.mu.Lock()
		if a.hotkey != nil {
			if err := a.hotkey.Unregister(); err != nil {
				slog.Warn("failed to unregister hotkey", "err", err)
			}
			a.hotkey = nil
		}
		a.mu.Unlock()

		if err := a.engine.Backend().Close(); err != nil {
			slog.Warn("failed to close backend", "err", err)
		}
		if err := a.store.Close(); err != nil {
			slog.Error("failed to flush history", "err", err)
		}
	})
}
