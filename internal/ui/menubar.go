package ui

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"fyne.io/systray"

	"github.com/mindmorass/clipshelf/internal/backend"
	"github.com/mindmorass/clipshelf/internal/clipboard"
	"github.com/mindmorass/clipshelf/internal/engine"
	"github.com/mindmorass/clipshelf/internal/update"
)

// RecentSlots is the number of history entries shown in the menu
const RecentSlots = 10

// App interface for the main application
type App interface {
	GetEngine() *engine.Engine
	Items() []clipboard.Item
	Subscribe() (<-chan struct{}, func())
	ClearHistory()
	SetBackupLocation(path string) error
	GetBackupLocation() string
	GetVersion() string
	GetUpdateChecker() *update.Checker
	Quit()
}

// Menubar manages the system tray
type Menubar struct {
	app        App
	mStatus    *systray.MenuItem
	mLastSync  *systray.MenuItem
	mRecent    *systray.MenuItem
	mEmpty     *systray.MenuItem
	mSlots     []*systray.MenuItem
	mPause     *systray.MenuItem
	mResume    *systray.MenuItem
	mBackup    *systray.MenuItem
	mLocations *systray.MenuItem
	mLocation  *systray.MenuItem
	mUpdate    *systray.MenuItem
	mCheck     *systray.MenuItem
	mVersion   *systray.MenuItem

	mu         sync.Mutex
	slotIDs    []string
	updateInfo *update.UpdateInfo
	quitChan   chan struct{}
}

// createClipboardIcon generates a simple clipboard icon for the menubar
func createClipboardIcon() []byte {
	const size = 22
	img := image.NewRGBA(image.Rect(0, 0, size, size))

	// black on transparent for a template icon
	black := color.RGBA{0, 0, 0, 255}

	// body outline
	for x := 4; x < 18; x++ {
		for y := 5; y < 20; y++ {
			if x == 4 || x == 17 || y == 5 || y == 19 {
				img.Set(x, y, black)
			}
		}
	}

	// clip
	for x := 8; x < 14; x++ {
		img.Set(x, 3, black)
		img.Set(x, 4, black)
		img.Set(x, 5, black)
	}
	img.Set(7, 4, black)
	img.Set(7, 5, black)
	img.Set(14, 4, black)
	img.Set(14, 5, black)

	// stacked entries
	for x := 6; x < 16; x++ {
		img.Set(x, 9, black)
		img.Set(x, 12, black)
		img.Set(x, 15, black)
	}

	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

// NewMenubar creates a new menubar
func NewMenubar(app App) *Menubar {
	return &Menubar{
		app:      app,
		quitChan: make(chan struct{}),
	}
}

// Run starts the menubar (blocking)
func (m *Menubar) Run() {
	systray.Run(m.onReady, m.onExit)
}

// Quit signals the menubar to exit
func (m *Menubar) Quit() {
	systray.Quit()
}

func (m *Menubar) onReady() {
	systray.SetTemplateIcon(createClipboardIcon(), createClipboardIcon())
	systray.SetTitle("")
	systray.SetTooltip("clipshelf")

	m.mStatus = systray.AddMenuItem("Status: Starting...", "")
	m.mStatus.Disable()
	m.mLastSync = systray.AddMenuItem("Last backup: Never", "")
	m.mLastSync.Disable()

	systray.AddSeparator()

	m.mRecent = systray.AddMenuItem("Recent", "Copy a previous entry back to the clipboard")
	m.mEmpty = m.mRecent.AddSubMenuItem("History is empty", "")
	m.mEmpty.Disable()
	for i := 0; i < RecentSlots; i++ {
		slot := m.mRecent.AddSubMenuItem("", "")
		slot.Hide()
		m.mSlots = append(m.mSlots, slot)
	}
	mClear := systray.AddMenuItem("Clear History", "Delete every entry and image")

	systray.AddSeparator()

	m.mPause = systray.AddMenuItem("Pause Capture", "")
	m.mResume = systray.AddMenuItem("Resume Capture", "")
	m.mResume.Hide()

	systray.AddSeparator()

	m.mBackup = systray.AddMenuItem("Back Up Now", "")
	m.mLocations = systray.AddMenuItem("Backup Folder", "Select backup folder")
	m.mLocation = m.mLocations.AddSubMenuItem("Not configured", "")
	m.mLocation.Disable()
	mChooseFolder := m.mLocations.AddSubMenuItem("Choose Folder...", "")
	if m.app.GetEngine().Backend().Type() != backend.BackendLocal {
		m.mLocations.Hide()
	}

	systray.AddSeparator()

	m.mUpdate = systray.AddMenuItem("Update Available!", "A new version is available")
	m.mUpdate.Hide()
	m.mCheck = systray.AddMenuItem("Check for Updates", "")
	m.mVersion = systray.AddMenuItem("Version: "+m.app.GetVersion(), "")
	m.mVersion.Disable()

	systray.AddSeparator()

	mQuit := systray.AddMenuItem("Quit", "")

	m.updateLocation()
	m.updateStatus(m.app.GetEngine().GetStatus())
	m.app.GetEngine().OnStatusChange(m.updateStatus)
	m.refreshRecent()

	for i, slot := range m.mSlots {
		go m.watchSlot(i, slot)
	}
	go m.recentLoop()
	go m.lastBackupLoop()
	if m.app.GetUpdateChecker() != nil {
		go m.updateCheckLoop()
	}

	go func() {
		for {
			select {
			case <-mChooseFolder.ClickedCh:
				path := ShowFolderPicker(m.app.GetBackupLocation())
				if path == "" {
					continue
				}
				if err := m.app.SetBackupLocation(path); err != nil {
					slog.Error("failed to set backup folder", "path", path, "err", err)
					continue
				}
				m.updateLocation()

			case <-mClear.ClickedCh:
				m.app.ClearHistory()

			case <-m.mPause.ClickedCh:
				m.app.GetEngine().Pause()

			case <-m.mResume.ClickedCh:
				m.app.GetEngine().Resume()

			case <-m.mBackup.ClickedCh:
				go m.backupNow()

			case <-m.mCheck.ClickedCh:
				go m.checkForUpdates()

			case <-m.mUpdate.ClickedCh:
				m.mu.Lock()
				info := m.updateInfo
				m.mu.Unlock()
				if info != nil && info.ReleaseURL != "" {
					openBrowser(info.ReleaseURL)
				}

			case <-mQuit.ClickedCh:
				m.app.Quit()
				return

			case <-m.quitChan:
				return
			}
		}
	}()
}

func (m *Menubar) onExit() {
	close(m.quitChan)
}

func (m *Menubar) updateStatus(status engine.Status) {
	m.mStatus.SetTitle(statusTitle(status))
	if status == engine.StatusPaused {
		m.mPause.Hide()
		m.mResume.Show()
	} else {
		m.mResume.Hide()
		m.mPause.Show()
	}
}

func (m *Menubar) updateLocation() {
	loc := m.app.GetBackupLocation()
	if loc == "" {
		m.mLocation.SetTitle("Not configured")
	} else {
		m.mLocation.SetTitle("✓ " + loc)
	}
}

// refreshRecent fills the fixed slots from the newest entries
func (m *Menubar) refreshRecent() {
	items := m.app.Items()
	if len(items) > RecentSlots {
		items = items[:RecentSlots]
	}

	ids := make([]string, len(items))
	for i, slot := range m.mSlots {
		if i < len(items) {
			ids[i] = items[i].ID
			slot.SetTitle(menuLabel(items[i], time.Now()))
			slot.Show()
		} else {
			slot.Hide()
		}
	}
	if len(items) == 0 {
		m.mEmpty.Show()
	} else {
		m.mEmpty.Hide()
	}

	m.mu.Lock()
	m.slotIDs = ids
	m.mu.Unlock()
}

func (m *Menubar) recentLoop() {
	changes, cancel := m.app.Subscribe()
	defer cancel()
	for {
		select {
		case <-changes:
			m.refreshRecent()
		case <-m.quitChan:
			return
		}
	}
}

func (m *Menubar) watchSlot(i int, slot *systray.MenuItem) {
	for {
		select {
		case <-slot.ClickedCh:
			m.mu.Lock()
			var id string
			if i < len(m.slotIDs) {
				id = m.slotIDs[i]
			}
			m.mu.Unlock()
			if id == "" {
				continue
			}
			if err := m.app.GetEngine().CopyBack(id); err != nil {
				slog.Error("failed to copy entry", "id", id, "err", err)
			}
		case <-m.quitChan:
			return
		}
	}
}

func (m *Menubar) backupNow() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := m.app.GetEngine().BackupNow(ctx); err != nil && !errors.Is(err, backend.ErrNotConfigured) {
		slog.Error("manual backup failed", "err", err)
	}
	m.updateLastBackup()
}

func (m *Menubar) updateLastBackup() {
	m.mLastSync.SetTitle(lastBackupTitle(m.app.GetEngine().GetLastBackupTime(), time.Now()))
}

func (m *Menubar) lastBackupLoop() {
	m.updateLastBackup()
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.updateLastBackup()
		case <-m.quitChan:
			return
		}
	}
}

func (m *Menubar) checkForUpdates() {
	checker := m.app.GetUpdateChecker()
	if checker == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	info, err := checker.Check(ctx)
	if err != nil {
		slog.Warn("update check failed", "err", err)
		return
	}

	m.mu.Lock()
	m.updateInfo = info
	m.mu.Unlock()

	if info.Available {
		m.mUpdate.SetTitle(fmt.Sprintf("Update Available: %s", info.LatestVersion))
		m.mUpdate.Show()
	} else {
		m.mUpdate.Hide()
	}
}

func (m *Menubar) updateCheckLoop() {
	select {
	case <-time.After(5 * time.Second):
	case <-m.quitChan:
		return
	}
	m.checkForUpdates()

	ticker := time.NewTicker(update.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.checkForUpdates()
		case <-m.quitChan:
			return
		}
	}
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		slog.Warn("unsupported platform for opening browser", "os", runtime.GOOS)
		return
	}
	if err := cmd.Start(); err != nil {
		slog.Error("failed to open browser", "err", err)
	}
}
