package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mindmorass/clipshelf/internal/storage"
)

const (
	// DirName is the hidden directory created inside the backup folder
	DirName = ".clipshelf"

	// ArchiveFile is the filename of the history archive
	ArchiveFile = "history" + storage.ArchiveExtension

	// LockFile is the filename for the write lock
	LockFile = ArchiveFile + ".lock"

	// LockTimeout is how long a lock is valid
	LockTimeout = 30 * time.Second

	// FilePermissions for backup files
	FilePermissions = 0600

	// DirPermissions for the backup directory
	DirPermissions = 0700
)

// LockInfo represents lock file contents
type LockInfo struct {
	Holder     string    `json:"holder"`
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// LocalBackend writes archives to a folder, typically one a file-sync
// client or external drive already manages
type LocalBackend struct {
	basePath string
}

// NewLocalBackend creates a new local filesystem backend
func NewLocalBackend(basePath string) *LocalBackend {
	return &LocalBackend{basePath: basePath}
}

// Type returns the backend type
func (b *LocalBackend) Type() BackendType {
	return BackendLocal
}

// GetLocation returns the current base path
func (b *LocalBackend) GetLocation() string {
	return b.basePath
}

// SetLocation updates the base path with validation
func (b *LocalBackend) SetLocation(location string) error {
	if location == "" {
		b.basePath = ""
		return nil
	}

	cleanPath := filepath.Clean(location)
	if !filepath.IsAbs(cleanPath) {
		return fmt.Errorf("path must be absolute: %s", location)
	}
	if cleanPath != location && filepath.Base(cleanPath) == ".." {
		return fmt.Errorf("invalid path: %s", location)
	}

	b.basePath = cleanPath
	return nil
}

func (b *LocalBackend) backupDir() string {
	return filepath.Join(b.basePath, DirName)
}

func (b *LocalBackend) archivePath() string {
	return filepath.Join(b.backupDir(), ArchiveFile)
}

func (b *LocalBackend) lockPath() string {
	return filepath.Join(b.backupDir(), LockFile)
}

// Init creates the backup directory if it doesn't exist
func (b *LocalBackend) Init(ctx context.Context) error {
	if b.basePath == "" {
		return ErrNotConfigured
	}

	if _, err := os.Stat(b.basePath); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("location does not exist: %s", b.basePath)
	}

	if err := os.MkdirAll(b.backupDir(), DirPermissions); err != nil {
		return err
	}

	b.cleanStaleLocks()
	return nil
}

// Close releases resources (no-op for local backend)
func (b *LocalBackend) Close() error {
	return nil
}

// Write stores the snapshot in the backup folder
func (b *LocalBackend) Write(ctx context.Context, snap *storage.Snapshot) error {
	if b.basePath == "" {
		return ErrNotConfigured
	}
	if err := b.Init(ctx); err != nil {
		return err
	}

	if err := b.acquireLock(); err != nil {
		return err
	}
	defer b.releaseLock()

	data, err := storage.Encode(snap)
	if err != nil {
		return fmt.Errorf("encode failed: %w", err)
	}

	tempPath := b.archivePath() + ".tmp"
	if err := os.WriteFile(tempPath, data, FilePermissions); err != nil {
		return fmt.Errorf("write temp file failed: %w", err)
	}
	if err := os.Rename(tempPath, b.archivePath()); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename failed: %w", err)
	}

	return nil
}

// Read retrieves the snapshot from the backup folder
func (b *LocalBackend) Read(ctx context.Context) (*storage.Snapshot, error) {
	if b.basePath == "" {
		return nil, ErrNotConfigured
	}

	data, err := os.ReadFile(b.archivePath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read failed: %w", err)
	}

	snap, err := storage.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode failed: %w", err)
	}
	return snap, nil
}

// GetModTime returns the modification time of the archive
func (b *LocalBackend) GetModTime(ctx context.Context) (time.Time, error) {
	if b.basePath == "" {
		return time.Time{}, ErrNotConfigured
	}
	info, err := os.Stat(b.archivePath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return time.Time{}, ErrNotFound
		}
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// Exists returns true if the archive exists
func (b *LocalBackend) Exists(ctx context.Context) bool {
	if b.basePath == "" {
		return false
	}
	_, err := os.Stat(b.archivePath())
	return err == nil
}

// acquireLock attempts to take the write lock, reclaiming expired or
// unreadable lock files
func (b *LocalBackend) acquireLock() error {
	hostname, _ := os.Hostname()
	now := time.Now()
	data, err := json.Marshal(LockInfo{
		Holder:     hostname,
		PID:        os.Getpid(),
		AcquiredAt: now,
		ExpiresAt:  now.Add(LockTimeout),
	})
	if err != nil {
		return err
	}

	err = b.createLock(data)
	if err == nil || !errors.Is(err, os.ErrExist) {
		return err
	}

	existingData, readErr := os.ReadFile(b.lockPath())
	var existing LockInfo
	if readErr != nil || json.Unmarshal(existingData, &existing) != nil {
		os.Remove(b.lockPath())
		return b.retryLock(data)
	}

	if existing.Holder == hostname && existing.PID == os.Getpid() {
		return os.WriteFile(b.lockPath(), data, FilePermissions)
	}

	if time.Now().After(existing.ExpiresAt) {
		os.Remove(b.lockPath())
		return b.retryLock(data)
	}

	return ErrLocked
}

func (b *LocalBackend) createLock(data []byte) error {
	f, err := os.OpenFile(b.lockPath(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, FilePermissions)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(data)
	return err
}

// retryLock makes one more attempt after removing a dead lock
func (b *LocalBackend) retryLock(data []byte) error {
	err := b.createLock(data)
	if errors.Is(err, os.ErrExist) {
		return ErrLocked
	}
	return err
}

func (b *LocalBackend) releaseLock() {
	os.Remove(b.lockPath())
}

// cleanStaleLocks removes expired lock files
func (b *LocalBackend) cleanStaleLocks() {
	data, err := os.ReadFile(b.lockPath())
	if err != nil {
		return
	}

	var info LockInfo
	if json.Unmarshal(data, &info) != nil {
		return
	}
	if time.Now().After(info.ExpiresAt) {
		os.Remove(b.lockPath())
	}
}
