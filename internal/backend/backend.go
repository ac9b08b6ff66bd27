// Package backend stores history snapshots outside the data directory so a
// lost or reinstalled machine can restore its clipboard history.
package backend

import (
	"context"
	"errors"
	"time"

	"github.com/mindmorass/clipshelf/internal/storage"
)

// BackendType identifies the type of backup backend
type BackendType string

const (
	BackendNone    BackendType = "none"
	BackendLocal   BackendType = "local"
	BackendS3      BackendType = "s3"
	BackendDropbox BackendType = "dropbox"
)

// Common errors
var (
	ErrNotConfigured = errors.New("backend not configured")
	ErrNotFound      = errors.New("backup not found")
	ErrLocked        = errors.New("resource is locked by another process")
)

// Backend defines the interface for snapshot backup backends
type Backend interface {
	// Write stores a snapshot, replacing any previous one
	Write(ctx context.Context, snap *storage.Snapshot) error

	// Read retrieves the stored snapshot, or ErrNotFound
	Read(ctx context.Context) (*storage.Snapshot, error)

	// GetModTime returns the last modification time
	GetModTime(ctx context.Context) (time.Time, error)

	// Exists returns true if a snapshot exists
	Exists(ctx context.Context) bool

	// Init initializes the backend (creates directories, validates credentials, etc.)
	Init(ctx context.Context) error

	// Close releases any resources held by the backend
	Close() error

	// Type returns the backend type
	Type() BackendType

	// GetLocation returns a human-readable location string
	GetLocation() string

	// SetLocation updates the backend location/path
	SetLocation(location string) error
}

// Config holds configuration for creating backends
type Config struct {
	Type     BackendType
	Location string // For local: filesystem path

	// S3-specific
	S3Bucket   string
	S3Prefix   string
	S3Region   string
	S3Endpoint string // S3-compatible endpoint; empty for AWS

	// Dropbox-specific
	DropboxAppKey    string
	DropboxAppSecret string
}

// ParseType validates a configured backend name
func ParseType(s string) (BackendType, error) {
	switch t := BackendType(s); t {
	case "", BackendNone:
		return BackendNone, nil
	case BackendLocal, BackendS3, BackendDropbox:
		return t, nil
	default:
		return "", errors.New("unknown backend type: " + s)
	}
}
