package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/mindmorass/clipshelf/internal/storage"
)

// New creates a new backend based on the configuration
func New(cfg *Config) (Backend, error) {
	if cfg == nil {
		cfg = &Config{Type: BackendNone}
	}

	switch cfg.Type {
	case BackendNone, "":
		return NewNoneBackend(), nil

	case BackendLocal:
		b := NewLocalBackend("")
		if err := b.SetLocation(cfg.Location); err != nil {
			return nil, err
		}
		return b, nil

	case BackendS3:
		b := NewS3Backend(cfg.S3Bucket, cfg.S3Prefix, cfg.S3Region)
		b.SetEndpoint(cfg.S3Endpoint)
		return b, nil

	case BackendDropbox:
		return NewDropboxBackend(cfg.DropboxAppKey, cfg.DropboxAppSecret), nil

	default:
		return nil, fmt.Errorf("unknown backend type: %s", cfg.Type)
	}
}

// NoneBackend is used when backups are disabled
type NoneBackend struct{}

// NewNoneBackend creates a backend that stores nothing
func NewNoneBackend() *NoneBackend {
	return &NoneBackend{}
}

func (NoneBackend) Write(context.Context, *storage.Snapshot) error { return ErrNotConfigured }

func (NoneBackend) Read(context.Context) (*storage.Snapshot, error) { return nil, ErrNotConfigured }

func (NoneBackend) GetModTime(context.Context) (time.Time, error) {
	return time.Time{}, ErrNotConfigured
}

func (NoneBackend) Exists(context.Context) bool { return false }

func (NoneBackend) Init(context.Context) error { return nil }

func (NoneBackend) Close() error { return nil }

func (NoneBackend) Type() BackendType { return BackendNone }

func (NoneBackend) GetLocation() string { return "" }

func (NoneBackend) SetLocation(string) error { return ErrNotConfigured }
