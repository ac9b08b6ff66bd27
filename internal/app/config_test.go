package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindmorass/clipshelf/internal/backend"
	"github.com/mindmorass/clipshelf/internal/hotkey"
)

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
}

func TestConfigStore_LoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := NewConfigStore(filepath.Join(t.TempDir(), "config.yaml")).Load()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ConfigDir), cfg.DataDir)
	assert.Equal(t, 100, cfg.HistoryCapacity)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 15*time.Minute, cfg.BackupInterval)
	assert.Equal(t, "none", cfg.BackendType)
	assert.Equal(t, hotkey.DefaultBinding(), cfg.Hotkey)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.CheckUpdates)
}

func TestConfigStore_LoadFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, `
data_dir: ~/clips
history_capacity: 25
poll_interval: 250ms
hotkey:
  modifiers: [ctrl, shift]
  key: H
backend_type: local
backup_location: /Volumes/Backup
backup_interval: 1h
log_level: debug
check_updates: false
`)

	cfg, err := NewConfigStore(path).Load()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "clips"), cfg.DataDir)
	assert.Equal(t, 25, cfg.HistoryCapacity)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, []string{"ctrl", "shift"}, cfg.Hotkey.Modifiers)
	assert.Equal(t, "H", cfg.Hotkey.Key)
	assert.Equal(t, time.Hour, cfg.BackupInterval)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.CheckUpdates)

	bc := cfg.BackendConfig()
	assert.Equal(t, backend.BackendLocal, bc.Type)
	assert.Equal(t, "/Volumes/Backup", bc.Location)
}

func TestConfigStore_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "history_capacity: 25\n")
	t.Setenv("CLIPSHELF_HISTORY_CAPACITY", "7")
	t.Setenv("CLIPSHELF_HOTKEY_KEY", "J")

	cfg, err := NewConfigStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.HistoryCapacity)
	assert.Equal(t, "J", cfg.Hotkey.Key)
}

func TestConfigStore_Invalid(t *testing.T) {
	tests := map[string]string{
		"capacity":    "history_capacity: 0\n",
		"poll":        "poll_interval: 1ms\n",
		"backend":     "backend_type: ftp\n",
		"hotkey":      "hotkey:\n  modifiers: [hyper]\n  key: V\n",
		"malformed":   "history_capacity: [\n",
		"negative":    "backup_interval: -1m\n",
		"not a count": "history_capacity: lots\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			writeConfig(t, path, body)
			_, err := NewConfigStore(path).Load()
			assert.Error(t, err)
		})
	}
}

func TestConfigStore_SaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	store := NewConfigStore(path)

	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.HistoryCapacity = 42
	cfg.PollInterval = time.Second
	cfg.BackendType = "s3"
	cfg.S3Bucket = "bucket"
	cfg.S3Prefix = "clips"
	cfg.Hotkey = hotkey.Binding{Modifiers: []string{"shift", "ctrl"}, Key: "K"}
	require.NoError(t, store.Save(cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := NewConfigStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestConfigStore_Watch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "history_capacity: 10\n")

	store := NewConfigStore(path)
	_, err := store.Load()
	require.NoError(t, err)

	changes := make(chan *Config, 16)
	store.Watch(func(cfg *Config) {
		select {
		case changes <- cfg:
		default:
		}
	})

	writeConfig(t, path, "history_capacity: 10\nhotkey:\n  modifiers: [shift]\n  key: B\n")

	// a rewrite can surface as several events; wait for the complete one
	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changes:
			if cfg.Hotkey.Key == "B" {
				assert.Equal(t, []string{"shift"}, cfg.Hotkey.Modifiers)
				return
			}
		case <-deadline:
			t.Fatal("config change not delivered")
		}
	}
}

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	assert.Equal(t, home, expandHome("~"))
	assert.Equal(t, filepath.Join(home, "x"), expandHome("~/x"))
	assert.Equal(t, "/abs", expandHome("/abs"))
	assert.Equal(t, "~user/x", expandHome("~user/x"))
}
