package app

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/mindmorass/clipshelf/internal/backend"
	"github.com/mindmorass/clipshelf/internal/hotkey"
)

const (
	// ConfigFileName is the config file name (without extension)
	ConfigFileName = "config"

	// ConfigDir is the directory for config and data files
	ConfigDir = ".clipshelf"

	// EnvPrefix prefixes environment overrides, e.g. CLIPSHELF_HISTORY_CAPACITY
	EnvPrefix = "CLIPSHELF"

	// MinPollInterval keeps the watcher from spinning
	MinPollInterval = 50 * time.Millisecond
)

// Config holds application configuration
type Config struct {
	DataDir         string         `mapstructure:"data_dir"`
	HistoryCapacity int            `mapstructure:"history_capacity"`
	PollInterval    time.Duration  `mapstructure:"poll_interval"`
	Hotkey          hotkey.Binding `mapstructure:"hotkey"`

	// Backup configuration
	BackendType    string        `mapstructure:"backend_type"` // "none", "local", "s3", or "dropbox"
	BackupLocation string        `mapstructure:"backup_location"`
	BackupInterval time.Duration `mapstructure:"backup_interval"`

	// S3-specific settings
	S3Bucket   string `mapstructure:"s3_bucket"`
	S3Prefix   string `mapstructure:"s3_prefix"`
	S3Region   string `mapstructure:"s3_region"`
	S3Endpoint string `mapstructure:"s3_endpoint"`

	// Dropbox-specific settings (tokens live in the keychain)
	DropboxAppKey    string `mapstructure:"dropbox_app_key"`
	DropboxAppSecret string `mapstructure:"dropbox_app_secret"`

	LogLevel     string `mapstructure:"log_level"`
	LogFormat    string `mapstructure:"log_format"`
	CheckUpdates bool   `mapstructure:"check_updates"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		DataDir:         DefaultDir(),
		HistoryCapacity: 100,
		PollInterval:    500 * time.Millisecond,
		Hotkey:          hotkey.DefaultBinding(),
		BackendType:     string(backend.BackendNone),
		BackupInterval:  15 * time.Minute,
		LogLevel:        "info",
		LogFormat:       "auto",
		CheckUpdates:    true,
	}
}

// Validate checks values that would otherwise fail later at startup
func (c *Config) Validate() error {
	var errs []error
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir must be set"))
	}
	if c.HistoryCapacity <= 0 {
		errs = append(errs, fmt.Errorf("history_capacity must be positive, got %d", c.HistoryCapacity))
	}
	if c.PollInterval < MinPollInterval {
		errs = append(errs, fmt.Errorf("poll_interval must be at least %s, got %s", MinPollInterval, c.PollInterval))
	}
	if c.BackupInterval < 0 {
		errs = append(errs, fmt.Errorf("backup_interval must not be negative, got %s", c.BackupInterval))
	}
	if _, err := backend.ParseType(c.BackendType); err != nil {
		errs = append(errs, err)
	}
	if err := c.Hotkey.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// BackendConfig converts the backup settings for backend.New
func (c *Config) BackendConfig() *backend.Config {
	t, _ := backend.ParseType(c.BackendType)
	return &backend.Config{
		Type:             t,
		Location:         c.BackupLocation,
		S3Bucket:         c.S3Bucket,
		S3Prefix:         c.S3Prefix,
		S3Region:         c.S3Region,
		S3Endpoint:       c.S3Endpoint,
		DropboxAppKey:    c.DropboxAppKey,
		DropboxAppSecret: c.DropboxAppSecret,
	}
}

// DefaultDir returns ~/.clipshelf
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ConfigDir)
}

// DefaultConfigPath returns ~/.clipshelf/config.yaml
func DefaultConfigPath() string {
	return filepath.Join(DefaultDir(), ConfigFileName+".yaml")
}

// ConfigStore loads and saves Config through its own viper instance.
//
// Precedence (lowest → highest): defaults → config file → CLIPSHELF_* env vars → bound flags
type ConfigStore struct {
	v    *viper.Viper
	path string
	mu   sync.Mutex
}

// NewConfigStore creates a store for the file at path, or the default path
// when empty
func NewConfigStore(path string) *ConfigStore {
	if path == "" {
		path = DefaultConfigPath()
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := DefaultConfig()
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("history_capacity", d.HistoryCapacity)
	v.SetDefault("poll_interval", d.PollInterval)
	v.SetDefault("hotkey.modifiers", d.Hotkey.Modifiers)
	v.SetDefault("hotkey.key", d.Hotkey.Key)
	v.SetDefault("backend_type", d.BackendType)
	v.SetDefault("backup_location", "")
	v.SetDefault("backup_interval", d.BackupInterval)
	v.SetDefault("s3_bucket", "")
	v.SetDefault("s3_prefix", "")
	v.SetDefault("s3_region", "")
	v.SetDefault("s3_endpoint", "")
	v.SetDefault("dropbox_app_key", "")
	v.SetDefault("dropbox_app_secret", "")
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("check_updates", d.CheckUpdates)

	return &ConfigStore{v: v, path: path}
}

// Path returns the config file location
func (s *ConfigStore) Path() string {
	return s.path
}

// Viper exposes the underlying instance so command flags can be bound to it
func (s *ConfigStore) Viper() *viper.Viper {
	return s.v
}

// Load reads the config file if it exists and returns the merged, validated
// configuration
func (s *ConfigStore) Load() (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", s.path, err)
		}
		slog.Debug("no config file, using defaults", "path", s.path)
	}
	return s.decode()
}

func (s *ConfigStore) decode() (*Config, error) {
	var cfg Config
	if err := s.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.DataDir = expandHome(cfg.DataDir)
	cfg.BackupLocation = expandHome(cfg.BackupLocation)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", s.path, err)
	}
	return &cfg, nil
}

// Save writes cfg to the config file. A separate viper instance is used so
// the saved values do not shadow later edits picked up by Watch.
func (s *ConfigStore) Save(cfg *Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}

	w := viper.New()
	w.SetConfigType("yaml")
	w.Set("data_dir", cfg.DataDir)
	w.Set("history_capacity", cfg.HistoryCapacity)
	w.Set("poll_interval", cfg.PollInterval.String())
	w.Set("hotkey.modifiers", cfg.Hotkey.Modifiers)
	w.Set("hotkey.key", cfg.Hotkey.Key)
	w.Set("backend_type", cfg.BackendType)
	w.Set("backup_location", cfg.BackupLocation)
	w.Set("backup_interval", cfg.BackupInterval.String())
	w.Set("s3_bucket", cfg.S3Bucket)
	w.Set("s3_prefix", cfg.S3Prefix)
	w.Set("s3_region", cfg.S3Region)
	w.Set("s3_endpoint", cfg.S3Endpoint)
	w.Set("dropbox_app_key", cfg.DropboxAppKey)
	w.Set("dropbox_app_secret", cfg.DropboxAppSecret)
	w.Set("log_level", cfg.LogLevel)
	w.Set("log_format", cfg.LogFormat)
	w.Set("check_updates", cfg.CheckUpdates)

	if err := w.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("write config %s: %w", s.path, err)
	}
	if err := os.Chmod(s.path, 0600); err != nil {
		return err
	}
	return s.v.ReadInConfig()
}

// Watch calls fn with the reloaded configuration whenever the file changes.
// Invalid edits are logged and skipped.
func (s *ConfigStore) Watch(fn func(*Config)) {
	s.v.OnConfigChange(func(e fsnotify.Event) {
		s.mu.Lock()
		cfg, err := s.decode()
		s.mu.Unlock()
		if err != nil {
			slog.Warn("ignoring config change", "path", e.Name, "err", err)
			return
		}
		slog.Info("config reloaded", "path", e.Name)
		fn(cfg)
	})
	s.v.WatchConfig()
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
