package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mindmorass/clipshelf/internal/app"
	"github.com/mindmorass/clipshelf/internal/logging"
)

// rootOptions carries the loaded configuration to every subcommand
type rootOptions struct {
	configs *app.ConfigStore
	config  *app.Config
}

// addRootFlags adds the flags shared by every subcommand.
func addRootFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.String("config", "", "path to config file (default ~/.clipshelf/config.yaml)")
	f.String("data-dir", "", "history directory (default ~/.clipshelf)")
	f.String("log-format", "auto", "log format: auto|text|json")
	f.String("log-level", "", "log level: debug|info|warn|error (default info)")
}

// flagKeys maps command-line flags to config keys
var flagKeys = map[string]string{
	"data-dir":   "data_dir",
	"log-format": "log_format",
	"log-level":  "log_level",
}

// load wires the flags into the config store and configures slog.
//
// Precedence (lowest → highest): defaults → config file → CLIPSHELF_* env vars → flags
func (o *rootOptions) load(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	o.configs = app.NewConfigStore(path)

	v := o.configs.Viper()
	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("binding flag %s: %w", flag, err)
		}
	}

	cfg, err := o.configs.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	o.config = cfg

	logging.Setup(os.Stderr, logging.ParseFormat(cfg.LogFormat), logging.ParseLevel(cfg.LogLevel))
	return nil
}
