// clipshelf: clipboard history in the menu bar.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mindmorass/clipshelf/internal/app"
	"github.com/mindmorass/clipshelf/internal/logging"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	var opts rootOptions

	root := &cobra.Command{
		Use:   "clipshelf",
		Short: "Clipboard history in the menu bar",
		Long: `clipshelf watches the clipboard and keeps the most recent text and image
entries in a history you can copy back from the menu bar, or from the previous
entry with a global hotkey.

Run without a subcommand to start the menu bar app. The history subcommands
read the same data directory and can be used while the app is running.

Config file: ~/.clipshelf/config.yaml (override with --config).
Every key can be set via CLIPSHELF_<KEY> env vars, e.g. CLIPSHELF_HISTORY_CAPACITY.`,
		Args:              cobra.NoArgs,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error { return opts.load(cmd) },
		RunE:              func(_ *cobra.Command, _ []string) error { return runApp(&opts) },
	}
	addRootFlags(root)

	root.AddCommand(
		newRunCmd(&opts),
		newListCmd(&opts),
		newShowCmd(&opts),
		newDeleteCmd(&opts),
		newClearCmd(&opts),
		newBackupCmd(&opts),
		newRestoreCmd(&opts),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the menu bar app (the default)",
		Args:  cobra.NoArgs,
		RunE:  func(_ *cobra.Command, _ []string) error { return runApp(opts) },
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// config is irrelevant here
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("clipshelf %s\n", Version)
		},
	}
}

func runApp(opts *rootOptions) error {
	// launched from the Dock or a login item there is no terminal to log to
	if !logging.IsTTY(os.Stderr) {
		f, err := logging.OpenFile(opts.config.DataDir)
		if err != nil {
			return err
		}
		defer f.Close()
		logging.Setup(f, logging.ParseFormat(opts.config.LogFormat), logging.ParseLevel(opts.config.LogLevel))
	}

	application, err := app.New(Version, opts.configs, opts.config)
	if err != nil {
		return err
	}
	return application.Run()
}
