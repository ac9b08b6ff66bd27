package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mindmorass/clipshelf/internal/app"
	"github.com/mindmorass/clipshelf/internal/backend"
	"github.com/mindmorass/clipshelf/internal/storage"
)

const backupTimeout = 2 * time.Minute

func newBackupCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Write the history to the configured backup destination",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), backupTimeout)
			defer cancel()

			b, err := openBackend(ctx, opts.config)
			if err != nil {
				return err
			}
			defer b.Close()

			snap, err := storage.LoadSnapshot(opts.config.DataDir)
			if err != nil {
				return err
			}
			if err := b.Write(ctx, snap); err != nil {
				return fmt.Errorf("backup: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "backed up %d entries to %s\n", len(snap.Items), b.GetLocation())
			return nil
		},
	}
}

func newRestoreCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Replace the history with the latest backup",
		Long:  `Replaces the local history with the backup. Fails while the menu bar app is running.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), backupTimeout)
			defer cancel()

			b, err := openBackend(ctx, opts.config)
			if err != nil {
				return err
			}
			defer b.Close()

			store, err := openStore(opts.config)
			if err != nil {
				return err
			}

			snap, err := b.Read(ctx)
			if errors.Is(err, backend.ErrNotFound) {
				store.Close()
				return fmt.Errorf("no backup at %s", b.GetLocation())
			}
			if err != nil {
				store.Close()
				return fmt.Errorf("read backup: %w", err)
			}
			if err := store.Import(snap); err != nil {
				store.Close()
				return fmt.Errorf("import backup: %w", err)
			}
			if err := store.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %d entries from %s (%s, %s)\n",
				store.Len(), b.GetLocation(), snap.SourceMachine, snap.CreatedAt.Format(time.RFC3339))
			return nil
		},
	}
}

func openBackend(ctx context.Context, cfg *app.Config) (backend.Backend, error) {
	b, err := backend.New(cfg.BackendConfig())
	if err != nil {
		return nil, err
	}
	if b.Type() == backend.BackendNone {
		return nil, fmt.Errorf("%w: set backend_type in %s", backend.ErrNotConfigured, app.DefaultConfigPath())
	}
	if err := b.Init(ctx); err != nil {
		return nil, fmt.Errorf("init %s backend: %w", b.Type(), err)
	}
	return b, nil
}
