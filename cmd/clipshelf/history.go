package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mindmorass/clipshelf/internal/app"
	"github.com/mindmorass/clipshelf/internal/clipboard"
	"github.com/mindmorass/clipshelf/internal/logging"
	"github.com/mindmorass/clipshelf/internal/storage"
)

var (
	errNoEntry        = errors.New("no entry matches")
	errAmbiguousEntry = errors.New("id prefix matches more than one entry")
)

// shortIDLength is the id prefix printed by list
const shortIDLength = 8

func newListCmd(opts *rootOptions) *cobra.Command {
	var (
		search string
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the clipboard history, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			items, err := storage.ReadHistory(opts.config.DataDir)
			if err != nil {
				return err
			}
			items = storage.Filter(items, search)
			if limit > 0 && len(items) > limit {
				items = items[:limit]
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), items)
			}
			for _, item := range items {
				fmt.Fprintln(cmd.OutOrStdout(), formatEntry(item, time.Now()))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&search, "search", "s", "", "only entries containing this text (case-insensitive)")
	f.IntVarP(&limit, "limit", "n", 0, "maximum number of entries (0 for all)")
	f.BoolVar(&asJSON, "json", false, "print entries as JSON")

	return cmd
}

func newShowCmd(opts *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print one entry; images are written as PNG",
		Long: `Prints the full text of an entry. Image entries are written as PNG data to
--output, or to stdout when it is not a terminal:

  clipshelf show 3f2a9c1e > screenshot.png

Any unique prefix of the id printed by "clipshelf list" is accepted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := opts.config.DataDir
			items, err := storage.ReadHistory(dir)
			if err != nil {
				return err
			}
			item, err := findEntry(items, args[0])
			if err != nil {
				return err
			}

			if item.IsText() {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), item.Text)
				return err
			}

			data, err := storage.ReadImage(dir, item.ImageFilename)
			if err != nil {
				return err
			}
			if output != "" {
				return os.WriteFile(output, data, 0600)
			}
			if logging.IsTTY(cmd.OutOrStdout()) {
				return fmt.Errorf("entry %s is an image; redirect stdout or use --output", item.ID)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write image entries to this file")

	return cmd
}

func newClearCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every entry and stored image",
		Long:  `Deletes the history. Fails while the menu bar app is running; use its Clear History item instead.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(opts.config)
			if err != nil {
				return err
			}
			store.Clear()
			return store.Close()
		},
	}
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one entry and its stored image",
		Long:  `Deletes one entry by id or unique id prefix. Fails while the menu bar app is running.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(opts.config)
			if err != nil {
				return err
			}
			item, err := findEntry(store.Items(), args[0])
			if err != nil {
				store.Close()
				return err
			}
			store.Delete(item)
			if err := store.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", item.ID)
			return nil
		},
	}
}

// openStore takes the data directory lock for commands that modify history
func openStore(cfg *app.Config) (*storage.Store, error) {
	store, err := storage.Open(storage.Options{
		Dir:      cfg.DataDir,
		Capacity: cfg.HistoryCapacity,
	})
	if errors.Is(err, storage.ErrLocked) {
		return nil, fmt.Errorf("%w: quit the menu bar app first", app.ErrAlreadyRunning)
	}
	return store, err
}

// findEntry resolves a full id or a unique id prefix
func findEntry(items []clipboard.Item, id string) (clipboard.Item, error) {
	var found []clipboard.Item
	for _, item := range items {
		if item.ID == id {
			return item, nil
		}
		if strings.HasPrefix(item.ID, id) {
			found = append(found, item)
		}
	}
	switch len(found) {
	case 0:
		return clipboard.Item{}, fmt.Errorf("%w: %s", errNoEntry, id)
	case 1:
		return found[0], nil
	default:
		return clipboard.Item{}, fmt.Errorf("%w: %s", errAmbiguousEntry, id)
	}
}

func formatEntry(item clipboard.Item, now time.Time) string {
	id := item.ID
	if len(id) > shortIDLength {
		id = id[:shortIDLength]
	}
	line := fmt.Sprintf("%s  %-8s  %s", id, age(now.Sub(item.Timestamp)), item.Preview())
	if item.SourceApp != "" {
		line += "  [" + item.SourceApp + "]"
	}
	return line
}

func age(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

type entryJSON struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	Timestamp     time.Time `json:"timestamp"`
	SourceApp     string    `json:"source_app,omitempty"`
	Text          string    `json:"text,omitempty"`
	ImageFilename string    `json:"image_filename,omitempty"`
}

func writeJSON(w io.Writer, items []clipboard.Item) error {
	out := make([]entryJSON, len(items))
	for i, item := range items {
		out[i] = entryJSON{
			ID:            item.ID,
			Kind:          string(item.Kind),
			Timestamp:     item.Timestamp,
			SourceApp:     item.SourceApp,
			Text:          item.Text,
			ImageFilename: item.ImageFilename,
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
