package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mindmorass/clipshelf/internal/clipboard"
)

const (
	// HistoryFile is the JSON document holding the ordered history
	HistoryFile = "history.json"

	// ImagesDir holds one PNG file per image entry
	ImagesDir = "images"

	// FilePermissions for history and image files
	FilePermissions = 0600

	// DirPermissions for the data directory
	DirPermissions = 0700
)

// record is the persisted form of a clipboard.Item
type record struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	SourceApp     *string   `json:"sourceApp"`
	TextContent   *string   `json:"textContent"`
	ImageFilename *string   `json:"imageFilename"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func toRecords(items []clipboard.Item) []record {
	out := make([]record, len(items))
	for i, it := range items {
		out[i] = record{
			ID:            it.ID,
			Type:          string(it.Kind),
			Timestamp:     it.Timestamp,
			SourceApp:     optional(it.SourceApp),
			TextContent:   optional(it.Text),
			ImageFilename: optional(it.ImageFilename),
		}
	}
	return out
}

// fromRecords converts records back to items, dropping any that violate the
// kind/payload invariant.
func fromRecords(records []record) []clipboard.Item {
	items := make([]clipboard.Item, 0, len(records))
	for _, r := range records {
		item := clipboard.Item{
			ID:            r.ID,
			Kind:          clipboard.Kind(r.Type),
			Timestamp:     r.Timestamp,
			SourceApp:     deref(r.SourceApp),
			Text:          deref(r.TextContent),
			ImageFilename: deref(r.ImageFilename),
		}
		if err := item.Validate(); err != nil {
			slog.Warn("skipping invalid history record", "id", r.ID, "err", err)
			continue
		}
		items = append(items, item)
	}
	return items
}

// encodeHistory serializes items in their current order
func encodeHistory(items []clipboard.Item) ([]byte, error) {
	return json.MarshalIndent(toRecords(items), "", "  ")
}

// decodeHistory parses a history document
func decodeHistory(data []byte) ([]clipboard.Item, error) {
	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse history: %w", err)
	}
	return fromRecords(records), nil
}

// ReadHistory loads the persisted history from dir without taking the store
// lock. A missing history file yields an empty history.
func ReadHistory(dir string) ([]clipboard.Item, error) {
	data, err := os.ReadFile(filepath.Join(dir, HistoryFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read history: %w", err)
	}
	return decodeHistory(data)
}

// ReadImage loads an image blob by filename from dir
func ReadImage(dir, filename string) ([]byte, error) {
	path, err := imagePath(filepath.Join(dir, ImagesDir), filename)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// imagePath resolves filename inside imagesDir, rejecting path traversal
func imagePath(imagesDir, filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || filename == "." || filename == ".." {
		return "", fmt.Errorf("invalid image filename: %q", filename)
	}
	return filepath.Join(imagesDir, filename), nil
}

// writeFileAtomic writes data to a temp file and renames it into place
func writeFileAtomic(path string, data []byte) error {
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, FilePermissions); err != nil {
		return fmt.Errorf("write temp file failed: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename failed: %w", err)
	}
	return nil
}

// saver persists history snapshots on its own goroutine. Only the newest
// pending snapshot is kept; older ones are superseded.
type saver struct {
	path    string
	pending chan []clipboard.Item
	done    chan struct{}
	once    sync.Once
}

func newSaver(path string) *saver {
	s := &saver{
		path:    path,
		pending: make(chan []clipboard.Item, 1),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

// enqueue schedules items for writing. Callers must serialize enqueue calls.
func (s *saver) enqueue(items []clipboard.Item) {
	for {
		select {
		case s.pending <- items:
			return
		default:
		}
		select {
		case <-s.pending:
		default:
		}
	}
}

// close writes whatever is pending and stops the goroutine
func (s *saver) close() {
	s.once.Do(func() {
		close(s.pending)
		<-s.done
	})
}

func (s *saver) run() {
	defer close(s.done)
	for items := range s.pending {
		if err := s.write(items); err != nil {
			slog.Error("failed to persist history", "path", s.path, "err", err)
		}
	}
}

func (s *saver) write(items []clipboard.Item) error {
	data, err := encodeHistory(items)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	return writeFileAtomic(s.path, data)
}
