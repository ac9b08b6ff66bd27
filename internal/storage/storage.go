// Package storage owns the clipboard history: the ordered, capacity-bounded
// item list, its JSON persistence, and the image files entries refer to.
package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/mindmorass/clipshelf/internal/clipboard"
)

const (
	// DefaultCapacity is the number of entries kept when no capacity is configured
	DefaultCapacity = 100

	// LockFile guards the data directory against a second writer
	LockFile = "clipshelf.lock"
)

var (
	ErrLocked = errors.New("history is locked by another clipshelf process")
	ErrClosed = errors.New("history store is closed")
)

// Options configures a Store
type Options struct {
	Dir      string
	Capacity int
}

// Store is the authoritative clipboard history. All mutations are serialized
// by mu; observers are notified after each mutation completes.
type Store struct {
	dir         string
	imagesDir   string
	historyPath string
	capacity    int
	lock        *flock.Flock
	saver       *saver

	mu     sync.Mutex
	items  []clipboard.Item // newest first, replaced rather than modified in place
	closed bool
	// saved by SaveImage but not yet referenced by an Add; Clear keeps these
	pending map[string]struct{}

	subMu   sync.Mutex
	subs    map[int]chan struct{}
	nextSub int
}

// Open prepares the data directory, takes the writer lock and loads any
// persisted history. An unreadable history file is logged and ignored.
func Open(opts Options) (*Store, error) {
	if opts.Dir == "" {
		return nil, errors.New("storage directory is required")
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}

	s := &Store{
		dir:         opts.Dir,
		imagesDir:   filepath.Join(opts.Dir, ImagesDir),
		historyPath: filepath.Join(opts.Dir, HistoryFile),
		capacity:    opts.Capacity,
		pending:     make(map[string]struct{}),
		subs:        make(map[int]chan struct{}),
	}

	if err := os.MkdirAll(s.imagesDir, DirPermissions); err != nil {
		return nil, fmt.Errorf("create storage directories: %w", err)
	}

	s.lock = flock.New(filepath.Join(opts.Dir, LockFile))
	locked, err := s.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", opts.Dir, err)
	}
	if !locked {
		return nil, ErrLocked
	}

	items, trimmed := s.load()
	s.items = items
	s.saver = newSaver(s.historyPath)
	if trimmed {
		// the evicted images are already gone
		s.saver.enqueue(s.items)
	}

	slog.Info("history store opened", "dir", opts.Dir, "items", len(s.items), "capacity", s.capacity)
	return s, nil
}

func (s *Store) load() (items []clipboard.Item, trimmed bool) {
	data, err := os.ReadFile(s.historyPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Info("no history file, starting empty", "path", s.historyPath)
		} else {
			slog.Warn("failed to read history, starting empty", "path", s.historyPath, "err", err)
		}
		return nil, false
	}

	items, err = decodeHistory(data)
	if err != nil {
		slog.Warn("failed to parse history, starting empty", "path", s.historyPath, "err", err)
		return nil, false
	}

	if len(items) > s.capacity {
		for _, evicted := range items[s.capacity:] {
			s.removeImage(evicted)
		}
		items = items[:s.capacity]
		trimmed = true
	}
	return items, trimmed
}

// Dir returns the data directory
func (s *Store) Dir() string {
	return s.dir
}

// Capacity returns the maximum number of entries kept
func (s *Store) Capacity() int {
	return s.capacity
}

// Add prepends item, evicting the oldest entries beyond capacity
func (s *Store) Add(item clipboard.Item) {
	if err := item.Validate(); err != nil {
		slog.Warn("rejecting clipboard item", "err", err)
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		slog.Warn("add on closed history store", "id", item.ID)
		return
	}
	items := make([]clipboard.Item, 0, len(s.items)+1)
	items = append(items, item)
	items = append(items, s.items...)
	for len(items) > s.capacity {
		evicted := items[len(items)-1]
		items = items[:len(items)-1]
		s.removeImage(evicted)
		slog.Debug("evicted oldest history entry", "id", evicted.ID)
	}
	s.items = items
	if item.IsImage() {
		delete(s.pending, item.ImageFilename)
	}
	s.saver.enqueue(s.items)
	s.mu.Unlock()

	s.notify()
}

// Delete removes the entry with item's ID and its image file. It reports
// whether anything was removed.
func (s *Store) Delete(item clipboard.Item) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	idx := s.indexLocked(item.ID)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	removed := s.items[idx]
	items := make([]clipboard.Item, 0, len(s.items)-1)
	items = append(items, s.items[:idx]...)
	items = append(items, s.items[idx+1:]...)
	s.items = items
	s.removeImage(removed)
	s.saver.enqueue(s.items)
	s.mu.Unlock()

	s.notify()
	return true
}

// Clear empties the history and deletes every image file except those
// saved for an entry that has not been added yet
func (s *Store) Clear() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	for _, item := range s.items {
		s.removeImage(item)
	}
	s.sweepImages()
	s.items = []clipboard.Item{}
	s.saver.enqueue(s.items)
	s.mu.Unlock()

	slog.Info("history cleared")
	s.notify()
}

// Image loads the image bytes for a tracked image entry. Entries that are no
// longer in the history, or whose file is gone, yield false.
func (s *Store) Image(item clipboard.Item) ([]byte, bool) {
	s.mu.Lock()
	idx := s.indexLocked(item.ID)
	var tracked clipboard.Item
	if idx >= 0 {
		tracked = s.items[idx]
	}
	s.mu.Unlock()

	if idx < 0 || !tracked.IsImage() {
		return nil, false
	}
	path, err := imagePath(s.imagesDir, tracked.ImageFilename)
	if err != nil {
		slog.Warn("bad image reference", "id", tracked.ID, "err", err)
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Debug("image unavailable", "id", tracked.ID, "path", path, "err", err)
		return nil, false
	}
	return data, true
}

// SaveImage writes data under a new unique filename and returns the filename
func (s *Store) SaveImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty image data")
	}
	filename := uuid.New().String() + ".png"

	s.mu.Lock()
	s.pending[filename] = struct{}{}
	s.mu.Unlock()

	if err := writeFileAtomic(filepath.Join(s.imagesDir, filename), data); err != nil {
		s.mu.Lock()
		delete(s.pending, filename)
		s.mu.Unlock()
		return "", fmt.Errorf("save image: %w", err)
	}
	return filename, nil
}

// Items returns the history, newest first
func (s *Store) Items() []clipboard.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]clipboard.Item(nil), s.items...)
}

// Len returns the number of entries
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Get returns the entry with the given ID
func (s *Store) Get(id string) (clipboard.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return clipboard.Item{}, false
	}
	return s.items[idx], true
}

// Filter returns the items whose text, source application or preview label
// contains query, ignoring case. An empty query matches everything.
func Filter(items []clipboard.Item, query string) []clipboard.Item {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return items
	}
	var out []clipboard.Item
	for _, item := range items {
		if strings.Contains(strings.ToLower(item.Text), q) ||
			strings.Contains(strings.ToLower(item.SourceApp), q) ||
			(item.IsImage() && strings.Contains(strings.ToLower(clipboard.ImagePreview), q)) {
			out = append(out, item)
		}
	}
	return out
}

// Subscribe returns a channel that receives a signal after every change to
// the history, and a function that cancels the subscription. Signals are
// coalesced; receivers should re-read Items.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) notify() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Close writes any pending history, stops the saver and releases the lock
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.saver.close()
	if err := s.lock.Unlock(); err != nil {
		return fmt.Errorf("unlock %s: %w", s.dir, err)
	}
	return nil
}

func (s *Store) indexLocked(id string) int {
	for i, item := range s.items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

// removeImage deletes the backing file of an image entry
func (s *Store) removeImage(item clipboard.Item) {
	if !item.IsImage() {
		return
	}
	path, err := imagePath(s.imagesDir, item.ImageFilename)
	if err != nil {
		slog.Warn("bad image reference", "id", item.ID, "err", err)
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to delete image", "path", path, "err", err)
	}
}

// sweepImages removes leftover files in the images directory; mu must be held
func (s *Store) sweepImages() {
	entries, err := os.ReadDir(s.imagesDir)
	if err != nil {
		slog.Warn("failed to list images", "dir", s.imagesDir, "err", err)
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := s.pending[e.Name()]; ok {
			continue
		}
		path := filepath.Join(s.imagesDir, e.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to delete image", "path", path, "err", err)
		}
	}
}

// Snapshot captures the history and its images for backup
func (s *Store) Snapshot() *Snapshot {
	items := s.Items()
	return buildSnapshot(items, func(name string) ([]byte, error) {
		path, err := imagePath(s.imagesDir, name)
		if err != nil {
			return nil, err
		}
		return os.ReadFile(path)
	})
}

// LoadSnapshot builds a snapshot straight from the files in dir, without
// opening a Store.
func LoadSnapshot(dir string) (*Snapshot, error) {
	items, err := ReadHistory(dir)
	if err != nil {
		return nil, err
	}
	return buildSnapshot(items, func(name string) ([]byte, error) {
		return ReadImage(dir, name)
	}), nil
}

func buildSnapshot(items []clipboard.Item, readImage func(string) ([]byte, error)) *Snapshot {
	hostname, _ := os.Hostname()
	snap := &Snapshot{
		CreatedAt:     time.Now().UTC(),
		SourceMachine: hostname,
		SourceUser:    os.Getenv("USER"),
		Images:        make(map[string][]byte),
	}
	for _, item := range items {
		if item.IsImage() {
			data, err := readImage(item.ImageFilename)
			if err != nil {
				slog.Warn("image missing from snapshot", "id", item.ID, "err", err)
				continue
			}
			snap.Images[item.ImageFilename] = data
		}
		snap.Items = append(snap.Items, item)
	}
	return snap
}

// Import replaces the whole history with the contents of snap. Entries whose
// image is absent from the snapshot are skipped.
func (s *Store) Import(snap *Snapshot) error {
	if snap == nil {
		return errors.New("snapshot is nil")
	}

	var items []clipboard.Item
	for _, item := range snap.Items {
		if err := item.Validate(); err != nil {
			slog.Warn("skipping invalid snapshot entry", "err", err)
			continue
		}
		if item.IsImage() {
			if _, ok := snap.Images[item.ImageFilename]; !ok {
				slog.Warn("skipping snapshot entry without image", "id", item.ID)
				continue
			}
		}
		items = append(items, item)
		if len(items) == s.capacity {
			break
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	for _, item := range s.items {
		s.removeImage(item)
	}
	s.sweepImages()
	for _, item := range items {
		if !item.IsImage() {
			continue
		}
		path, err := imagePath(s.imagesDir, item.ImageFilename)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		if err := writeFileAtomic(path, snap.Images[item.ImageFilename]); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("restore image %s: %w", item.ImageFilename, err)
		}
	}
	if items == nil {
		items = []clipboard.Item{}
	}
	s.items = items
	s.saver.enqueue(s.items)
	s.mu.Unlock()

	slog.Info("history restored", "items", len(items), "source", snap.SourceMachine)
	s.notify()
	return nil
}
