package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindmorass/clipshelf/internal/backend"
	"github.com/mindmorass/clipshelf/internal/clipboard"
	"github.com/mindmorass/clipshelf/internal/storage"
)

type fakeWatcher struct {
	mu       sync.Mutex
	running  bool
	paused   bool
	onStatus clipboard.StatusHandler
}

func (w *fakeWatcher) Start() { w.mu.Lock(); w.running = true; w.mu.Unlock() }
func (w *fakeWatcher) Stop()  { w.mu.Lock(); w.running = false; w.mu.Unlock() }

func (w *fakeWatcher) Pause()  { w.set(true) }
func (w *fakeWatcher) Resume() { w.set(false) }

func (w *fakeWatcher) set(paused bool) {
	w.mu.Lock()
	w.paused = paused
	h := w.onStatus
	w.mu.Unlock()
	if h != nil {
		h(paused)
	}
}

func (w *fakeWatcher) IsPaused() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.paused
}

func (w *fakeWatcher) OnStatusChange(h clipboard.StatusHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onStatus = h
}

type fakeCopier struct {
	text   []string
	images [][]byte
	err    error
}

func (c *fakeCopier) CopyText(text string) error {
	if c.err != nil {
		return c.err
	}
	c.text = append(c.text, text)
	return nil
}

func (c *fakeCopier) CopyImage(data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.images = append(c.images, data)
	return nil
}

// memoryBackend keeps the last written snapshot
type memoryBackend struct {
	mu       sync.Mutex
	snap     *storage.Snapshot
	writes   int
	writeErr error
}

func (b *memoryBackend) Write(_ context.Context, snap *storage.Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.writeErr != nil {
		return b.writeErr
	}
	b.snap = snap
	b.writes++
	return nil
}

func (b *memoryBackend) Read(context.Context) (*storage.Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.snap == nil {
		return nil, backend.ErrNotFound
	}
	return b.snap, nil
}

func (b *memoryBackend) GetModTime(context.Context) (time.Time, error) {
	return time.Time{}, backend.ErrNotFound
}

func (b *memoryBackend) Exists(context.Context) bool { return b.snap != nil }
func (b *memoryBackend) Init(context.Context) error  { return nil }
func (b *memoryBackend) Close() error                { return nil }
func (b *memoryBackend) Type() backend.BackendType   { return backend.BackendLocal }
func (b *memoryBackend) GetLocation() string         { return "memory" }
func (b *memoryBackend) SetLocation(string) error    { return nil }
func (b *memoryBackend) writeCount() int             { b.mu.Lock(); defer b.mu.Unlock(); return b.writes }
func (b *memoryBackend) setWriteErr(err error)       { b.mu.Lock(); b.writeErr = err; b.mu.Unlock() }

type fixture struct {
	engine  *Engine
	store   *storage.Store
	watcher *fakeWatcher
	copier  *fakeCopier
	backend *memoryBackend
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	store, err := storage.Open(storage.Options{Dir: t.TempDir(), Capacity: 10})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	f := &fixture{
		store:   store,
		watcher: &fakeWatcher{},
		copier:  &fakeCopier{},
		backend: &memoryBackend{},
	}
	f.engine = New(store, f.watcher, f.copier, f.backend, opts)
	return f
}

func TestEngine_StartStop(t *testing.T) {
	f := newFixture(t, Options{})

	var statuses []Status
	f.engine.OnStatusChange(func(s Status) { statuses = append(statuses, s) })

	require.NoError(t, f.engine.Start())
	require.NoError(t, f.engine.Start())
	assert.True(t, f.engine.IsRunning())
	assert.True(t, f.watcher.running)
	assert.Equal(t, StatusWatching, f.engine.GetStatus())

	f.engine.Pause()
	assert.True(t, f.engine.IsPaused())
	assert.Equal(t, StatusPaused, f.engine.GetStatus())

	f.engine.Resume()
	assert.Equal(t, StatusWatching, f.engine.GetStatus())

	f.engine.Stop()
	f.engine.Stop()
	assert.False(t, f.engine.IsRunning())
	assert.False(t, f.watcher.running)
	assert.Equal(t, StatusIdle, f.engine.GetStatus())

	assert.Equal(t, []Status{StatusWatching, StatusPaused, StatusWatching, StatusIdle}, statuses)
}

func TestEngine_CopyBackText(t *testing.T) {
	f := newFixture(t, Options{})
	item := clipboard.NewTextItem("hello", "", time.Now())
	f.store.Add(item)

	require.NoError(t, f.engine.CopyBack(item.ID))
	assert.Equal(t, []string{"hello"}, f.copier.text)
}

func TestEngine_CopyBackImage(t *testing.T) {
	f := newFixture(t, Options{})
	name, err := f.store.SaveImage([]byte("png"))
	require.NoError(t, err)
	item := clipboard.NewImageItem(name, "", time.Now())
	f.store.Add(item)

	require.NoError(t, f.engine.CopyBack(item.ID))
	assert.Equal(t, [][]byte{[]byte("png")}, f.copier.images)

	f.store.Delete(item)
	assert.ErrorIs(t, f.engine.CopyBack(item.ID), ErrItemNotFound)
}

func TestEngine_CopyBackErrors(t *testing.T) {
	f := newFixture(t, Options{})
	assert.ErrorIs(t, f.engine.CopyBack("missing"), ErrItemNotFound)

	item := clipboard.NewTextItem("x", "", time.Now())
	f.store.Add(item)
	f.copier.err = errors.New("pasteboard busy")
	assert.ErrorContains(t, f.engine.CopyBack(item.ID), "pasteboard busy")
}

func TestEngine_CopyPrevious(t *testing.T) {
	f := newFixture(t, Options{})
	assert.ErrorIs(t, f.engine.CopyPrevious(), ErrNothingToCopy)

	f.store.Add(clipboard.NewTextItem("older", "", time.Now()))
	assert.ErrorIs(t, f.engine.CopyPrevious(), ErrNothingToCopy)

	f.store.Add(clipboard.NewTextItem("newer", "", time.Now()))
	require.NoError(t, f.engine.CopyPrevious())
	assert.Equal(t, []string{"older"}, f.copier.text)
}

func TestEngine_BackupAndRestore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})

	f.store.Add(clipboard.NewTextItem("keep me", "", time.Now()))
	require.NoError(t, f.engine.BackupNow(ctx))
	assert.Equal(t, 1, f.backend.writeCount())
	assert.False(t, f.engine.GetLastBackupTime().IsZero())

	f.store.Clear()
	require.Equal(t, 0, len(f.store.Items()))

	require.NoError(t, f.engine.Restore(ctx))
	items := f.store.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "keep me", items[0].Text)
}

func TestEngine_BackupFailureSetsError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	require.NoError(t, f.engine.Start())
	defer f.engine.Stop()

	f.backend.setWriteErr(errors.New("disk full"))
	assert.Error(t, f.engine.BackupNow(ctx))
	assert.Equal(t, StatusError, f.engine.GetStatus())
	assert.ErrorContains(t, f.engine.GetLastError(), "disk full")

	f.backend.setWriteErr(nil)
	require.NoError(t, f.engine.BackupNow(ctx))
	assert.Equal(t, StatusWatching, f.engine.GetStatus())
	assert.NoError(t, f.engine.GetLastError())
}

func TestEngine_BackupDisabled(t *testing.T) {
	store, err := storage.Open(storage.Options{Dir: t.TempDir()})
	require.NoError(t, err)
	defer store.Close()

	e := New(store, &fakeWatcher{}, &fakeCopier{}, nil, Options{})
	assert.ErrorIs(t, e.BackupNow(context.Background()), backend.ErrNotConfigured)
}

func TestEngine_ScheduledBackupOnlyWhenChanged(t *testing.T) {
	f := newFixture(t, Options{BackupInterval: 20 * time.Millisecond})
	require.NoError(t, f.engine.Start())
	defer f.engine.Stop()

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 0, f.backend.writeCount())

	f.store.Add(clipboard.NewTextItem("new", "", time.Now()))
	assert.Eventually(t, func() bool { return f.backend.writeCount() == 1 }, time.Second, 10*time.Millisecond)

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 1, f.backend.writeCount())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "Idle", StatusIdle.String())
	assert.Equal(t, "Watching", StatusWatching.String())
	assert.Equal(t, "Paused", StatusPaused.String())
	assert.Equal(t, "Error", StatusError.String())
	assert.Equal(t, "Unknown", Status(42).String())
}
