package clipboard

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultPollInterval is how often the pasteboard change counter is checked
const DefaultPollInterval = 500 * time.Millisecond

// Sink receives captured entries. The history store implements it.
type Sink interface {
	Add(item Item)
	SaveImage(data []byte) (string, error)
}

// StatusHandler is called when the watcher is paused or resumed
type StatusHandler func(paused bool)

// Watcher polls the pasteboard and forwards new entries to a Sink
type Watcher struct {
	board    Pasteboard
	sink     Sink
	signal   *Signal
	interval time.Duration
	now      func() time.Time

	lastChangeCount int
	lastHash        string
	paused          bool
	ignoreNext      bool
	onStatus        StatusHandler

	stopChan chan struct{}
	running  bool
	mu       sync.Mutex
}

// NewWatcher creates a watcher; it does not poll until Start is called.
// A zero interval selects DefaultPollInterval.
func NewWatcher(board Pasteboard, sink Sink, signal *Signal, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if signal == nil {
		signal = NewSignal()
	}
	return &Watcher{
		board:           board,
		sink:            sink,
		signal:          signal,
		interval:        interval,
		now:             time.Now,
		lastChangeCount: board.ChangeCount(),
		stopChan:        make(chan struct{}),
	}
}

// Signal returns the ignore channel shared with the copy-back path
func (w *Watcher) Signal() *Signal {
	return w.signal
}

// OnStatusChange sets the handler for pause/resume transitions
func (w *Watcher) OnStatusChange(handler StatusHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onStatus = handler
}

// Start begins polling the pasteboard
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.lastChangeCount = w.board.ChangeCount()
	w.stopChan = make(chan struct{})
	stop := w.stopChan
	w.mu.Unlock()

	slog.Info("clipboard watcher started", "interval", w.interval)
	go w.run(stop)
}

// Stop stops polling
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.running = false
	close(w.stopChan)
}

// IsRunning returns true if the polling loop is active
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Pause suspends capturing; polls become no-ops
func (w *Watcher) Pause() {
	w.setPaused(true)
}

// Resume re-enables capturing. Whatever was copied while paused is skipped.
func (w *Watcher) Resume() {
	w.setPaused(false)
}

// IsPaused returns true while capturing is suspended
func (w *Watcher) IsPaused() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.paused
}

func (w *Watcher) setPaused(paused bool) {
	w.mu.Lock()
	if w.paused == paused {
		w.mu.Unlock()
		return
	}
	w.paused = paused
	if !paused {
		w.lastChangeCount = w.board.ChangeCount()
		w.ignoreNext = false
		w.signal.reset()
	}
	handler := w.onStatus
	w.mu.Unlock()

	slog.Info("clipboard watcher state changed", "paused", paused)
	if handler != nil {
		handler(paused)
	}
}

func (w *Watcher) run(stop <-chan struct{}) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Poll()
		case <-stop:
			return
		}
	}
}

// Poll checks the pasteboard once and forwards a new entry if there is one
func (w *Watcher) Poll() {
	w.mu.Lock()
	defer w.mu.Unlock()

	select {
	case <-w.signal.C():
		w.ignoreNext = true
	default:
	}

	if w.paused {
		return
	}

	count := w.board.ChangeCount()
	if count == w.lastChangeCount {
		return
	}
	w.lastChangeCount = count

	if w.ignoreNext {
		w.ignoreNext = false
		slog.Debug("skipping self-initiated pasteboard change", "change_count", count)
		return
	}

	source := w.board.FrontmostApp()

	if text, ok := w.board.ReadText(); ok && text != "" {
		hash := HashBytes([]byte(text))
		if hash == w.lastHash {
			return
		}
		w.lastHash = hash
		item := NewTextItem(text, source, w.now())
		slog.Debug("captured text", "id", item.ID, "source", source, "chars", len(text))
		w.sink.Add(item)
		return
	}

	img, ok := w.board.ReadImage()
	if !ok {
		return
	}
	data, err := NormalizePNG(img)
	if err != nil {
		slog.Warn("unreadable pasteboard image", "format", img.Format, "err", err)
		return
	}
	hash := HashBytes(data)
	if hash == w.lastHash {
		return
	}
	filename, err := w.sink.SaveImage(data)
	if err != nil {
		slog.Error("failed to save captured image", "err", err)
		return
	}
	w.lastHash = hash
	item := NewImageItem(filename, source, w.now())
	slog.Debug("captured image", "id", item.ID, "source", source, "size_bytes", len(data))
	w.sink.Add(item)
}
