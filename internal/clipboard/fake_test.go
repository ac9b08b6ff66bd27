package clipboard

import (
	"errors"
	"fmt"
	"sync"
)

type fakePasteboard struct {
	mu       sync.Mutex
	count    int
	text     string
	hasText  bool
	img      Image
	hasImg   bool
	app      string
	writeErr error
}

func (f *fakePasteboard) setText(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
	f.text, f.hasText = text, true
	f.img, f.hasImg = Image{}, false
}

func (f *fakePasteboard) setImage(img Image) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
	f.text, f.hasText = "", false
	f.img, f.hasImg = img, true
}

func (f *fakePasteboard) setBoth(text string, img Image) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
	f.text, f.hasText = text, true
	f.img, f.hasImg = img, true
}

func (f *fakePasteboard) ChangeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

func (f *fakePasteboard) ReadText() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.text, f.hasText
}

func (f *fakePasteboard) ReadImage() (Image, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.img, f.hasImg
}

func (f *fakePasteboard) FrontmostApp() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.app
}

func (f *fakePasteboard) WriteText(text string) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.setText(text)
	return nil
}

func (f *fakePasteboard) WriteImage(png []byte) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.setImage(Image{Format: ImagePNG, Data: png})
	return nil
}

type fakeSink struct {
	mu      sync.Mutex
	items   []Item
	images  map[string][]byte
	saveErr error
}

func newFakeSink() *fakeSink {
	return &fakeSink{images: make(map[string][]byte)}
}

func (s *fakeSink) Add(item Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append([]Item{item}, s.items...)
}

func (s *fakeSink) SaveImage(data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return "", s.saveErr
	}
	name := fmt.Sprintf("img-%d.png", len(s.images))
	s.images[name] = data
	return name, nil
}

func (s *fakeSink) snapshot() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Item(nil), s.items...)
}

var errDiskFull = errors.New("disk full")

// contentPasteboard has no native change counter; like the x/clipboard
// adapter it derives one from the content
type contentPasteboard struct {
	mu      sync.Mutex
	counter contentCounter
	text    string
}

func (c *contentPasteboard) setText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = text
}

func (c *contentPasteboard) ChangeCount() int {
	c.mu.Lock()
	text := c.text
	c.mu.Unlock()
	return c.counter.observe([]byte(text), nil)
}

func (c *contentPasteboard) ReadText() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text, c.text != ""
}

func (c *contentPasteboard) ReadImage() (Image, bool) { return Image{}, false }

func (c *contentPasteboard) FrontmostApp() string { return "" }

func (c *contentPasteboard) WriteText(text string) error {
	c.setText(text)
	c.counter.wrote([]byte(text), nil)
	return nil
}

func (c *contentPasteboard) WriteImage([]byte) error { return errors.New("text only") }
