package clipboard

import (
	"bytes"
	"sync"
)

// ImageFormat identifies the representation an image was read in
type ImageFormat string

const (
	ImagePNG  ImageFormat = "png"
	ImageTIFF ImageFormat = "tiff"
)

// Image is raw image data as found on the pasteboard
type Image struct {
	Format ImageFormat
	Data   []byte
}

// Pasteboard is the system clipboard as seen by the Watcher and the copy-back
// path. Reads never fail: an unreadable pasteboard reports no content.
type Pasteboard interface {
	// ChangeCount returns a counter that changes whenever the pasteboard
	// contents change
	ChangeCount() int

	// ReadText returns the plain-text contents, if any
	ReadText() (string, bool)

	// ReadImage returns image contents, PNG preferred over TIFF
	ReadImage() (Image, bool)

	// FrontmostApp returns the name of the active application, or ""
	FrontmostApp() string

	// WriteText replaces the pasteboard contents with text
	WriteText(text string) error

	// WriteImage replaces the pasteboard contents with PNG image data
	WriteImage(png []byte) error
}

// contentCounter derives a change count for clipboards that expose none.
// Reads only count when the content differs from the last one seen; writes
// always count, so a copy-back of unchanged content still consumes the
// Watcher's ignore signal.
type contentCounter struct {
	mu    sync.Mutex
	count int
	text  []byte
	img   []byte
}

// observe records the current content and returns the change count
func (c *contentCounter) observe(text, img []byte) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !bytes.Equal(text, c.text) || !bytes.Equal(img, c.img) {
		c.text, c.img = text, img
		c.count++
	}
	return c.count
}

// wrote records content this process put on the clipboard
func (c *contentCounter) wrote(text, img []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text, c.img = text, img
	c.count++
}
