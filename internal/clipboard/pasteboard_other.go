//go:build !darwin

package clipboard

import (
	"errors"
	"log/slog"

	"golang.design/x/clipboard"
)

var ErrHeadless = errors.New("no clipboard available")

// polledPasteboard synthesizes a change counter by comparing the clipboard
// contents on every ChangeCount call.
type polledPasteboard struct {
	counter contentCounter
}

// New returns the golang.design/x/clipboard adapter, or a headless no-op
// pasteboard if no display is available.
func New() Pasteboard {
	if err := clipboard.Init(); err != nil {
		slog.Warn("clipboard unavailable, running headless", "err", err)
		return headlessPasteboard{}
	}
	return &polledPasteboard{}
}

func (p *polledPasteboard) ChangeCount() int {
	return p.counter.observe(clipboard.Read(clipboard.FmtText), clipboard.Read(clipboard.FmtImage))
}

func (p *polledPasteboard) ReadText() (string, bool) {
	text := clipboard.Read(clipboard.FmtText)
	if text == nil {
		return "", false
	}
	return string(text), true
}

func (p *polledPasteboard) ReadImage() (Image, bool) {
	img := clipboard.Read(clipboard.FmtImage)
	if img == nil {
		return Image{}, false
	}
	return Image{Format: ImagePNG, Data: img}, true
}

func (p *polledPasteboard) FrontmostApp() string { return "" }

func (p *polledPasteboard) WriteText(text string) error {
	clipboard.Write(clipboard.FmtText, []byte(text))
	p.counter.wrote(clipboard.Read(clipboard.FmtText), clipboard.Read(clipboard.FmtImage))
	return nil
}

func (p *polledPasteboard) WriteImage(png []byte) error {
	if len(png) == 0 {
		return ErrUnsupportedImage
	}
	clipboard.Write(clipboard.FmtImage, png)
	p.counter.wrote(clipboard.Read(clipboard.FmtText), clipboard.Read(clipboard.FmtImage))
	return nil
}

// headlessPasteboard never changes and rejects writes
type headlessPasteboard struct{}

func (headlessPasteboard) ChangeCount() int         { return 0 }
func (headlessPasteboard) ReadText() (string, bool) { return "", false }
func (headlessPasteboard) ReadImage() (Image, bool) { return Image{}, false }
func (headlessPasteboard) FrontmostApp() string     { return "" }
func (headlessPasteboard) WriteText(string) error   { return ErrHeadless }
func (headlessPasteboard) WriteImage([]byte) error  { return ErrHeadless }
