package clipboard

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Kind represents the type of a captured clipboard entry
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

const (
	// PreviewLength is the maximum number of runes in a text preview
	PreviewLength = 100

	// ImagePreview is the preview label used for image entries
	ImagePreview = "Image"
)

var ErrInvalidItem = errors.New("invalid clipboard item")

// Item is a single captured clipboard entry. Items are values and are never
// modified after creation.
type Item struct {
	ID            string
	Kind          Kind
	Timestamp     time.Time
	SourceApp     string // empty when the source application is unknown
	Text          string // set for KindText only
	ImageFilename string // set for KindImage only
}

// NewTextItem creates a text entry with a fresh ID
func NewTextItem(text, sourceApp string, at time.Time) Item {
	return Item{
		ID:        uuid.New().String(),
		Kind:      KindText,
		Timestamp: at,
		SourceApp: sourceApp,
		Text:      text,
	}
}

// NewImageItem creates an image entry referencing a stored image file
func NewImageItem(filename, sourceApp string, at time.Time) Item {
	return Item{
		ID:            uuid.New().String(),
		Kind:          KindImage,
		Timestamp:     at,
		SourceApp:     sourceApp,
		ImageFilename: filename,
	}
}

// IsText returns true if the entry holds text
func (i Item) IsText() bool {
	return i.Kind == KindText
}

// IsImage returns true if the entry references an image file
func (i Item) IsImage() bool {
	return i.Kind == KindImage
}

// Validate checks that exactly the payload matching Kind is populated.
func (i Item) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidItem)
	}
	switch i.Kind {
	case KindText:
		if i.Text == "" || i.ImageFilename != "" {
			return fmt.Errorf("%w: text item %s must carry only text", ErrInvalidItem, i.ID)
		}
	case KindImage:
		if i.ImageFilename == "" || i.Text != "" {
			return fmt.Errorf("%w: image item %s must carry only a filename", ErrInvalidItem, i.ID)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidItem, i.Kind)
	}
	return nil
}

// Preview returns a single-line summary suitable for menus and listings
func (i Item) Preview() string {
	if i.IsImage() {
		return ImagePreview
	}
	text := strings.Join(strings.Fields(i.Text), " ")
	if utf8.RuneCountInString(text) <= PreviewLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:PreviewLength]) + "…"
}

// HashBytes returns the hex sha256 of data; the Watcher compares captures by
// the hash of their text or PNG bytes
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
