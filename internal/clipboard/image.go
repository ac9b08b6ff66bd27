package clipboard

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"

	"golang.org/x/image/tiff"
)

var ErrUnsupportedImage = errors.New("unsupported image format")

// NormalizePNG returns img as PNG bytes, converting TIFF data if needed
func NormalizePNG(img Image) ([]byte, error) {
	if len(img.Data) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrUnsupportedImage)
	}

	switch img.Format {
	case ImagePNG:
		return img.Data, nil
	case ImageTIFF:
		decoded, err := tiff.Decode(bytes.NewReader(img.Data))
		if err != nil {
			return nil, fmt.Errorf("decode tiff: %w", err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, decoded); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, img.Format)
	}
}
