package surface

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// ErrUnknownFormat is returned for image formats other than png and bmp
var ErrUnknownFormat = errors.New("unknown image format")

// Format is an output image encoding
type Format string

const (
	PNG Format = "png"
	BMP Format = "bmp"
)

// ParseFormat parses a format name, case-insensitively
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(name)); f {
	case PNG, BMP:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Extension returns the file extension including the dot
func (f Format) Extension() string {
	return "." + string(f)
}

// ContentType returns the MIME type of the format
func (f Format) ContentType() string {
	if f == BMP {
		return "image/bmp"
	}
	return "image/png"
}

// Encode writes img to w in the requested format
func Encode(w io.Writer, img image.Image, format Format) error {
	switch format {
	case PNG:
		return png.Encode(w, img)
	case BMP:
		return bmp.Encode(w, img)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Scale resamples src to the given size with bilinear filtering. A zero
// height keeps the aspect ratio of src.
func Scale(src image.Image, width, height int) *image.RGBA {
	b := src.Bounds()
	if height <= 0 && b.Dx() > 0 {
		height = max(1, width*b.Dy()/b.Dx())
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}
