// Package surface provides the 32-bit BGRX framebuffer the renderer presents
// into, plus helpers to scale and encode it.
package surface

import (
	"encoding/binary"
	"image"
	"image/color"
)

// BytesPerPixel is the size of one BGRX pixel
const BytesPerPixel = 4

// BGRX is an in-memory framebuffer where each pixel is a little-endian
// 32-bit word 0x00RRGGBB, i.e. bytes B, G, R, X in memory order.
type BGRX struct {
	Pix    []byte
	Stride int
	Rect   image.Rectangle
}

// NewBGRX allocates a tightly packed surface of the given size
func NewBGRX(width, height int) *BGRX {
	stride := width * BytesPerPixel
	return &BGRX{
		Pix:    make([]byte, stride*height),
		Stride: stride,
		Rect:   image.Rect(0, 0, width, height),
	}
}

// ColorModel implements image.Image
func (s *BGRX) ColorModel() color.Model { return color.RGBAModel }

// Bounds implements image.Image
func (s *BGRX) Bounds() image.Rectangle { return s.Rect }

// PixOffset returns the index of the first byte of pixel (x, y)
func (s *BGRX) PixOffset(x, y int) int {
	return (y-s.Rect.Min.Y)*s.Stride + (x-s.Rect.Min.X)*BytesPerPixel
}

// At implements image.Image. The padding byte is ignored and alpha is opaque.
func (s *BGRX) At(x, y int) color.Color {
	return s.RGBAAt(x, y)
}

// RGBAAt returns the pixel at (x, y) as an opaque RGBA colour
func (s *BGRX) RGBAAt(x, y int) color.RGBA {
	if !(image.Point{x, y}.In(s.Rect)) {
		return color.RGBA{}
	}
	word := s.Word(x, y)
	return color.RGBA{
		R: uint8(word >> 16),
		G: uint8(word >> 8),
		B: uint8(word),
		A: 255,
	}
}

// Word returns the raw 0x00RRGGBB word of pixel (x, y)
func (s *BGRX) Word(x, y int) uint32 {
	i := s.PixOffset(x, y)
	return binary.LittleEndian.Uint32(s.Pix[i : i+BytesPerPixel])
}

// Set implements draw.Image
func (s *BGRX) Set(x, y int, c color.Color) {
	if !(image.Point{x, y}.In(s.Rect)) {
		return
	}
	rgba := color.RGBAModel.Convert(c).(color.RGBA)
	i := s.PixOffset(x, y)
	binary.LittleEndian.PutUint32(s.Pix[i:i+BytesPerPixel], PackRGB(rgba.R, rgba.G, rgba.B))
}

// PackRGB builds the 0x00RRGGBB word for one pixel
func PackRGB(r, g, b uint8) uint32 {
	return uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}
