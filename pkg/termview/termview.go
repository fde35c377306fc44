// Package termview draws images in a terminal with half-block characters,
// two image rows per line of text.
package termview

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"strings"

	"github.com/muesli/termenv"

	"github.com/df07/go-interactive-raytracer/pkg/surface"
)

// upperHalf shows the foreground colour on top and the background below
const upperHalf = "▀"

// ramp is used when the terminal has no colour support
const ramp = " .:-=+*#%@"

// Render writes img scaled to cols characters wide. Colour sequences are
// degraded to what profile supports.
func Render(w io.Writer, img image.Image, profile termenv.Profile, cols int) error {
	_, err := io.WriteString(w, Format(img, profile, cols))
	return err
}

// Format returns the text Render would write, one line per two image rows
func Format(img image.Image, profile termenv.Profile, cols int) string {
	b := img.Bounds()
	if cols < 1 || b.Empty() {
		return ""
	}

	scaled := surface.Scale(img, cols, 0)
	height := scaled.Bounds().Dy()

	var sb strings.Builder
	for y := 0; y < height; y += 2 {
		for x := range cols {
			top := scaled.RGBAAt(x, y)
			if profile == termenv.Ascii {
				sb.WriteByte(shadeChar(top))
				continue
			}

			style := profile.String(upperHalf).Foreground(profile.Color(hex(top)))
			if y+1 < height {
				style = style.Background(profile.Color(hex(scaled.RGBAAt(x, y+1))))
			}
			sb.WriteString(style.String())
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Lines returns how many text lines Format produces for img at cols
func Lines(img image.Image, cols int) int {
	b := img.Bounds()
	if cols < 1 || b.Empty() {
		return 0
	}
	height := max(1, cols*b.Dy()/b.Dx())
	return (height + 1) / 2
}

func hex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// shadeChar maps luminance to the ASCII ramp
func shadeChar(c color.RGBA) byte {
	lum := (299*int(c.R) + 587*int(c.G) + 114*int(c.B)) / 1000
	return ramp[lum*(len(ramp)-1)/255]
}

// Preview redraws an image in place, for progress display while rendering
type Preview struct {
	out   *termenv.Output
	cols  int
	lines int // lines written by the previous Draw
}

// NewPreview creates a preview writing to w. The colour profile is detected
// from w unless overridden with termenv.WithProfile.
func NewPreview(w io.Writer, cols int, opts ...termenv.OutputOption) *Preview {
	return &Preview{
		out:  termenv.NewOutput(w, opts...),
		cols: cols,
	}
}

// Profile returns the colour profile in use
func (p *Preview) Profile() termenv.Profile {
	return p.out.Profile
}

// Draw replaces the previous frame with img followed by a status line
func (p *Preview) Draw(img image.Image, status string) error {
	if p.lines > 0 {
		p.out.CursorPrevLine(p.lines)
	}

	text := Format(img, p.out.Profile, p.cols)
	if _, err := io.WriteString(p.out, text); err != nil {
		return err
	}
	p.out.ClearLine()
	if _, err := fmt.Fprintln(p.out, status); err != nil {
		return err
	}

	p.lines = strings.Count(text, "\n") + 1
	return nil
}
