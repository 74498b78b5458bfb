// Package layout renders the shared window list as a diagnostic image: one
// outlined rectangle per window, labelled with its id, in screen coordinates
// scaled to fit.
package layout

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"github.com/mj1618/winsync/internal/model"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Options controls the rendered map.
type Options struct {
	// MaxWidth is the widest the image may be, in pixels. Default 1024.
	MaxWidth int
	// Padding around the union of all windows, in pixels. Default 16.
	Padding int
	// Highlight is the id of a window drawn filled. Zero draws none.
	Highlight int
}

var (
	background   = color.RGBA{R: 24, G: 24, B: 28, A: 255}
	textColor    = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	outlineColor = color.RGBA{R: 0, G: 0, B: 0, A: 200}
	palette      = []color.RGBA{
		{R: 230, G: 80, B: 80, A: 255},
		{R: 80, G: 200, B: 120, A: 255},
		{R: 90, G: 140, B: 240, A: 255},
		{R: 240, G: 190, B: 60, A: 255},
		{R: 200, G: 100, B: 220, A: 255},
		{R: 60, G: 200, B: 210, A: 255},
	}
)

// ColorFor returns the outline colour used for a window id.
func ColorFor(id int) color.RGBA {
	if id < 0 {
		id = -id
	}
	return palette[id%len(palette)]
}

// Bounds returns the union of all window shapes in screen pixels.
func Bounds(windows []model.WindowRecord) image.Rectangle {
	var r image.Rectangle
	for i, w := range windows {
		wr := image.Rect(w.Shape.X, w.Shape.Y, w.Shape.X+w.Shape.W, w.Shape.Y+w.Shape.H)
		if i == 0 {
			r = wr
			continue
		}
		r = r.Union(wr)
	}
	return r
}

// Render draws windows onto a new image.
func Render(windows []model.WindowRecord, opts Options) *image.RGBA {
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = 1024
	}
	if opts.Padding < 0 {
		opts.Padding = 0
	} else if opts.Padding == 0 {
		opts.Padding = 16
	}

	union := Bounds(windows)
	scale := 1.0
	inner := opts.MaxWidth - 2*opts.Padding
	if union.Dx() > inner && inner > 0 {
		scale = float64(inner) / float64(union.Dx())
	}

	imgW := int(float64(union.Dx())*scale) + 2*opts.Padding
	imgH := int(float64(union.Dy())*scale) + 2*opts.Padding
	img := image.NewRGBA(image.Rect(0, 0, imgW, imgH))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	toImage := func(x, y int) (int, int) {
		return opts.Padding + int(float64(x-union.Min.X)*scale),
			opts.Padding + int(float64(y-union.Min.Y)*scale)
	}

	for _, w := range windows {
		x1, y1 := toImage(w.Shape.X, w.Shape.Y)
		x2, y2 := toImage(w.Shape.X+w.Shape.W, w.Shape.Y+w.Shape.H)
		c := ColorFor(w.ID)
		if w.ID == opts.Highlight {
			fill := color.NRGBA{R: c.R, G: c.G, B: c.B, A: 90}
			draw.Draw(img, image.Rect(x1, y1, x2, y2).Intersect(img.Bounds()), image.NewUniform(fill), image.Point{}, draw.Over)
		}
		drawRectangle(img, x1, y1, x2, y2, c)
		cx, cy := toImage(w.Shape.Center())
		drawTextWithOutline(img, fmt.Sprintf("[%d]", w.ID), cx, cy, textColor, outlineColor)
	}
	return img
}

// WritePNG renders windows and encodes the result as PNG to w.
func WritePNG(w io.Writer, windows []model.WindowRecord, opts Options) error {
	if err := png.Encode(w, Render(windows, opts)); err != nil {
		return fmt.Errorf("png encode: %w", err)
	}
	return nil
}

// drawRectangle draws a rectangle outline, clamped to the image.
func drawRectangle(img *image.RGBA, x1, y1, x2, y2 int, c color.Color) {
	r := image.Rect(x1, y1, x2, y2).Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	for x := r.Min.X; x < r.Max.X; x++ {
		img.Set(x, r.Min.Y, c)
		img.Set(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.Set(r.Min.X, y, c)
		img.Set(r.Max.X-1, y, c)
	}
}

// drawTextWithOutline draws text centered on (x, y) with a one pixel outline.
func drawTextWithOutline(img *image.RGBA, text string, x, y int, fg, outline color.Color) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	ascent := face.Metrics().Ascent.Ceil()

	originX := x - width/2
	originY := y + ascent/2

	draw1 := func(dx, dy int, c color.Color) {
		d := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(c),
			Face: face,
			Dot:  fixed.P(originX+dx, originY+dy),
		}
		d.DrawString(text)
	}
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			if dx != 0 || dy != 0 {
				draw1(dx, dy, outline)
			}
		}
	}
	draw1(0, 0, fg)
}
