package pipeline

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/kozaktomas/pose-guard/internal/facematch"
)

var (
	colorGreen  = color.RGBA{0, 255, 0, 255}
	colorRed    = color.RGBA{255, 0, 0, 255}
	colorYellow = color.RGBA{255, 255, 0, 255}
	colorCyan   = color.RGBA{0, 255, 255, 255}
)

// drawBox outlines box on img with the given line thickness.
func drawBox(img *image.RGBA, box facematch.Box, c color.RGBA, thickness int) {
	r := box.Rect().Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	src := image.NewUniform(c)
	t := min(thickness, r.Dx(), r.Dy())
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t),
		image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y),
		image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(img, e, src, image.Point{}, draw.Src)
	}
}

// drawLabel writes text with its baseline at (x, y), kept inside the image.
func drawLabel(img *image.RGBA, x, y int, text string, c color.RGBA) {
	face := basicfont.Face7x13
	b := img.Bounds()
	width := font.MeasureString(face, text).Ceil()
	x = max(b.Min.X, min(x, b.Max.X-width))
	y = max(b.Min.Y+face.Ascent, min(y, b.Max.Y-face.Descent))

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
