package overlay

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/vector"
)

// Surface is the drawing target of the renderer. Coordinates are device
// pixels.
type Surface interface {
	// PixelSize returns the backing size in device pixels
	PixelSize() (w, h int)
	// Scale returns the device pixel ratio
	Scale() float64
	Clear()
	Line(x1, y1, x2, y2, width float64, c color.Color)
	Dot(x, y, r float64, c color.Color)
}

// Canvas is a transparent RGBA surface with a CSS size and a device pixel
// ratio. It is not safe for concurrent use; the renderer serialises access.
type Canvas struct {
	img        *image.RGBA
	raster     *vector.Rasterizer
	cssW, cssH int
	dpr        float64
}

// NewCanvas creates a canvas of cssW x cssH CSS pixels at the given ratio
func NewCanvas(cssW, cssH int, dpr float64) *Canvas {
	c := &Canvas{}
	c.Resize(cssW, cssH, dpr)
	return c
}

// Resize reallocates the backing image. The content is discarded.
func (c *Canvas) Resize(cssW, cssH int, dpr float64) {
	if !(dpr > 0) || math.IsInf(dpr, 0) {
		dpr = 1
	}
	c.cssW, c.cssH, c.dpr = max(cssW, 1), max(cssH, 1), dpr

	w := int(math.Round(float64(c.cssW) * dpr))
	h := int(math.Round(float64(c.cssH) * dpr))
	c.img = image.NewRGBA(image.Rect(0, 0, max(w, 1), max(h, 1)))
	c.raster = vector.NewRasterizer(c.img.Rect.Dx(), c.img.Rect.Dy())
}

// PixelSize implements Surface
func (c *Canvas) PixelSize() (int, int) {
	return c.img.Rect.Dx(), c.img.Rect.Dy()
}

// Scale implements Surface
func (c *Canvas) Scale() float64 { return c.dpr }

// Clear resets every pixel to transparent
func (c *Canvas) Clear() {
	draw.Draw(c.img, c.img.Rect, image.Transparent, image.Point{}, draw.Src)
}

// Line strokes a segment of the given width with flat ends
func (c *Canvas) Line(x1, y1, x2, y2, width float64, col color.Color) {
	dx, dy := x2-x1, y2-y1
	length := math.Hypot(dx, dy)
	if length == 0 || width <= 0 {
		return
	}
	// unit normal scaled to half the width
	nx, ny := -dy/length*width/2, dx/length*width/2

	c.begin()
	c.raster.MoveTo(float32(x1+nx), float32(y1+ny))
	c.raster.LineTo(float32(x2+nx), float32(y2+ny))
	c.raster.LineTo(float32(x2-nx), float32(y2-ny))
	c.raster.LineTo(float32(x1-nx), float32(y1-ny))
	c.raster.ClosePath()
	c.fill(col)
}

// circleK places cubic control points for a quarter circle
const circleK = 0.5522847498

// Dot fills a circle of radius r
func (c *Canvas) Dot(x, y, r float64, col color.Color) {
	if r <= 0 {
		return
	}
	k := r * circleK

	c.begin()
	c.raster.MoveTo(float32(x+r), float32(y))
	c.raster.CubeTo(float32(x+r), float32(y+k), float32(x+k), float32(y+r), float32(x), float32(y+r))
	c.raster.CubeTo(float32(x-k), float32(y+r), float32(x-r), float32(y+k), float32(x-r), float32(y))
	c.raster.CubeTo(float32(x-r), float32(y-k), float32(x-k), float32(y-r), float32(x), float32(y-r))
	c.raster.CubeTo(float32(x+k), float32(y-r), float32(x+r), float32(y-k), float32(x+r), float32(y))
	c.raster.ClosePath()
	c.fill(col)
}

func (c *Canvas) begin() {
	c.raster.Reset(c.img.Rect.Dx(), c.img.Rect.Dy())
	c.raster.DrawOp = draw.Over
}

func (c *Canvas) fill(col color.Color) {
	c.raster.Draw(c.img, c.img.Rect, image.NewUniform(col), image.Point{})
}

// Image returns the backing image
func (c *Canvas) Image() *image.RGBA { return c.img }

// PNG encodes the current content
func (c *Canvas) PNG(w io.Writer) error {
	return png.Encode(w, c.img)
}
