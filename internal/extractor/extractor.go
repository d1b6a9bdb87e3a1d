package extractor

import (
	"context"
	"image"
	"math"

	"golang.org/x/image/draw"
)

// DefaultMaxDimension caps the long axis of the offscreen bitmap handed to the
// landmark detector
const DefaultMaxDimension = 720

// Source is a seekable video. Seek blocks until the frame at t has been
// decoded; only then does Frame return it. A Source serves one seek at a time.
type Source interface {
	// Duration returns the length of the video in seconds
	Duration() float64
	// Size returns the native frame dimensions
	Size() (width, height int)
	Seek(ctx context.Context, t float64) error
	// Frame returns the currently presented frame, nil before the first seek
	Frame() image.Image
	Close() error
}

// Opener opens video sources by path
type Opener interface {
	Open(ctx context.Context, path string) (Source, error)
}

// Bitmap is the offscreen image frames are copied into before detection. It
// keeps the video's aspect ratio and is reused for every sample.
type Bitmap struct {
	img *image.RGBA
}

// NewBitmap allocates a bitmap for a width x height video whose long axis is
// scaled down to at most maxDim pixels
func NewBitmap(width, height, maxDim int) *Bitmap {
	w, h := FitWithin(width, height, maxDim)
	return &Bitmap{img: image.NewRGBA(image.Rect(0, 0, w, h))}
}

// FitWithin scales width x height down so neither side exceeds maxDim. Videos
// already within bounds keep their size. Degenerate input yields 1x1.
func FitWithin(width, height, maxDim int) (int, int) {
	if width <= 0 || height <= 0 {
		return 1, 1
	}
	if maxDim <= 0 {
		maxDim = DefaultMaxDimension
	}
	long := max(width, height)
	if long <= maxDim {
		return width, height
	}
	scale := float64(maxDim) / float64(long)
	w := max(1, int(math.Round(float64(width)*scale)))
	h := max(1, int(math.Round(float64(height)*scale)))
	return w, h
}

// Bounds returns the bitmap bounds
func (b *Bitmap) Bounds() image.Rectangle {
	return b.img.Bounds()
}

// Capture copies src into the bitmap, scaling it to fit, and returns the bitmap
func (b *Bitmap) Capture(src image.Image) *image.RGBA {
	if src == nil {
		draw.Draw(b.img, b.img.Bounds(), image.Transparent, image.Point{}, draw.Src)
		return b.img
	}
	if src.Bounds().Size() == b.img.Bounds().Size() {
		draw.Draw(b.img, b.img.Bounds(), src, src.Bounds().Min, draw.Src)
		return b.img
	}
	draw.ApproxBiLinear.Scale(b.img, b.img.Bounds(), src, src.Bounds(), draw.Src, nil)
	return b.img
}
