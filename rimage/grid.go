// Package rimage holds the raster helpers of the sample pipeline: a dense
// float grid used for images, masks and keypoint maps, plus gray image loading,
// resizing and 8-bit conversions.
package rimage

import (
	"image"
	"math"
)

// Grid is a row-major H×W float32 raster.
type Grid struct {
	H, W int
	Pix  []float32
}

// NewGrid returns a zeroed h×w grid.
func NewGrid(h, w int) *Grid {
	return &Grid{H: h, W: w, Pix: make([]float32, h*w)}
}

// Filled returns an h×w grid with every cell set to v.
func Filled(h, w int, v float32) *Grid {
	g := NewGrid(h, w)
	for i := range g.Pix {
		g.Pix[i] = v
	}
	return g
}

// At returns the value at column x, row y.
func (g *Grid) At(x, y int) float32 { return g.Pix[y*g.W+x] }

// Set stores v at column x, row y.
func (g *Grid) Set(x, y int, v float32) { g.Pix[y*g.W+x] = v }

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	if g == nil {
		return nil
	}
	pix := make([]float32, len(g.Pix))
	copy(pix, g.Pix)
	return &Grid{H: g.H, W: g.W, Pix: pix}
}

// SameShape reports whether g and o have equal dimensions.
func (g *Grid) SameShape(o *Grid) bool {
	return g != nil && o != nil && g.H == o.H && g.W == o.W
}

// Scale multiplies every cell by s in place.
func (g *Grid) Scale(s float32) {
	for i := range g.Pix {
		g.Pix[i] *= s
	}
}

// FromGray copies a gray image into a grid on the 0..255 scale.
func FromGray(img *image.Gray) *Grid {
	b := img.Bounds()
	g := NewGrid(b.Dy(), b.Dx())
	for y := 0; y < g.H; y++ {
		off := img.PixOffset(b.Min.X, b.Min.Y+y)
		row := img.Pix[off : off+g.W]
		for x, v := range row {
			g.Pix[y*g.W+x] = float32(v)
		}
	}
	return g
}

// ToGray rounds the grid to the nearest integer and clamps into 0..255.
func (g *Grid) ToGray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, g.W, g.H))
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			img.Pix[y*img.Stride+x] = clampUint8(g.Pix[y*g.W+x])
		}
	}
	return img
}

func clampUint8(v float32) uint8 {
	r := math.Round(float64(v))
	switch {
	case r < 0 || math.IsNaN(r):
		return 0
	case r > 255:
		return 255
	default:
		return uint8(r)
	}
}

// Bilinear samples g at the real position (x, y). ok is false when the
// position lies outside [0, W-1]×[0, H-1].
func (g *Grid) Bilinear(x, y float64) (v float32, ok bool) {
	if x < 0 || y < 0 || x > float64(g.W-1) || y > float64(g.H-1) {
		return 0, false
	}
	x0, y0 := int(x), int(y)
	x1, y1 := min(x0+1, g.W-1), min(y0+1, g.H-1)
	fx, fy := float32(x-float64(x0)), float32(y-float64(y0))
	top := g.At(x0, y0)*(1-fx) + g.At(x1, y0)*fx
	bottom := g.At(x0, y1)*(1-fx) + g.At(x1, y1)*fx
	return top*(1-fy) + bottom*fy, true
}
