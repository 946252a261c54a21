// Package keypoints holds the sparse keypoint operations of the sample
// pipeline: frame clipping, rescaling and rasterization into a dense map.
package keypoints

import (
	"math"

	"github.com/golang/geo/r2"

	"github.com/Noofbiz/kpdata/rimage"
)

// FromTriples keeps the (x, y) of each (x, y, confidence) triple. It returns
// nil for an empty input.
func FromTriples(triples [][3]float64) []r2.Point {
	if len(triples) == 0 {
		return nil
	}
	pts := make([]r2.Point, len(triples))
	for i, t := range triples {
		pts[i] = r2.Point{X: t[0], Y: t[1]}
	}
	return pts
}

// Clip drops points with x >= w or y >= h. Only the upper bounds are checked;
// annotations are expected to be non-negative. Returns nil when nothing survives.
func Clip(pts []r2.Point, w, h int) []r2.Point {
	var out []r2.Point
	for _, p := range pts {
		if p.X < float64(w) && p.Y < float64(h) {
			out = append(out, p)
		}
	}
	return out
}

// Scale multiplies x by sx and y by sy in a new slice.
func Scale(pts []r2.Point, sx, sy float64) []r2.Point {
	if pts == nil {
		return nil
	}
	out := make([]r2.Point, len(pts))
	for i, p := range pts {
		out[i] = r2.Point{X: p.X * sx, Y: p.Y * sy}
	}
	return out
}

// InFrame keeps points inside [0, w)×[0, h).
func InFrame(pts []r2.Point, w, h int) []r2.Point {
	var out []r2.Point
	for _, p := range pts {
		if p.X >= 0 && p.Y >= 0 && p.X < float64(w) && p.Y < float64(h) {
			out = append(out, p)
		}
	}
	return out
}

// Rasterize marks the cell nearest each point in an h×w occupancy grid.
// Rounded coordinates are clamped into the frame. nil points give a nil map.
func Rasterize(pts []r2.Point, h, w int) *rimage.Grid {
	if pts == nil {
		return nil
	}
	m := rimage.NewGrid(h, w)
	for _, p := range pts {
		x := clamp(int(math.Round(p.X)), w-1)
		y := clamp(int(math.Round(p.Y)), h-1)
		m.Set(x, y, 1)
	}
	return m
}

func clamp(v, hi int) int {
	return max(0, min(v, hi))
}
