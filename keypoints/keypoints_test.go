package keypoints

import (
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"
)

func TestFromTriples(t *testing.T) {
	test.That(t, FromTriples(nil), test.ShouldBeNil)
	pts := FromTriples([][3]float64{{1, 2, 0.5}, {3, 4, 1}})
	test.That(t, pts, test.ShouldResemble, []r2.Point{{X: 1, Y: 2}, {X: 3, Y: 4}})
}

func TestClipUpperBoundOnly(t *testing.T) {
	pts := []r2.Point{{X: 100, Y: 10}, {X: 99, Y: 49}, {X: 10, Y: 50}, {X: -1, Y: 3}}
	test.That(t, Clip(pts, 100, 50), test.ShouldResemble, []r2.Point{{X: 99, Y: 49}, {X: -1, Y: 3}})
	test.That(t, Clip([]r2.Point{{X: 100, Y: 0}}, 100, 50), test.ShouldBeNil)
}

func TestClipThenScale(t *testing.T) {
	const w, h = 100, 50
	const W, H = 320, 240
	kept := Scale(Clip([]r2.Point{{X: 100, Y: 10}, {X: 99, Y: 49}}, w, h), float64(W)/w, float64(H)/h)
	test.That(t, kept, test.ShouldHaveLength, 1)
	test.That(t, kept[0].X, test.ShouldAlmostEqual, 99.0*W/w)
	test.That(t, kept[0].Y, test.ShouldAlmostEqual, 49.0*H/h)
	test.That(t, Scale(nil, 2, 2), test.ShouldBeNil)
}

func TestInFrame(t *testing.T) {
	pts := []r2.Point{{X: 0, Y: 0}, {X: -0.1, Y: 1}, {X: 9.99, Y: 4.99}, {X: 10, Y: 1}}
	test.That(t, InFrame(pts, 10, 5), test.ShouldResemble, []r2.Point{{X: 0, Y: 0}, {X: 9.99, Y: 4.99}})
}

func TestRasterize(t *testing.T) {
	test.That(t, Rasterize(nil, 4, 4), test.ShouldBeNil)

	m := Rasterize([]r2.Point{{X: 1.4, Y: 0.6}, {X: 3.7, Y: 2.2}, {X: -2, Y: 9}}, 3, 4)
	test.That(t, m.H, test.ShouldEqual, 3)
	test.That(t, m.W, test.ShouldEqual, 4)
	test.That(t, m.Pix, test.ShouldResemble, []float32{
		0, 0, 0, 0,
		0, 1, 0, 0,
		1, 0, 0, 1,
	})

	empty := Rasterize([]r2.Point{}, 2, 2)
	test.That(t, empty.Pix, test.ShouldResemble, []float32{0, 0, 0, 0})
}
