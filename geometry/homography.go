// Package geometry provides 3x3 planar homographies on gonum matrices.
//
// A homography H maps a point p = (x, y) to (x', y') with
//
//	[u v w]ᵀ = H · [x y 1]ᵀ,  x' = u/w,  y' = v/w
package geometry

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrDegenerate is returned for point configurations or matrices that do not
// define an invertible homography.
var ErrDegenerate = errors.New("degenerate homography")

// Identity returns a new 3x3 identity matrix.
func Identity() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	})
}

// IsIdentity reports whether h is exactly the identity.
func IsIdentity(h mat.Matrix) bool {
	return mat.Equal(h, Identity())
}

// FromCorners solves the homography sending src[i] to dst[i] with h22 fixed to 1.
func FromCorners(src, dst [4]r2.Point) (*mat.Dense, error) {
	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)
	for i := range 4 {
		X, Y := src[i].X, src[i].Y
		x, y := dst[i].X, dst[i].Y
		r := 2 * i
		a.SetRow(r, []float64{X, Y, 1, 0, 0, 0, -X * x, -Y * x})
		b.SetVec(r, x)
		a.SetRow(r+1, []float64{0, 0, 0, X, Y, 1, -X * y, -Y * y})
		b.SetVec(r+1, y)
	}
	var h mat.VecDense
	if err := h.SolveVec(a, b); err != nil {
		return nil, errors.Wrap(ErrDegenerate, err.Error())
	}
	out := mat.NewDense(3, 3, []float64{
		h.AtVec(0), h.AtVec(1), h.AtVec(2),
		h.AtVec(3), h.AtVec(4), h.AtVec(5),
		h.AtVec(6), h.AtVec(7), 1,
	})
	if err := CheckInvertible(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Apply maps p through h. ok is false when p maps to infinity.
func Apply(h mat.Matrix, p r2.Point) (q r2.Point, ok bool) {
	u := h.At(0, 0)*p.X + h.At(0, 1)*p.Y + h.At(0, 2)
	v := h.At(1, 0)*p.X + h.At(1, 1)*p.Y + h.At(1, 2)
	w := h.At(2, 0)*p.X + h.At(2, 1)*p.Y + h.At(2, 2)
	if w == 0 || math.IsNaN(w) {
		return r2.Point{}, false
	}
	return r2.Point{X: u / w, Y: v / w}, true
}

// ApplyAll maps every point, dropping those sent to infinity.
func ApplyAll(h mat.Matrix, pts []r2.Point) []r2.Point {
	if pts == nil {
		return nil
	}
	out := make([]r2.Point, 0, len(pts))
	for _, p := range pts {
		if q, ok := Apply(h, p); ok {
			out = append(out, q)
		}
	}
	return out
}

// Inverse returns h⁻¹ normalized so its bottom-right entry is 1 when possible.
func Inverse(h mat.Matrix) (*mat.Dense, error) {
	var inv mat.Dense
	if err := inv.Inverse(h); err != nil {
		return nil, errors.Wrap(ErrDegenerate, err.Error())
	}
	if s := inv.At(2, 2); s != 0 {
		inv.Scale(1/s, &inv)
	}
	return &inv, nil
}

// CheckInvertible returns ErrDegenerate unless h is a finite, non-singular 3x3 matrix.
func CheckInvertible(h mat.Matrix) error {
	r, c := h.Dims()
	if r != 3 || c != 3 {
		return errors.Wrapf(ErrDegenerate, "want 3x3, got %dx%d", r, c)
	}
	for i := range 3 {
		for j := range 3 {
			if v := h.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.Wrap(ErrDegenerate, "non-finite entry")
			}
		}
	}
	if math.Abs(mat.Det(h)) < 1e-12 {
		return errors.Wrap(ErrDegenerate, "singular matrix")
	}
	return nil
}
