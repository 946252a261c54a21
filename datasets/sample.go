package datasets

import (
	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"

	"github.com/Noofbiz/kpdata/rimage"
)

// View is one side of a sample. Image, KeypointMap and Mask share the
// configured size. Image holds intensities in [0, 1] once a sample is built.
// KeypointMap is nil exactly when Keypoints is nil.
type View struct {
	Image       *rimage.Grid
	Keypoints   []r2.Point
	KeypointMap *rimage.Grid
	Mask        *rimage.Grid
}

// Clone returns a deep copy of v.
func (v View) Clone() View {
	out := View{
		Image:       v.Image.Clone(),
		KeypointMap: v.KeypointMap.Clone(),
		Mask:        v.Mask.Clone(),
	}
	if v.Keypoints != nil {
		out.Keypoints = append(make([]r2.Point, 0, len(v.Keypoints)), v.Keypoints...)
	}
	return out
}

// Sample pairs a raw view with its augmented warp view. Homography maps raw
// pixel coordinates to warp pixel coordinates and is the identity when no
// geometric augmentation was applied.
type Sample struct {
	Raw        View
	Warp       View
	Homography *mat.Dense
}
