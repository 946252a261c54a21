package augment

import (
	"math"
	"math/rand/v2"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/Noofbiz/kpdata/config"
	"github.com/Noofbiz/kpdata/geometry"
	"github.com/Noofbiz/kpdata/keypoints"
	"github.com/Noofbiz/kpdata/rimage"
)

// maxDraws bounds the number of patch draws before falling back to identity.
const maxDraws = 16

// HomographicParams controls how the random patch is drawn. All amplitudes
// are fractions of the image size.
type HomographicParams struct {
	Translation           bool    `mapstructure:"translation"`
	Rotation              bool    `mapstructure:"rotation"`
	Scaling               bool    `mapstructure:"scaling"`
	Perspective           bool    `mapstructure:"perspective"`
	ScalingAmplitude      float64 `mapstructure:"scaling_amplitude"`
	PerspectiveAmplitudeX float64 `mapstructure:"perspective_amplitude_x"`
	PerspectiveAmplitudeY float64 `mapstructure:"perspective_amplitude_y"`
	PatchRatio            float64 `mapstructure:"patch_ratio"`
	MaxAngle              float64 `mapstructure:"max_angle"`
	AllowArtifacts        bool    `mapstructure:"allow_artifacts"`
	TranslationOverflow   float64 `mapstructure:"translation_overflow"`
	NScales               int     `mapstructure:"n_scales"`
	NAngles               int     `mapstructure:"n_angles"`
}

// DefaultHomographicParams enables every transform with moderate amplitudes.
func DefaultHomographicParams() HomographicParams {
	return HomographicParams{
		Translation:           true,
		Rotation:              true,
		Scaling:               true,
		Perspective:           true,
		ScalingAmplitude:      0.1,
		PerspectiveAmplitudeX: 0.1,
		PerspectiveAmplitudeY: 0.1,
		PatchRatio:            0.5,
		MaxAngle:              math.Pi / 2,
		NScales:               5,
		NAngles:               25,
	}
}

func (p HomographicParams) validate() error {
	switch {
	case p.PatchRatio <= 0 || p.PatchRatio > 1:
		return errors.Wrapf(config.ErrInvalid, "patch_ratio must be in (0, 1], got %v", p.PatchRatio)
	case p.Scaling && p.NScales < 1:
		return errors.Wrapf(config.ErrInvalid, "n_scales must be positive, got %d", p.NScales)
	case p.Rotation && p.NAngles < 1:
		return errors.Wrapf(config.ErrInvalid, "n_angles must be positive, got %d", p.NAngles)
	case p.ScalingAmplitude < 0 || p.PerspectiveAmplitudeX < 0 || p.PerspectiveAmplitudeY < 0:
		return errors.Wrap(config.ErrInvalid, "amplitudes must not be negative")
	}
	return nil
}

// Warped is the output of a homographic warp. Homography maps raw pixel
// coordinates to warp pixel coordinates.
type Warped struct {
	Image       *rimage.Grid
	Mask        *rimage.Grid
	KeypointMap *rimage.Grid
	Keypoints   []r2.Point
	Homography  *mat.Dense
}

// Homographic warps an image and its keypoints by a random homography.
type Homographic struct {
	Params HomographicParams
	Margin int
}

// NewHomographic decodes cfg.Params over the defaults.
func NewHomographic(cfg config.Homographic) (*Homographic, error) {
	params := DefaultHomographicParams()
	if err := decodeParams(cfg.Params, &params); err != nil {
		return nil, errors.WithMessage(err, "homographic params")
	}
	if err := params.validate(); err != nil {
		return nil, err
	}
	if cfg.ValidBorderMargin < 0 {
		return nil, errors.Wrap(config.ErrInvalid, "valid_border_margin must not be negative")
	}
	return &Homographic{Params: params, Margin: cfg.ValidBorderMargin}, nil
}

// Warp draws a homography and applies it to img and pts. The output keeps
// img's size. A nil pts gives a nil keypoint map.
func (h *Homographic) Warp(rng *rand.Rand, img *rimage.Grid, pts []r2.Point) (*Warped, error) {
	if img == nil || img.H < 2 || img.W < 2 {
		return nil, errors.New("homographic warp needs an image of at least 2x2")
	}
	hom := h.Sample(rng, img.W, img.H)
	inv, err := geometry.Inverse(hom)
	if err != nil {
		return nil, err
	}

	out := &Warped{
		Image:      rimage.NewGrid(img.H, img.W),
		Homography: hom,
	}
	valid := rimage.NewGrid(img.H, img.W)
	for y := 0; y < img.H; y++ {
		for x := 0; x < img.W; x++ {
			src, ok := geometry.Apply(inv, r2.Point{X: float64(x), Y: float64(y)})
			if !ok {
				continue
			}
			if v, in := img.Bilinear(snap(src.X, img.W-1), snap(src.Y, img.H-1)); in {
				out.Image.Set(x, y, v)
				valid.Set(x, y, 1)
			}
		}
	}
	out.Mask = erode(valid, h.Margin)

	if pts != nil {
		out.Keypoints = keypoints.InFrame(geometry.ApplyAll(hom, pts), img.W, img.H)
		if out.Keypoints == nil {
			out.Keypoints = []r2.Point{}
		}
		out.KeypointMap = keypoints.Rasterize(out.Keypoints, img.H, img.W)
	}
	return out, nil
}

// Sample draws a homography for a width×height image sending the random patch onto the
// full frame. Degenerate draws are retried; after maxDraws the identity is used.
func (h *Homographic) Sample(rng *rand.Rand, width, height int) *mat.Dense {
	size := r2.Point{X: float64(width - 1), Y: float64(height - 1)}
	frame := toPixels(unitCorners(), size)
	for range maxDraws {
		patch := toPixels(h.samplePatch(rng), size)
		hom, err := geometry.FromCorners(patch, frame)
		if err == nil {
			return hom
		}
	}
	return geometry.Identity()
}

// unitCorners lists the frame corners clockwise from top left in normalized
// (x, y) coordinates.
func unitCorners() [4]r2.Point {
	return [4]r2.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}
}

func toPixels(c [4]r2.Point, size r2.Point) [4]r2.Point {
	for i := range c {
		c[i] = r2.Point{X: c[i].X * size.X, Y: c[i].Y * size.Y}
	}
	return c
}

func (h *Homographic) samplePatch(rng *rand.Rand) [4]r2.Point {
	p := h.Params
	margin := (1 - p.PatchRatio) / 2
	pts := unitCorners()
	for i := range pts {
		pts[i] = pts[i].Mul(p.PatchRatio).Add(r2.Point{X: margin, Y: margin})
	}

	if p.Perspective {
		ampX, ampY := p.PerspectiveAmplitudeX, p.PerspectiveAmplitudeY
		if !p.AllowArtifacts {
			ampX, ampY = min(ampX, margin), min(ampY, margin)
		}
		dx := truncNormal(rng, 0, ampX/2)
		dy := truncNormal(rng, 0, ampY/2)
		pts[0] = pts[0].Add(r2.Point{X: dx, Y: dy})
		pts[1] = pts[1].Add(r2.Point{X: -dx, Y: -dy})
		pts[2] = pts[2].Add(r2.Point{X: -dx, Y: dy})
		pts[3] = pts[3].Add(r2.Point{X: dx, Y: -dy})
	}

	if p.Scaling {
		center := centroid(pts)
		candidates := [][4]r2.Point{pts}
		for range p.NScales {
			s := truncNormal(rng, 1, p.ScalingAmplitude/2)
			var scaled [4]r2.Point
			for i, q := range pts {
				scaled[i] = q.Sub(center).Mul(s).Add(center)
			}
			if p.AllowArtifacts || inUnit(scaled) {
				candidates = append(candidates, scaled)
			}
		}
		pts = candidates[rng.IntN(len(candidates))]
	}

	if p.Translation {
		lo := r2.Point{X: math.Inf(1), Y: math.Inf(1)}
		hi := lo
		for _, q := range pts {
			lo = r2.Point{X: min(lo.X, q.X), Y: min(lo.Y, q.Y)}
			hi = r2.Point{X: min(hi.X, 1-q.X), Y: min(hi.Y, 1-q.Y)}
		}
		if p.AllowArtifacts {
			lo = lo.Add(r2.Point{X: p.TranslationOverflow, Y: p.TranslationOverflow})
			hi = hi.Add(r2.Point{X: p.TranslationOverflow, Y: p.TranslationOverflow})
		}
		t := r2.Point{X: uniform(rng, -lo.X, hi.X), Y: uniform(rng, -lo.Y, hi.Y)}
		for i := range pts {
			pts[i] = pts[i].Add(t)
		}
	}

	if p.Rotation {
		center := centroid(pts)
		candidates := [][4]r2.Point{pts}
		for k := range p.NAngles {
			a := p.MaxAngle
			if p.NAngles > 1 {
				a = -p.MaxAngle + 2*p.MaxAngle*float64(k)/float64(p.NAngles-1)
			}
			sin, cos := math.Sincos(a)
			var rotated [4]r2.Point
			for i, q := range pts {
				d := q.Sub(center)
				rotated[i] = r2.Point{X: d.X*cos - d.Y*sin, Y: d.X*sin + d.Y*cos}.Add(center)
			}
			if p.AllowArtifacts || inUnit(rotated) {
				candidates = append(candidates, rotated)
			}
		}
		pts = candidates[rng.IntN(len(candidates))]
	}
	return pts
}

// snap pulls v onto [0, hi] when it misses the range by rounding error only.
func snap(v float64, hi int) float64 {
	const eps = 1e-6
	switch {
	case v < 0 && v > -eps:
		return 0
	case v > float64(hi) && v < float64(hi)+eps:
		return float64(hi)
	}
	return v
}

// truncNormal draws from a normal distribution truncated to two standard
// deviations around mean.
func truncNormal(rng *rand.Rand, mean, std float64) float64 {
	if std <= 0 {
		return mean
	}
	for {
		z := rng.NormFloat64()
		if z >= -2 && z <= 2 {
			return mean + z*std
		}
	}
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}

func centroid(pts [4]r2.Point) r2.Point {
	var c r2.Point
	for _, q := range pts {
		c = c.Add(q)
	}
	return c.Mul(0.25)
}

func inUnit(pts [4]r2.Point) bool {
	for _, q := range pts {
		if q.X < 0 || q.Y < 0 || q.X > 1 || q.Y > 1 {
			return false
		}
	}
	return true
}

// erode zeroes every cell within r (Chebyshev distance) of a zero cell.
// Cells outside the grid do not count as zero.
func erode(g *rimage.Grid, r int) *rimage.Grid {
	if r <= 0 {
		return g
	}
	rows := rimage.NewGrid(g.H, g.W)
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			m := float32(1)
			for k := max(0, x-r); k <= min(g.W-1, x+r); k++ {
				m = min(m, g.At(k, y))
			}
			rows.Set(x, y, m)
		}
	}
	out := rimage.NewGrid(g.H, g.W)
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			m := float32(1)
			for k := max(0, y-r); k <= min(g.H-1, y+r); k++ {
				m = min(m, rows.At(x, k))
			}
			out.Set(x, y, m)
		}
	}
	return out
}
