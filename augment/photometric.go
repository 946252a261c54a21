package augment

import (
	"image"
	"math/rand/v2"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"github.com/Noofbiz/kpdata/config"
	"github.com/Noofbiz/kpdata/rimage"
)

// Names of the supported photometric primitives.
const (
	RandomBrightness      = "random_brightness"
	RandomContrast        = "random_contrast"
	AdditiveGaussianNoise = "additive_gaussian_noise"
	AdditiveSpeckleNoise  = "additive_speckle_noise"
	MotionBlur            = "motion_blur"
	GaussianBlur          = "gaussian_blur"
)

// PhotometricParams holds the settings of every primitive, keyed in the
// configuration by primitive name.
type PhotometricParams struct {
	Brightness struct {
		MaxAbsChange float64 `mapstructure:"max_abs_change"`
	} `mapstructure:"random_brightness"`
	Contrast struct {
		StrengthRange Range `mapstructure:"strength_range"`
	} `mapstructure:"random_contrast"`
	GaussianNoise struct {
		StddevRange Range `mapstructure:"stddev_range"`
	} `mapstructure:"additive_gaussian_noise"`
	SpeckleNoise struct {
		ProbRange Range `mapstructure:"prob_range"`
	} `mapstructure:"additive_speckle_noise"`
	MotionBlur struct {
		MaxKernelSize int `mapstructure:"max_kernel_size"`
	} `mapstructure:"motion_blur"`
	GaussianBlur struct {
		SigmaRange Range `mapstructure:"sigma_range"`
	} `mapstructure:"gaussian_blur"`
}

// DefaultPhotometricParams returns the stock primitive settings.
func DefaultPhotometricParams() PhotometricParams {
	var p PhotometricParams
	p.Brightness.MaxAbsChange = 50
	p.Contrast.StrengthRange = Range{0.5, 1.5}
	p.GaussianNoise.StddevRange = Range{5, 95}
	p.SpeckleNoise.ProbRange = Range{0, 0.0035}
	p.MotionBlur.MaxKernelSize = 5
	p.GaussianBlur.SigmaRange = Range{0, 2}
	return p
}

func (p PhotometricParams) validate() error {
	if p.Brightness.MaxAbsChange < 0 {
		return errors.Wrap(config.ErrInvalid, "max_abs_change must not be negative")
	}
	if p.MotionBlur.MaxKernelSize < 0 {
		return errors.Wrap(config.ErrInvalid, "max_kernel_size must not be negative")
	}
	for name, r := range map[string]Range{
		"strength_range": p.Contrast.StrengthRange,
		"stddev_range":   p.GaussianNoise.StddevRange,
		"prob_range":     p.SpeckleNoise.ProbRange,
		"sigma_range":    p.GaussianBlur.SigmaRange,
	} {
		if err := r.validate(name); err != nil {
			return err
		}
	}
	return nil
}

type primitive func(p *PhotometricParams, rng *rand.Rand, img *image.Gray) *image.Gray

var primitives = map[string]primitive{
	RandomBrightness:      randomBrightness,
	RandomContrast:        randomContrast,
	AdditiveGaussianNoise: additiveGaussianNoise,
	AdditiveSpeckleNoise:  additiveSpeckleNoise,
	MotionBlur:            motionBlur,
	GaussianBlur:          gaussianBlur,
}

// Photometric applies a chain of appearance perturbations to a gray image.
type Photometric struct {
	Params      PhotometricParams
	Primitives  []string
	RandomOrder bool
}

// NewPhotometric decodes cfg and checks every primitive name.
func NewPhotometric(cfg config.Photometric) (*Photometric, error) {
	params := DefaultPhotometricParams()
	if err := decodeParams(cfg.Params, &params); err != nil {
		return nil, errors.WithMessage(err, "photometric params")
	}
	if err := params.validate(); err != nil {
		return nil, err
	}
	for _, name := range cfg.Primitives {
		if _, ok := primitives[name]; !ok {
			return nil, errors.Wrapf(config.ErrInvalid, "unknown photometric primitive %q", name)
		}
	}
	return &Photometric{
		Params:      params,
		Primitives:  append([]string(nil), cfg.Primitives...),
		RandomOrder: cfg.RandomOrder,
	}, nil
}

// Apply runs the configured primitives over img. The result has img's size.
func (ph *Photometric) Apply(rng *rand.Rand, img *image.Gray) (*image.Gray, error) {
	order := append([]string(nil), ph.Primitives...)
	if ph.RandomOrder {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	out := rimage.Resize(img, img.Bounds().Dy(), img.Bounds().Dx())
	for _, name := range order {
		fn, ok := primitives[name]
		if !ok {
			return nil, errors.Wrapf(config.ErrInvalid, "unknown photometric primitive %q", name)
		}
		out = fn(&ph.Params, rng, out)
	}
	return out, nil
}

func randomBrightness(p *PhotometricParams, rng *rand.Rand, img *image.Gray) *image.Gray {
	delta := uniform(rng, -p.Brightness.MaxAbsChange, p.Brightness.MaxAbsChange)
	return rimage.ToGray(imaging.AdjustBrightness(img, delta*100/255))
}

// randomContrast scales the distance to mid gray by a factor drawn from
// strength_range, expressed as an imaging contrast percentage.
func randomContrast(p *PhotometricParams, rng *rand.Rand, img *image.Gray) *image.Gray {
	r := p.Contrast.StrengthRange
	f := uniform(rng, r.lo(), r.hi())
	var pct float64
	switch {
	case f <= 0:
		pct = -100
	case f <= 1:
		pct = (f - 1) * 100
	default:
		pct = (1 - 1/f) * 100
	}
	return rimage.ToGray(imaging.AdjustContrast(img, pct))
}

func additiveGaussianNoise(p *PhotometricParams, rng *rand.Rand, img *image.Gray) *image.Gray {
	r := p.GaussianNoise.StddevRange
	std := uniform(rng, r.lo(), r.hi())
	g := rimage.FromGray(img)
	for i := range g.Pix {
		g.Pix[i] += float32(rng.NormFloat64() * std)
	}
	return g.ToGray()
}

// additiveSpeckleNoise turns a random fraction of pixels black and another
// white.
func additiveSpeckleNoise(p *PhotometricParams, rng *rand.Rand, img *image.Gray) *image.Gray {
	r := p.SpeckleNoise.ProbRange
	prob := uniform(rng, r.lo(), r.hi())
	out := rimage.Resize(img, img.Bounds().Dy(), img.Bounds().Dx())
	for i := range out.Pix {
		switch u := rng.Float64(); {
		case u <= prob:
			out.Pix[i] = 0
		case u >= 1-prob:
			out.Pix[i] = 255
		}
	}
	return out
}

// motionBlur convolves with a normalized line kernel of size 3 or 5 in one of
// four directions. Larger configured sizes are capped at 5.
func motionBlur(p *PhotometricParams, rng *rand.Rand, img *image.Gray) *image.Gray {
	maxSize := min(p.MotionBlur.MaxKernelSize, 5)
	if maxSize < 3 {
		return img
	}
	size := 3 + 2*rng.IntN((maxSize-1)/2)
	dir := rng.IntN(4)
	opts := &imaging.ConvolveOptions{Normalize: true}
	if size == 3 {
		var k [9]float64
		lineKernel(k[:], 3, dir)
		return rimage.ToGray(imaging.Convolve3x3(img, k, opts))
	}
	var k [25]float64
	lineKernel(k[:], 5, dir)
	return rimage.ToGray(imaging.Convolve5x5(img, k, opts))
}

// lineKernel fills a size×size kernel with ones along a line through the
// center: horizontal, vertical, diagonal or anti-diagonal.
func lineKernel(k []float64, size, dir int) {
	c := size / 2
	for i := range size {
		var x, y int
		switch dir {
		case 0:
			x, y = i, c
		case 1:
			x, y = c, i
		case 2:
			x, y = i, i
		default:
			x, y = i, size-1-i
		}
		k[y*size+x] = 1
	}
}

func gaussianBlur(p *PhotometricParams, rng *rand.Rand, img *image.Gray) *image.Gray {
	r := p.GaussianBlur.SigmaRange
	sigma := uniform(rng, r.lo(), r.hi())
	if sigma <= 0 {
		return img
	}
	return rimage.ToGray(imaging.Blur(img, sigma))
}
