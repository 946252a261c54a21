package datasets

import (
	"fmt"
	"image"
	"math/rand/v2"
	"sync"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/Noofbiz/kpdata/annotations"
	"github.com/Noofbiz/kpdata/augment"
	"github.com/Noofbiz/kpdata/config"
	"github.com/Noofbiz/kpdata/geometry"
	"github.com/Noofbiz/kpdata/keypoints"
	"github.com/Noofbiz/kpdata/logging"
	"github.com/Noofbiz/kpdata/rimage"
)

// ErrLoad is matched by every error caused by an unreadable or undecodable
// image.
var ErrLoad = errors.New("image load failed")

// LoadError reports the image that could not be loaded. It matches ErrLoad
// and unwraps to the underlying cause.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrLoad, e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Is reports whether target is ErrLoad.
func (e *LoadError) Is(target error) bool { return target == ErrLoad }

// HomographicAugmenter warps an image and its keypoints by a random homography.
type HomographicAugmenter interface {
	Warp(rng *rand.Rand, img *rimage.Grid, pts []r2.Point) (*augment.Warped, error)
}

// PhotometricAugmenter perturbs the appearance of an 8-bit gray image.
type PhotometricAugmenter interface {
	Apply(rng *rand.Rand, img *image.Gray) (*image.Gray, error)
}

// Rasterizer turns sparse keypoints into an h×w map.
type Rasterizer func(pts []r2.Point, h, w int) *rimage.Grid

// Option configures a KeypointDataset.
type Option func(*KeypointDataset)

// WithLogger sets the dataset logger.
func WithLogger(logger logging.Logger) Option {
	return func(d *KeypointDataset) { d.logger = logger }
}

// WithSeed makes every sample reproducible for a given index order.
func WithSeed(seed uint64) Option {
	return func(d *KeypointDataset) { d.seeds = rand.New(rand.NewPCG(seed, seed)) }
}

// WithHomographicAugmenter replaces the augmenter built from the configuration.
func WithHomographicAugmenter(a HomographicAugmenter) Option {
	return func(d *KeypointDataset) { d.homographic = a }
}

// WithPhotometricAugmenter replaces the augmenter built from the configuration.
func WithPhotometricAugmenter(a PhotometricAugmenter) Option {
	return func(d *KeypointDataset) { d.photometric = a }
}

// WithRasterizer replaces keypoints.Rasterize.
func WithRasterizer(r Rasterizer) Option {
	return func(d *KeypointDataset) { d.rasterize = r }
}

// KeypointDataset serves paired raw/warp samples for one mode.
//
// Get is safe for concurrent use: records are read-only after New and the
// seed source is guarded by a mutex.
type KeypointDataset struct {
	policy  config.Policy
	records []annotations.Record
	logger  logging.Logger

	homographic HomographicAugmenter
	photometric PhotometricAugmenter
	rasterize   Rasterizer

	mu    sync.Mutex
	seeds *rand.Rand
}

// New resolves the mode's policy, indexes its annotation sources and builds
// the augmenters the mode enables.
func New(cfg *config.Config, mode config.Mode, opts ...Option) (*KeypointDataset, error) {
	if cfg == nil {
		return nil, errors.Wrap(config.ErrInvalid, "nil config")
	}
	policy, err := cfg.Resolve(mode)
	if err != nil {
		return nil, err
	}
	d := &KeypointDataset{
		policy:    policy,
		logger:    logging.Nop(),
		rasterize: keypoints.Rasterize,
		seeds:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(d)
	}

	if policy.Homographic && d.homographic == nil {
		h, err := augment.NewHomographic(cfg.Augmentation.Homographic)
		if err != nil {
			return nil, err
		}
		d.homographic = h
	}
	if policy.Photometric && d.photometric == nil {
		p, err := augment.NewPhotometric(cfg.Augmentation.Photometric)
		if err != nil {
			return nil, err
		}
		d.photometric = p
	}

	sources, err := annotations.SourcesFromPaths(policy.ImageDirs, policy.LabelPaths)
	if err != nil {
		return nil, err
	}
	indexer, err := annotations.NewIndexer(sources)
	if err != nil {
		return nil, err
	}
	if d.records, err = indexer.Index(); err != nil {
		return nil, errors.WithMessagef(err, "indexing %s annotations", mode)
	}
	d.logger.Infow("indexed annotations",
		"mode", mode.String(),
		"records", len(d.records),
		"sources", len(sources),
		"size", []int{policy.Height, policy.Width},
		"homographic", policy.Homographic,
		"photometric", policy.Photometric,
	)
	return d, nil
}

// Len returns the number of indexed records.
func (d *KeypointDataset) Len() int {
	return len(d.records)
}

// Record returns the annotation record behind sample i.
func (d *KeypointDataset) Record(i int) (annotations.Record, error) {
	if i < 0 || i >= len(d.records) {
		return annotations.Record{}, errors.Errorf("index %d out of range [0, %d)", i, len(d.records))
	}
	return d.records[i], nil
}

// Policy returns the resolved mode policy.
func (d *KeypointDataset) Policy() config.Policy {
	return d.policy
}

// nextRand hands out an independent generator per sample.
func (d *KeypointDataset) nextRand() *rand.Rand {
	d.mu.Lock()
	a, b := d.seeds.Uint64(), d.seeds.Uint64()
	d.mu.Unlock()
	return rand.New(rand.NewPCG(a, b))
}

// Get builds sample i: the record's image resized to the configured size with
// its keypoints, and a warp view augmented as the mode enables. Images are
// scaled to [0, 1].
func (d *KeypointDataset) Get(i int) (*Sample, error) {
	rec, err := d.Record(i)
	if err != nil {
		return nil, err
	}
	rng := d.nextRand()
	H, W := d.policy.Height, d.policy.Width

	img, err := rimage.LoadGray(rec.ImagePath)
	if err != nil {
		return nil, &LoadError{Path: rec.ImagePath, Err: err}
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w == 0 || h == 0 {
		return nil, &LoadError{Path: rec.ImagePath, Err: errors.New("empty image")}
	}

	pts := keypoints.Clip(keypoints.FromTriples(rec.Keypoints), w, h)
	pts = keypoints.Scale(pts, float64(W)/float64(w), float64(H)/float64(h))

	base := rimage.FromGray(rimage.Resize(img, H, W))
	raw := View{
		Image:       base,
		Keypoints:   pts,
		KeypointMap: d.rasterize(pts, H, W),
		Mask:        rimage.Filled(H, W, 1),
	}
	s := &Sample{
		Raw:        raw,
		Warp:       raw.Clone(),
		Homography: geometry.Identity(),
	}

	if d.policy.Homographic && d.homographic != nil {
		if raw.Keypoints == nil {
			d.logger.Debugw("skipping homographic warp, no keypoints", "index", i, "image", rec.ImagePath)
		} else if err := d.warp(s, rng); err != nil {
			return nil, errors.WithMessagef(err, "sample %d (%s)", i, rec.ImagePath)
		}
	}

	if d.policy.Photometric && d.photometric != nil {
		out, err := d.photometric.Apply(rng, s.Warp.Image.ToGray())
		if err != nil {
			return nil, errors.WithMessagef(err, "sample %d (%s)", i, rec.ImagePath)
		}
		if out.Bounds().Dx() != W || out.Bounds().Dy() != H {
			return nil, errors.Errorf("sample %d: photometric augmenter returned %v, want %dx%d", i, out.Bounds().Size(), W, H)
		}
		s.Warp.Image = rimage.FromGray(out)
	}

	s.Raw.Image.Scale(1.0 / 255)
	s.Warp.Image.Scale(1.0 / 255)
	return s, nil
}

func (d *KeypointDataset) warp(s *Sample, rng *rand.Rand) error {
	out, err := d.homographic.Warp(rng, s.Warp.Image, s.Warp.Keypoints)
	if err != nil {
		return errors.WithMessage(err, "homographic warp")
	}
	for name, g := range map[string]*rimage.Grid{"image": out.Image, "mask": out.Mask} {
		if !g.SameShape(s.Raw.Image) {
			return errors.Errorf("homographic warp returned a %s of the wrong size", name)
		}
	}
	if err := geometry.CheckInvertible(out.Homography); err != nil {
		return err
	}
	kps, kmap := out.Keypoints, out.KeypointMap
	if kps == nil {
		kps = []r2.Point{}
	}
	if kmap == nil {
		kmap = d.rasterize(kps, s.Raw.Image.H, s.Raw.Image.W)
	}
	s.Warp = View{
		Image:       out.Image,
		Keypoints:   kps,
		KeypointMap: kmap,
		Mask:        out.Mask,
	}
	s.Homography = out.Homography
	return nil
}
