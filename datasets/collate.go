package datasets

import (
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"

	"github.com/Noofbiz/kpdata/rimage"
)

// ViewFlat holds one view of a batch in contiguous row-major buffers.
type ViewFlat struct {
	Image       []float32
	KeypointMap []float32
	Mask        []float32
}

// BatchFlat stores a batch in flat contiguous buffers. Every plane is
// Height×Width and the homographies are 3×3, one per sample.
type BatchFlat struct {
	Raw        ViewFlat
	Warp       ViewFlat
	Homography []float32
	BatchSize  int
	Height     int
	Width      int
}

// ViewTensors is one view of a Batch. Image is [B, 1, H, W]; KeypointMap and
// Mask are [B, H, W].
type ViewTensors struct {
	Image       *tensors.Tensor
	KeypointMap *tensors.Tensor
	Mask        *tensors.Tensor
}

// Batch is a collated batch of samples as float32 gomlx tensors.
// Homography is [B, 3, 3].
type Batch struct {
	Raw        ViewTensors
	Warp       ViewTensors
	Homography *tensors.Tensor
}

// Inputs lists the batch tensors in a fixed order: raw image, raw keypoint map,
// raw mask, warp image, warp keypoint map, warp mask, homography.
func (b *Batch) Inputs() []*tensors.Tensor {
	return []*tensors.Tensor{
		b.Raw.Image, b.Raw.KeypointMap, b.Raw.Mask,
		b.Warp.Image, b.Warp.KeypointMap, b.Warp.Mask,
		b.Homography,
	}
}

// Collate stacks samples into a Batch.
func Collate(samples []*Sample) (*Batch, error) {
	flat, err := MakeBatchFlat(samples)
	if err != nil {
		return nil, err
	}
	return flat.ToGomlxTensors()
}

// MakeBatchFlat validates samples and copies them into contiguous buffers.
// Keypoint maps missing from both views of a sample are stacked as zeros.
func MakeBatchFlat(samples []*Sample) (*BatchFlat, error) {
	if len(samples) == 0 {
		return nil, errors.New("cannot collate an empty batch")
	}
	first := samples[0]
	if first == nil || first.Raw.Image == nil {
		return nil, errors.New("sample 0 has no raw image")
	}
	h, w := first.Raw.Image.H, first.Raw.Image.W
	plane := h * w
	n := len(samples)

	b := &BatchFlat{
		Raw:        newViewFlat(n * plane),
		Warp:       newViewFlat(n * plane),
		Homography: make([]float32, n*9),
		BatchSize:  n,
		Height:     h,
		Width:      w,
	}
	for i, s := range samples {
		if err := checkSample(s, h, w); err != nil {
			return nil, errors.WithMessagef(err, "sample %d", i)
		}
		b.Raw.put(i*plane, s.Raw)
		b.Warp.put(i*plane, s.Warp)
		for r := range 3 {
			for c := range 3 {
				b.Homography[i*9+r*3+c] = float32(s.Homography.At(r, c))
			}
		}
	}
	return b, nil
}

func newViewFlat(size int) ViewFlat {
	return ViewFlat{
		Image:       make([]float32, size),
		KeypointMap: make([]float32, size),
		Mask:        make([]float32, size),
	}
}

func (f ViewFlat) put(off int, v View) {
	copy(f.Image[off:], v.Image.Pix)
	copy(f.Mask[off:], v.Mask.Pix)
	if v.KeypointMap != nil {
		copy(f.KeypointMap[off:], v.KeypointMap.Pix)
	}
}

func checkSample(s *Sample, h, w int) error {
	if s == nil {
		return errors.New("nil sample")
	}
	for _, side := range []struct {
		name string
		v    View
	}{{"raw", s.Raw}, {"warp", s.Warp}} {
		for _, g := range []struct {
			name string
			g    *rimage.Grid
		}{{"image", side.v.Image}, {"mask", side.v.Mask}, {"keypoint map", side.v.KeypointMap}} {
			if g.g == nil {
				if g.name == "keypoint map" {
					continue
				}
				return errors.Errorf("%s view has no %s", side.name, g.name)
			}
			if g.g.H != h || g.g.W != w || len(g.g.Pix) != h*w {
				return errors.Errorf("%s %s is %dx%d, want %dx%d", side.name, g.name, g.g.H, g.g.W, h, w)
			}
		}
	}
	if (s.Raw.KeypointMap == nil) != (s.Warp.KeypointMap == nil) {
		return errors.New("keypoint map present in only one view")
	}
	if s.Homography == nil {
		return errors.New("missing homography")
	}
	if r, c := s.Homography.Dims(); r != 3 || c != 3 {
		return errors.Errorf("homography is %dx%d, want 3x3", r, c)
	}
	return nil
}

// ToGomlxTensors converts the flat buffers into float32 gomlx tensors.
func (b *BatchFlat) ToGomlxTensors() (*Batch, error) {
	if b.BatchSize == 0 {
		return nil, errors.New("cannot convert an empty batch")
	}
	n, h, w := b.BatchSize, b.Height, b.Width
	if len(b.Homography) != n*9 {
		return nil, errors.Errorf("homography buffer has %d values, want %d", len(b.Homography), n*9)
	}
	for _, buf := range [][]float32{
		b.Raw.Image, b.Raw.KeypointMap, b.Raw.Mask,
		b.Warp.Image, b.Warp.KeypointMap, b.Warp.Mask,
	} {
		if len(buf) != n*h*w {
			return nil, errors.Errorf("plane buffer has %d values, want %d", len(buf), n*h*w)
		}
	}
	view := func(f ViewFlat) ViewTensors {
		return ViewTensors{
			Image:       float32Tensor(f.Image, n, 1, h, w),
			KeypointMap: float32Tensor(f.KeypointMap, n, h, w),
			Mask:        float32Tensor(f.Mask, n, h, w),
		}
	}
	return &Batch{
		Raw:        view(b.Raw),
		Warp:       view(b.Warp),
		Homography: float32Tensor(b.Homography, n, 3, 3),
	}, nil
}

func float32Tensor(flat []float32, dims ...int) *tensors.Tensor {
	t := tensors.FromShape(shapes.Make(dtypes.Float32, dims...))
	tensors.MutableFlatData[float32](t, func(dst []float32) {
		copy(dst, flat)
	})
	return t
}
