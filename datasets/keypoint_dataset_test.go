package datasets

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"github.com/Noofbiz/kpdata/augment"
	"github.com/Noofbiz/kpdata/config"
	"github.com/Noofbiz/kpdata/geometry"
	"github.com/Noofbiz/kpdata/logging/testutils"
	"github.com/Noofbiz/kpdata/rimage"
)

// writePNG writes a w×h gray image whose pixels are fill(x, y).
func writePNG(t *testing.T, path string, w, h int, fill func(x, y int) uint8) *image.Gray {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: fill(x, y)})
		}
	}
	f, err := os.Create(path)
	test.That(t, err, test.ShouldBeNil)
	defer f.Close()
	test.That(t, png.Encode(f, img), test.ShouldBeNil)
	return img
}

func writeLabels(t *testing.T, path string, rows ...string) {
	t.Helper()
	body := "name,keypoints\n" + strings.Join(rows, "\n") + "\n"
	test.That(t, os.WriteFile(path, []byte(body), 0o600), test.ShouldBeNil)
}

func uniform(v uint8) func(x, y int) uint8 {
	return func(int, int) uint8 { return v }
}

func gradient(x, y int) uint8 {
	return uint8((x*11 + y*7) % 256)
}

// fixture writes two images and a csv label file and returns a config with
// augmentation disabled.
func fixture(t *testing.T) (*config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 40, 20, uniform(102))
	writePNG(t, filepath.Join(dir, "b.png"), 40, 20, gradient)
	labels := filepath.Join(dir, "labels.csv")
	writeLabels(t, labels,
		"a.png, 4,2,1, 39.5,10,1, 40,5,1, 10,20,1",
		"b.png",
	)
	cfg := &config.Config{
		Resize:         []int{10, 20},
		ImageTrainPath: config.PathList{dir},
		LabelTrainPath: config.PathList{labels},
		ImageTestPath:  config.PathList{dir},
		LabelTestPath:  config.PathList{labels},
	}
	return cfg, dir
}

func TestGetWithoutAugmentation(t *testing.T) {
	cfg, _ := fixture(t)
	ds, err := New(cfg, config.Train, WithLogger(testutils.NewTestLogger(t)))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ds.Len(), test.ShouldEqual, 2)

	s, err := ds.Get(0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Raw.Image.H, test.ShouldEqual, 10)
	test.That(t, s.Raw.Image.W, test.ShouldEqual, 20)
	for _, v := range s.Raw.Image.Pix {
		test.That(t, v, test.ShouldAlmostEqual, 0.4, 1e-6)
	}

	// (40, 5) and (10, 20) are clipped, the rest is halved
	test.That(t, s.Raw.Keypoints, test.ShouldResemble, []r2.Point{{X: 2, Y: 1}, {X: 19.75, Y: 5}})
	test.That(t, s.Raw.KeypointMap.At(2, 1), test.ShouldEqual, float32(1))
	test.That(t, s.Raw.KeypointMap.At(19, 5), test.ShouldEqual, float32(1))
	var marked float32
	for _, v := range s.Raw.KeypointMap.Pix {
		marked += v
	}
	test.That(t, marked, test.ShouldEqual, float32(2))
	test.That(t, s.Raw.Mask.Pix, test.ShouldResemble, rimage.Filled(10, 20, 1).Pix)

	test.That(t, geometry.IsIdentity(s.Homography), test.ShouldBeTrue)
	test.That(t, s.Warp.Image.Pix, test.ShouldResemble, s.Raw.Image.Pix)
	test.That(t, s.Warp.Keypoints, test.ShouldResemble, s.Raw.Keypoints)
	test.That(t, s.Warp.KeypointMap.Pix, test.ShouldResemble, s.Raw.KeypointMap.Pix)
	test.That(t, s.Warp.Mask.Pix, test.ShouldResemble, s.Raw.Mask.Pix)

	// views do not share buffers
	s.Warp.Image.Set(0, 0, 9)
	test.That(t, s.Raw.Image.At(0, 0), test.ShouldAlmostEqual, 0.4, 1e-6)
}

func TestGetNormalizationRoundTrip(t *testing.T) {
	cfg, dir := fixture(t)
	cfg.Resize = []int{20, 40}
	ds, err := New(cfg, config.Test)
	test.That(t, err, test.ShouldBeNil)

	s, err := ds.Get(1)
	test.That(t, err, test.ShouldBeNil)
	want, err := rimage.LoadGray(filepath.Join(dir, "b.png"))
	test.That(t, err, test.ShouldBeNil)
	for i, v := range s.Raw.Image.Pix {
		test.That(t, uint8(math.Round(float64(v)*255)), test.ShouldEqual, want.Pix[i])
		test.That(t, v, test.ShouldBeBetweenOrEqual, 0.0, 1.0)
	}
}

func TestGetWithoutKeypoints(t *testing.T) {
	cfg, _ := fixture(t)
	cfg.Augmentation.Homographic.TrainEnable = true
	fake := &fakeHomographic{}
	ds, err := New(cfg, config.Train, WithHomographicAugmenter(fake))
	test.That(t, err, test.ShouldBeNil)

	s, err := ds.Get(1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Raw.Keypoints, test.ShouldBeNil)
	test.That(t, s.Raw.KeypointMap, test.ShouldBeNil)
	test.That(t, s.Warp.Keypoints, test.ShouldBeNil)
	test.That(t, s.Warp.KeypointMap, test.ShouldBeNil)
	test.That(t, geometry.IsIdentity(s.Homography), test.ShouldBeTrue)
	test.That(t, fake.calls, test.ShouldEqual, 0)

	_, err = ds.Get(0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, fake.calls, test.ShouldEqual, 1)
}

// fakeHomographic shifts everything one pixel to the right.
type fakeHomographic struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeHomographic) Warp(_ *rand.Rand, img *rimage.Grid, pts []r2.Point) (*augment.Warped, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	out := rimage.NewGrid(img.H, img.W)
	mask := rimage.NewGrid(img.H, img.W)
	for y := 0; y < img.H; y++ {
		for x := 1; x < img.W; x++ {
			out.Set(x, y, img.At(x-1, y))
			mask.Set(x, y, 1)
		}
	}
	moved := make([]r2.Point, 0, len(pts))
	for _, p := range pts {
		if p.X+1 < float64(img.W) {
			moved = append(moved, r2.Point{X: p.X + 1, Y: p.Y})
		}
	}
	return &augment.Warped{
		Image:      out,
		Mask:       mask,
		Keypoints:  moved,
		Homography: mat.NewDense(3, 3, []float64{1, 0, 1, 0, 1, 0, 0, 0, 1}),
	}, nil
}

func TestGetUsesHomographicResult(t *testing.T) {
	cfg, _ := fixture(t)
	cfg.Augmentation.Homographic.TrainEnable = true
	ds, err := New(cfg, config.Train, WithHomographicAugmenter(&fakeHomographic{}))
	test.That(t, err, test.ShouldBeNil)

	s, err := ds.Get(0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Homography.At(0, 2), test.ShouldEqual, 1.0)
	test.That(t, s.Warp.Keypoints, test.ShouldResemble, []r2.Point{{X: 3, Y: 1}})
	// the warp keypoint map is rasterized from the warped keypoints
	test.That(t, s.Warp.KeypointMap.At(3, 1), test.ShouldEqual, float32(1))
	test.That(t, s.Warp.Mask.At(0, 0), test.ShouldEqual, float32(0))
	test.That(t, s.Warp.Image.At(0, 0), test.ShouldEqual, float32(0))
	test.That(t, s.Warp.Image.At(1, 0), test.ShouldAlmostEqual, 0.4, 1e-6)
	test.That(t, s.Raw.Keypoints, test.ShouldResemble, []r2.Point{{X: 2, Y: 1}, {X: 19.75, Y: 5}})
}

type invertPhotometric struct{}

func (invertPhotometric) Apply(_ *rand.Rand, img *image.Gray) (*image.Gray, error) {
	out := image.NewGray(img.Bounds())
	for i, v := range img.Pix {
		out.Pix[i] = 255 - v
	}
	return out, nil
}

type shrinkPhotometric struct{}

func (shrinkPhotometric) Apply(_ *rand.Rand, img *image.Gray) (*image.Gray, error) {
	return image.NewGray(image.Rect(0, 0, 1, 1)), nil
}

func TestGetUsesPhotometricResult(t *testing.T) {
	cfg, _ := fixture(t)
	cfg.Augmentation.Photometric.TestEnable = true
	ds, err := New(cfg, config.Test, WithPhotometricAugmenter(invertPhotometric{}))
	test.That(t, err, test.ShouldBeNil)

	s, err := ds.Get(0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Warp.Image.At(3, 3), test.ShouldAlmostEqual, float32(153)/255, 1e-6)
	test.That(t, s.Raw.Image.At(3, 3), test.ShouldAlmostEqual, 0.4, 1e-6)
	test.That(t, geometry.IsIdentity(s.Homography), test.ShouldBeTrue)

	ds, err = New(cfg, config.Test, WithPhotometricAugmenter(shrinkPhotometric{}))
	test.That(t, err, test.ShouldBeNil)
	_, err = ds.Get(0)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestGetModeFlags(t *testing.T) {
	cfg, _ := fixture(t)
	cfg.Augmentation.Photometric.TrainEnable = true
	ds, err := New(cfg, config.Test, WithPhotometricAugmenter(invertPhotometric{}))
	test.That(t, err, test.ShouldBeNil)
	s, err := ds.Get(0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Warp.Image.Pix, test.ShouldResemble, s.Raw.Image.Pix)
}

func TestGetWithConfiguredAugmenters(t *testing.T) {
	cfg, _ := fixture(t)
	cfg.Augmentation = config.Augmentation{
		Photometric: config.Photometric{
			TrainEnable: true,
			Primitives:  []string{augment.RandomBrightness, augment.AdditiveGaussianNoise, augment.GaussianBlur},
			RandomOrder: true,
		},
		Homographic: config.Homographic{TrainEnable: true, ValidBorderMargin: 1},
	}
	a, err := New(cfg, config.Train, WithSeed(5))
	test.That(t, err, test.ShouldBeNil)
	b, err := New(cfg, config.Train, WithSeed(5))
	test.That(t, err, test.ShouldBeNil)

	sa, err := a.Get(0)
	test.That(t, err, test.ShouldBeNil)
	sb, err := b.Get(0)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, sa.Warp.Image.SameShape(sa.Raw.Image), test.ShouldBeTrue)
	test.That(t, sa.Warp.Mask.SameShape(sa.Raw.Image), test.ShouldBeTrue)
	test.That(t, sa.Warp.KeypointMap, test.ShouldNotBeNil)
	test.That(t, geometry.CheckInvertible(sa.Homography), test.ShouldBeNil)
	for _, v := range sa.Warp.Image.Pix {
		test.That(t, v, test.ShouldBeBetweenOrEqual, 0.0, 1.0)
	}
	test.That(t, sa.Warp.Image.Pix, test.ShouldResemble, sb.Warp.Image.Pix)
	test.That(t, mat.Equal(sa.Homography, sb.Homography), test.ShouldBeTrue)
}

func TestGetConcurrent(t *testing.T) {
	cfg, _ := fixture(t)
	cfg.Augmentation.Homographic.TrainEnable = true
	ds, err := New(cfg, config.Train)
	test.That(t, err, test.ShouldBeNil)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = ds.Get(i % ds.Len())
		}()
	}
	wg.Wait()
	for _, err := range errs {
		test.That(t, err, test.ShouldBeNil)
	}
}

func TestGetErrors(t *testing.T) {
	cfg, dir := fixture(t)
	ds, err := New(cfg, config.Train)
	test.That(t, err, test.ShouldBeNil)

	_, err = ds.Get(2)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = ds.Get(-1)
	test.That(t, err, test.ShouldNotBeNil)

	test.That(t, os.Remove(filepath.Join(dir, "a.png")), test.ShouldBeNil)
	_, err = ds.Get(0)
	test.That(t, errors.Is(err, ErrLoad), test.ShouldBeTrue)
	test.That(t, errors.Is(err, os.ErrNotExist), test.ShouldBeTrue)
	var loadErr *LoadError
	test.That(t, errors.As(err, &loadErr), test.ShouldBeTrue)
	test.That(t, loadErr.Path, test.ShouldEqual, filepath.Join(dir, "a.png"))
	test.That(t, err.Error(), test.ShouldContainSubstring, "a.png")

	test.That(t, os.WriteFile(filepath.Join(dir, "a.png"), []byte("not an image"), 0o600), test.ShouldBeNil)
	_, err = ds.Get(0)
	test.That(t, errors.Is(err, ErrLoad), test.ShouldBeTrue)
}

func TestNewConfigurationErrors(t *testing.T) {
	cfg, dir := fixture(t)
	cfg.LabelTrainPath = append(cfg.LabelTrainPath, filepath.Join(dir, "more.csv"))
	_, err := New(cfg, config.Train)
	test.That(t, errors.Is(err, config.ErrInvalid), test.ShouldBeTrue)

	cfg, dir = fixture(t)
	labelDir := filepath.Join(dir, "labels")
	test.That(t, os.Mkdir(labelDir, 0o700), test.ShouldBeNil)
	cfg.ImageTrainPath = config.PathList{dir, dir}
	cfg.LabelTrainPath = config.PathList{filepath.Join(dir, "labels.csv"), labelDir}
	_, err = New(cfg, config.Train)
	test.That(t, errors.Is(err, config.ErrInvalid), test.ShouldBeTrue)

	cfg, _ = fixture(t)
	cfg.Augmentation.Photometric.TrainEnable = true
	cfg.Augmentation.Photometric.Primitives = []string{"sepia"}
	_, err = New(cfg, config.Train)
	test.That(t, errors.Is(err, config.ErrInvalid), test.ShouldBeTrue)

	_, err = New(nil, config.Train)
	test.That(t, errors.Is(err, config.ErrInvalid), test.ShouldBeTrue)
}

func TestNewDirectoryLayout(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 8, 8, uniform(10))
	labelDir := filepath.Join(dir, "labels")
	test.That(t, os.Mkdir(labelDir, 0o700), test.ShouldBeNil)
	test.That(t, os.WriteFile(filepath.Join(labelDir, "a.csv"), []byte("a.png, 1,1,1\nignored\n"), 0o600), test.ShouldBeNil)

	ds, err := New(&config.Config{
		Resize:         []int{8, 8},
		ImageTrainPath: config.PathList{dir},
		LabelTrainPath: config.PathList{labelDir},
	}, config.Train)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ds.Len(), test.ShouldEqual, 1)
	s, err := ds.Get(0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Raw.Keypoints, test.ShouldResemble, []r2.Point{{X: 1, Y: 1}})
}
