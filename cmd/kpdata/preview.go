package main

import (
	"fmt"
	"image"
	"io"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"

	"github.com/Noofbiz/kpdata/datasets"
	"github.com/Noofbiz/kpdata/rimage"
)

// Size of one panel of a preview sheet.
const (
	panelW = 640
	panelH = 480
)

// PreviewAction renders n shuffled samples as 2x2 sheets: raw image with
// keypoints, raw mask, warp image with keypoints, warp mask.
func PreviewAction(c *cli.Context) error {
	logger := newLogger(c)
	seed := c.Uint64(flagSeed)
	ds, err := openDataset(c, logger, datasets.WithSeed(seed))
	if err != nil {
		return err
	}
	loader, err := datasets.NewLoader(ds, datasets.LoaderConfig{
		BatchSize: 1,
		Shuffle:   true,
		Seed:      seed,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	outDir := c.String(flagOut)
	if err := ensureDir(outDir); err != nil {
		return err
	}

	n := max(0, min(c.Int(flagCount), ds.Len()))
	bar := progressbar.Default(int64(n), "rendering previews")
	for i := range n {
		batch, err := loader.Next(c.Context)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		sheet, err := previewSheet(batch)
		if err != nil {
			return err
		}
		if err := sheet.SavePNG(filepath.Join(outDir, fmt.Sprintf("preview_%04d.png", i))); err != nil {
			return errors.Wrap(err, "saving preview")
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()
	logger.Infow("wrote previews", "count", n, "dir", outDir)
	return nil
}

// previewSheet draws the first sample of batch.
func previewSheet(b *datasets.Batch) (*gg.Context, error) {
	dims := b.Raw.Image.Shape().Dimensions
	if len(dims) != 4 {
		return nil, errors.Errorf("unexpected image shape %v", dims)
	}
	h, w := dims[2], dims[3]

	dc := gg.NewContext(2*panelW, 2*panelH)
	for row, v := range []datasets.ViewTensors{b.Raw, b.Warp} {
		img := firstPlane(v.Image, h, w)
		kmap := firstPlane(v.KeypointMap, h, w)
		mask := firstPlane(v.Mask, h, w)

		y := float64(row * panelH)
		dc.DrawImage(imaging.Resize(toGray(img, 255), panelW, panelH, imaging.Linear), 0, int(y))
		sx, sy := float64(panelW)/float64(w), float64(panelH)/float64(h)
		dc.SetRGB(0, 1, 0)
		for i, on := range kmap.Pix {
			if on == 0 {
				continue
			}
			px, py := i%w, i/w
			dc.DrawCircle(float64(px)*sx, y+float64(py)*sy, 3)
			dc.Stroke()
		}
		dc.DrawImage(imaging.Resize(toGray(mask, 255), panelW, panelH, imaging.NearestNeighbor), panelW, int(y))
	}
	return dc, nil
}

// firstPlane copies the first h×w plane of a batch tensor.
func firstPlane(t *tensors.Tensor, h, w int) *rimage.Grid {
	g := rimage.NewGrid(h, w)
	tensors.ConstFlatData[float32](t, func(flat []float32) {
		copy(g.Pix, flat[:h*w])
	})
	return g
}

func toGray(g *rimage.Grid, scale float32) *image.Gray {
	c := g.Clone()
	c.Scale(scale)
	return c.ToGray()
}
