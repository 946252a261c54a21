package main

import (
	"image/color"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/golang/geo/r2"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/Noofbiz/kpdata/datasets"
	"github.com/Noofbiz/kpdata/geometry"
)

// maxMoves caps how many keypoint displacement lines are drawn.
const maxMoves = 40

// moveLine joins a raw keypoint to where the homography sends it.
type moveLine struct {
	xys plotter.XYs
}

// PlotAction samples n items and plots keypoint counts per view and the
// positions of raw and warp keypoints.
func PlotAction(c *cli.Context) error {
	logger := newLogger(c)
	seed := c.Uint64(flagSeed)
	ds, err := openDataset(c, logger, datasets.WithSeed(seed))
	if err != nil {
		return err
	}
	outDir := c.String(flagOut)

	order := rand.New(rand.NewPCG(seed, seed)).Perm(ds.Len())
	n := max(0, min(c.Int(flagCount), len(order)))

	var rawCounts, warpCounts plotter.Values
	var raw, warp plotter.XYs
	var moves []moveLine
	bar := progressbar.Default(int64(n), "sampling")
	for _, idx := range order[:n] {
		s, err := ds.Get(idx)
		if err != nil {
			return err
		}
		rawCounts = append(rawCounts, float64(len(s.Raw.Keypoints)))
		warpCounts = append(warpCounts, float64(len(s.Warp.Keypoints)))
		for _, p := range s.Raw.Keypoints {
			raw = append(raw, toXY(p))
			if len(moves) >= maxMoves {
				continue
			}
			if q, ok := geometry.Apply(s.Homography, p); ok {
				moves = append(moves, moveLine{xys: plotter.XYs{toXY(p), toXY(q)}})
			}
		}
		for _, p := range s.Warp.Keypoints {
			warp = append(warp, toXY(p))
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	if err := plotCounts(outDir, rawCounts, warpCounts); err != nil {
		return err
	}
	if err := plotPositions(outDir, raw, warp, moves); err != nil {
		return err
	}
	logger.Infow("wrote plots", "samples", n, "dir", outDir)
	return nil
}

func toXY(p r2.Point) plotter.XY {
	return plotter.XY{X: p.X, Y: p.Y}
}

// plotCounts draws histograms of keypoints per sample for both views.
func plotCounts(outDir string, raw, warp plotter.Values) error {
	p := plot.New()
	p.Title.Text = "Keypoints per sample: raw (grey), warp (blue)"
	p.X.Label.Text = "keypoints"
	p.Y.Label.Text = "samples"

	if len(raw) == 0 {
		raw, warp = plotter.Values{0}, plotter.Values{0}
	}
	bins := max(1, min(20, len(raw)))
	rh, err := plotter.NewHist(raw, bins)
	if err != nil {
		return err
	}
	rh.FillColor = color.RGBA{R: 120, G: 120, B: 120, A: 160}
	p.Add(rh)
	p.Legend.Add("raw", rh)

	wh, err := plotter.NewHist(warp, bins)
	if err != nil {
		return err
	}
	wh.FillColor = color.RGBA{R: 20, G: 80, B: 200, A: 120}
	p.Add(wh)
	p.Legend.Add("warp", wh)

	if err := ensureDir(outDir); err != nil {
		return err
	}
	return p.Save(8*vg.Inch, 6*vg.Inch, filepath.Join(outDir, "keypoint_counts.png"))
}

// plotPositions scatters raw and warp keypoints in pixel coordinates with a
// sample of raw to warp displacements.
func plotPositions(outDir string, raw, warp plotter.XYs, moves []moveLine) error {
	p := plot.New()
	p.Title.Text = "Keypoints: raw (grey), warp (blue)"
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"

	rs, err := plotter.NewScatter(raw)
	if err != nil {
		return err
	}
	rs.GlyphStyle.Color = color.RGBA{R: 120, G: 120, B: 120, A: 180}
	rs.GlyphStyle.Radius = vg.Points(1.8)
	p.Add(rs)
	p.Legend.Add("raw", rs)

	ws, err := plotter.NewScatter(warp)
	if err != nil {
		return err
	}
	ws.GlyphStyle.Color = color.RGBA{R: 20, G: 80, B: 200, A: 220}
	ws.GlyphStyle.Radius = vg.Points(1.8)
	p.Add(ws)
	p.Legend.Add("warp", ws)

	for i, m := range moves {
		line, err := plotter.NewLine(m.xys)
		if err != nil {
			return err
		}
		line.Color = color.RGBA{R: 40, G: 120, B: 40, A: uint8(100 + (i%3)*30)}
		line.Width = vg.Points(0.8)
		p.Add(line)
		if i == 0 {
			p.Legend.Add("raw to warp", line)
		}
	}

	p.Add(plotter.NewGrid())
	all := append(append(plotter.XYs{}, raw...), warp...)
	p.X.Min, p.X.Max, p.Y.Min, p.Y.Max = autoRange(all)

	if err := ensureDir(outDir); err != nil {
		return err
	}
	return p.Save(8*vg.Inch, 6*vg.Inch, filepath.Join(outDir, "keypoint_positions.png"))
}

// autoRange computes padded min/max for X and Y for a set of points.
func autoRange(xs plotter.XYs) (xmin, xmax, ymin, ymax float64) {
	if len(xs) == 0 {
		return -1, 1, -1, 1
	}
	xmin, xmax = math.Inf(1), math.Inf(-1)
	ymin, ymax = math.Inf(1), math.Inf(-1)
	for _, p := range xs {
		xmin, xmax = min(xmin, p.X), max(xmax, p.X)
		ymin, ymax = min(ymin, p.Y), max(ymax, p.Y)
	}
	padx := (xmax - xmin) * 0.06
	pady := (ymax - ymin) * 0.06
	if padx == 0 {
		padx = 1.0
	}
	if pady == 0 {
		pady = 1.0
	}
	return xmin - padx, xmax + padx, ymin - pady, ymax + pady
}

func ensureDir(path string) error {
	if path == "" {
		return nil
	}
	return os.MkdirAll(path, 0o755)
}
