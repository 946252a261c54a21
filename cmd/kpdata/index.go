package main

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
)

// keypointStats summarizes keypoint counts over the records.
type keypointStats struct {
	Records   int
	Empty     int
	Keypoints int
	Min, Max  int
}

func (s *keypointStats) add(n int) {
	if s.Records == 0 {
		s.Min, s.Max = math.MaxInt, 0
	}
	s.Records++
	s.Keypoints += n
	if n == 0 {
		s.Empty++
	}
	s.Min = min(s.Min, n)
	s.Max = max(s.Max, n)
}

func (s keypointStats) mean() float64 {
	if s.Records == 0 {
		return 0
	}
	return float64(s.Keypoints) / float64(s.Records)
}

// IndexAction prints how many records the annotations hold and how keypoints
// are spread across them.
func IndexAction(c *cli.Context) error {
	logger := newLogger(c)
	ds, err := openDataset(c, logger)
	if err != nil {
		return err
	}

	var stats keypointStats
	for i := range ds.Len() {
		rec, err := ds.Record(i)
		if err != nil {
			return err
		}
		stats.add(len(rec.Keypoints))
	}

	p := ds.Policy()
	w := c.App.Writer
	fmt.Fprintf(w, "mode:        %s\n", p.Mode)
	fmt.Fprintf(w, "size:        %dx%d\n", p.Width, p.Height)
	fmt.Fprintf(w, "records:     %s\n", humanize.Comma(int64(stats.Records)))
	fmt.Fprintf(w, "keypoints:   %s\n", humanize.Comma(int64(stats.Keypoints)))
	fmt.Fprintf(w, "unannotated: %s\n", humanize.Comma(int64(stats.Empty)))
	if stats.Records > 0 {
		fmt.Fprintf(w, "per record:  min %d, mean %.2f, max %d\n", stats.Min, stats.mean(), stats.Max)
	}
	return nil
}
