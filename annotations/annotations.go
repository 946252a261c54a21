// Package annotations turns keypoint annotation sources into a flat index of
// image paths and keypoint triples.
//
// Two on-disk layouts are understood:
//
//   - directory layout: a directory holding one annotation file per image; the
//     first line of each file is `image_name, x1,y1,c1, x2,y2,c2, ...`.
//   - file layout: a single delimited text file with one such row per image.
//     When the file name ends in "csv" its first line is a header and skipped.
//
// Image names are resolved against the image directory paired with the source.
// An indexer serves exactly one layout; NewIndexer picks it once.
package annotations

import (
	"os"

	"github.com/pkg/errors"

	"github.com/Noofbiz/kpdata/config"
)

// ErrMixedLayout is returned when the sources combine directory and file layouts.
// It is a configuration error.
var ErrMixedLayout = errors.Wrap(config.ErrInvalid, "annotation sources mix directory and file layouts")

// Record is one annotated image. Keypoints are (x, y, confidence) triples and
// nil when the annotation carries no coordinates.
type Record struct {
	ImagePath string
	Keypoints [][3]float64
}

// Source pairs an image directory with a label path (directory or file).
type Source struct {
	ImageDir  string
	LabelPath string
}

// Indexer produces the records of its sources, in source order.
type Indexer interface {
	Index() ([]Record, error)
}

// SourcesFromPaths zips image directories with label paths.
func SourcesFromPaths(imageDirs, labelPaths []string) ([]Source, error) {
	if len(imageDirs) != len(labelPaths) {
		return nil, errors.Wrapf(config.ErrInvalid, "%d image paths but %d label paths", len(imageDirs), len(labelPaths))
	}
	sources := make([]Source, len(imageDirs))
	for i := range imageDirs {
		sources[i] = Source{ImageDir: imageDirs[i], LabelPath: labelPaths[i]}
	}
	return sources, nil
}

// NewIndexer inspects the label paths and returns the indexer for their layout.
// Sources with an empty label path are dropped. Label paths that do not exist
// stay in the indexer and contribute no records.
func NewIndexer(sources []Source) (Indexer, error) {
	var kept []Source
	var sawDir, sawFile bool
	for _, src := range sources {
		if src.LabelPath == "" {
			continue
		}
		kept = append(kept, src)
		info, err := os.Stat(src.LabelPath)
		if err != nil {
			continue
		}
		if info.IsDir() {
			sawDir = true
		} else {
			sawFile = true
		}
	}
	if sawDir && sawFile {
		return nil, ErrMixedLayout
	}
	if sawDir {
		return &DirIndexer{Sources: kept}, nil
	}
	return &FileIndexer{Sources: kept}, nil
}
