package annotations

import (
	"bufio"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// DirIndexer reads sources laid out as one annotation file per image.
type DirIndexer struct {
	Sources []Source
}

// Index implements Indexer.
func (d *DirIndexer) Index() ([]Record, error) {
	var records []Record
	for _, src := range d.Sources {
		if src.LabelPath == "" {
			continue
		}
		entries, err := os.ReadDir(src.LabelPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, errors.Wrapf(err, "listing annotations in %q", src.LabelPath)
		}
		for _, entry := range entries {
			if !entry.Type().IsRegular() {
				continue
			}
			path := filepath.Join(src.LabelPath, entry.Name())
			rec, err := readFirstRow(src.ImageDir, path)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
	}
	return records, nil
}

func readFirstRow(imageDir, path string) (Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return Record{}, errors.Wrapf(err, "opening annotation %q", path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRowBytes)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return Record{}, errors.Wrapf(err, "reading annotation %q", path)
		}
		return Record{}, &ParseError{Path: path, Line: 1, Err: errors.New("empty annotation file")}
	}
	rec, err := parseRow(imageDir, scanner.Text())
	if err != nil {
		return Record{}, &ParseError{Path: path, Line: 1, Err: err}
	}
	return rec, nil
}
