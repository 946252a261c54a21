package annotations

import (
	"bufio"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Rows with many keypoints get long; the scanner default of 64KiB is not enough.
const maxRowBytes = 16 * 1024 * 1024

// tabularSuffix marks label files whose first line is a header.
const tabularSuffix = "csv"

// FileIndexer reads sources laid out as a single annotation file each.
type FileIndexer struct {
	Sources []Source
}

// Index implements Indexer.
func (fi *FileIndexer) Index() ([]Record, error) {
	var records []Record
	for _, src := range fi.Sources {
		if src.LabelPath == "" {
			continue
		}
		recs, err := readRows(src)
		if err != nil {
			return nil, err
		}
		records = append(records, recs...)
	}
	return records, nil
}

func readRows(src Source) ([]Record, error) {
	f, err := os.Open(src.LabelPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "opening annotations %q", src.LabelPath)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRowBytes)
	skipHeader := strings.HasSuffix(src.LabelPath, tabularSuffix)

	var records []Record
	line, blank := 0, 0
	for scanner.Scan() {
		line++
		if line == 1 && skipHeader {
			continue
		}
		row := scanner.Text()
		// Blank rows are only allowed at the end of the file.
		if strings.TrimSpace(row) == "" {
			if blank == 0 {
				blank = line
			}
			continue
		}
		if blank != 0 {
			return nil, &ParseError{Path: src.LabelPath, Line: blank, Err: errors.New("empty annotation row")}
		}
		rec, err := parseRow(src.ImageDir, row)
		if err != nil {
			return nil, &ParseError{Path: src.LabelPath, Line: line, Err: err}
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading annotations %q", src.LabelPath)
	}
	return records, nil
}
