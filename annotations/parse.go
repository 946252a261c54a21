package annotations

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// ParseError reports a malformed annotation row.
type ParseError struct {
	Path string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	return strconv.ParseFloat(s, 64)
}

// parseRow reads `image_name, x1,y1,c1, ...` into a Record whose image path is
// joined to imageDir.
func parseRow(imageDir, row string) (Record, error) {
	fields := strings.Split(strings.TrimSpace(row), ",")
	name := strings.TrimSpace(fields[0])
	if name == "" {
		return Record{}, fmt.Errorf("missing image name")
	}
	rec := Record{ImagePath: filepath.Join(imageDir, name)}

	values := fields[1:]
	if len(values)%3 != 0 {
		return Record{}, fmt.Errorf("%d coordinate fields is not a multiple of 3 (x,y,confidence)", len(values))
	}
	if len(values) == 0 {
		return rec, nil
	}
	rec.Keypoints = make([][3]float64, len(values)/3)
	for i, v := range values {
		f, err := parseFloat(v)
		if err != nil {
			return Record{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		rec.Keypoints[i/3][i%3] = f
	}
	return rec, nil
}
