package config

import (
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Mode selects the train or test half of the configuration.
type Mode int

const (
	// Train reads the *_train_path keys and the train_enable flags.
	Train Mode = iota
	// Test reads the *_test_path keys and the test_enable flags.
	Test
)

func (m Mode) String() string {
	switch m {
	case Train:
		return "train"
	case Test:
		return "test"
	default:
		return "unknown"
	}
}

// ParseMode accepts "train" or "test".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "train":
		return Train, nil
	case "test":
		return Test, nil
	default:
		return 0, errors.Wrapf(ErrInvalid, "unknown mode %q", s)
	}
}

// PathList is a path key that may be written as a scalar or a sequence.
type PathList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *PathList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		*p = PathList{s}
		return nil
	case yaml.SequenceNode:
		var ss []string
		if err := value.Decode(&ss); err != nil {
			return err
		}
		*p = ss
		return nil
	default:
		return errors.Errorf("line %d: path must be a string or a list of strings", value.Line)
	}
}

// Policy is the per-dataset view of the configuration for one mode. It is
// resolved once when the dataset is built.
type Policy struct {
	Mode        Mode
	Height      int
	Width       int
	ImageDirs   []string
	LabelPaths  []string
	Photometric bool
	Homographic bool
}

// Resolve picks the paths and augmentation flags for mode.
func (c *Config) Resolve(mode Mode) (Policy, error) {
	if err := c.Validate(); err != nil {
		return Policy{}, err
	}
	p := Policy{Mode: mode, Height: c.Height(), Width: c.Width()}
	switch mode {
	case Train:
		p.ImageDirs, p.LabelPaths = c.ImageTrainPath, c.LabelTrainPath
		p.Photometric = c.Augmentation.Photometric.TrainEnable
		p.Homographic = c.Augmentation.Homographic.TrainEnable
	case Test:
		p.ImageDirs, p.LabelPaths = c.ImageTestPath, c.LabelTestPath
		p.Photometric = c.Augmentation.Photometric.TestEnable
		p.Homographic = c.Augmentation.Homographic.TestEnable
	default:
		return Policy{}, errors.Wrapf(ErrInvalid, "unknown mode %d", mode)
	}
	if len(p.ImageDirs) == 0 {
		return Policy{}, errors.Wrapf(ErrInvalid, "missing image_%s_path", mode)
	}
	if len(p.ImageDirs) != len(p.LabelPaths) {
		return Policy{}, errors.Wrapf(ErrInvalid, "image_%[1]s_path has %[2]d entries but label_%[1]s_path has %[3]d",
			mode, len(p.ImageDirs), len(p.LabelPaths))
	}
	return p, nil
}
