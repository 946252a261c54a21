// Package config reads the dataset section of a training configuration file.
//
// The file is YAML with the dataset settings under a top level `data` key:
//
//	data:
//	  resize: [240, 320]
//	  image_train_path: ["coco/images/train2017"]
//	  label_train_path: ["coco/labels/train2017.csv"]
//	  image_test_path: coco/images/val2017
//	  label_test_path: coco/labels/val2017.csv
//	  augmentation:
//	    photometric:
//	      train_enable: true
//	      test_enable: false
//	      primitives: [random_brightness, random_contrast]
//	      params: {...}
//	    homographic:
//	      train_enable: true
//	      test_enable: true
//	      params: {...}
//	      valid_border_margin: 3
//
// The augmenter `params` maps are kept opaque here; the augment package decodes them.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is the root of every configuration error. Check with errors.Is.
var ErrInvalid = errors.New("invalid configuration")

// Config is the dataset configuration.
type Config struct {
	Resize         []int        `yaml:"resize"`
	ImageTrainPath PathList     `yaml:"image_train_path"`
	LabelTrainPath PathList     `yaml:"label_train_path"`
	ImageTestPath  PathList     `yaml:"image_test_path"`
	LabelTestPath  PathList     `yaml:"label_test_path"`
	Augmentation   Augmentation `yaml:"augmentation"`
}

// Augmentation groups the two augmenter sections.
type Augmentation struct {
	Photometric Photometric `yaml:"photometric"`
	Homographic Homographic `yaml:"homographic"`
}

// Photometric configures the appearance perturbation of the warp view.
type Photometric struct {
	TrainEnable bool           `yaml:"train_enable"`
	TestEnable  bool           `yaml:"test_enable"`
	Primitives  []string       `yaml:"primitives"`
	Params      map[string]any `yaml:"params"`
	RandomOrder bool           `yaml:"random_order"`
}

// Homographic configures the geometric warp of the warp view.
type Homographic struct {
	TrainEnable       bool           `yaml:"train_enable"`
	TestEnable        bool           `yaml:"test_enable"`
	Params            map[string]any `yaml:"params"`
	ValidBorderMargin int            `yaml:"valid_border_margin"`
}

type file struct {
	Data *Config `yaml:"data"`
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %q", path)
	}
	cfg, err := Parse(raw)
	if err != nil {
		return nil, errors.WithMessagef(err, "config %q", path)
	}
	return cfg, nil
}

// Parse decodes and validates a YAML document.
func Parse(raw []byte) (*Config, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, errors.Wrap(ErrInvalid, err.Error())
	}
	if f.Data == nil {
		return nil, errors.Wrap(ErrInvalid, "missing data section")
	}
	if err := f.Data.Validate(); err != nil {
		return nil, err
	}
	return f.Data, nil
}

// Validate checks the keys every mode needs.
func (c *Config) Validate() error {
	if len(c.Resize) != 2 {
		return errors.Wrapf(ErrInvalid, "resize must be [H, W], got %v", c.Resize)
	}
	if c.Resize[0] <= 0 || c.Resize[1] <= 0 {
		return errors.Wrapf(ErrInvalid, "resize must be positive, got %v", c.Resize)
	}
	if c.Augmentation.Homographic.ValidBorderMargin < 0 {
		return errors.Wrap(ErrInvalid, "valid_border_margin must not be negative")
	}
	return nil
}

// Height is the configured output height.
func (c *Config) Height() int { return c.Resize[0] }

// Width is the configured output width.
func (c *Config) Width() int { return c.Resize[1] }
