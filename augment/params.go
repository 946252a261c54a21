// Package augment holds the two augmenters applied to the warp view of a
// sample: a random homographic warp and a chain of photometric perturbations.
//
// Both are configured from the opaque params maps of the dataset
// configuration and draw all randomness from a caller supplied *rand.Rand, so
// a fixed seed reproduces a sample exactly.
package augment

import (
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"

	"github.com/Noofbiz/kpdata/config"
)

// decodeParams decodes a params map over the defaults already held in out.
func decodeParams(params map[string]any, out any) error {
	if params == nil {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return errors.Wrap(err, "building params decoder")
	}
	if err := dec.Decode(params); err != nil {
		return errors.Wrap(config.ErrInvalid, err.Error())
	}
	return nil
}

// Range is a closed [lo, hi] interval written as a two element list.
type Range []float64

func (r Range) validate(name string) error {
	if len(r) != 2 || r[0] > r[1] {
		return errors.Wrapf(config.ErrInvalid, "%s must be [lo, hi], got %v", name, []float64(r))
	}
	return nil
}

func (r Range) lo() float64 { return r[0] }
func (r Range) hi() float64 { return r[1] }
