package datasets

import (
	"context"
	"io"
	"math/rand/v2"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/Noofbiz/kpdata/logging"
)

// LoaderConfig controls batching. NumWorkers <= 0 means one worker per
// sample of the batch.
type LoaderConfig struct {
	BatchSize  int
	Shuffle    bool
	DropLast   bool
	NumWorkers int
	Seed       uint64
	Logger     logging.Logger
}

// Loader walks a Dataset in batches. Samples of a batch are built
// concurrently and stacked in index order. A Loader itself is not safe for
// concurrent use.
type Loader struct {
	ds     Dataset
	cfg    LoaderConfig
	logger logging.Logger
	rng    *rand.Rand
	order  []int
	pos    int
}

// NewLoader returns a loader positioned at the start of the first epoch.
func NewLoader(ds Dataset, cfg LoaderConfig) (*Loader, error) {
	if ds == nil {
		return nil, errors.New("nil dataset")
	}
	if cfg.BatchSize <= 0 {
		return nil, errors.Errorf("batch size must be positive, got %d", cfg.BatchSize)
	}
	l := &Loader{
		ds:     ds,
		cfg:    cfg,
		logger: cfg.Logger,
		rng:    rand.New(rand.NewPCG(cfg.Seed, cfg.Seed)),
	}
	if l.logger == nil {
		l.logger = logging.Nop()
	}
	l.Reset()
	return l, nil
}

// Name implements train.Dataset.
func (l *Loader) Name() string {
	return "KeypointLoader"
}

// Reset rewinds to the start of a new epoch, reshuffling when enabled.
func (l *Loader) Reset() {
	n := l.ds.Len()
	if len(l.order) != n {
		l.order = make([]int, n)
	}
	for i := range l.order {
		l.order[i] = i
	}
	if l.cfg.Shuffle {
		l.rng.Shuffle(n, func(i, j int) { l.order[i], l.order[j] = l.order[j], l.order[i] })
	}
	l.pos = 0
}

// Batches returns the number of batches in one epoch.
func (l *Loader) Batches() int {
	n, bs := len(l.order), l.cfg.BatchSize
	if l.cfg.DropLast {
		return n / bs
	}
	return (n + bs - 1) / bs
}

// Next builds the next batch. It returns io.EOF at the end of the epoch.
func (l *Loader) Next(ctx context.Context) (*Batch, error) {
	end := min(l.pos+l.cfg.BatchSize, len(l.order))
	if l.pos >= end || (l.cfg.DropLast && end-l.pos < l.cfg.BatchSize) {
		return nil, io.EOF
	}
	indices := l.order[l.pos:end]
	l.pos = end

	samples := make([]*Sample, len(indices))
	g, gctx := errgroup.WithContext(ctx)
	if l.cfg.NumWorkers > 0 {
		g.SetLimit(l.cfg.NumWorkers)
	}
	for i, idx := range indices {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := l.ds.Get(idx)
			if err != nil {
				return errors.WithMessagef(err, "loading sample %d", idx)
			}
			samples[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	batch, err := Collate(samples)
	if err != nil {
		return nil, err
	}
	h, w := samples[0].Raw.Image.H, samples[0].Raw.Image.W
	bytes := uint64(4 * len(samples) * (6*h*w + 9))
	l.logger.Debugw("built batch", "size", len(samples), "memory", humanize.Bytes(bytes))
	return batch, nil
}

// Yield implements train.Dataset. Inputs are ordered as Batch.Inputs; there
// are no labels, the homography in the inputs supervises the pair.
func (l *Loader) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	batch, err := l.Next(context.Background())
	if err != nil {
		return nil, nil, nil, err
	}
	return l, batch.Inputs(), nil, nil
}
