// Package main is the kpdata command: it inspects a keypoint dataset
// configuration and renders samples and statistics from it.
package main

import (
	"log"
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/Noofbiz/kpdata/config"
	"github.com/Noofbiz/kpdata/datasets"
	"github.com/Noofbiz/kpdata/logging"
)

const (
	flagConfig = "config"
	flagMode   = "mode"
	flagDebug  = "debug"
	flagCount  = "n"
	flagOut    = "out"
	flagSeed   = "seed"
)

var sampleFlags = []cli.Flag{
	&cli.IntFlag{
		Name:  flagCount,
		Value: 10,
		Usage: "number of samples to render",
	},
	&cli.StringFlag{
		Name:  flagOut,
		Value: "kpdata_out",
		Usage: "write images to `DIR`",
	},
	&cli.Uint64Flag{
		Name:  flagSeed,
		Value: 0,
		Usage: "seed for shuffling and augmentation",
	},
}

var app = &cli.App{
	Name:            "kpdata",
	Usage:           "inspect keypoint training data",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     flagConfig,
			Aliases:  []string{"c"},
			Required: true,
			Usage:    "load configuration from `FILE`",
		},
		&cli.StringFlag{
			Name:  flagMode,
			Value: config.Train.String(),
			Usage: "dataset mode, train or test",
		},
		&cli.BoolFlag{
			Name:  flagDebug,
			Usage: "enable debug logging",
		},
	},
	Commands: []*cli.Command{
		{
			Name:   "index",
			Usage:  "index the annotations and print keypoint statistics",
			Action: IndexAction,
		},
		{
			Name:   "preview",
			Usage:  "render raw and warp views with their keypoints and masks",
			Flags:  sampleFlags,
			Action: PreviewAction,
		},
		{
			Name:   "plot",
			Usage:  "plot keypoint counts and raw/warp keypoint positions",
			Flags:  sampleFlags,
			Action: PlotAction,
		},
	},
}

func newLogger(c *cli.Context) logging.Logger {
	if c.Bool(flagDebug) {
		return logging.NewDebugLogger("kpdata")
	}
	return logging.NewLogger("kpdata")
}

// openDataset loads the configuration and builds the dataset for the selected mode.
func openDataset(c *cli.Context, logger logging.Logger, opts ...datasets.Option) (*datasets.KeypointDataset, error) {
	cfg, err := config.Load(c.String(flagConfig))
	if err != nil {
		return nil, err
	}
	mode, err := config.ParseMode(c.String(flagMode))
	if err != nil {
		return nil, err
	}
	opts = append([]datasets.Option{datasets.WithLogger(logger)}, opts...)
	ds, err := datasets.New(cfg, mode, opts...)
	if err != nil {
		return nil, errors.WithMessagef(err, "building %s dataset", mode)
	}
	return ds, nil
}

func main() {
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
