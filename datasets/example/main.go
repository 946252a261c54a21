package main

// Example command that builds the keypoint dataset from a configuration file,
// draws one sample and collates a small batch into gomlx tensors.
//
// Usage:
//   go run ./datasets/example -config superpoint_train.yaml
//
// Images are loaded lazily: only the samples of the batch are read from disk.

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/Noofbiz/kpdata/config"
	"github.com/Noofbiz/kpdata/datasets"
	"github.com/Noofbiz/kpdata/logging"
)

func main() {
	cfgPath := flag.String("config", "superpoint_train.yaml", "dataset configuration")
	modeName := flag.String("mode", "train", "train or test")
	batchSize := flag.Int("batch", 4, "batch size")
	flag.Parse()

	logger := logging.NewDebugLogger("example")
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	mode, err := config.ParseMode(*modeName)
	if err != nil {
		log.Fatalf("bad mode: %v", err)
	}

	ds, err := datasets.New(cfg, mode, datasets.WithLogger(logger), datasets.WithSeed(1))
	if err != nil {
		log.Fatalf("failed to build dataset: %v", err)
	}
	fmt.Printf("Total %s samples available: %d\n", mode, ds.Len())
	if ds.Len() == 0 {
		return
	}

	s, err := ds.Get(0)
	if err != nil {
		log.Fatalf("failed to build sample 0: %v", err)
	}
	fmt.Printf("Sample 0: %dx%d, %d raw keypoints, %d warp keypoints\n",
		s.Raw.Image.W, s.Raw.Image.H, len(s.Raw.Keypoints), len(s.Warp.Keypoints))
	fmt.Printf("  Homography: %v\n", s.Homography.RawMatrix().Data)

	loader, err := datasets.NewLoader(ds, datasets.LoaderConfig{
		BatchSize: *batchSize,
		Shuffle:   true,
		Seed:      1,
		Logger:    logger,
	})
	if err != nil {
		log.Fatalf("failed to build loader: %v", err)
	}
	batch, err := loader.Next(context.Background())
	if err != nil {
		log.Fatalf("failed to build batch: %v", err)
	}
	fmt.Printf("Batch tensors:\n")
	fmt.Printf("  raw image:  %s\n", batch.Raw.Image.Shape())
	fmt.Printf("  raw map:    %s\n", batch.Raw.KeypointMap.Shape())
	fmt.Printf("  warp mask:  %s\n", batch.Warp.Mask.Shape())
	fmt.Printf("  homography: %s\n", batch.Homography.Shape())
}
