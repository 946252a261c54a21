// Package datasets builds paired raw/warp keypoint samples from annotated
// images and stacks them into gomlx tensors for self-supervised keypoint
// training.
//
// Layout and intended usage:
//
// KeypointDataset
//   - Indexes the annotation sources of one mode once, at construction.
//   - Loads images lazily: every Get reads the image from disk and builds a
//     fresh Sample, so memory stays bounded by the batch being assembled.
//   - The warp view of a sample is the raw view after an optional random
//     homographic warp and an optional photometric perturbation.
//
// Collate / BatchFlat
//   - Stacks samples into contiguous float32 buffers and then into gomlx
//     tensors. Sparse keypoints are not stacked.
//
// Loader
//   - Walks a Dataset in (optionally shuffled) batches with a worker pool and
//     implements gomlx's train.Dataset interface (Name, Yield, Reset).
package datasets

// Dataset is the sample protocol consumed by Loader.
type Dataset interface {
	Len() int
	Get(i int) (*Sample, error)
}
