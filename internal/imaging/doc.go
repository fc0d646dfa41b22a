// Package imaging provides the raster primitives used by the motion-pattern
// analysis: loading, channel selection, rotation, contrast stretching, and
// 8-bit encoding.
//
// # Representations
//
// Two image representations appear throughout the module:
//   - Grid: a single-channel, row-major float64 buffer. All arithmetic happens
//     here; decoded intensities are normalized to [0, 1].
//   - *image.Gray: the 8-bit form produced at output boundaries. Encoding clamps
//     to [0, 1], scales by 255, and rounds to the nearest integer.
//
// # Coordinate System
//
// Pixel coordinates are 0-based with (0,0) at the top-left corner:
//   - X (column) increases rightward
//   - Y (row) increases downward
//
// Rotation pivots are given as (x, y) here; callers that think in (row, column)
// swap before calling.
//
// # Channel Selection
//
// Colour images are reduced to a single working plane before processing
// (see WorkingChannel). Grayscale images pass through untouched.
//
// # Rotation
//
// Rotate resamples the source through an explicit affine map. Both the
// interpolation order and the value used for pixels that map outside the
// source are explicit RotateOptions fields, so results do not depend on any
// library default.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. Grid operations never mutate their
// inputs and can run concurrently on shared source grids.
package imaging
