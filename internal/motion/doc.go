// Package motion synthesizes Generalized Motion Patterns (GMPs) from fundus
// images and aggregates them into interference and variance maps.
//
// # Generalized Motion Pattern
//
// A GMP is built by rotating an image through a half-open progression of
// angles about a pivot and coalescing the rotated copies into one image with a
// policy:
//   - Max: elementwise maximum of all frames
//   - Min: elementwise minimum of all frames
//   - Mean: running arithmetic mean, (acc*(n-1) + frame) / n for the n-th frame
//
// Structures that line up under small rotations (vessels crossing the pivot's
// arcs) reinforce each other, while texture that does not smears out.
//
// # Interference and Variance
//
// Aggregator repeats the GMP at many pivots drawn uniformly over the image:
//   - Interference map: the per-pixel sum of the patterns, contrast-stretched
//   - Variance map: the per-pixel population variance of the patterns,
//     contrast-stretched
//
// Pivots come from an injected RandSource, so a seeded source reproduces a run
// exactly. Patterns for different pivots are computed concurrently and folded
// into the accumulators in pivot order.
//
// # Errors
//
// Parameter problems are reported before any pixel work:
//   - ErrInvalidParameter: unknown policy, zero step, empty angle progression,
//     fewer than one pivot
//   - ErrShapeMismatch: pivot outside the image, channel the image lacks
//
// A flat input (every pixel identical) is not an error: the contrast stretch
// passes it through unchanged instead of dividing by a zero range.
package motion
