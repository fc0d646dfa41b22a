// Package detection locates the region of interest in retinal fundus images.
//
// A fundus photograph is a bright, roughly circular disc on a dark surround.
// Everything outside the disc is camera vignette and carries no retinal
// structure, so analyses that sum or compare pixels (the interference and
// variance maps in package motion) can be restricted to the disc with a Mask.
//
// # Algorithm Overview
//
// FundusMask follows a short pipeline:
//
//  1. Channel selection: reduce the image to one plane (green by default)
//  2. Thresholding: a fixed level, or Otsu's threshold from the histogram
//  3. Component analysis: keep the largest 8-connected foreground region
//  4. Hole filling: enclose dark lesions and vessels lying inside the disc
//
// # Coordinate System
//
// Masks use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//   - Bounds uses inclusive top-left and exclusive bottom-right
//
// # Thread Safety
//
// All functions are stateless and safe for concurrent use. A Mask is not
// modified after FundusMask returns it.
package detection
