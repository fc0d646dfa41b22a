package imaging

import (
	"gonum.org/v1/gonum/floats"
)

// Rescale applies a linear contrast stretch, mapping the grid's observed
// [min, max] onto [0, 1].
//
// A flat grid (min == max) has no range to stretch and is returned unchanged;
// callers that encode the result to 8-bit get the flat value clamped into
// [0, 255] rather than a division by zero.
func Rescale(g *Grid) *Grid {
	out := g.Clone()
	if len(out.Pix) == 0 {
		return out
	}
	lo, hi := floats.Min(out.Pix), floats.Max(out.Pix)
	if lo == hi {
		return out
	}
	span := hi - lo
	for i, v := range out.Pix {
		out.Pix[i] = (v - lo) / span
	}
	return out
}

// Range returns the smallest and largest sample of g.
func Range(g *Grid) (lo, hi float64) {
	if len(g.Pix) == 0 {
		return 0, 0
	}
	return floats.Min(g.Pix), floats.Max(g.Pix)
}
