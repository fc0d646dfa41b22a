package imaging

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// ErrShapeMismatch is returned when an image, grid, or coordinate does not fit
// the shape an operation requires (empty images, channels the image does not
// carry, grids of different sizes).
var ErrShapeMismatch = errors.New("shape mismatch")

// Grid is a single-channel image held as normalized floating-point intensities.
//
// Samples are stored row-major: the value at column x, row y lives at
// Pix[y*Width+x]. Intensities decoded from images lie in [0, 1], but a Grid may
// hold any value (sums and variances are carried in Grids before rescaling).
type Grid struct {
	Width  int
	Height int
	Pix    []float64
}

// NewGrid allocates a zero-filled grid of the given size.
func NewGrid(width, height int) *Grid {
	return &Grid{
		Width:  width,
		Height: height,
		Pix:    make([]float64, width*height),
	}
}

// NewUniformGrid allocates a grid with every sample set to v.
func NewUniformGrid(width, height int, v float64) *Grid {
	g := NewGrid(width, height)
	for i := range g.Pix {
		g.Pix[i] = v
	}
	return g
}

func (g *Grid) At(x, y int) float64     { return g.Pix[y*g.Width+x] }
func (g *Grid) Set(x, y int, v float64) { g.Pix[y*g.Width+x] = v }
func (g *Grid) Bounds() image.Rectangle { return image.Rect(0, 0, g.Width, g.Height) }
func (g *Grid) Empty() bool             { return g.Width <= 0 || g.Height <= 0 }

// Clone returns a deep copy of the grid.
func (g *Grid) Clone() *Grid {
	c := &Grid{Width: g.Width, Height: g.Height, Pix: make([]float64, len(g.Pix))}
	copy(c.Pix, g.Pix)
	return c
}

// SameSize reports whether both grids have identical dimensions.
func (g *Grid) SameSize(o *Grid) bool {
	return g.Width == o.Width && g.Height == o.Height
}

// CheckSameSize returns ErrShapeMismatch when the grids differ in size.
func CheckSameSize(a, b *Grid) error {
	if !a.SameSize(b) {
		return fmt.Errorf("%w: grid %dx%d vs %dx%d", ErrShapeMismatch, a.Width, a.Height, b.Width, b.Height)
	}
	return nil
}

// ToGray encodes the grid as an 8-bit image.
//
// Each sample is clamped to [0, 1] and scaled to [0, 255] with rounding to the
// nearest integer. NaN samples encode as 0.
func (g *Grid) ToGray() *image.Gray {
	img := image.NewGray(g.Bounds())
	for y := 0; y < g.Height; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+g.Width]
		src := g.Pix[y*g.Width : (y+1)*g.Width]
		for x, v := range src {
			row[x] = toByte(v)
		}
	}
	return img
}

// GridFromGray decodes an 8-bit image into a normalized grid (v/255).
func GridFromGray(img *image.Gray) *Grid {
	b := img.Bounds()
	g := NewGrid(b.Dx(), b.Dy())
	for y := 0; y < g.Height; y++ {
		off := img.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < g.Width; x++ {
			g.Pix[y*g.Width+x] = float64(img.Pix[off+x]) / 255.0
		}
	}
	return g
}

// Quantize round-trips the grid through 8-bit encoding, returning the
// normalized values an 8-bit consumer would read back.
func (g *Grid) Quantize() *Grid {
	q := NewGrid(g.Width, g.Height)
	for i, v := range g.Pix {
		q.Pix[i] = float64(toByte(v)) / 255.0
	}
	return q
}

func toByte(v float64) uint8 {
	switch {
	case math.IsNaN(v), v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return uint8(math.Round(v * 255))
}
