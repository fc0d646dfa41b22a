package imaging

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/image/math/f64"
)

// Interpolation selects how samples at non-integer source coordinates are read.
type Interpolation int

const (
	// Nearest reads the closest source sample (spline order 0).
	Nearest Interpolation = iota
	// Bilinear blends the four surrounding source samples (spline order 1).
	Bilinear
)

func (i Interpolation) String() string {
	switch i {
	case Nearest:
		return "nearest"
	case Bilinear:
		return "bilinear"
	}
	return fmt.Sprintf("interpolation(%d)", int(i))
}

// ParseInterpolation accepts "nearest"/"0" or "bilinear"/"1".
func ParseInterpolation(s string) (Interpolation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nearest", "0":
		return Nearest, nil
	case "bilinear", "linear", "1":
		return Bilinear, nil
	}
	return 0, fmt.Errorf("unknown interpolation %q", s)
}

func (i Interpolation) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

func (i *Interpolation) UnmarshalText(text []byte) error {
	parsed, err := ParseInterpolation(string(text))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// RotateOptions makes the resampling behaviour of Rotate explicit.
type RotateOptions struct {
	// Interpolation is the resampling order.
	Interpolation Interpolation `yaml:"interpolation" json:"interpolation"`

	// Fill is the intensity given to destination pixels whose source falls
	// outside the image.
	Fill float64 `yaml:"fill" json:"fill"`
}

// DefaultRotateOptions returns bilinear interpolation with zero fill.
func DefaultRotateOptions() RotateOptions {
	return RotateOptions{Interpolation: Bilinear, Fill: 0}
}

// Validate rejects unknown interpolation orders and non-finite fill values.
func (o RotateOptions) Validate() error {
	if o.Interpolation != Nearest && o.Interpolation != Bilinear {
		return fmt.Errorf("unknown interpolation %d", int(o.Interpolation))
	}
	if math.IsNaN(o.Fill) || math.IsInf(o.Fill, 0) {
		return fmt.Errorf("fill value must be finite, got %v", o.Fill)
	}
	return nil
}

// mul composes two affine maps; the result applies q first, then p.
func mul(p, q f64.Aff3) f64.Aff3 {
	return f64.Aff3{
		p[0]*q[0] + p[1]*q[3],
		p[0]*q[1] + p[1]*q[4],
		p[0]*q[2] + p[1]*q[5] + p[2],
		p[3]*q[0] + p[4]*q[3],
		p[3]*q[1] + p[4]*q[4],
		p[3]*q[2] + p[4]*q[5] + p[5],
	}
}

// RotateAbout returns the map from destination to source coordinates for a
// rotation of deg degrees about (cx, cy).
//
// Coordinates are (x, y) = (column, row) with y growing downward, so a positive
// angle turns the picture counter-clockwise as displayed. The map is built
// back to front: translate the pivot to the origin, rotate, translate back.
func RotateAbout(deg, cx, cy float64) f64.Aff3 {
	rad := deg * math.Pi / 180.0
	cos, sin := math.Cos(rad), math.Sin(rad)
	toOrigin := f64.Aff3{1, 0, -cx, 0, 1, -cy}
	rotate := f64.Aff3{cos, -sin, 0, sin, cos, 0}
	back := f64.Aff3{1, 0, cx, 0, 1, cy}
	return mul(back, mul(rotate, toOrigin))
}

// Rotate returns a copy of src rotated by deg degrees about the point
// (cx, cy) = (column, row).
//
// The output has the same dimensions as src. Each destination pixel is mapped
// back into the source with RotateAbout and resampled per opts; source
// positions outside the grid read as opts.Fill. At deg == 0 the map is the
// exact identity, so the output equals src sample for sample.
func Rotate(src *Grid, deg, cx, cy float64, opts RotateOptions) *Grid {
	dst := NewGrid(src.Width, src.Height)
	RotateInto(dst, src, deg, cx, cy, opts)
	return dst
}

// RotateInto is Rotate writing into a caller-provided grid of src's size.
func RotateInto(dst, src *Grid, deg, cx, cy float64, opts RotateOptions) {
	m := RotateAbout(deg, cx, cy)
	for y := 0; y < dst.Height; y++ {
		fy := float64(y)
		for x := 0; x < dst.Width; x++ {
			fx := float64(x)
			sx := m[0]*fx + m[1]*fy + m[2]
			sy := m[3]*fx + m[4]*fy + m[5]
			var v float64
			if opts.Interpolation == Nearest {
				v = src.sample(int(math.Round(sx)), int(math.Round(sy)), opts.Fill)
			} else {
				v = src.bilinear(sx, sy, opts.Fill)
			}
			dst.Pix[y*dst.Width+x] = v
		}
	}
}

func (g *Grid) sample(x, y int, fill float64) float64 {
	if x < 0 || y < 0 || x >= g.Width || y >= g.Height {
		return fill
	}
	return g.Pix[y*g.Width+x]
}

// bilinear blends the four neighbours of (sx, sy); neighbours outside the grid
// contribute the fill value.
func (g *Grid) bilinear(sx, sy, fill float64) float64 {
	x0 := math.Floor(sx)
	y0 := math.Floor(sy)
	if x0 < -1 || y0 < -1 || x0 >= float64(g.Width) || y0 >= float64(g.Height) {
		return fill
	}
	dx := sx - x0
	dy := sy - y0
	ix, iy := int(x0), int(y0)

	top := (1-dx)*g.sample(ix, iy, fill) + dx*g.sample(ix+1, iy, fill)
	bottom := (1-dx)*g.sample(ix, iy+1, fill) + dx*g.sample(ix+1, iy+1, fill)
	return (1-dy)*top + dy*bottom
}
