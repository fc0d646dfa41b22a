package motion

import (
	"fmt"
	"math"
)

// maxAngles bounds the length of an angle progression; anything longer is
// almost certainly a unit mistake (radians passed as a tiny step).
const maxAngles = 1 << 16

// AngleRange is the half-open progression Min, Min+Step, ... < Max, in degrees.
//
// A negative Step walks downward and requires Max < Min.
type AngleRange struct {
	Min  float64 `yaml:"min" json:"angle_min"`
	Step float64 `yaml:"step" json:"angle_step"`
	Max  float64 `yaml:"max" json:"angle_max"`
}

// Count returns the number of angles in the progression, or 0 when it is
// empty or ill-formed.
func (r AngleRange) Count() int {
	if r.Step == 0 || !finite(r.Min) || !finite(r.Step) || !finite(r.Max) {
		return 0
	}
	n := math.Ceil((r.Max - r.Min) / r.Step)
	if n <= 0 || n > maxAngles {
		return 0
	}
	return int(n)
}

// Validate returns ErrInvalidParameter for a zero or non-finite step and for
// progressions that contain no angles.
func (r AngleRange) Validate() error {
	if r.Step == 0 {
		return fmt.Errorf("%w: angle step must be non-zero", ErrInvalidParameter)
	}
	if !finite(r.Min) || !finite(r.Step) || !finite(r.Max) {
		return fmt.Errorf("%w: angle range %v contains a non-finite value", ErrInvalidParameter, r)
	}
	if n := math.Ceil((r.Max - r.Min) / r.Step); n > maxAngles {
		return fmt.Errorf("%w: angle range %v yields %.0f angles (limit %d)", ErrInvalidParameter, r, n, maxAngles)
	}
	if r.Count() == 0 {
		return fmt.Errorf("%w: angle range %v yields no angles", ErrInvalidParameter, r)
	}
	return nil
}

// Angles lists the progression in index order. Each value is computed as
// Min + i*Step so that long progressions do not accumulate drift.
func (r AngleRange) Angles() []float64 {
	n := r.Count()
	out := make([]float64, n)
	for i := range out {
		out[i] = r.Min + float64(i)*r.Step
	}
	return out
}

func (r AngleRange) String() string {
	return fmt.Sprintf("[%g:%g:%g)", r.Min, r.Step, r.Max)
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Pivot is a (row, column) centre of rotation.
type Pivot struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// CenterPivot is the sentinel asking for the image's geometric centre.
var CenterPivot = Pivot{Row: -1, Col: -1}

// IsCenter reports whether p is the CenterPivot sentinel.
func (p Pivot) IsCenter() bool { return p == CenterPivot }

// Resolve replaces the sentinel with (ceil(height/2), ceil(width/2)) and
// returns any other pivot unchanged.
func (p Pivot) Resolve(height, width int) Pivot {
	if !p.IsCenter() {
		return p
	}
	return Pivot{Row: (height + 1) / 2, Col: (width + 1) / 2}
}

// Validate returns ErrShapeMismatch unless p lies in [0,height-1]x[0,width-1].
// The sentinel is always valid.
func (p Pivot) Validate(height, width int) error {
	if p.IsCenter() {
		return nil
	}
	if p.Row < 0 || p.Row >= height || p.Col < 0 || p.Col >= width {
		return fmt.Errorf("%w: pivot (%d,%d) outside %dx%d image", ErrShapeMismatch, p.Row, p.Col, height, width)
	}
	return nil
}

func (p Pivot) String() string { return fmt.Sprintf("(%d,%d)", p.Row, p.Col) }
