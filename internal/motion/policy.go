package motion

import (
	"errors"
	"fmt"
	"strings"

	"github.com/justkk/Diabetic-retinopathy/internal/imaging"
)

// ErrInvalidParameter reports a parameter that makes the requested computation
// undefined: an unknown coalesce policy, a zero or non-finite angle step, an
// empty angle progression, or a non-positive pivot count.
var ErrInvalidParameter = errors.New("invalid parameter")

// ErrShapeMismatch reports an out-of-bounds pivot or a channel the image does
// not carry. It is the same value as imaging.ErrShapeMismatch.
var ErrShapeMismatch = imaging.ErrShapeMismatch

// Coalesce is the rule that reduces rotated frames into one pattern.
type Coalesce int

const (
	// Max keeps the brightest value seen at each pixel.
	Max Coalesce = iota + 1
	// Min keeps the darkest value seen at each pixel.
	Min
	// Mean keeps the running arithmetic mean of all frames.
	Mean
)

func (c Coalesce) String() string {
	switch c {
	case Max:
		return "MAX"
	case Min:
		return "MIN"
	case Mean:
		return "MEAN"
	}
	return fmt.Sprintf("Coalesce(%d)", int(c))
}

// Validate returns ErrInvalidParameter unless c is Max, Min, or Mean.
func (c Coalesce) Validate() error {
	switch c {
	case Max, Min, Mean:
		return nil
	}
	return fmt.Errorf("%w: unknown coalesce policy %d", ErrInvalidParameter, int(c))
}

// ParseCoalesce maps "MAX", "MIN" or "MEAN" (any case) to a policy.
func ParseCoalesce(s string) (Coalesce, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MAX":
		return Max, nil
	case "MIN":
		return Min, nil
	case "MEAN":
		return Mean, nil
	}
	return 0, fmt.Errorf("%w: unknown coalesce policy %q", ErrInvalidParameter, s)
}

func (c Coalesce) MarshalText() ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return []byte(c.String()), nil
}

func (c *Coalesce) UnmarshalText(text []byte) error {
	parsed, err := ParseCoalesce(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// fold combines frame into acc in place. n is the 1-based count of frames
// including this one; only Mean uses it.
func (c Coalesce) fold(acc, frame []float64, n int) {
	switch c {
	case Max:
		for i, v := range frame {
			if v > acc[i] {
				acc[i] = v
			}
		}
	case Min:
		for i, v := range frame {
			if v < acc[i] {
				acc[i] = v
			}
		}
	case Mean:
		k := float64(n)
		for i, v := range frame {
			acc[i] = (acc[i]*(k-1) + v) / k
		}
	}
}
