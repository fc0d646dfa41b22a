package motion

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/justkk/Diabetic-retinopathy/internal/imaging"
)

// VarianceMode selects how per-pixel variance across pivots is accumulated.
type VarianceMode int

const (
	// VarianceOnline keeps a running mean and sum of squared deviations per
	// pixel (Welford). Memory does not grow with the number of pivots.
	VarianceOnline VarianceMode = iota
	// VarianceStack keeps every sample in a height x width x pivots stack and
	// computes the population variance per pixel at the end.
	VarianceStack
)

func (m VarianceMode) String() string {
	switch m {
	case VarianceOnline:
		return "online"
	case VarianceStack:
		return "stack"
	}
	return fmt.Sprintf("VarianceMode(%d)", int(m))
}

// ParseVarianceMode accepts "online" or "stack".
func ParseVarianceMode(s string) (VarianceMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "online", "welford", "":
		return VarianceOnline, nil
	case "stack":
		return VarianceStack, nil
	}
	return 0, fmt.Errorf("%w: unknown variance mode %q", ErrInvalidParameter, s)
}

func (m VarianceMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *VarianceMode) UnmarshalText(text []byte) error {
	parsed, err := ParseVarianceMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// varianceFloor is the smallest variance reported as non-zero. Samples are
// multiples of 1/255, so a real variance is many orders of magnitude larger;
// anything below this is rounding in the mean.
const varianceFloor = 1e-12

// accumulator gathers GMP samples in pivot order and yields the per-pixel sum
// and population variance.
type accumulator interface {
	add(sample *imaging.Grid)
	sum() *imaging.Grid
	variance() *imaging.Grid
	// footprint is the number of bytes held by the accumulator's buffers.
	footprint() uint64
}

func newAccumulator(mode VarianceMode, width, height, samples int) accumulator {
	if mode == VarianceStack {
		return newSampleStack(width, height, samples)
	}
	return newWelford(width, height)
}

type welford struct {
	width, height int
	n             int
	total         []float64
	mean          []float64
	m2            []float64
}

func newWelford(width, height int) *welford {
	size := width * height
	return &welford{
		width:  width,
		height: height,
		total:  make([]float64, size),
		mean:   make([]float64, size),
		m2:     make([]float64, size),
	}
}

func (w *welford) add(sample *imaging.Grid) {
	w.n++
	k := float64(w.n)
	for i, x := range sample.Pix {
		w.total[i] += x
		d := x - w.mean[i]
		w.mean[i] += d / k
		w.m2[i] += d * (x - w.mean[i])
	}
}

func (w *welford) sum() *imaging.Grid {
	g := imaging.NewGrid(w.width, w.height)
	copy(g.Pix, w.total)
	return g
}

func (w *welford) variance() *imaging.Grid {
	g := imaging.NewGrid(w.width, w.height)
	if w.n == 0 {
		return g
	}
	k := float64(w.n)
	for i, m2 := range w.m2 {
		if v := m2 / k; v > varianceFloor {
			g.Pix[i] = v
		}
	}
	return g
}

func (w *welford) footprint() uint64 {
	return uint64(len(w.total)+len(w.mean)+len(w.m2)) * 8
}

// sampleStack stores samples pixel-major: the samples of pixel p occupy
// data[p*depth : (p+1)*depth] in pivot order.
type sampleStack struct {
	width, height int
	depth         int
	n             int
	total         []float64
	data          []float64
}

func newSampleStack(width, height, depth int) *sampleStack {
	size := width * height
	return &sampleStack{
		width:  width,
		height: height,
		depth:  depth,
		total:  make([]float64, size),
		data:   make([]float64, size*depth),
	}
}

func (s *sampleStack) add(sample *imaging.Grid) {
	layer := s.n
	s.n++
	for i, x := range sample.Pix {
		s.total[i] += x
		s.data[i*s.depth+layer] = x
	}
}

func (s *sampleStack) sum() *imaging.Grid {
	g := imaging.NewGrid(s.width, s.height)
	copy(g.Pix, s.total)
	return g
}

func (s *sampleStack) variance() *imaging.Grid {
	g := imaging.NewGrid(s.width, s.height)
	if s.n == 0 {
		return g
	}
	for i := range g.Pix {
		v := stat.PopVariance(s.data[i*s.depth:i*s.depth+s.n], nil)
		if v > varianceFloor {
			g.Pix[i] = v
		}
	}
	return g
}

func (s *sampleStack) footprint() uint64 {
	return uint64(len(s.total)+len(s.data)) * 8
}
