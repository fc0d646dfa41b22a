package motion

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/justkk/Diabetic-retinopathy/internal/imaging"
)

// MaxPivots bounds the number of pivots in one aggregation.
const MaxPivots = 1 << 16

// maxStackSamples bounds the VarianceStack buffer (2 GiB of float64).
const maxStackSamples = 1 << 28

// RandSource draws pivot coordinates. *rand.Rand from math/rand/v2 satisfies it.
type RandSource interface {
	IntN(n int) int
}

// NewRand returns a deterministic source seeded with seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// AggregateOptions configures an Aggregator.
type AggregateOptions struct {
	Options

	// Workers is the number of pivots whose patterns are computed at once.
	// Values below 1 select runtime.NumCPU().
	Workers int

	// Variance selects the online (Welford) or full-stack accumulator.
	Variance VarianceMode

	// Rand draws the pivots. nil means a source seeded from the runtime's
	// random state, so repeated runs differ.
	Rand RandSource
}

// DefaultAggregateOptions returns DefaultOptions with one worker per CPU and
// the online variance accumulator.
func DefaultAggregateOptions() AggregateOptions {
	return AggregateOptions{
		Options:  DefaultOptions(),
		Workers:  runtime.NumCPU(),
		Variance: VarianceOnline,
	}
}

// Maps holds the results of an aggregation.
type Maps struct {
	// Interference is the contrast-stretched sum of the sampled patterns.
	Interference *image.Gray

	// Variance is the contrast-stretched per-pixel population variance of the
	// sampled patterns.
	Variance *image.Gray

	// Pivots lists the sampled pivots in the order they were drawn.
	Pivots []Pivot
}

// Result keys used by AsMap.
const (
	InterferenceMapKey = "interference_map"
	VarianceMapKey     = "variance_map"
)

// AsMap returns both maps keyed by InterferenceMapKey and VarianceMapKey.
func (m *Maps) AsMap() map[string]*image.Gray {
	return map[string]*image.Gray{
		InterferenceMapKey: m.Interference,
		VarianceMapKey:     m.Variance,
	}
}

// Aggregator samples GMPs at random pivots and reduces them into interference
// and variance maps.
//
// An Aggregator may be shared between goroutines; draws from its random source
// are serialized.
type Aggregator struct {
	gen      *Generator
	channel  imaging.Channel
	workers  int
	variance VarianceMode
	logger   *slog.Logger

	mu  sync.Mutex
	rnd RandSource
}

// NewAggregator returns an Aggregator using opts.
func NewAggregator(opts AggregateOptions) *Aggregator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	opts.Options.Logger = logger
	workers := opts.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	rnd := opts.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Aggregator{
		gen:      NewGenerator(opts.Options),
		channel:  opts.Channel,
		workers:  workers,
		variance: opts.Variance,
		logger:   logger,
		rnd:      rnd,
	}
}

// Aggregate builds the interference and variance maps of img.
//
// Parameters:
//   - img: Source image. Colour images are reduced to the configured channel.
//   - numPivots: Number of random pivots to sample; must be at least 1.
//   - policy, angles: Passed unchanged to every GMP computation.
//
// Returns:
//   - *Maps: Both 8-bit maps with the working channel's dimensions, plus the
//     pivots that were sampled.
//   - error: ErrInvalidParameter or ErrShapeMismatch before any work starts,
//     or the context's error if ctx is cancelled between batches. No partial
//     result is ever returned.
//
// # Algorithm
//
//  1. Draw numPivots pivots uniformly over [0,H-1]x[0,W-1], row then column.
//  2. Compute the GMPs of Workers pivots at a time, concurrently.
//  3. Encode each GMP to 8-bit and read it back as floats, exactly as a caller
//     of Generate would see it.
//  4. Fold each batch into the sum and variance accumulators in pivot order, so
//     a given random source yields the same maps for any worker count.
//  5. Contrast-stretch the sum and the population variance to [0, 255].
//
// With one pivot the variance map is zero everywhere.
func (a *Aggregator) Aggregate(ctx context.Context, img image.Image, numPivots int, policy Coalesce, angles AngleRange) (*Maps, error) {
	if err := a.validate(numPivots, policy, angles); err != nil {
		return nil, err
	}
	src, err := imaging.WorkingChannel(img, a.channel)
	if err != nil {
		return nil, err
	}
	return a.AggregateGrid(ctx, src, numPivots, policy, angles)
}

// AggregateGrid is Aggregate on an already-selected working channel.
func (a *Aggregator) AggregateGrid(ctx context.Context, src *imaging.Grid, numPivots int, policy Coalesce, angles AngleRange) (*Maps, error) {
	if err := a.validate(numPivots, policy, angles); err != nil {
		return nil, err
	}
	if src.Empty() {
		return nil, fmt.Errorf("%w: empty grid", ErrShapeMismatch)
	}
	return a.AggregateAt(ctx, src, a.drawPivots(numPivots, src.Height, src.Width), policy, angles)
}

// AggregateAt aggregates over the given pivots instead of random ones.
// Every pivot must lie inside src; CenterPivot is allowed.
func (a *Aggregator) AggregateAt(ctx context.Context, src *imaging.Grid, pivots []Pivot, policy Coalesce, angles AngleRange) (*Maps, error) {
	if err := a.validate(len(pivots), policy, angles); err != nil {
		return nil, err
	}
	if src.Empty() {
		return nil, fmt.Errorf("%w: empty grid", ErrShapeMismatch)
	}
	for _, p := range pivots {
		if err := p.Validate(src.Height, src.Width); err != nil {
			return nil, err
		}
	}
	if a.variance == VarianceStack && src.Width*src.Height > maxStackSamples/len(pivots) {
		return nil, fmt.Errorf("%w: %dx%d image with %d pivots exceeds the %s variance buffer; use %s",
			ErrInvalidParameter, src.Width, src.Height, len(pivots), VarianceStack, VarianceOnline)
	}

	sum, variance, err := a.accumulate(ctx, src, pivots, policy, angles)
	if err != nil {
		return nil, err
	}
	return &Maps{
		Interference: imaging.Rescale(sum).ToGray(),
		Variance:     imaging.Rescale(variance).ToGray(),
		Pivots:       pivots,
	}, nil
}

// accumulate returns the raw per-pixel sum and population variance of the
// quantized GMPs at pivots.
func (a *Aggregator) accumulate(ctx context.Context, src *imaging.Grid, pivots []Pivot, policy Coalesce, angles AngleRange) (*imaging.Grid, *imaging.Grid, error) {
	start := time.Now()
	acc := newAccumulator(a.variance, src.Width, src.Height, len(pivots))
	a.logger.Debug("aggregation started",
		"pivots", len(pivots),
		"policy", policy,
		"angles", angles.String(),
		"workers", a.workers,
		"variance", a.variance,
		"accumulator", humanize.IBytes(acc.footprint()))

	for lo := 0; lo < len(pivots); lo += a.workers {
		if err := ctx.Err(); err != nil {
			return nil, nil, fmt.Errorf("aggregation cancelled after %d of %d pivots: %w", lo, len(pivots), err)
		}
		hi := min(lo+a.workers, len(pivots))
		batch := make([]*imaging.Grid, hi-lo)

		eg, egctx := errgroup.WithContext(ctx)
		eg.SetLimit(a.workers)
		for i := lo; i < hi; i++ {
			eg.Go(func() error {
				gmp, err := a.gen.GenerateGrid(egctx, src, policy, angles, pivots[i])
				if err != nil {
					return err
				}
				batch[i-lo] = gmp.Quantize()
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, nil, err
		}

		for _, g := range batch {
			acc.add(g)
		}
		a.logger.Debug("aggregation batch done", "done", hi, "pivots", len(pivots))
	}

	a.logger.Info("aggregation complete",
		"pivots", len(pivots),
		"width", src.Width,
		"height", src.Height,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return acc.sum(), acc.variance(), nil
}

func (a *Aggregator) drawPivots(n, height, width int) []Pivot {
	a.mu.Lock()
	defer a.mu.Unlock()
	pivots := make([]Pivot, n)
	for i := range pivots {
		row := a.rnd.IntN(height)
		col := a.rnd.IntN(width)
		pivots[i] = Pivot{Row: row, Col: col}
	}
	return pivots
}

func (a *Aggregator) validate(numPivots int, policy Coalesce, angles AngleRange) error {
	if numPivots < 1 {
		return fmt.Errorf("%w: number of pivots must be at least 1, got %d", ErrInvalidParameter, numPivots)
	}
	if numPivots > MaxPivots {
		return fmt.Errorf("%w: number of pivots %d exceeds limit %d", ErrInvalidParameter, numPivots, MaxPivots)
	}
	return a.gen.validate(policy, angles)
}

// Aggregate computes the maps with DefaultAggregateOptions and the given
// random source.
func Aggregate(ctx context.Context, img image.Image, numPivots int, policy Coalesce, angles AngleRange, rnd RandSource) (*Maps, error) {
	opts := DefaultAggregateOptions()
	opts.Rand = rnd
	return NewAggregator(opts).Aggregate(ctx, img, numPivots, policy, angles)
}
