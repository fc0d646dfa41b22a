package motion

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/justkk/Diabetic-retinopathy/internal/imaging"
)

// Options configures how images are prepared and rotated.
type Options struct {
	// Channel is the plane extracted from colour inputs.
	Channel imaging.Channel

	// Rotation fixes the interpolation order and out-of-frame fill value.
	Rotation imaging.RotateOptions

	// Logger receives debug output; nil means slog.Default().
	Logger *slog.Logger
}

// DefaultOptions selects the green channel, bilinear interpolation and zero fill.
func DefaultOptions() Options {
	return Options{
		Channel:  imaging.DefaultChannel,
		Rotation: imaging.DefaultRotateOptions(),
	}
}

// Generator synthesizes rotational Generalized Motion Patterns.
//
// A Generator holds only configuration; it is safe for concurrent use.
type Generator struct {
	channel  imaging.Channel
	rotation imaging.RotateOptions
	logger   *slog.Logger
}

// NewGenerator returns a Generator using opts.
func NewGenerator(opts Options) *Generator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		channel:  opts.Channel,
		rotation: opts.Rotation,
		logger:   logger,
	}
}

// Generate produces the 8-bit GMP of img.
//
// Parameters:
//   - img: Source image. Colour images are reduced to the configured channel.
//   - policy: How rotated frames are combined (Max, Min or Mean).
//   - angles: The half-open progression of rotation angles in degrees.
//   - pivot: Centre of rotation as (row, column), or CenterPivot.
//
// Returns:
//   - *image.Gray: The pattern, with the working channel's dimensions.
//   - error: ErrInvalidParameter for a bad policy, angle range or rotation
//     option; ErrShapeMismatch for a bad channel or an out-of-bounds pivot;
//     the context's error if ctx is cancelled between frames.
//
// Parameters are validated before any pixel work is done.
func (g *Generator) Generate(ctx context.Context, img image.Image, policy Coalesce, angles AngleRange, pivot Pivot) (*image.Gray, error) {
	if err := g.validate(policy, angles); err != nil {
		return nil, err
	}
	src, err := imaging.WorkingChannel(img, g.channel)
	if err != nil {
		return nil, err
	}
	gmp, err := g.GenerateGrid(ctx, src, policy, angles, pivot)
	if err != nil {
		return nil, err
	}
	return gmp.ToGray(), nil
}

// GenerateGrid is Generate on an already-selected working channel, returning
// the floating-point accumulator before 8-bit encoding.
//
// # Algorithm
//
//  1. Resolve the pivot (CenterPivot becomes the image centre).
//  2. For each angle in index order, rotate src about the pivot into a frame.
//  3. The first frame initialises the accumulator. Each later frame n is
//     folded in: Max and Min take the elementwise extreme, Mean updates the
//     running mean as (acc*(n-1) + frame) / n.
func (g *Generator) GenerateGrid(ctx context.Context, src *imaging.Grid, policy Coalesce, angles AngleRange, pivot Pivot) (*imaging.Grid, error) {
	if err := g.validate(policy, angles); err != nil {
		return nil, err
	}
	if src.Empty() {
		return nil, fmt.Errorf("%w: empty grid", ErrShapeMismatch)
	}
	if err := pivot.Validate(src.Height, src.Width); err != nil {
		return nil, err
	}
	p := pivot.Resolve(src.Height, src.Width)

	acc := imaging.NewGrid(src.Width, src.Height)
	frame := imaging.NewGrid(src.Width, src.Height)
	for i, a := range angles.Angles() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("motion pattern cancelled at angle %g: %w", a, err)
		}
		if i == 0 {
			imaging.RotateInto(acc, src, a, float64(p.Col), float64(p.Row), g.rotation)
			continue
		}
		imaging.RotateInto(frame, src, a, float64(p.Col), float64(p.Row), g.rotation)
		policy.fold(acc.Pix, frame.Pix, i+1)
	}

	g.logger.Debug("generated motion pattern",
		"policy", policy,
		"angles", angles.String(),
		"pivot", p.String(),
		"width", src.Width,
		"height", src.Height)
	return acc, nil
}

func (g *Generator) validate(policy Coalesce, angles AngleRange) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	if err := angles.Validate(); err != nil {
		return err
	}
	if err := g.rotation.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	return nil
}

// Generate computes one GMP with DefaultOptions.
func Generate(ctx context.Context, img image.Image, policy Coalesce, angles AngleRange, pivot Pivot) (*image.Gray, error) {
	return NewGenerator(DefaultOptions()).Generate(ctx, img, policy, angles, pivot)
}
