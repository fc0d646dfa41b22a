package imaging

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Channel selects which plane of a colour image becomes the working grid.
//
// Grayscale images carry a single plane and ignore the selection. Colour images
// carry three planes (alpha is never selectable); Luma derives a plane from all
// three instead of picking one.
type Channel int

const (
	Red   Channel = 0
	Green Channel = 1
	Blue  Channel = 2
	// Luma is the CIE L* lightness of the pixel, scaled to [0, 1].
	Luma Channel = 3
)

// DefaultChannel is the green plane, where retinal vessels have the best
// contrast against the fundus background.
const DefaultChannel = Green

func (c Channel) String() string {
	switch c {
	case Red:
		return "red"
	case Green:
		return "green"
	case Blue:
		return "blue"
	case Luma:
		return "luma"
	}
	return fmt.Sprintf("channel(%d)", int(c))
}

// Valid reports whether c names a selectable channel.
func (c Channel) Valid() bool { return c >= Red && c <= Luma }

// ParseChannel accepts a channel name ("red", "green", "blue", "luma") or its
// index ("0".."3").
func ParseChannel(s string) (Channel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "red", "r", "0":
		return Red, nil
	case "green", "g", "1":
		return Green, nil
	case "blue", "b", "2":
		return Blue, nil
	case "luma", "l", "3":
		return Luma, nil
	}
	return 0, fmt.Errorf("%w: unknown channel %q", ErrShapeMismatch, s)
}

func (c Channel) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: channel index %d", ErrShapeMismatch, int(c))
	}
	return []byte(c.String()), nil
}

func (c *Channel) UnmarshalText(text []byte) error {
	parsed, err := ParseChannel(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Depth returns the number of selectable planes of img: 1 for grayscale
// images, 3 for everything else.
func Depth(img image.Image) int {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return 1
	}
	return 3
}

// WorkingChannel selects channel ch of img and returns it as a normalized grid.
//
// Parameters:
//   - img: Source image. *image.Gray and *image.Gray16 are treated as
//     two-dimensional and returned as-is; any other type is treated as a
//     three-plane colour image.
//   - ch: Plane to extract from colour images.
//
// Returns:
//   - *Grid: Intensities in [0, 1] with the image's width and height.
//   - error: ErrShapeMismatch if the image is empty or ch is not a valid channel.
//
// The channel is validated even for grayscale inputs so that a bad parameter
// is reported regardless of which image happens to be passed.
func WorkingChannel(img image.Image, ch Channel) (*Grid, error) {
	if !ch.Valid() {
		return nil, fmt.Errorf("%w: channel index %d out of range for depth %d", ErrShapeMismatch, int(ch), Depth(img))
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrShapeMismatch)
	}

	g := NewGrid(b.Dx(), b.Dy())
	switch src := img.(type) {
	case *image.Gray:
		return GridFromGray(src), nil
	case *image.Gray16:
		for y := 0; y < g.Height; y++ {
			for x := 0; x < g.Width; x++ {
				g.Pix[y*g.Width+x] = float64(src.Gray16At(b.Min.X+x, b.Min.Y+y).Y) / 65535.0
			}
		}
		return g, nil
	case *image.NRGBA:
		if ch != Luma {
			for y := 0; y < g.Height; y++ {
				off := src.PixOffset(b.Min.X, b.Min.Y+y)
				for x := 0; x < g.Width; x++ {
					g.Pix[y*g.Width+x] = float64(src.Pix[off+4*x+int(ch)]) / 255.0
				}
			}
			return g, nil
		}
	}

	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			c := color.NRGBA64Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA64)
			g.Pix[y*g.Width+x] = planeValue(c, ch)
		}
	}
	return g, nil
}

func planeValue(c color.NRGBA64, ch Channel) float64 {
	r := float64(c.R) / 65535.0
	gr := float64(c.G) / 65535.0
	bl := float64(c.B) / 65535.0
	switch ch {
	case Red:
		return r
	case Green:
		return gr
	case Blue:
		return bl
	}
	l, _, _ := colorful.Color{R: r, G: gr, B: bl}.Lab()
	if l < 0 {
		return 0
	}
	if l > 1 {
		return 1
	}
	return l
}
