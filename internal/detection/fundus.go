package detection

import (
	"fmt"
	"image"

	"github.com/anthonynsimon/bild/histogram"

	"github.com/justkk/Diabetic-retinopathy/internal/imaging"
)

// AutoThreshold asks FundusMask to pick the threshold with Otsu's method.
const AutoThreshold = -1

// MaskOptions configures FundusMask.
type MaskOptions struct {
	// Channel is the plane thresholded to find the fundus. Green separates the
	// illuminated disc from the dark surround best in colour fundus photographs.
	Channel imaging.Channel `yaml:"channel" json:"channel"`

	// Threshold is the 8-bit level above which a pixel is foreground, or
	// AutoThreshold to compute it from the image histogram.
	Threshold int `yaml:"threshold" json:"threshold"`
}

// DefaultMaskOptions returns the green channel with an automatic threshold.
func DefaultMaskOptions() MaskOptions {
	return MaskOptions{Channel: imaging.DefaultChannel, Threshold: AutoThreshold}
}

// Mask is a binary region of interest stored row-major like imaging.Grid.
type Mask struct {
	Width  int
	Height int
	Pix    []bool

	// Threshold is the 8-bit level that produced the mask.
	Threshold int
}

func newMask(width, height int) *Mask {
	return &Mask{Width: width, Height: height, Pix: make([]bool, width*height)}
}

// Area returns the number of pixels inside the mask.
func (m *Mask) Area() int {
	n := 0
	for _, in := range m.Pix {
		if in {
			n++
		}
	}
	return n
}

// Bounds returns the smallest rectangle containing every masked pixel, or the
// empty rectangle when the mask is empty.
func (m *Mask) Bounds() image.Rectangle {
	r := image.Rectangle{}
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.Pix[y*m.Width+x] {
				r = r.Union(image.Rect(x, y, x+1, y+1))
			}
		}
	}
	return r
}

// Image renders the mask as 255 inside and 0 outside.
func (m *Mask) Image() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, in := range m.Pix {
		if in {
			img.Pix[(i/m.Width)*img.Stride+i%m.Width] = 255
		}
	}
	return img
}

// Apply returns a copy of img with every pixel outside the mask set to 0.
func (m *Mask) Apply(img *image.Gray) (*image.Gray, error) {
	b := img.Bounds()
	if b.Dx() != m.Width || b.Dy() != m.Height {
		return nil, fmt.Errorf("%w: mask %dx%d vs image %dx%d", imaging.ErrShapeMismatch, m.Width, m.Height, b.Dx(), b.Dy())
	}
	out := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		src := img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):]
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < m.Width; x++ {
			if m.Pix[y*m.Width+x] {
				dst[x] = src[x]
			}
		}
	}
	return out, nil
}

// ApplyGrid zeroes, in place, every sample of g outside the mask.
func (m *Mask) ApplyGrid(g *imaging.Grid) error {
	if g.Width != m.Width || g.Height != m.Height {
		return fmt.Errorf("%w: mask %dx%d vs grid %dx%d", imaging.ErrShapeMismatch, m.Width, m.Height, g.Width, g.Height)
	}
	for i, in := range m.Pix {
		if !in {
			g.Pix[i] = 0
		}
	}
	return nil
}

// MaskedChannel returns channel ch of img with every sample outside the
// fundus mask zeroed. The mask itself is computed with opts, which may select
// a different channel.
func MaskedChannel(img image.Image, ch imaging.Channel, opts MaskOptions) (*imaging.Grid, *Mask, error) {
	mask, err := FundusMask(img, opts)
	if err != nil {
		return nil, nil, err
	}
	src, err := imaging.WorkingChannel(img, ch)
	if err != nil {
		return nil, nil, err
	}
	if err := mask.ApplyGrid(src); err != nil {
		return nil, nil, err
	}
	return src, mask, nil
}

// FundusMask finds the illuminated fundus disc in a retinal photograph.
//
// Parameters:
//   - img: Source image; colour images are reduced to opts.Channel.
//   - opts: Channel and threshold. Threshold must be AutoThreshold or in [0, 255].
//
// Returns:
//   - *Mask: The region of interest. An image with no pixel above the threshold
//     yields an empty mask, not an error.
//   - error: ErrShapeMismatch for an empty image or unknown channel; an error
//     for a threshold outside [0, 255].
//
// # Algorithm
//
//  1. Encode the selected channel to 8-bit.
//  2. Threshold it at opts.Threshold, or at Otsu's threshold computed from the
//     256-bin histogram of the channel.
//  3. Keep the largest 8-connected foreground component.
//  4. Fill holes: background pixels not 4-connected to the border become
//     foreground, so dark lesions and vessels inside the disc stay in the mask.
func FundusMask(img image.Image, opts MaskOptions) (*Mask, error) {
	if opts.Threshold != AutoThreshold && (opts.Threshold < 0 || opts.Threshold > 255) {
		return nil, fmt.Errorf("threshold must be in [0, 255] or %d for automatic, got %d", AutoThreshold, opts.Threshold)
	}
	grid, err := imaging.WorkingChannel(img, opts.Channel)
	if err != nil {
		return nil, err
	}
	gray := grid.ToGray()

	level := opts.Threshold
	if level == AutoThreshold {
		level = OtsuThreshold(gray)
	}

	width, height := grid.Width, grid.Height
	fg := make([]bool, width*height)
	for y := 0; y < height; y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+width]
		for x, v := range row {
			fg[y*width+x] = int(v) > level
		}
	}

	mask := largestComponent(fg, width, height)
	fillHoles(mask)
	mask.Threshold = level
	return mask, nil
}

// OtsuThreshold returns the 8-bit level that maximizes the between-class
// variance of pixels <= level and pixels > level.
//
// If the image holds a single intensity there is nothing to split, and that
// intensity is returned so that no pixel lies above it.
func OtsuThreshold(img *image.Gray) int {
	bins := histogram.NewRGBAHistogram(img).R.Bins

	total := 0
	sumAll := 0.0
	for i, n := range bins {
		total += n
		sumAll += float64(i * n)
	}
	if total == 0 {
		return 0
	}

	first := -1
	best, bestVar := -1, 0.0
	wB, sumB := 0, 0.0
	for t, n := range bins {
		if n > 0 && first < 0 {
			first = t
		}
		wB += n
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t * n)
		mB := sumB / float64(wB)
		mF := (sumAll - sumB) / float64(wF)
		between := float64(wB) * float64(wF) * (mB - mF) * (mB - mF)
		if between > bestVar {
			best, bestVar = t, between
		}
	}
	if best < 0 {
		return first
	}
	return best
}

// largestComponent labels the 8-connected components of fg and returns a mask
// of the biggest one. Ties go to the component found first in raster order.
func largestComponent(fg []bool, width, height int) *Mask {
	visited := make([]bool, len(fg))
	var largest []int

	for start, in := range fg {
		if !in || visited[start] {
			continue
		}
		component := floodFillIndex(fg, visited, start, width, height, true)
		if len(component) > len(largest) {
			largest = component
		}
	}

	mask := newMask(width, height)
	for _, i := range largest {
		mask.Pix[i] = true
	}
	return mask
}

// fillHoles marks as foreground every background pixel that cannot reach the
// image border through 4-connected background.
func fillHoles(m *Mask) {
	bg := make([]bool, len(m.Pix))
	for i, in := range m.Pix {
		bg[i] = !in
	}
	outside := make([]bool, len(m.Pix))
	visit := func(x, y int) {
		i := y*m.Width + x
		if bg[i] && !outside[i] {
			floodFillIndex(bg, outside, i, m.Width, m.Height, false)
		}
	}
	for x := 0; x < m.Width; x++ {
		visit(x, 0)
		visit(x, m.Height-1)
	}
	for y := 0; y < m.Height; y++ {
		visit(0, y)
		visit(m.Width-1, y)
	}
	for i := range m.Pix {
		if bg[i] && !outside[i] {
			m.Pix[i] = true
		}
	}
}

// floodFillIndex performs an iterative flood fill over set pixels starting at
// index start, marking them visited and returning their indices. diagonal
// selects 8-connectivity; otherwise 4-connectivity is used.
func floodFillIndex(set, visited []bool, start, width, height int, diagonal bool) []int {
	var filled []int
	stack := []int{start}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[i] || !set[i] {
			continue
		}
		visited[i] = true
		filled = append(filled, i)

		x, y := i%width, i/width
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				if !diagonal && dx != 0 && dy != 0 {
					continue
				}
				nx, ny := x+dx, y+dy
				if nx < 0 || nx >= width || ny < 0 || ny >= height {
					continue
				}
				stack = append(stack, ny*width+nx)
			}
		}
	}
	return filled
}
