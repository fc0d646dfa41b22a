package imaging

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"
)

func TestParseChannel(t *testing.T) {
	tests := []struct {
		in      string
		want    Channel
		wantErr bool
	}{
		{"red", Red, false},
		{"G", Green, false},
		{"1", Green, false},
		{" Blue ", Blue, false},
		{"luma", Luma, false},
		{"3", Luma, false},
		{"alpha", 0, true},
		{"4", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseChannel(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrShapeMismatch) {
					t.Errorf("got %v, want ErrShapeMismatch", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDepth(t *testing.T) {
	tests := []struct {
		name string
		img  image.Image
		want int
	}{
		{"gray", image.NewGray(image.Rect(0, 0, 1, 1)), 1},
		{"gray16", image.NewGray16(image.Rect(0, 0, 1, 1)), 1},
		{"rgba", image.NewRGBA(image.Rect(0, 0, 1, 1)), 3},
		{"ycbcr", image.NewYCbCr(image.Rect(0, 0, 2, 2), image.YCbCrSubsampleRatio420), 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Depth(tt.img); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWorkingChannel_Planes(t *testing.T) {
	px := color.NRGBA{R: 51, G: 102, B: 204, A: 255}

	nrgba := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	rgba := image.NewRGBA(image.Rect(0, 0, 3, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			nrgba.SetNRGBA(x, y, px)
			rgba.Set(x, y, px)
		}
	}

	tests := []struct {
		ch   Channel
		want float64
	}{
		{Red, 0.2},
		{Green, 0.4},
		{Blue, 0.8},
	}

	for _, img := range []image.Image{nrgba, rgba} {
		for _, tt := range tests {
			g, err := WorkingChannel(img, tt.ch)
			if err != nil {
				t.Fatalf("%T %v: unexpected error %v", img, tt.ch, err)
			}
			if g.Width != 3 || g.Height != 2 {
				t.Fatalf("%T %v: got %dx%d, want 3x2", img, tt.ch, g.Width, g.Height)
			}
			if math.Abs(g.At(2, 1)-tt.want) > 1e-9 {
				t.Errorf("%T %v: got %v, want %v", img, tt.ch, g.At(2, 1), tt.want)
			}
		}
	}
}

func TestWorkingChannel_Luma(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	g, err := WorkingChannel(img, Luma)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(g.At(0, 0)) > 1e-9 {
		t.Errorf("black: got %v, want 0", g.At(0, 0))
	}
	if math.Abs(g.At(1, 0)-1) > 1e-6 {
		t.Errorf("white: got %v, want 1", g.At(1, 0))
	}
}

func TestWorkingChannel_GrayIgnoresSelection(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 2, 2))
	img.SetGray(1, 1, color.Gray{Y: 255})

	for _, ch := range []Channel{Red, Green, Blue, Luma} {
		g, err := WorkingChannel(img, ch)
		if err != nil {
			t.Fatalf("%v: unexpected error %v", ch, err)
		}
		if g.At(1, 1) != 1 || g.At(0, 0) != 0 {
			t.Errorf("%v: got %v, want the gray plane", ch, g.Pix)
		}
	}

	g16 := image.NewGray16(image.Rect(0, 0, 1, 1))
	g16.SetGray16(0, 0, color.Gray16{Y: 65535})
	g, err := WorkingChannel(g16, Green)
	if err != nil {
		t.Fatalf("gray16: unexpected error %v", err)
	}
	if g.At(0, 0) != 1 {
		t.Errorf("gray16: got %v, want 1", g.At(0, 0))
	}
}

func TestWorkingChannel_Errors(t *testing.T) {
	tests := []struct {
		name string
		img  image.Image
		ch   Channel
	}{
		{"negative channel", image.NewRGBA(image.Rect(0, 0, 2, 2)), Channel(-1)},
		{"channel past luma", image.NewRGBA(image.Rect(0, 0, 2, 2)), Channel(4)},
		{"bad channel on gray", image.NewGray(image.Rect(0, 0, 2, 2)), Channel(9)},
		{"empty image", image.NewRGBA(image.Rect(0, 0, 0, 5)), Green},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := WorkingChannel(tt.img, tt.ch)
			if !errors.Is(err, ErrShapeMismatch) {
				t.Errorf("got %v, want ErrShapeMismatch", err)
			}
		})
	}
}
