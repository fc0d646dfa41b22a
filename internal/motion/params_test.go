package motion

import (
	"errors"
	"testing"
)

func TestAngleRange_Count(t *testing.T) {
	tests := []struct {
		name string
		r    AngleRange
		want int
	}{
		{"default gmp range", AngleRange{Min: -5, Step: 1, Max: 6}, 11},
		{"default aggregate range", AngleRange{Min: -5, Step: 1, Max: 5}, 10},
		{"half open", AngleRange{Min: 0, Step: 2, Max: 4}, 2},
		{"partial last step", AngleRange{Min: 0, Step: 2, Max: 5}, 3},
		{"single", AngleRange{Min: 0, Step: 1, Max: 1}, 1},
		{"negative step", AngleRange{Min: 5, Step: -1, Max: 0}, 5},
		{"empty", AngleRange{Min: 3, Step: 1, Max: 3}, 0},
		{"reversed", AngleRange{Min: 3, Step: 1, Max: 0}, 0},
		{"zero step", AngleRange{Min: 0, Step: 0, Max: 3}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.Count(); got != tt.want {
				t.Errorf("Count(%v): got %d, want %d", tt.r, got, tt.want)
			}
			if got := len(tt.r.Angles()); got != tt.want {
				t.Errorf("len(Angles(%v)): got %d, want %d", tt.r, got, tt.want)
			}
		})
	}
}

func TestAngleRange_Angles(t *testing.T) {
	got := AngleRange{Min: -1, Step: 0.5, Max: 1}.Angles()
	want := []float64{-1, -0.5, 0, 0.5}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("angle %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestAngleRange_ValidateTooMany(t *testing.T) {
	err := AngleRange{Min: 0, Step: 1e-6, Max: 360}.Validate()
	if !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("got %v, want ErrInvalidParameter", err)
	}
}

func TestPivot_Resolve(t *testing.T) {
	tests := []struct {
		name          string
		pivot         Pivot
		height, width int
		want          Pivot
	}{
		{"even dims", CenterPivot, 10, 20, Pivot{Row: 5, Col: 10}},
		{"odd dims round up", CenterPivot, 11, 21, Pivot{Row: 6, Col: 11}},
		{"explicit unchanged", Pivot{Row: 2, Col: 3}, 11, 21, Pivot{Row: 2, Col: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pivot.Resolve(tt.height, tt.width); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPivot_Validate(t *testing.T) {
	if err := CenterPivot.Validate(1, 1); err != nil {
		t.Errorf("center pivot: unexpected error %v", err)
	}
	if err := (Pivot{Row: 0, Col: 0}).Validate(1, 1); err != nil {
		t.Errorf("origin: unexpected error %v", err)
	}
	for _, p := range []Pivot{{Row: 1, Col: 0}, {Row: 0, Col: 1}, {Row: -1, Col: 0}, {Row: -2, Col: -2}} {
		if err := p.Validate(1, 1); !errors.Is(err, ErrShapeMismatch) {
			t.Errorf("pivot %v: got %v, want ErrShapeMismatch", p, err)
		}
	}
}

func TestParseCoalesce(t *testing.T) {
	tests := []struct {
		in      string
		want    Coalesce
		wantErr bool
	}{
		{"MAX", Max, false},
		{"min", Min, false},
		{" Mean ", Mean, false},
		{"median", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCoalesce(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidParameter) {
					t.Errorf("got %v, want ErrInvalidParameter", err)
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

func TestCoalesce_TextRoundTrip(t *testing.T) {
	for _, c := range []Coalesce{Max, Min, Mean} {
		text, err := c.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v): %v", c, err)
		}
		var back Coalesce
		if err := back.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%q): %v", text, err)
		}
		if back != c {
			t.Errorf("got %v, want %v", back, c)
		}
	}
	if _, err := Coalesce(0).MarshalText(); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("zero policy: got %v, want ErrInvalidParameter", err)
	}
}

func TestCoalesce_Fold(t *testing.T) {
	frame := []float64{0.2, 0.8, 0.5}

	tests := []struct {
		policy Coalesce
		want   []float64
	}{
		{Max, []float64{0.4, 0.8, 0.5}},
		{Min, []float64{0.2, 0.4, 0.4}},
		{Mean, []float64{0.3, 0.6, 0.45}},
	}

	for _, tt := range tests {
		t.Run(tt.policy.String(), func(t *testing.T) {
			acc := []float64{0.4, 0.4, 0.4}
			tt.policy.fold(acc, frame, 2)
			for i := range acc {
				if d := acc[i] - tt.want[i]; d > 1e-15 || d < -1e-15 {
					t.Errorf("pixel %d: got %v, want %v", i, acc[i], tt.want[i])
				}
			}
		})
	}
}
