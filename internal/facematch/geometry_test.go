package facematch

import (
	"image"
	"math"
	"testing"
)

func TestIoU(t *testing.T) {
	tests := []struct {
		name     string
		a        Box
		b        Box
		expected float64
	}{
		{
			name:     "identical boxes",
			a:        Box{X: 0, Y: 0, W: 10, H: 10},
			b:        Box{X: 0, Y: 0, W: 10, H: 10},
			expected: 1.0,
		},
		{
			name:     "no overlap",
			a:        Box{X: 0, Y: 0, W: 10, H: 10},
			b:        Box{X: 20, Y: 20, W: 10, H: 10},
			expected: 0.0,
		},
		{
			name:     "touching edges",
			a:        Box{X: 0, Y: 0, W: 10, H: 10},
			b:        Box{X: 10, Y: 0, W: 10, H: 10},
			expected: 0.0,
		},
		{
			name:     "partial overlap",
			a:        Box{X: 0, Y: 0, W: 10, H: 10},
			b:        Box{X: 5, Y: 5, W: 10, H: 10},
			expected: 25.0 / 175.0, // intersection=25, union=100+100-25=175
		},
		{
			name:     "one inside other",
			a:        Box{X: 0, Y: 0, W: 20, H: 20},
			b:        Box{X: 5, Y: 5, W: 10, H: 10},
			expected: 100.0 / 400.0,
		},
		{
			name:     "negative size",
			a:        Box{X: 0, Y: 0, W: 10, H: 10},
			b:        Box{X: 2, Y: 2, W: -4, H: 5},
			expected: 0.0,
		},
		{
			name:     "degenerate boxes",
			a:        Box{},
			b:        Box{},
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IoU(tt.a, tt.b)
			if math.IsNaN(result) {
				t.Fatalf("IoU(%v, %v) is NaN", tt.a, tt.b)
			}
			if math.Abs(result-tt.expected) > 0.0001 {
				t.Errorf("IoU(%v, %v) = %v, want %v", tt.a, tt.b, result, tt.expected)
			}
		})
	}
}

func TestIoU_Symmetric(t *testing.T) {
	a := Box{X: 3, Y: 7, W: 40, H: 22}
	b := Box{X: 20, Y: 1, W: 15, H: 30}
	if IoU(a, b) != IoU(b, a) {
		t.Errorf("IoU not symmetric: %v vs %v", IoU(a, b), IoU(b, a))
	}
}

func TestBoxFromCorners(t *testing.T) {
	got := BoxFromCorners([]float64{10.4, 20.6, 110.2, 140.5})
	want := Box{X: 10, Y: 21, W: 100, H: 120}
	if got != want {
		t.Errorf("BoxFromCorners() = %v, want %v", got, want)
	}

	if got := BoxFromCorners([]float64{1, 2}); got != (Box{}) {
		t.Errorf("expected zero box for invalid bbox, got %v", got)
	}
}

func TestBox_Clamp(t *testing.T) {
	b := Box{X: -10, Y: 5, W: 50, H: 200}
	got := b.Clamp(image.Rect(0, 0, 100, 100))
	want := Box{X: 0, Y: 5, W: 40, H: 95}
	if got != want {
		t.Errorf("Clamp() = %v, want %v", got, want)
	}
}

func TestBox_Pad(t *testing.T) {
	got := Box{X: 100, Y: 100, W: 40, H: 40}.Pad(0.25)
	want := Box{X: 90, Y: 90, W: 60, H: 60}
	if got != want {
		t.Errorf("Pad() = %v, want %v", got, want)
	}
}

func TestBodyBox(t *testing.T) {
	tests := []struct {
		name     string
		face     Box
		w, h     int
		expected Box
	}{
		{
			name:     "centered face",
			face:     Box{X: 300, Y: 100, W: 40, H: 40},
			w:        640,
			h:        480,
			expected: Box{X: 200, Y: 80, W: 240, H: 400},
		},
		{
			name:     "clamped at left and top",
			face:     Box{X: 10, Y: 5, W: 40, H: 40},
			w:        640,
			h:        480,
			expected: Box{X: 0, Y: 0, W: 150, H: 480},
		},
		{
			name:     "clamped at right",
			face:     Box{X: 600, Y: 200, W: 40, H: 40},
			w:        640,
			h:        480,
			expected: Box{X: 500, Y: 180, W: 140, H: 300},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BodyBox(tt.face, tt.w, tt.h)
			if got != tt.expected {
				t.Errorf("BodyBox() = %v, want %v", got, tt.expected)
			}
		})
	}
}
