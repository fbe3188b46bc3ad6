package tracking

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/kozaktomas/pose-guard/internal/facematch"
)

// frameWithSquare draws a textured square on a dark background.
func frameWithSquare(w, h int, sq facematch.Box) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{10, 10, 10, 255})
		}
	}
	for y := 0; y < sq.H; y++ {
		for x := 0; x < sq.W; x++ {
			v := uint8(150 + (x*7+y*13)%100)
			img.Set(sq.X+x, sq.Y+y, color.RGBA{v, v, v, 255})
		}
	}
	return img
}

func TestTemplateTracker_FollowsShift(t *testing.T) {
	start := facematch.Box{X: 40, Y: 40, W: 20, H: 20}
	tr := NewTemplateTracker()
	if err := tr.Init(frameWithSquare(160, 120, start), start); err != nil {
		t.Fatalf("Init() error: %v", err)
	}

	moved := facematch.Box{X: 45, Y: 43, W: 20, H: 20}
	got, ok := tr.Update(frameWithSquare(160, 120, moved))
	if !ok {
		t.Fatal("expected tracker to follow the square")
	}
	if got != moved {
		t.Errorf("Update() = %v, want %v", got, moved)
	}
}

func TestTemplateTracker_StaticTarget(t *testing.T) {
	box := facematch.Box{X: 10, Y: 10, W: 32, H: 32}
	frame := frameWithSquare(100, 100, box)
	tr := NewTemplateTracker()
	if err := tr.Init(frame, box); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	for i := 0; i < 3; i++ {
		got, ok := tr.Update(frame)
		if !ok || got != box {
			t.Fatalf("update %d: got %v ok=%v", i, got, ok)
		}
	}
}

func TestTemplateTracker_LosesTarget(t *testing.T) {
	box := facematch.Box{X: 40, Y: 40, W: 20, H: 20}
	tr := NewTemplateTracker()
	if err := tr.Init(frameWithSquare(160, 120, box), box); err != nil {
		t.Fatalf("Init() error: %v", err)
	}

	empty := frameWithSquare(160, 120, facematch.Box{})
	if _, ok := tr.Update(empty); ok {
		t.Error("expected tracker failure when the target disappears")
	}
}

func TestTemplateTracker_InitEmptyBox(t *testing.T) {
	tr := NewTemplateTracker()
	err := tr.Init(frameWithSquare(50, 50, facematch.Box{}), facematch.Box{X: 100, Y: 100, W: 10, H: 10})
	if !errors.Is(err, ErrEmptyBox) {
		t.Errorf("expected ErrEmptyBox, got %v", err)
	}
	if _, ok := tr.Update(frameWithSquare(50, 50, facematch.Box{})); ok {
		t.Error("uninitialised tracker must fail")
	}
}

func TestNewTemplateFactory(t *testing.T) {
	f := NewTemplateFactory()
	a, b := f(), f()
	if a == b {
		t.Error("factory must return distinct trackers")
	}
}
