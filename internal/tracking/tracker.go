// Package tracking follows a face box between detections.
package tracking

import (
	"errors"
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/kozaktomas/pose-guard/internal/facematch"
)

// ErrEmptyBox is returned by Init when the box does not overlap the frame.
var ErrEmptyBox = errors.New("tracking box is empty")

// Tracker follows one region across frames.
// Update returns false when the target is lost; the caller drops the tracker in that case.
type Tracker interface {
	Init(frame image.Image, box facematch.Box) error
	Update(frame image.Image) (facematch.Box, bool)
}

// Factory creates a fresh tracker for every (re)initialisation.
type Factory func() Tracker

const (
	defaultSearchRatio = 0.5
	defaultMaxMeanDiff = 40.0
	templateSamples    = 16
)

// TemplateTracker matches a grayscale template of the initial region inside a search
// window around the previous position. It fails when the best mean absolute difference
// exceeds MaxMeanDiff.
type TemplateTracker struct {
	SearchRatio float64
	MaxMeanDiff float64

	box      facematch.Box
	step     int
	template []uint8
}

// NewTemplateTracker returns a tracker with the default search window and threshold.
func NewTemplateTracker() *TemplateTracker {
	return &TemplateTracker{SearchRatio: defaultSearchRatio, MaxMeanDiff: defaultMaxMeanDiff}
}

// NewTemplateFactory returns a Factory producing TemplateTrackers.
func NewTemplateFactory() Factory {
	return func() Tracker { return NewTemplateTracker() }
}

// Init stores the template for box.
func (t *TemplateTracker) Init(frame image.Image, box facematch.Box) error {
	box = box.Clamp(frame.Bounds())
	if box.Empty() {
		return ErrEmptyBox
	}
	gray := toGray(frame)
	t.box = box
	t.step = max(1, min(box.W, box.H)/templateSamples)
	t.template = sample(gray, box.X, box.Y, box.W, box.H, t.step)
	return nil
}

// Update searches for the template near its last position.
func (t *TemplateTracker) Update(frame image.Image) (facematch.Box, bool) {
	if len(t.template) == 0 {
		return facematch.Box{}, false
	}
	gray := toGray(frame)
	bounds := gray.Bounds()

	radius := int(math.Ceil(t.SearchRatio * float64(max(t.box.W, t.box.H))))
	stride := max(1, radius/8)

	best := math.Inf(1)
	bestX, bestY := t.box.X, t.box.Y
	for dy := -radius; dy <= radius; dy += stride {
		for dx := -radius; dx <= radius; dx += stride {
			x, y := t.box.X+dx, t.box.Y+dy
			if x < bounds.Min.X || y < bounds.Min.Y || x+t.box.W > bounds.Max.X || y+t.box.H > bounds.Max.Y {
				continue
			}
			diff := t.meanDiff(gray, x, y, best)
			if diff < best {
				best, bestX, bestY = diff, x, y
			}
		}
	}

	if best > t.MaxMeanDiff {
		return facematch.Box{}, false
	}
	t.box.X, t.box.Y = bestX, bestY
	return t.box, true
}

// meanDiff returns the mean absolute difference of the template placed at (x, y).
// It stops early once the running sum cannot beat limit.
func (t *TemplateTracker) meanDiff(gray *image.Gray, x, y int, limit float64) float64 {
	n := float64(len(t.template))
	budget := limit * n
	var sum float64
	i := 0
	for py := 0; py < t.box.H; py += t.step {
		for px := 0; px < t.box.W; px += t.step {
			v := gray.GrayAt(x+px, y+py).Y
			d := int(v) - int(t.template[i])
			if d < 0 {
				d = -d
			}
			sum += float64(d)
			i++
		}
		if sum > budget {
			return math.Inf(1)
		}
	}
	return sum / n
}

func sample(gray *image.Gray, x, y, w, h, step int) []uint8 {
	out := make([]uint8, 0, ((w+step-1)/step)*((h+step-1)/step))
	for py := 0; py < h; py += step {
		for px := 0; px < w; px += step {
			out = append(out, gray.GrayAt(x+px, y+py).Y)
		}
	}
	return out
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	g := image.NewGray(img.Bounds())
	draw.Draw(g, g.Bounds(), img, img.Bounds().Min, draw.Src)
	return g
}
