package facematch

import (
	"image"
	"math"

	"github.com/kozaktomas/pose-guard/internal/constants"
)

// Box is an axis-aligned face region in pixel coordinates (top-left corner plus size).
type Box struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// BoxFromCorners converts a detector bbox [x1, y1, x2, y2] into a Box, rounding to pixels.
// Returns a zero Box when bbox does not have exactly four values.
func BoxFromCorners(bbox []float64) Box {
	if len(bbox) != 4 {
		return Box{}
	}
	x1 := int(math.Round(bbox[0]))
	y1 := int(math.Round(bbox[1]))
	x2 := int(math.Round(bbox[2]))
	y2 := int(math.Round(bbox[3]))
	return Box{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}
}

// Area returns the box area; negative sizes count as zero.
func (b Box) Area() int {
	return max(0, b.W) * max(0, b.H)
}

// Empty reports whether the box has no area.
func (b Box) Empty() bool {
	return b.W <= 0 || b.H <= 0
}

// Rect converts the box to an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.W, b.Y+b.H)
}

// BoxFromRect converts an image.Rectangle to a Box.
func BoxFromRect(r image.Rectangle) Box {
	return Box{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

// Clamp restricts the box to bounds.
func (b Box) Clamp(bounds image.Rectangle) Box {
	return BoxFromRect(b.Rect().Intersect(bounds))
}

// Pad grows the box by ratio of its size on every side.
func (b Box) Pad(ratio float64) Box {
	dx := int(float64(b.W) * ratio)
	dy := int(float64(b.H) * ratio)
	return Box{X: b.X - dx, Y: b.Y - dy, W: b.W + 2*dx, H: b.H + 2*dy}
}

// IoU calculates Intersection over Union between two boxes.
// The denominator carries IoUEpsilon so degenerate boxes yield 0 instead of NaN.
func IoU(a, b Box) float64 {
	x1 := max(a.X, b.X)
	y1 := max(a.Y, b.Y)
	x2 := min(a.X+a.W, b.X+b.W)
	y2 := min(a.Y+a.H, b.Y+b.H)

	intersection := float64(max(0, x2-x1) * max(0, y2-y1))
	areaA := float64(a.Area())
	areaB := float64(b.Area())

	return intersection / (areaA + areaB - intersection + constants.IoUEpsilon)
}

// BodyBox estimates the body region below a face: three face widths either side of the
// face center, from half a face height above the face down to the bottom of the frame.
func BodyBox(face Box, frameW, frameH int) Box {
	cx := face.X + face.W/2
	x1 := max(0, cx-int(float64(face.W)*3.0))
	x2 := min(frameW, cx+int(float64(face.W)*3.0))
	y1 := max(0, face.Y-int(float64(face.H)*0.5))
	return Box{X: x1, Y: y1, W: x2 - x1, H: frameH - y1}
}
