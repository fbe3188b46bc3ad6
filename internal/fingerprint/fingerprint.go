package fingerprint

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// Fingerprint is a 64-bit difference hash of an image. Profile images are keyed by it so
// cached embeddings are invalidated when a profile file is replaced.
type Fingerprint uint64

// Of computes the difference hash of img.
func Of(img image.Image) Fingerprint {
	// 9 columns give 8 horizontal differences per row.
	small := image.NewGray(image.Rect(0, 0, 9, 8))
	draw.BiLinear.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)

	var hash uint64
	bit := 63
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if small.GrayAt(x, y).Y > small.GrayAt(x+1, y).Y {
				hash |= 1 << bit
			}
			bit--
		}
	}
	return Fingerprint(hash)
}

// String returns the fingerprint as 16 hex characters.
func (f Fingerprint) String() string {
	return fmt.Sprintf("%016x", uint64(f))
}
