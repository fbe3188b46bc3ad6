package fingerprint

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"

	"github.com/kozaktomas/pose-guard/internal/constants"
	"github.com/kozaktomas/pose-guard/internal/facematch"
)

// DecodeImage decodes a JPEG, PNG or BMP image.
func DecodeImage(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// EncodeJPEG encodes img as JPEG with the given quality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// CropChip cuts the padded face region out of img and scales it to a square chip.
func CropChip(img image.Image, box facematch.Box) (*image.RGBA, error) {
	region := box.Pad(constants.FaceChipPadding).Clamp(img.Bounds())
	if region.Empty() {
		return nil, ErrEmptyRegion
	}

	size := constants.FaceChipSize
	chip := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(chip, chip.Bounds(), img, region.Rect(), draw.Src, nil)
	return chip, nil
}

// Clone copies img into a new RGBA image with the same bounds.
func Clone(img image.Image) *image.RGBA {
	dst := image.NewRGBA(img.Bounds())
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
	return dst
}
