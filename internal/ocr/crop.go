package ocr

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"regexp"

	_ "image/jpeg" // page images are JPEG
)

// Rect is a pixel rectangle on a page image, (X0,Y0) top-left inclusive to
// (X1,Y1) exclusive. Out-of-bounds coordinates are clamped.
type Rect struct {
	X0, Y0, X1, Y1 int
}

// Zero reports whether the rectangle is unset.
func (r Rect) Zero() bool { return r == Rect{} }

var reWS = regexp.MustCompile(`\s+`)

func collapseWS(s string) string {
	return reWS.ReplaceAllString(s, " ")
}

// cropToTemp decodes the page image, clamps the region to its bounds, and
// writes the cropped pixels to a temporary PNG. empty is true when the
// clamped region has no area, in which case no file is written.
func cropToTemp(imagePath string, region Rect) (path string, empty bool, err error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return "", false, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return "", false, fmt.Errorf("decode %s: %w", imagePath, err)
	}

	clamped := image.Rect(region.X0, region.Y0, region.X1, region.Y1).Intersect(img.Bounds())
	if clamped.Empty() {
		return "", true, nil
	}

	crop := image.NewRGBA(image.Rect(0, 0, clamped.Dx(), clamped.Dy()))
	draw.Draw(crop, crop.Bounds(), img, clamped.Min, draw.Src)

	tmp, err := os.CreateTemp("", tempCropPattern(imagePath))
	if err != nil {
		return "", false, err
	}
	if err := png.Encode(tmp, crop); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", false, fmt.Errorf("encode crop: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", false, err
	}
	return tmp.Name(), false, nil
}
