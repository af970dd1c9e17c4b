package resample

import (
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// ToRGB returns an NRGBA copy of img with every pixel made opaque.
func ToRGB(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)

	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}

	return dst
}

// Load decodes the image at path and normalises it to opaque RGB.
func Load(path string) (*image.NRGBA, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	return ToRGB(img), nil
}

// Save encodes img to path. PNG output uses the best compression level.
func Save(img image.Image, path string) error {
	err := imaging.Save(img, path, imaging.PNGCompressionLevel(png.BestCompression))
	if err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}

	return nil
}
