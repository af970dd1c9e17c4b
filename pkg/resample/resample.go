// Package resample scales tiles and whole images with a library filter.
package resample

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
)

// Filter names the interpolation kernel used for downscaling.
type Filter string

// Supported filters.
const (
	FilterLanczos    Filter = "lanczos"
	FilterCatmullRom Filter = "catmull-rom"
	FilterBox        Filter = "box"
)

// DefaultFilter is the high-quality downscaling filter.
const DefaultFilter = FilterLanczos

var (
	// ErrEmptyTile is returned when a tile rectangle has no area inside the source.
	ErrEmptyTile = errors.New("resample: empty tile")

	// ErrInvalidSize is returned for a non-positive target size.
	ErrInvalidSize = errors.New("resample: invalid target size")

	// ErrUnknownFilter is returned by ParseFilter for an unsupported name.
	ErrUnknownFilter = errors.New("resample: unknown filter")
)

// Filters returns the supported filter names.
func Filters() []Filter {
	return []Filter{FilterLanczos, FilterCatmullRom, FilterBox}
}

// ParseFilter resolves a filter by case-insensitive name. An empty name
// selects DefaultFilter.
func ParseFilter(name string) (Filter, error) {
	if name == "" {
		return DefaultFilter, nil
	}

	f := Filter(strings.ToLower(strings.TrimSpace(name)))

	for _, known := range Filters() {
		if f == known {
			return f, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownFilter, name)
}

// Resampler resizes images with a fixed filter.
type Resampler struct {
	filter Filter
}

// New returns a Resampler for filter. Unknown filters fall back to DefaultFilter.
func New(filter Filter) *Resampler {
	if _, err := ParseFilter(string(filter)); err != nil {
		filter = DefaultFilter
	}

	return &Resampler{filter: filter}
}

// Filter returns the configured filter.
func (r *Resampler) Filter() Filter {
	return r.filter
}

// Resize scales the whole image to width x height.
func (r *Resampler) Resize(img image.Image, width, height int) (*image.NRGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}

	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: source %v", ErrEmptyTile, img.Bounds())
	}

	switch r.filter {
	case FilterCatmullRom:
		dst := image.NewNRGBA(image.Rect(0, 0, width, height))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)

		return dst, nil
	case FilterBox:
		return imaging.Resize(img, width, height, imaging.Box), nil
	default:
		return imaging.Resize(img, width, height, imaging.Lanczos), nil
	}
}

// ResampleTile crops rect out of src and scales it by (sx, sy). The result
// is never smaller than 1x1.
func (r *Resampler) ResampleTile(src image.Image, rect image.Rectangle, sx, sy float64) (*image.NRGBA, error) {
	clipped := rect.Intersect(src.Bounds())
	if clipped.Empty() {
		return nil, fmt.Errorf("%w: %v within %v", ErrEmptyTile, rect, src.Bounds())
	}

	w, h := ScaledSize(clipped.Dx(), clipped.Dy(), sx, sy)

	return r.Resize(imaging.Crop(src, clipped), w, h)
}

// Scale returns the per-axis factors mapping a source size onto a target size.
func Scale(srcW, srcH, dstW, dstH int) (sx, sy float64) {
	if srcW <= 0 || srcH <= 0 {
		return 0, 0
	}

	return float64(dstW) / float64(srcW), float64(dstH) / float64(srcH)
}

// ScaledSize applies the scale factors to a tile size, rounding to the
// nearest pixel and never going below one pixel per axis.
func ScaledSize(w, h int, sx, sy float64) (int, int) {
	return max(1, int(math.Round(float64(w)*sx))), max(1, int(math.Round(float64(h)*sy)))
}
