// Package tiling plans the tile grid used to resample an image in bounded memory.
package tiling

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/Sumatoshi-tech/mipforge/pkg/safeconv"
)

// Chunk sizing constraints.
const (
	// DefaultMinChunk is the smallest tile edge, in pixels.
	DefaultMinChunk = 256

	// DefaultMaxChunk is the largest tile edge, in pixels.
	DefaultMaxChunk = 2048

	// DefaultChunkStep is the granularity of the tile edge.
	DefaultChunkStep = 128

	// BytesPerPixel is the raw size of one RGB pixel.
	BytesPerPixel = 3

	// workingCopies accounts for the source and the resampled copy held at once.
	workingCopies = 2
)

var (
	// ErrInvalidDimensions is returned for a non-positive width or height.
	ErrInvalidDimensions = errors.New("tiling: invalid image dimensions")

	// ErrInvalidScheduler is returned when the chunk constraints are inconsistent.
	ErrInvalidScheduler = errors.New("tiling: invalid chunk constraints")

	// ErrInvalidTile is returned by Plan.Validate for a tile that violates
	// the plan invariants.
	ErrInvalidTile = errors.New("tiling: invalid tile")
)

// Scheduler computes tile plans. The zero value is not usable; start from
// DefaultScheduler.
type Scheduler struct {
	MinChunk int
	MaxChunk int
	Step     int
}

// DefaultScheduler returns a Scheduler with the stock constraints.
func DefaultScheduler() Scheduler {
	return Scheduler{
		MinChunk: DefaultMinChunk,
		MaxChunk: DefaultMaxChunk,
		Step:     DefaultChunkStep,
	}
}

// Validate checks that the constraints describe a non-empty range.
func (s Scheduler) Validate() error {
	if s.MinChunk <= 0 || s.Step <= 0 || s.MaxChunk < s.MinChunk {
		return fmt.Errorf("%w: min=%d max=%d step=%d", ErrInvalidScheduler, s.MinChunk, s.MaxChunk, s.Step)
	}

	return nil
}

// Plan is an ordered, row-major set of disjoint tiles covering an image.
type Plan struct {
	Width     int
	Height    int
	ChunkSize int
	Tiles     []image.Rectangle
}

// ChunkSize derives the tile edge from the image size and available memory:
// Step * floor(sqrt(available / (W*H*3*2))), clamped to [MinChunk, MaxChunk].
// It panics on negative dimensions.
func (s Scheduler) ChunkSize(width, height int, available uint64) int {
	raw := safeconv.MustIntToUint64(width) * safeconv.MustIntToUint64(height) * BytesPerPixel * workingCopies
	if raw == 0 {
		return s.MaxChunk
	}

	factor := float64(available) / float64(raw)
	chunk := float64(s.Step) * math.Floor(math.Sqrt(factor))

	switch {
	case chunk < float64(s.MinChunk):
		return s.MinChunk
	case chunk > float64(s.MaxChunk):
		return s.MaxChunk
	default:
		return int(chunk)
	}
}

// Plan returns the tiles for a width x height image, stepping y outer and
// x inner. The last tile of each row and column is clipped to the image.
func (s Scheduler) Plan(width, height int, available uint64) (Plan, error) {
	if width <= 0 || height <= 0 {
		return Plan{}, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}

	err := s.Validate()
	if err != nil {
		return Plan{}, err
	}

	chunk := s.ChunkSize(width, height, available)

	cols := (width + chunk - 1) / chunk
	rows := (height + chunk - 1) / chunk

	tiles := make([]image.Rectangle, 0, cols*rows)

	for y := 0; y < height; y += chunk {
		for x := 0; x < width; x += chunk {
			tiles = append(tiles, image.Rect(x, y, min(x+chunk, width), min(y+chunk, height)))
		}
	}

	return Plan{Width: width, Height: height, ChunkSize: chunk, Tiles: tiles}, nil
}

// Validate checks that every tile is non-empty and inside the image.
func (p Plan) Validate() error {
	bounds := image.Rect(0, 0, p.Width, p.Height)

	for i, t := range p.Tiles {
		if t.Empty() || !t.In(bounds) {
			return fmt.Errorf("%w: #%d %v outside %v", ErrInvalidTile, i, t, bounds)
		}
	}

	return nil
}

// Rows returns the number of tile rows in the plan.
func (p Plan) Rows() int {
	if p.ChunkSize <= 0 {
		return 0
	}

	return (p.Height + p.ChunkSize - 1) / p.ChunkSize
}

// Cols returns the number of tile columns in the plan.
func (p Plan) Cols() int {
	if p.ChunkSize <= 0 {
		return 0
	}

	return (p.Width + p.ChunkSize - 1) / p.ChunkSize
}
