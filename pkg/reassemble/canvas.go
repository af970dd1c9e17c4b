// Package reassemble stitches resampled tiles back into one image.
//
// Tiles are laid out by a cursor that walks the destination left to right and
// wraps to a new row when a tile would overflow the right edge. Walking stops
// once the next row would overflow the bottom edge; any tiles left at that
// point are dropped.
package reassemble

import (
	"errors"
	"fmt"
	"image"

	xdraw "golang.org/x/image/draw"
)

var (
	// ErrNoTiles is returned by Merge for an empty tile sequence.
	ErrNoTiles = errors.New("reassemble: no tiles")

	// ErrInvalidTarget is returned for a non-positive target size.
	ErrInvalidTarget = errors.New("reassemble: invalid target size")

	// ErrEmptyPaste is returned when a tile maps to a paste rectangle with no
	// area. The tile is skipped and the cursor does not move.
	ErrEmptyPaste = errors.New("reassemble: empty paste rectangle")

	// ErrCanvasFull is returned once the cursor has run off the canvas.
	ErrCanvasFull = errors.New("reassemble: canvas full")
)

// Resizer rescales a tile whose size does not match its paste rectangle.
type Resizer interface {
	Resize(img image.Image, width, height int) (*image.NRGBA, error)
}

// Canvas is a destination image plus the placement cursor.
type Canvas struct {
	dst     *image.NRGBA
	resizer Resizer

	x, y      int
	rowHeight int
	done      bool

	corrected int
}

// NewCanvas allocates a width x height canvas. resizer handles tiles that
// must be fitted to a clipped paste rectangle; nil selects a Catmull-Rom scaler.
func NewCanvas(width, height int, resizer Resizer) (*Canvas, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidTarget, width, height)
	}

	if resizer == nil {
		resizer = kernelResizer{xdraw.CatmullRom}
	}

	return &Canvas{
		dst:     image.NewNRGBA(image.Rect(0, 0, width, height)),
		resizer: resizer,
	}, nil
}

// Image returns the destination. It is always exactly the target size.
func (c *Canvas) Image() *image.NRGBA {
	return c.dst
}

// Done reports whether the cursor has run off the canvas.
func (c *Canvas) Done() bool {
	return c.done
}

// Corrected returns how many tiles were resized to fit their paste rectangle.
func (c *Canvas) Corrected() int {
	return c.corrected
}

// Place pastes tile at the cursor and advances it.
func (c *Canvas) Place(tile image.Image) error {
	if c.done {
		return ErrCanvasFull
	}

	bounds := c.dst.Bounds()
	tw, th := tile.Bounds().Dx(), tile.Bounds().Dy()

	if c.x+tw > bounds.Dx() {
		c.x = 0
		c.y += c.rowHeight
		c.rowHeight = 0
	}

	if c.y >= bounds.Dy() {
		c.done = true

		return ErrCanvasFull
	}

	box := image.Rect(c.x, c.y, c.x+tw, c.y+th).Intersect(bounds)
	if box.Empty() {
		return fmt.Errorf("%w: %dx%d tile at (%d,%d)", ErrEmptyPaste, tw, th, c.x, c.y)
	}

	err := c.paste(tile, box)
	if err != nil {
		return err
	}

	c.x += tw
	c.rowHeight = max(c.rowHeight, th)

	if c.y+c.rowHeight > bounds.Dy() {
		c.done = true
	}

	return nil
}

func (c *Canvas) paste(tile image.Image, box image.Rectangle) error {
	src := tile

	if tile.Bounds().Size() != box.Size() {
		fitted, err := c.resizer.Resize(tile, box.Dx(), box.Dy())
		if err != nil {
			return fmt.Errorf("fit tile to %v: %w", box, err)
		}

		src = fitted
		c.corrected++
	}

	xdraw.Copy(c.dst, box.Min, src, src.Bounds(), xdraw.Src, nil)

	return nil
}

type kernelResizer struct {
	kernel *xdraw.Kernel
}

func (k kernelResizer) Resize(img image.Image, width, height int) (*image.NRGBA, error) {
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	k.kernel.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)

	return dst, nil
}
