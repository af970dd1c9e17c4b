package reassemble

import (
	"errors"
	"fmt"
	"image"
)

// Stats counts what happened to each tile during a merge.
type Stats struct {
	Pasted    int
	Skipped   int
	Dropped   int
	Corrected int
}

// Merge lays tiles onto a width x height canvas in order. Tiles that cannot
// be pasted are skipped; tiles remaining after the canvas fills are dropped.
// The returned image is always exactly width x height.
func Merge(tiles []image.Image, width, height int, resizer Resizer) (*image.NRGBA, Stats, error) {
	if len(tiles) == 0 {
		return nil, Stats{}, ErrNoTiles
	}

	canvas, err := NewCanvas(width, height, resizer)
	if err != nil {
		return nil, Stats{}, err
	}

	var stats Stats

	for i, tile := range tiles {
		placeErr := canvas.Place(tile)
		if errors.Is(placeErr, ErrCanvasFull) {
			stats.Dropped = len(tiles) - i

			break
		}

		if placeErr != nil {
			stats.Skipped++

			continue
		}

		stats.Pasted++

		if canvas.Done() {
			stats.Dropped = len(tiles) - i - 1

			break
		}
	}

	stats.Corrected = canvas.Corrected()

	return canvas.Image(), stats, nil
}

// String renders the stats for log lines.
func (s Stats) String() string {
	return fmt.Sprintf("pasted=%d skipped=%d dropped=%d corrected=%d", s.Pasted, s.Skipped, s.Dropped, s.Corrected)
}
