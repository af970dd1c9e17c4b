package mipchain

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"slices"

	"github.com/Sumatoshi-tech/mipforge/pkg/observability"
	"github.com/Sumatoshi-tech/mipforge/pkg/reassemble"
	"github.com/Sumatoshi-tech/mipforge/pkg/resample"
	"github.com/Sumatoshi-tech/mipforge/pkg/resource"
	"github.com/Sumatoshi-tech/mipforge/pkg/tiling"
)

// DefaultRetainedTiles is how many recent tiles survive a pressure response.
const DefaultRetainedTiles = 3

// ErrTilingFailed is the reason carried by a Failed result.
var ErrTilingFailed = errors.New("tiled resize failed")

// Planner produces the tile plan for an image.
type Planner interface {
	Plan(width, height int, available uint64) (tiling.Plan, error)
}

// Outcome distinguishes the two Result variants.
type Outcome int

// Result variants.
const (
	// Assembled carries a reassembled image of the target size.
	Assembled Outcome = iota

	// Failed carries the reason the tiled path was abandoned.
	Failed
)

func (o Outcome) String() string {
	if o == Assembled {
		return "assembled"
	}

	return "failed"
}

// Result is the outcome of one tiled resize.
type Result struct {
	Outcome Outcome
	Image   *image.NRGBA
	Stats   reassemble.Stats
	Tiles   int
	Chunk   int
	Err     error
}

func failed(err error) Result {
	return Result{Outcome: Failed, Err: fmt.Errorf("%w: %w", ErrTilingFailed, err)}
}

// Pipeline runs the schedule, resample, reassemble sequence for one level.
type Pipeline struct {
	planner   Planner
	resampler *resample.Resampler
	monitor   *resource.Monitor
	retained  int
	reclaim   func()
	onTile    func(done, total int)
	metrics   *observability.PipelineMetrics
	logger    *slog.Logger
}

// PipelineConfig configures NewPipeline. Zero fields take defaults.
type PipelineConfig struct {
	Planner       Planner
	Resampler     *resample.Resampler
	Monitor       *resource.Monitor
	RetainedTiles int
	Metrics       *observability.PipelineMetrics
	Logger        *slog.Logger

	// OnTile is called after each tile is resampled and placed.
	OnTile func(done, total int)
}

// NewPipeline returns a Pipeline with defaults for every unset field.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	p := &Pipeline{
		planner:   cfg.Planner,
		resampler: cfg.Resampler,
		monitor:   cfg.Monitor,
		retained:  cfg.RetainedTiles,
		reclaim:   resource.Reclaim,
		onTile:    cfg.OnTile,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}

	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}

	if p.planner == nil {
		p.planner = tiling.DefaultScheduler()
	}

	if p.resampler == nil {
		p.resampler = resample.New(resample.DefaultFilter)
	}

	if p.monitor == nil {
		p.monitor = resource.NewMonitor(resource.DefaultLimits(""), nil, nil, p.logger)
	}

	if p.retained <= 0 {
		p.retained = DefaultRetainedTiles
	}

	return p
}

// Resampler returns the resampler used for tiles and fallbacks.
func (p *Pipeline) Resampler() *resample.Resampler {
	return p.resampler
}

// Tiled resizes img to target tile by tile. Each tile is placed on the
// destination as soon as it is produced. Any planning or resampling error
// yields a Failed result.
func (p *Pipeline) Tiled(ctx context.Context, img *image.NRGBA, target Size) Result {
	bounds := img.Bounds()

	plan, err := p.planner.Plan(bounds.Dx(), bounds.Dy(), p.monitor.AvailableMemory())
	if err != nil {
		return failed(err)
	}

	err = plan.Validate()
	if err != nil {
		return failed(err)
	}

	canvas, err := reassemble.NewCanvas(target.Width, target.Height, p.resampler)
	if err != nil {
		return failed(err)
	}

	p.logger.DebugContext(ctx, "tiling: plan ready",
		"tiles", len(plan.Tiles), "chunk", plan.ChunkSize, "rows", plan.Rows(), "cols", plan.Cols())

	sx, sy := resample.Scale(bounds.Dx(), bounds.Dy(), target.Width, target.Height)

	var stats reassemble.Stats

	// pending is the retention window. Tiles are already on the canvas when
	// they enter it, so it only decides how many tile buffers stay referenced
	// until pressure cuts it back.
	pending := make([]*image.NRGBA, 0, p.retained+1)

	for i, rect := range plan.Tiles {
		err = ctx.Err()
		if err != nil {
			return failed(err)
		}

		tile, resampleErr := p.resampler.ResampleTile(img, rect.Add(bounds.Min), sx, sy)
		if resampleErr != nil {
			return failed(resampleErr)
		}

		placeErr := canvas.Place(tile)

		switch {
		case errors.Is(placeErr, reassemble.ErrCanvasFull):
			stats.Dropped = len(plan.Tiles) - i
		case placeErr != nil:
			stats.Skipped++

			p.logger.WarnContext(ctx, "reassemble: skipping tile", "tile", rect.String(), "error", placeErr)
		default:
			stats.Pasted++
		}

		if p.onTile != nil {
			p.onTile(i+1, len(plan.Tiles))
		}

		if stats.Dropped > 0 {
			break
		}

		pending = append(pending, tile)
		pending = p.relieve(ctx, pending)

		if canvas.Done() {
			stats.Dropped = len(plan.Tiles) - i - 1

			break
		}
	}

	stats.Corrected = canvas.Corrected()

	if stats.Dropped > 0 {
		p.logger.WarnContext(ctx, "reassemble: canvas full, tiles dropped", "dropped", stats.Dropped)
	}

	return Result{
		Outcome: Assembled,
		Image:   canvas.Image(),
		Stats:   stats,
		Tiles:   len(plan.Tiles),
		Chunk:   plan.ChunkSize,
	}
}

// relieve shrinks the retention window to the most recent tiles and asks the
// runtime to return memory when the system is under pressure.
func (p *Pipeline) relieve(ctx context.Context, pending []*image.NRGBA) []*image.NRGBA {
	if !p.monitor.MemoryPressure() {
		return pending
	}

	if len(pending) > p.retained {
		released := len(pending) - p.retained
		pending = slices.Delete(pending, 0, released)

		p.logger.DebugContext(ctx, "resource: memory pressure, released tiles", "released", released)
	}

	p.reclaim()
	p.metrics.RecordPressure(ctx)

	return pending
}
