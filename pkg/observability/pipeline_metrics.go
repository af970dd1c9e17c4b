package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Sumatoshi-tech/mipforge/pkg/safeconv"
)

const (
	metricLevelsTotal     = "mipforge.levels.total"
	metricLevelDuration   = "mipforge.level.duration.seconds"
	metricTilesTotal      = "mipforge.tiles.total"
	metricFallbacksTotal  = "mipforge.fallbacks.total"
	metricPressureTotal   = "mipforge.pressure.events.total"
	metricMemoryAvailable = "mipforge.memory.available.bytes"

	attrMethod  = "method"
	attrOutcome = "outcome"

	outcomePasted  = "pasted"
	outcomeSkipped = "skipped"
	outcomeDropped = "dropped"
)

// levelBucketBoundaries covers sub-second small levels up to multi-minute
// resamples of very large base images.
var levelBucketBoundaries = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}

// PipelineMetrics holds the OTel instruments for mip chain runs.
type PipelineMetrics struct {
	levelsTotal   metric.Int64Counter
	levelDuration metric.Float64Histogram
	tilesTotal    metric.Int64Counter
	fallbacks     metric.Int64Counter
	pressure      metric.Int64Counter
}

// NewPipelineMetrics creates pipeline instruments from the given meter. When
// available is non-nil it backs an observable gauge of available memory.
func NewPipelineMetrics(mt metric.Meter, available func() uint64) (*PipelineMetrics, error) {
	b := newMetricBuilder(mt)

	pm := &PipelineMetrics{
		levelsTotal:   b.counter(metricLevelsTotal, "Mip levels produced by method", "{level}"),
		levelDuration: b.histogram(metricLevelDuration, "Per-level production duration in seconds", "s", levelBucketBoundaries...),
		tilesTotal:    b.counter(metricTilesTotal, "Resampled tiles by reassembly outcome", "{tile}"),
		fallbacks:     b.counter(metricFallbacksTotal, "Levels that fell back to a whole-image resize", "{level}"),
		pressure:      b.counter(metricPressureTotal, "Memory pressure responses during tiling", "{event}"),
	}

	var memGauge metric.Int64ObservableGauge
	if available != nil {
		memGauge = b.gauge(metricMemoryAvailable, "Available system memory", "By")
	}

	if b.err != nil {
		return nil, b.err
	}

	if memGauge != nil {
		_, err := mt.RegisterCallback(func(_ context.Context, obs metric.Observer) error {
			obs.ObserveInt64(memGauge, safeconv.ClampUint64ToInt64(available()))

			return nil
		}, memGauge)
		if err != nil {
			return nil, fmt.Errorf("register memory gauge callback: %w", err)
		}
	}

	return pm, nil
}

// RecordLevel records a produced level. Safe to call on a nil receiver.
func (pm *PipelineMetrics) RecordLevel(ctx context.Context, method string, duration time.Duration) {
	if pm == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(attrMethod, method))
	pm.levelsTotal.Add(ctx, 1, attrs)
	pm.levelDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordTiles records the reassembly outcome of a tiled level.
// Safe to call on a nil receiver.
func (pm *PipelineMetrics) RecordTiles(ctx context.Context, pasted, skipped, dropped int) {
	if pm == nil {
		return
	}

	pm.tilesTotal.Add(ctx, int64(pasted), metric.WithAttributes(attribute.String(attrOutcome, outcomePasted)))
	pm.tilesTotal.Add(ctx, int64(skipped), metric.WithAttributes(attribute.String(attrOutcome, outcomeSkipped)))
	pm.tilesTotal.Add(ctx, int64(dropped), metric.WithAttributes(attribute.String(attrOutcome, outcomeDropped)))
}

// RecordFallback records a whole-image fallback. Safe to call on a nil receiver.
func (pm *PipelineMetrics) RecordFallback(ctx context.Context) {
	if pm == nil {
		return
	}

	pm.fallbacks.Add(ctx, 1)
}

// RecordPressure records one memory pressure response. Safe to call on a nil receiver.
func (pm *PipelineMetrics) RecordPressure(ctx context.Context) {
	if pm == nil {
		return
	}

	pm.pressure.Add(ctx, 1)
}
