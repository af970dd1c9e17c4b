// Package mipchain builds a mipmap chain from ordered source levels.
//
// The Driver walks the levels in order: level 0 is taken as-is, every
// following level is resized to half of the previous target through the tiled
// Pipeline (or a whole-image resize when tiling fails), and the finished chain
// is handed to an Assembler. Temporary artifacts live in a per-run Workspace
// that is swept whether the run succeeds or not.
package mipchain

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/png" // level 0 size probe.
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/mipforge/pkg/observability"
	"github.com/Sumatoshi-tech/mipforge/pkg/resample"
	"github.com/Sumatoshi-tech/mipforge/pkg/resource"
)

// DefaultOutputName is the container name; the transcoder keeps it for the final file.
const DefaultOutputName = "output.dds"

// ErrSizeMismatch is logged when a source level is not exactly twice its
// target size. It never aborts a run.
var ErrSizeMismatch = errors.New("source size mismatch")

// Assembler packs the finished chain and transcodes the container.
type Assembler interface {
	Assemble(ctx context.Context, inputs []string, out string) error
	Transcode(ctx context.Context, container, outDir string) error
}

// State is the driver lifecycle position.
type State int

// Driver states.
const (
	StateInit State = iota
	StateScaling
	StateAssembling
	StateDone
	StateFailed
)

var stateNames = [...]string{"init", "scaling", "assembling", "done", "failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}

	return stateNames[s]
}

// DriverConfig configures NewDriver. Assembler is required.
type DriverConfig struct {
	Monitor    *resource.Monitor
	Pipeline   *Pipeline
	Assembler  Assembler
	TempRoot   string
	OutputName string
	Manifest   bool
	Version    string

	// OnStart is called once the number of levels is known.
	OnStart func(levels int)

	// OnLevel is called after each level is ready.
	OnLevel func(Level)

	Tracer  trace.Tracer
	Metrics *observability.PipelineMetrics
	Logger  *slog.Logger
}

// Driver runs one mip chain build at a time.
type Driver struct {
	cfg      DriverConfig
	monitor  *resource.Monitor
	pipeline *Pipeline
	tracer   trace.Tracer
	logger   *slog.Logger
	state    State
}

// NewDriver returns a Driver with defaults for every optional field.
func NewDriver(cfg DriverConfig) *Driver {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	monitor := cfg.Monitor
	if monitor == nil {
		monitor = resource.NewMonitor(resource.DefaultLimits(cmp.Or(cfg.TempRoot, os.TempDir())), nil, nil, logger)
	}

	pipeline := cfg.Pipeline
	if pipeline == nil {
		pipeline = NewPipeline(PipelineConfig{Monitor: monitor, Metrics: cfg.Metrics, Logger: logger})
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = nooptrace.NewTracerProvider().Tracer("mipforge")
	}

	if cfg.OutputName == "" {
		cfg.OutputName = DefaultOutputName
	}

	return &Driver{
		cfg:      cfg,
		monitor:  monitor,
		pipeline: pipeline,
		tracer:   tracer,
		logger:   logger,
		state:    StateInit,
	}
}

// State returns the current lifecycle state.
func (d *Driver) State() State {
	return d.state
}

// Run builds the chain from the p<i>.png files in inputDir and writes the
// transcoded container into outputDir.
func (d *Driver) Run(ctx context.Context, inputDir, outputDir string) (chain *Chain, err error) {
	ctx, span := d.tracer.Start(ctx, "mipchain.run", trace.WithAttributes(
		attribute.String("input", inputDir),
		attribute.String("output", outputDir),
	))
	defer span.End()

	d.state = StateInit

	defer func() {
		if err != nil {
			d.state = StateFailed
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	sources, err := Discover(inputDir)
	if err != nil {
		return nil, err
	}

	err = d.monitor.CheckResources(ctx)
	if err != nil {
		return nil, err
	}

	base, err := readSize(sources[0].Path)
	if err != nil {
		return nil, err
	}

	ws, err := NewWorkspace(d.cfg.TempRoot, d.logger)
	if err != nil {
		return nil, err
	}

	defer func() {
		sweepErr := ws.Sweep()
		if sweepErr != nil {
			d.logger.WarnContext(ctx, "mipchain: workspace cleanup incomplete", "error", sweepErr)
		}
	}()

	d.logger.InfoContext(ctx, "mipchain: starting", "levels", len(sources), "base", base.String(), "workspace", ws.Dir())

	if d.cfg.OnStart != nil {
		d.cfg.OnStart(len(sources))
	}

	chain = &Chain{
		Levels: make([]Level, 0, len(sources)),
		Output: filepath.Join(outputDir, d.cfg.OutputName),
	}

	d.addLevel(chain, Level{Index: 0, Size: base, Source: sources[0].Path, Path: sources[0].Path, Method: MethodBase})

	d.state = StateScaling

	target := base

	for i := 1; i < len(sources); i++ {
		err = ctx.Err()
		if err != nil {
			return nil, err
		}

		target = Halve(target)

		level, levelErr := d.scaleLevel(ctx, ws, i, sources[i], target)
		if levelErr != nil {
			return nil, levelErr
		}

		d.addLevel(chain, level)
	}

	d.state = StateAssembling

	err = d.assemble(ctx, ws, chain, outputDir)
	if err != nil {
		return nil, err
	}

	d.state = StateDone

	d.logger.InfoContext(ctx, "mipchain: done", "output", outputDir)

	return chain, nil
}

func (d *Driver) addLevel(chain *Chain, level Level) {
	chain.Levels = append(chain.Levels, level)

	if d.cfg.OnLevel != nil {
		d.cfg.OnLevel(level)
	}
}

func (d *Driver) scaleLevel(ctx context.Context, ws *Workspace, index int, src Source, target Size) (Level, error) {
	ctx, span := d.tracer.Start(ctx, "mipchain.level", trace.WithAttributes(
		attribute.Int("index", index),
		attribute.String("target", target.String()),
	))
	defer span.End()

	start := time.Now()
	level := Level{Index: index, Size: target, Source: src.Path}

	img, err := resample.Load(src.Path)
	if err != nil {
		return Level{}, err
	}

	actual := SizeOf(img.Bounds())
	if actual == target {
		level.Path = src.Path
		level.Method = MethodReused
		d.cfg.Metrics.RecordLevel(ctx, string(level.Method), time.Since(start))

		return level, nil
	}

	if !target.IsHalfOf(actual) {
		d.logger.WarnContext(ctx, "mipchain: unexpected source size",
			"error", fmt.Errorf("%w: %s is %s, target %s expects %s",
				ErrSizeMismatch, filepath.Base(src.Path), actual, target, Size{Width: target.Width * 2, Height: target.Height * 2}))
	}

	err = d.monitor.CheckResources(ctx)
	if err != nil {
		return Level{}, err
	}

	out, method, err := d.resize(ctx, img, target)
	if err != nil {
		return Level{}, err
	}

	level.Path = ws.Artifact(index)
	level.Method = method

	err = resample.Save(out, level.Path)
	if err != nil {
		return Level{}, err
	}

	span.SetAttributes(attribute.String("method", string(method)))
	d.cfg.Metrics.RecordLevel(ctx, string(method), time.Since(start))

	d.logger.InfoContext(ctx, "mipchain: level ready",
		"index", index, "size", target.String(), "method", string(method), "elapsed", time.Since(start).Round(time.Millisecond))

	return level, nil
}

// resize tries the tiled pipeline first and falls back to one whole-image resize.
func (d *Driver) resize(ctx context.Context, img *image.NRGBA, target Size) (*image.NRGBA, Method, error) {
	result := d.pipeline.Tiled(ctx, img, target)
	if result.Outcome == Assembled {
		d.cfg.Metrics.RecordTiles(ctx, result.Stats.Pasted, result.Stats.Skipped, result.Stats.Dropped)
		d.logger.DebugContext(ctx, "mipchain: tiled resize", "tiles", result.Tiles, "chunk", result.Chunk, "stats", result.Stats.String())

		return result.Image, MethodTiled, nil
	}

	// A cancelled run stops here; only tiling failures fall back.
	if ctx.Err() != nil {
		return nil, "", ctx.Err()
	}

	if errors.Is(result.Err, context.Canceled) || errors.Is(result.Err, context.DeadlineExceeded) {
		return nil, "", result.Err
	}

	d.logger.WarnContext(ctx, "mipchain: tiled resize failed, resizing whole image", "error", result.Err)
	d.cfg.Metrics.RecordFallback(ctx)

	out, err := d.pipeline.Resampler().Resize(img, target.Width, target.Height)
	if err != nil {
		return nil, "", fmt.Errorf("fallback resize to %s: %w", target, err)
	}

	return out, MethodFallback, nil
}

func (d *Driver) assemble(ctx context.Context, ws *Workspace, chain *Chain, outputDir string) error {
	if d.cfg.Assembler == nil {
		return fmt.Errorf("%w: no assembler configured", ErrMissingInput)
	}

	container := ws.Container(d.cfg.OutputName)

	err := d.cfg.Assembler.Assemble(ctx, chain.Paths(), container)
	if err != nil {
		return err
	}

	err = os.MkdirAll(outputDir, 0o750)
	if err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	err = d.cfg.Assembler.Transcode(ctx, container, outputDir)
	if err != nil {
		return err
	}

	if d.cfg.Manifest {
		path, writeErr := WriteManifest(outputDir, NewManifest(chain, d.cfg.Version, time.Now()))
		if writeErr != nil {
			return writeErr
		}

		d.logger.InfoContext(ctx, "mipchain: manifest written", "path", path)
	}

	return nil
}

func readSize(path string) (Size, error) {
	f, err := os.Open(path)
	if err != nil {
		return Size{}, fmt.Errorf("%w: %w", ErrMissingInput, err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return Size{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}

	return Size{Width: cfg.Width, Height: cfg.Height}, nil
}
