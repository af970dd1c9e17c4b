package mipchain_test

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/mipforge/pkg/mipchain"
	"github.com/Sumatoshi-tech/mipforge/pkg/resample"
	"github.com/Sumatoshi-tech/mipforge/pkg/resource"
	"github.com/Sumatoshi-tech/mipforge/pkg/tiling"
	"github.com/Sumatoshi-tech/mipforge/pkg/units"
)

// recordingAssembler captures what it was handed; artifacts are decoded during
// the call because the workspace is swept when Run returns.
type recordingAssembler struct {
	inputs      []string
	images      []*image.NRGBA
	container   string
	transcoded  string
	assembleErr error
}

func (r *recordingAssembler) Assemble(_ context.Context, inputs []string, out string) error {
	r.inputs = append([]string(nil), inputs...)
	r.container = out

	for _, in := range inputs {
		img, err := resample.Load(in)
		if err != nil {
			return err
		}

		r.images = append(r.images, img)
	}

	if r.assembleErr != nil {
		return r.assembleErr
	}

	return os.WriteFile(out, []byte("DDS "), 0o600)
}

func (r *recordingAssembler) Transcode(_ context.Context, container, outDir string) error {
	r.transcoded = filepath.Join(outDir, filepath.Base(container))

	return os.WriteFile(r.transcoded, []byte("DDS "), 0o600)
}

type countingPlanner struct {
	inner  tiling.Scheduler
	fail   bool
	cancel context.CancelFunc
	calls  int
}

func (c *countingPlanner) Plan(w, h int, available uint64) (tiling.Plan, error) {
	c.calls++

	if c.cancel != nil {
		c.cancel()
	}

	if c.fail {
		return tiling.Plan{}, errors.New("forced tiling failure")
	}

	return c.inner.Plan(w, h, available)
}

func pattern(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))

	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 3), G: uint8(y * 5), B: uint8(x + y), A: 255}) //nolint:gosec // test pattern.
		}
	}

	return img
}

func writeLevels(t *testing.T, sizes ...int) string {
	t.Helper()

	dir := t.TempDir()

	for i, s := range sizes {
		require.NoError(t, resample.Save(pattern(s, s), filepath.Join(dir, "p"+strconv.Itoa(i)+".png")))
	}

	return dir
}

func monitor(available uint64) *resource.Monitor {
	return resource.NewMonitor(
		resource.DefaultLimits(""),
		resource.StaticMemory{Available: available, Used: 20},
		resource.StaticDisk{Free: 100 * units.GiB},
		nil,
	)
}

type harness struct {
	driver    *mipchain.Driver
	assembler *recordingAssembler
	planner   *countingPlanner
	tempRoot  string
	levels    []mipchain.Level
}

func newHarness(t *testing.T, available uint64, failTiling bool) *harness {
	t.Helper()

	h := &harness{
		assembler: &recordingAssembler{},
		planner:   &countingPlanner{inner: tiling.DefaultScheduler(), fail: failTiling},
		tempRoot:  t.TempDir(),
	}

	mon := monitor(available)

	h.driver = mipchain.NewDriver(mipchain.DriverConfig{
		Monitor:   mon,
		Pipeline:  mipchain.NewPipeline(mipchain.PipelineConfig{Planner: h.planner, Monitor: mon}),
		Assembler: h.assembler,
		TempRoot:  h.tempRoot,
		OnLevel:   func(l mipchain.Level) { h.levels = append(h.levels, l) },
	})

	return h
}

func (h *harness) assertSwept(t *testing.T) {
	t.Helper()

	entries, err := os.ReadDir(h.tempRoot)
	require.NoError(t, err)
	assert.Empty(t, entries, "workspace must be removed")
}

func TestDriverRun_EndToEnd(t *testing.T) {
	t.Parallel()

	input := writeLevels(t, 256, 128, 64)
	output := filepath.Join(t.TempDir(), "Output")
	h := newHarness(t, 8*units.GiB, false)

	chain, err := h.driver.Run(context.Background(), input, output)
	require.NoError(t, err)

	assert.Equal(t, mipchain.StateDone, h.driver.State())
	require.Len(t, chain.Levels, 3)
	assert.Equal(t, h.levels, chain.Levels)

	require.Len(t, h.assembler.images, 3)

	for i, want := range []int{256, 128, 64} {
		assert.Equal(t, i, chain.Levels[i].Index)
		assert.Equal(t, image.Rect(0, 0, want, want), h.assembler.images[i].Bounds())
	}

	assert.Equal(t, filepath.Join(input, "p0.png"), h.assembler.inputs[0])
	assert.Equal(t, mipchain.MethodBase, chain.Levels[0].Method)
	assert.Equal(t, mipchain.MethodReused, chain.Levels[1].Method)
	assert.Equal(t, filepath.Join(output, "output.dds"), chain.Output)
	assert.Equal(t, chain.Output, h.assembler.transcoded)
	assert.FileExists(t, chain.Output)

	h.assertSwept(t)
}

func TestDriverRun_ResamplesMismatchedLevels(t *testing.T) {
	t.Parallel()

	input := writeLevels(t, 256, 200, 200, 200)
	h := newHarness(t, 8*units.GiB, false)

	chain, err := h.driver.Run(context.Background(), input, t.TempDir())
	require.NoError(t, err)

	for i, want := range []int{256, 128, 64, 32} {
		assert.Equal(t, mipchain.Size{Width: want, Height: want}, chain.Levels[i].Size)
		assert.Equal(t, image.Rect(0, 0, want, want), h.assembler.images[i].Bounds())
	}

	assert.Equal(t, mipchain.MethodTiled, chain.Levels[1].Method)
	assert.Equal(t, "temp_p1.png", filepath.Base(h.assembler.inputs[1]))
	assert.Equal(t, 3, h.planner.calls)

	h.assertSwept(t)
}

func TestDriverRun_FallbackMatchesWholeImageResize(t *testing.T) {
	t.Parallel()

	input := writeLevels(t, 64, 64)
	h := newHarness(t, 8*units.GiB, true)

	chain, err := h.driver.Run(context.Background(), input, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, mipchain.MethodFallback, chain.Levels[1].Method)
	assert.Equal(t, 1, h.planner.calls)

	src, err := resample.Load(filepath.Join(input, "p1.png"))
	require.NoError(t, err)

	want, err := resample.New(resample.DefaultFilter).Resize(src, 32, 32)
	require.NoError(t, err)

	assert.Equal(t, want.Pix, h.assembler.images[1].Pix)
}

func TestDriverRun_ResourceFloor(t *testing.T) {
	t.Parallel()

	input := writeLevels(t, 64, 64)
	h := newHarness(t, 512*units.MiB, false)

	chain, err := h.driver.Run(context.Background(), input, t.TempDir())
	require.ErrorIs(t, err, resource.ErrResourceExhausted)

	assert.Nil(t, chain)
	assert.Equal(t, mipchain.StateFailed, h.driver.State())
	assert.Zero(t, h.planner.calls, "no tiling may be attempted")
	assert.Nil(t, h.assembler.inputs)

	h.assertSwept(t)
}

func TestDriverRun_MissingInput(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 8*units.GiB, false)

	_, err := h.driver.Run(context.Background(), filepath.Join(t.TempDir(), "Input"), t.TempDir())
	require.ErrorIs(t, err, mipchain.ErrMissingInput)
	assert.Equal(t, mipchain.StateFailed, h.driver.State())
}

func TestDriverRun_AssemblerFailureSweeps(t *testing.T) {
	t.Parallel()

	input := writeLevels(t, 64, 40)
	h := newHarness(t, 8*units.GiB, false)
	toolErr := errors.New("texassemble exited with code 1")
	h.assembler.assembleErr = toolErr

	_, err := h.driver.Run(context.Background(), input, t.TempDir())
	require.ErrorIs(t, err, toolErr)

	assert.Equal(t, mipchain.StateFailed, h.driver.State())
	h.assertSwept(t)
}

func TestDriverRun_WritesManifest(t *testing.T) {
	t.Parallel()

	input := writeLevels(t, 32, 16)
	output := t.TempDir()

	mon := monitor(8 * units.GiB)
	driver := mipchain.NewDriver(mipchain.DriverConfig{
		Monitor:   mon,
		Assembler: &recordingAssembler{},
		TempRoot:  t.TempDir(),
		Manifest:  true,
		Version:   "test",
	})

	_, err := driver.Run(context.Background(), input, output)
	require.NoError(t, err)

	m, err := mipchain.ReadManifest(filepath.Join(output, mipchain.ManifestName))
	require.NoError(t, err)

	require.Len(t, m.Levels, 2)
	assert.Equal(t, "test", m.Version)
	assert.Equal(t, mipchain.MethodReused, m.Levels[1].Method)
}

func TestState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "scaling", mipchain.StateScaling.String())
	assert.Equal(t, "failed", mipchain.StateFailed.String())
	assert.Equal(t, "state(9)", mipchain.State(9).String())
}

func TestDriverRun_CancelledContextStops(t *testing.T) {
	t.Parallel()

	input := writeLevels(t, 64, 40)
	h := newHarness(t, 8*units.GiB, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	chain, err := h.driver.Run(ctx, input, t.TempDir())
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, chain)
	assert.Equal(t, mipchain.StateFailed, h.driver.State())
	assert.Zero(t, h.planner.calls)
	assert.Empty(t, h.assembler.inputs)

	h.assertSwept(t)
}

func TestDriverRun_CancelDuringTilingDoesNotFallBack(t *testing.T) {
	t.Parallel()

	input := writeLevels(t, 64, 40)
	h := newHarness(t, 8*units.GiB, false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.planner.cancel = cancel

	chain, err := h.driver.Run(ctx, input, t.TempDir())
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, chain)
	assert.Equal(t, 1, h.planner.calls)
	assert.Len(t, h.levels, 1, "only the base level is reported")
	assert.Empty(t, h.assembler.inputs)

	h.assertSwept(t)
}

func TestDriverRun_RemovesStaleWorkspace(t *testing.T) {
	t.Parallel()

	input := writeLevels(t, 64, 40)
	h := newHarness(t, 8*units.GiB, false)

	stale := filepath.Join(h.tempRoot, "mipforge-deadbeef")
	require.NoError(t, os.MkdirAll(stale, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(stale, "temp_p1.png"), []byte("x"), 0o600))

	_, err := h.driver.Run(context.Background(), input, t.TempDir())
	require.NoError(t, err)

	h.assertSwept(t)
}
