package report_test

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/mipforge/internal/report"
	"github.com/Sumatoshi-tech/mipforge/pkg/mipchain"
	"github.com/Sumatoshi-tech/mipforge/pkg/resource"
	"github.com/Sumatoshi-tech/mipforge/pkg/tiling"
	"github.com/Sumatoshi-tech/mipforge/pkg/units"
)

func TestWriteFatal(t *testing.T) {
	t.Parallel()

	root := errors.New("available 512 MiB")
	err := fmt.Errorf("build: %w", fmt.Errorf("%w: %w", resource.ErrResourceExhausted, root))

	var buf bytes.Buffer

	report.WriteFatal(&buf, err, report.Diagnostics{
		Time:              time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Platform:          "linux/amd64",
		GoVersion:         "go1.25.0",
		MemoryUsedPercent: 91.25,
		FreeDisk:          3 * units.GiB,
		WorkDir:           "/work",
		InputDir:          "Input",
		InputFiles:        4,
	})

	out := buf.String()

	assert.Contains(t, out, "fatal: build: insufficient resources: available 512 MiB")
	assert.Contains(t, out, "  - insufficient resources\n")
	assert.Contains(t, out, "  - available 512 MiB\n")
	assert.Contains(t, out, "linux/amd64")
	assert.Contains(t, out, "91.2%")
	assert.Contains(t, out, "3.0 GiB")
	assert.Contains(t, out, "4 (Input)")
}

func TestCollect(t *testing.T) {
	t.Parallel()

	input := t.TempDir()
	for _, name := range []string{"p0.png", "p1.png", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(input, name), nil, 0o600))
	}

	mon := resource.NewMonitor(resource.DefaultLimits(""),
		resource.StaticMemory{Available: 2 * units.GiB, Used: 40},
		resource.StaticDisk{Free: 9 * units.GiB}, nil)

	d := report.Collect(mon, input)

	assert.Equal(t, 3, d.InputFiles)
	assert.InDelta(t, 40.0, d.MemoryUsedPercent, 0.001)
	assert.Equal(t, uint64(9*units.GiB), d.FreeDisk)
	assert.NotEmpty(t, d.Platform)
	assert.NotEmpty(t, d.WorkDir)

	missing := report.Collect(nil, filepath.Join(input, "absent"))
	assert.Zero(t, missing.InputFiles)
	assert.Zero(t, missing.FreeDisk)
}

func TestWriteLevels(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	report.WriteLevels(&buf, []mipchain.Level{
		{Index: 0, Size: mipchain.Size{Width: 256, Height: 256}, Source: "/in/p0.png", Method: mipchain.MethodBase},
		{Index: 1, Size: mipchain.Size{Width: 128, Height: 128}, Source: "/in/p1.png", Method: mipchain.MethodFallback},
	})

	out := buf.String()

	assert.Contains(t, out, "256x256")
	assert.Contains(t, out, "fallback")
	assert.Contains(t, out, "p1.png")
	assert.Contains(t, out, "2 levels")
}

func TestWritePlan(t *testing.T) {
	t.Parallel()

	plan := tiling.Plan{Width: 300, Height: 100, ChunkSize: 256, Tiles: []image.Rectangle{
		image.Rect(0, 0, 256, 100),
		image.Rect(256, 0, 300, 100),
	}}

	var buf bytes.Buffer

	report.WritePlan(&buf, plan, 4*units.GiB)

	out := buf.String()

	assert.Contains(t, out, "image 300x100, available memory 4.0 GiB, chunk 256px, 2 tiles (1 rows x 2 cols)")
	assert.Contains(t, out, "44")
}

func TestStatusLines(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	report.Level(&buf, mipchain.Level{Index: 2, Size: mipchain.Size{Width: 64, Height: 64}, Method: mipchain.MethodTiled})
	report.Done(&buf, "Output")

	assert.Contains(t, buf.String(), "level 2 64x64 (tiled)")
	assert.Contains(t, buf.String(), "done, output directory: Output")
}

func TestProgress(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	p := report.NewProgress(&buf, false)
	p.Start(2)
	p.Level(mipchain.Level{Index: 0, Size: mipchain.Size{Width: 64, Height: 64}, Method: mipchain.MethodBase})

	for done := 1; done <= 20; done++ {
		p.Tile(done, 20)
	}

	p.Level(mipchain.Level{Index: 1, Size: mipchain.Size{Width: 32, Height: 32}, Method: mipchain.MethodTiled})

	out := buf.String()
	assert.Contains(t, out, "progress: building 2 levels")
	assert.Contains(t, out, "progress: 1/2 levels ready")
	assert.Contains(t, out, "progress: level 1 tiles 1/20 (5%)")
	assert.Contains(t, out, "progress: level 1 tiles 2/20 (10%)")
	assert.Contains(t, out, "progress: level 1 tiles 20/20 (100%)")
	assert.NotContains(t, out, "tiles 3/20")
	assert.Contains(t, out, "level 1 32x32 (tiled)")
	assert.Contains(t, out, "progress: 2/2 levels ready")
	assert.Equal(t, 11, bytes.Count(buf.Bytes(), []byte("tiles ")))
}

func TestProgress_Silent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	p := report.NewProgress(&buf, true)
	p.Start(2)
	p.Tile(1, 1)
	p.Level(mipchain.Level{Index: 1, Method: mipchain.MethodTiled})

	assert.Empty(t, buf.String())
}
