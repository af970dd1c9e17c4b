package resample_test

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/mipforge/pkg/resample"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))

	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, c)
		}
	}

	return img
}

func TestParseFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    resample.Filter
		wantErr bool
	}{
		{"", resample.FilterLanczos, false},
		{"lanczos", resample.FilterLanczos, false},
		{"Catmull-Rom", resample.FilterCatmullRom, false},
		{" box ", resample.FilterBox, false},
		{"bicubic", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := resample.ParseFilter(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, resample.ErrUnknownFilter)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_UnknownFilterFallsBack(t *testing.T) {
	t.Parallel()

	assert.Equal(t, resample.DefaultFilter, resample.New("nearest").Filter())
	assert.Equal(t, resample.FilterBox, resample.New(resample.FilterBox).Filter())
}

func TestScaledSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		w, h         int
		sx, sy       float64
		wantW, wantH int
	}{
		{"half", 256, 256, 0.5, 0.5, 128, 128},
		{"rounds", 3, 5, 0.5, 0.5, 2, 3},
		{"never zero", 1, 1, 0.5, 0.25, 1, 1},
		{"anisotropic", 100, 40, 0.5, 0.25, 50, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w, h := resample.ScaledSize(tt.w, tt.h, tt.sx, tt.sy)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestScale(t *testing.T) {
	t.Parallel()

	sx, sy := resample.Scale(512, 256, 256, 64)
	assert.InDelta(t, 0.5, sx, 1e-9)
	assert.InDelta(t, 0.25, sy, 1e-9)

	sx, sy = resample.Scale(0, 10, 5, 5)
	assert.Zero(t, sx)
	assert.Zero(t, sy)
}

func TestResize_AllFilters(t *testing.T) {
	t.Parallel()

	src := solid(64, 32, color.NRGBA{R: 200, G: 100, B: 50, A: 255})

	for _, f := range resample.Filters() {
		t.Run(string(f), func(t *testing.T) {
			t.Parallel()

			out, err := resample.New(f).Resize(src, 32, 16)
			require.NoError(t, err)
			assert.Equal(t, image.Rect(0, 0, 32, 16), out.Bounds())

			c := out.NRGBAAt(16, 8)
			assert.InDelta(t, 200, int(c.R), 2)
			assert.InDelta(t, 100, int(c.G), 2)
			assert.InDelta(t, 50, int(c.B), 2)
		})
	}
}

func TestResize_InvalidSize(t *testing.T) {
	t.Parallel()

	_, err := resample.New(resample.DefaultFilter).Resize(solid(4, 4, color.NRGBA{A: 255}), 0, 2)
	require.ErrorIs(t, err, resample.ErrInvalidSize)
}

func TestResampleTile(t *testing.T) {
	t.Parallel()

	src := solid(300, 300, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	r := resample.New(resample.DefaultFilter)

	tile, err := r.ResampleTile(src, image.Rect(256, 0, 300, 256), 0.5, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 22, tile.Bounds().Dx())
	assert.Equal(t, 128, tile.Bounds().Dy())

	tiny, err := r.ResampleTile(src, image.Rect(299, 299, 300, 300), 0.5, 0.5)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 1, 1), tiny.Bounds())
}

func TestResampleTile_Empty(t *testing.T) {
	t.Parallel()

	src := solid(16, 16, color.NRGBA{A: 255})
	r := resample.New(resample.DefaultFilter)

	_, err := r.ResampleTile(src, image.Rect(4, 4, 4, 8), 0.5, 0.5)
	require.ErrorIs(t, err, resample.ErrEmptyTile)

	_, err = r.ResampleTile(src, image.Rect(20, 20, 30, 30), 0.5, 0.5)
	require.ErrorIs(t, err, resample.ErrEmptyTile)
}

func TestToRGB_ForcesOpaque(t *testing.T) {
	t.Parallel()

	src := solid(2, 2, color.NRGBA{R: 1, G: 2, B: 3, A: 0})

	out := resample.ToRGB(src)
	assert.Equal(t, color.NRGBA{R: 1, G: 2, B: 3, A: 255}, out.NRGBAAt(1, 1))
	assert.Equal(t, uint8(0), src.NRGBAAt(1, 1).A, "source must not be modified")
}

func TestSaveLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "p0.png")
	src := solid(8, 4, color.NRGBA{R: 9, G: 8, B: 7, A: 255})

	require.NoError(t, resample.Save(src, path))

	got, err := resample.Load(path)
	require.NoError(t, err)
	assert.Equal(t, src.Bounds(), got.Bounds())
	assert.Equal(t, src.Pix, got.Pix)
}

func TestLoad_Missing(t *testing.T) {
	t.Parallel()

	_, err := resample.Load(filepath.Join(t.TempDir(), "nope.png"))
	require.Error(t, err)
}
