package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/mipforge/pkg/config"
	"github.com/Sumatoshi-tech/mipforge/pkg/resource"
	"github.com/Sumatoshi-tech/mipforge/pkg/units"
)

func executePlan(t *testing.T, available uint64, args ...string) (string, error) {
	t.Helper()

	cmd := newPlanCommandWithDeps(resource.StaticMemory{Available: available, Used: 20})

	var out bytes.Buffer

	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", writeConfig(t)}, args...))

	err := cmd.Execute()

	return out.String(), err
}

func TestPlanCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		measured  uint64
		args      []string
		wantChunk string
		wantTiles string
	}{
		{
			name:      "explicit_zero_memory",
			measured:  64 * units.GiB,
			args:      []string{"--width", "600", "--height", "300", "--available", "0"},
			wantChunk: "chunk 256px",
			wantTiles: "6 tiles (2 rows x 3 cols)",
		},
		{
			name:      "measured_memory",
			measured:  600 * units.MiB,
			args:      []string{"--width", "1024", "--height", "1024"},
			wantChunk: "chunk 1280px",
			wantTiles: "1 tiles (1 rows x 1 cols)",
		},
		{
			name:      "human_size",
			measured:  0,
			args:      []string{"--width", "1024", "--height", "1024", "--available", "600MiB"},
			wantChunk: "chunk 1280px",
			wantTiles: "1 tiles",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out, err := executePlan(t, tt.measured, tt.args...)
			require.NoError(t, err)
			assert.Contains(t, out, tt.wantChunk)
			assert.Contains(t, out, tt.wantTiles)
		})
	}
}

func TestPlanCommand_Errors(t *testing.T) {
	t.Parallel()

	_, err := executePlan(t, units.GiB, "--width", "10", "--height", "10", "--available", "lots")
	require.ErrorIs(t, err, config.ErrInvalidSize)

	_, err = executePlan(t, units.GiB, "--width", "0", "--height", "10")
	require.Error(t, err)

	_, err = executePlan(t, units.GiB, "--height", "10")
	require.Error(t, err)
}
