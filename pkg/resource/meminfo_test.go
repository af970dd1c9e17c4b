package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMemInfo = `MemTotal:       16000000 kB
MemFree:         1000000 kB
MemAvailable:    4000000 kB
Buffers:          200000 kB
`

func TestParseMemInfo(t *testing.T) {
	t.Parallel()

	mi, err := parseMemInfo([]byte(sampleMemInfo))
	require.NoError(t, err)

	assert.Equal(t, uint64(16000000*1024), mi.Total)
	assert.Equal(t, uint64(4000000*1024), mi.Available)
	assert.InDelta(t, 75.0, mi.usedPercent(), 1e-9)
}

func TestParseMemInfo_FallsBackToMemFree(t *testing.T) {
	t.Parallel()

	mi, err := parseMemInfo([]byte("MemTotal: 1000 kB\nMemFree: 250 kB\n"))
	require.NoError(t, err)

	assert.Equal(t, uint64(250*1024), mi.Available)
}

func TestParseMemInfo_Incomplete(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"no total", "MemAvailable: 10 kB\n"},
		{"garbage value", "MemTotal: abc kB\nMemAvailable: 1 kB\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := parseMemInfo([]byte(tt.data))
			assert.ErrorIs(t, err, errMemInfoIncomplete)
		})
	}
}

func TestUsedPercent_ZeroTotal(t *testing.T) {
	t.Parallel()

	assert.Zero(t, memInfo{}.usedPercent())
}
