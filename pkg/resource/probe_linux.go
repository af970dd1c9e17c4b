//go:build linux

package resource

import (
	"fmt"
	"os"
)

// SystemMemory reads memory counters from /proc/meminfo.
type SystemMemory struct{}

// AvailableBytes implements MemoryProbe.
func (SystemMemory) AvailableBytes() (uint64, error) {
	mi, err := readMemInfo()
	if err != nil {
		return 0, err
	}

	return mi.Available, nil
}

// UsedPercent implements MemoryProbe.
func (SystemMemory) UsedPercent() (float64, error) {
	mi, err := readMemInfo()
	if err != nil {
		return 0, err
	}

	return mi.usedPercent(), nil
}

func readMemInfo() (memInfo, error) {
	data, err := os.ReadFile(procMemInfoPath)
	if err != nil {
		return memInfo{}, fmt.Errorf("read %s: %w", procMemInfoPath, err)
	}

	return parseMemInfo(data)
}
