//go:build windows

package resource

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// SystemMemory reads memory counters with GlobalMemoryStatusEx.
type SystemMemory struct{}

// AvailableBytes implements MemoryProbe.
func (SystemMemory) AvailableBytes() (uint64, error) {
	st, err := memoryStatus()
	if err != nil {
		return 0, err
	}

	return st.AvailPhys, nil
}

// UsedPercent implements MemoryProbe.
func (SystemMemory) UsedPercent() (float64, error) {
	st, err := memoryStatus()
	if err != nil {
		return 0, err
	}

	mi := memInfo{Total: st.TotalPhys, Available: st.AvailPhys}

	return mi.usedPercent(), nil
}

func memoryStatus() (windows.MemoryStatusEx, error) {
	var st windows.MemoryStatusEx

	st.Length = uint32(unsafe.Sizeof(st))

	err := windows.GlobalMemoryStatusEx(&st)
	if err != nil {
		return windows.MemoryStatusEx{}, fmt.Errorf("GlobalMemoryStatusEx: %w", err)
	}

	return st, nil
}
