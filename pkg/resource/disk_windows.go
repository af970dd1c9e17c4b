//go:build windows

package resource

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// SystemDisk reads free space with GetDiskFreeSpaceEx.
type SystemDisk struct{}

// FreeBytes implements DiskProbe.
func (SystemDisk) FreeBytes(path string) (uint64, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, fmt.Errorf("encode path %s: %w", path, err)
	}

	var freeToCaller, total, totalFree uint64

	err = windows.GetDiskFreeSpaceEx(p, &freeToCaller, &total, &totalFree)
	if err != nil {
		return 0, fmt.Errorf("GetDiskFreeSpaceEx %s: %w", path, err)
	}

	return freeToCaller, nil
}
