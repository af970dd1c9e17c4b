//go:build !linux && !darwin && !freebsd && !windows

package resource

// SystemDisk reports ErrProbeUnavailable on platforms without statfs.
type SystemDisk struct{}

// FreeBytes implements DiskProbe.
func (SystemDisk) FreeBytes(string) (uint64, error) {
	return 0, ErrProbeUnavailable
}
