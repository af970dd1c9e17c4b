//go:build !linux && !windows

package resource

// SystemMemory reports ErrProbeUnavailable; there is no portable way to read
// available memory on this platform without cgo.
type SystemMemory struct{}

// AvailableBytes implements MemoryProbe.
func (SystemMemory) AvailableBytes() (uint64, error) {
	return 0, ErrProbeUnavailable
}

// UsedPercent implements MemoryProbe.
func (SystemMemory) UsedPercent() (float64, error) {
	return 0, ErrProbeUnavailable
}
