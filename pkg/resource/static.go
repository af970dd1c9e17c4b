package resource

// StaticMemory is a MemoryProbe returning fixed values.
type StaticMemory struct {
	Available uint64
	Used      float64
	Err       error
}

// AvailableBytes implements MemoryProbe.
func (s StaticMemory) AvailableBytes() (uint64, error) {
	return s.Available, s.Err
}

// UsedPercent implements MemoryProbe.
func (s StaticMemory) UsedPercent() (float64, error) {
	return s.Used, s.Err
}

// StaticDisk is a DiskProbe returning a fixed value for every path.
type StaticDisk struct {
	Free uint64
	Err  error
}

// FreeBytes implements DiskProbe.
func (s StaticDisk) FreeBytes(string) (uint64, error) {
	return s.Free, s.Err
}
