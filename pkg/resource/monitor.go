// Package resource guards a run against memory and disk exhaustion.
//
// The Monitor compares OS-level counters against fixed floors before any
// tiling decision and reports memory pressure while tiles are in flight.
// Counters are read through the MemoryProbe and DiskProbe interfaces so that
// callers (and tests) can substitute deterministic values.
package resource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Sumatoshi-tech/mipforge/pkg/units"
)

// Default floors and high-water mark.
const (
	DefaultMinAvailableMemory = 1 * units.GiB
	DefaultMinFreeDisk        = 2 * units.GiB
	DefaultPressurePercent    = 85.0
)

var (
	// ErrResourceExhausted is returned when available memory or free disk
	// space is below its configured floor.
	ErrResourceExhausted = errors.New("insufficient resources")

	// ErrProbeUnavailable is returned by probes on platforms where the
	// counter cannot be read.
	ErrProbeUnavailable = errors.New("resource probe unavailable on this platform")
)

// MemoryProbe reads system memory counters.
type MemoryProbe interface {
	// AvailableBytes returns the memory available to new allocations.
	AvailableBytes() (uint64, error)

	// UsedPercent returns the share of physical memory in use, 0-100.
	UsedPercent() (float64, error)
}

// DiskProbe reads free space of the filesystem holding a path.
type DiskProbe interface {
	FreeBytes(path string) (uint64, error)
}

// Limits holds the floors enforced by CheckResources and the pressure mark.
type Limits struct {
	MinAvailableMemory uint64
	MinFreeDisk        uint64
	PressurePercent    float64

	// DiskPath selects the filesystem that is checked for free space.
	DiskPath string
}

// DefaultLimits returns the stock floors with the disk check rooted at path.
func DefaultLimits(path string) Limits {
	return Limits{
		MinAvailableMemory: DefaultMinAvailableMemory,
		MinFreeDisk:        DefaultMinFreeDisk,
		PressurePercent:    DefaultPressurePercent,
		DiskPath:           path,
	}
}

// Snapshot captures the counters reported in diagnostics. Fields are zero
// when the corresponding probe failed.
type Snapshot struct {
	AvailableMemory uint64
	UsedPercent     float64
	FreeDisk        uint64
}

// Monitor checks resource floors and memory pressure.
type Monitor struct {
	mem    MemoryProbe
	disk   DiskProbe
	limits Limits
	logger *slog.Logger
}

// NewMonitor creates a Monitor. Nil probes select the platform defaults.
func NewMonitor(limits Limits, mem MemoryProbe, disk DiskProbe, logger *slog.Logger) *Monitor {
	if mem == nil {
		mem = SystemMemory{}
	}

	if disk == nil {
		disk = SystemDisk{}
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Monitor{mem: mem, disk: disk, limits: limits, logger: logger}
}

// Limits returns the limits the monitor enforces.
func (m *Monitor) Limits() Limits {
	return m.limits
}

// CheckResources fails with ErrResourceExhausted when available memory or
// free disk space is below its floor. Counters that cannot be read on this
// platform are skipped with a warning.
func (m *Monitor) CheckResources(ctx context.Context) error {
	var short []string

	avail, memErr := m.mem.AvailableBytes()

	switch {
	case errors.Is(memErr, ErrProbeUnavailable):
		m.logger.WarnContext(ctx, "resource: memory probe unavailable, skipping memory floor")
	case memErr != nil:
		return fmt.Errorf("read available memory: %w", memErr)
	case avail < m.limits.MinAvailableMemory:
		short = append(short, "memory")
	}

	free, diskErr := m.disk.FreeBytes(m.limits.DiskPath)

	switch {
	case errors.Is(diskErr, ErrProbeUnavailable):
		m.logger.WarnContext(ctx, "resource: disk probe unavailable, skipping disk floor")
	case diskErr != nil:
		return fmt.Errorf("read free disk space of %s: %w", m.limits.DiskPath, diskErr)
	case free < m.limits.MinFreeDisk:
		short = append(short, "disk")
	}

	if len(short) > 0 {
		m.logger.ErrorContext(ctx, "resource: floor breached",
			"short", short,
			"available_mib", units.ToMiB(avail),
			"free_disk_mib", units.ToMiB(free))

		return fmt.Errorf("%w: %s", ErrResourceExhausted, strings.Join(short, ", "))
	}

	return nil
}

// MemoryPressure reports whether used memory exceeds the high-water mark.
// An unreadable counter is reported as no pressure.
func (m *Monitor) MemoryPressure() bool {
	used, err := m.mem.UsedPercent()
	if err != nil {
		return false
	}

	return used > m.limits.PressurePercent
}

// AvailableMemory returns the current available-memory estimate, or 0 when
// it cannot be read.
func (m *Monitor) AvailableMemory() uint64 {
	avail, err := m.mem.AvailableBytes()
	if err != nil {
		return 0
	}

	return avail
}

// Snapshot reads all counters, ignoring probe errors.
func (m *Monitor) Snapshot() Snapshot {
	var s Snapshot

	if avail, err := m.mem.AvailableBytes(); err == nil {
		s.AvailableMemory = avail
	}

	if used, err := m.mem.UsedPercent(); err == nil {
		s.UsedPercent = used
	}

	if free, err := m.disk.FreeBytes(m.limits.DiskPath); err == nil {
		s.FreeDisk = free
	}

	return s
}
