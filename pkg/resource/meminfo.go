package resource

import (
	"bytes"
	"errors"
	"strconv"
)

const (
	procMemInfoPath = "/proc/meminfo"

	memTotalPrefix     = "MemTotal:"
	memAvailablePrefix = "MemAvailable:"
	memFreePrefix      = "MemFree:"
	memInfoUnitKiB     = "kB"

	// minMemInfoFields is the minimum number of fields in a /proc/meminfo
	// line ("MemTotal: 16384 kB" has 3).
	minMemInfoFields = 2

	kibibyte       = uint64(1024)
	percentDivisor = 100.0
)

var errMemInfoIncomplete = errors.New("meminfo: MemTotal or MemAvailable missing")

// memInfo holds the /proc/meminfo counters used by the monitor, in bytes.
type memInfo struct {
	Total     uint64
	Available uint64
}

// usedPercent mirrors the usual (total-available)/total definition.
func (mi memInfo) usedPercent() float64 {
	if mi.Total == 0 {
		return 0
	}

	used := mi.Total - min(mi.Available, mi.Total)

	return float64(used) * percentDivisor / float64(mi.Total)
}

// parseMemInfo extracts MemTotal and MemAvailable. Kernels older than 3.14
// lack MemAvailable; MemFree is used instead.
func parseMemInfo(data []byte) (memInfo, error) {
	var (
		mi                   memInfo
		haveTotal, haveAvail bool
		free                 uint64
		haveFree             bool
	)

	for line := range bytes.SplitSeq(data, []byte{'\n'}) {
		switch {
		case bytes.HasPrefix(line, []byte(memTotalPrefix)):
			mi.Total, haveTotal = parseMemInfoValue(line)
		case bytes.HasPrefix(line, []byte(memAvailablePrefix)):
			mi.Available, haveAvail = parseMemInfoValue(line)
		case bytes.HasPrefix(line, []byte(memFreePrefix)):
			free, haveFree = parseMemInfoValue(line)
		}
	}

	if !haveAvail && haveFree {
		mi.Available, haveAvail = free, true
	}

	if !haveTotal || !haveAvail {
		return memInfo{}, errMemInfoIncomplete
	}

	return mi, nil
}

func parseMemInfoValue(line []byte) (uint64, bool) {
	fields := bytes.Fields(line)
	if len(fields) < minMemInfoFields {
		return 0, false
	}

	value, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		return 0, false
	}

	unit := memInfoUnitKiB
	if len(fields) > minMemInfoFields {
		unit = string(fields[2])
	}

	if unit == memInfoUnitKiB {
		return value * kibibyte, true
	}

	return value, true
}
