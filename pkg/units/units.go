// Package units provides binary size unit multipliers (1024-based).
package units

// Binary size multipliers.
const (
	KiB = 1024
	MiB = 1024 * KiB
	GiB = 1024 * MiB
)

// ToMiB converts a byte count to whole mebibytes, rounding down.
func ToMiB(n uint64) uint64 {
	return n / MiB
}
