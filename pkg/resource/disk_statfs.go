//go:build linux || darwin || freebsd

package resource

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// SystemDisk reads free space with statfs(2).
type SystemDisk struct{}

// FreeBytes implements DiskProbe. It reports space available to
// unprivileged users.
func (SystemDisk) FreeBytes(path string) (uint64, error) {
	var st unix.Statfs_t

	err := unix.Statfs(path, &st)
	if err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}

	//nolint:gosec // block size is always positive.
	return uint64(st.Bavail) * uint64(st.Bsize), nil
}
