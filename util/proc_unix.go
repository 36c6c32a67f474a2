//go:build !windows

package util

import (
	"errors"
	"syscall"
)

// IsProcessAlive reports whether a process with the given pid exists.
// A process owned by another user counts as alive.
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}

	return errors.Is(err, syscall.EPERM)
}
