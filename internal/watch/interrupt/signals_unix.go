//go:build !windows

package interrupt

import (
	"os"
	"syscall"
)

// DefaultSignals are the signals requesting a graceful stop: Ctrl+C and
// the SIGTERM sent by process managers and container runtimes.
var DefaultSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
