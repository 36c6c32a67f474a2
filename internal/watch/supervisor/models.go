package supervisor

import (
	"fmt"
	"time"

	"github.com/factwatch/factwatch/internal/watch/process"
)

type Config struct {
	// Process describes the server process to start
	Process process.StartConfig `conf:",squash"`

	// ForwardSignal relays an interrupt to the server process instead of
	// relying on it receiving the signal on its own. Not supported on windows,
	// where os.Interrupt cannot be sent to another process.
	ForwardSignal bool `conf:"forward_signal"`

	// KillAfter is the grace period after an interrupt before the server
	// process is killed. Zero waits for the process indefinitely.
	KillAfter time.Duration `conf:"kill_after"`

	// DrainTimeout is how long Run waits for the output of an exited
	// server process to be consumed
	DrainTimeout time.Duration `conf:"drain_timeout"`
}

var DefaultConfig = Config{
	DrainTimeout: 2 * time.Second,
}

// SpawnError reports that the server process could not be started.
type SpawnError struct {
	Cmd string
	Err error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %q: %v", e.Cmd, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// WaitError reports that the exit status of the server process
// could not be determined.
type WaitError struct {
	Err error
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("failed to wait for process: %v", e.Err)
}

func (e *WaitError) Unwrap() error {
	return e.Err
}
