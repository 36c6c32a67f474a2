package shell

import (
	"errors"
	"fmt"
)

const (
	ExitCodeOK      = 0
	ExitCodeFailure = 1
	ExitCodeUsage   = 2
	ExitCodeSpawn   = 3
	ExitCodeWait    = 4
)

type ExitError struct {
	ExitCode int
	Err      error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("exited with %d: %v", e.ExitCode, e.Err)
	}
	return fmt.Sprintf("exited with %d", e.ExitCode)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func NewExitError(exitCode int, err error) *ExitError {
	return &ExitError{ExitCode: exitCode, Err: err}
}

// ExitCode returns the exit code for err. Errors that are not an
// *ExitError map to ExitCodeFailure.
func ExitCode(err error) int {
	if err == nil {
		return ExitCodeOK
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode
	}

	return ExitCodeFailure
}
