package process

import (
	"errors"
)

var ErrWaitTimeout = errors.New("wait timeout")

type StartConfig struct {
	// Cmd is the path or name of the binary to execute
	Cmd string `conf:"command"`

	// Cwd is the working directory in which
	// the binary should be executed
	Cwd string `conf:"cwd"`

	// Args is the list of arguments to pass to the command
	Args []string `conf:"args"`

	// Env is a map of environment variables added
	// to the environment of the supervisor
	Env map[string]string `conf:"env"`
}

type ExitEvent struct {
	// Code is the exit code of the process
	Code *int

	// Signal is the signal that caused the process to exit
	Signal *int

	// Status is the raw exit status as reported by the os
	Status string
}

func (e ExitEvent) String() string {
	return e.Status
}
