package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Process is a running child process whose standard output is
// piped to the caller. Standard input and error are inherited.
type Process struct {
	pid    int
	cmd    *exec.Cmd
	stdout *os.File

	termination chan struct{}
	state       *os.ProcessState
	waitErr     error

	log *zap.Logger
}

// Start spawns the process described by config.
func Start(config StartConfig, log *zap.Logger) (*Process, error) {
	cmd := exec.Command(config.Cmd, config.Args...)

	if config.Env != nil {
		env := os.Environ()
		for k, v := range config.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		cmd.Env = env
	}

	if config.Cwd != "" {
		cmd.Dir = config.Cwd
	}

	// exec.Cmd.StdoutPipe is closed by Wait, which would race the
	// reader. A plain os pipe stays open until the reader closes it.
	stdout, stdoutWriter, err := os.Pipe()
	if err != nil {
		return nil, err
	}

	cmd.Stdin = os.Stdin
	cmd.Stdout = stdoutWriter
	cmd.Stderr = os.Stderr

	err = cmd.Start()

	// the child holds its own copy of the write end
	stdoutWriter.Close()

	if err != nil {
		stdout.Close()
		return nil, err
	}

	process := &Process{
		pid:         cmd.Process.Pid,
		cmd:         cmd,
		stdout:      stdout,
		termination: make(chan struct{}),
		log:         log.Named("process").With(zap.Int("pid", cmd.Process.Pid)),
	}

	go func() {
		// block until the process exits
		err := cmd.Wait()

		process.state = cmd.ProcessState
		process.waitErr = err

		close(process.termination)
	}()

	return process, nil
}

func (p *Process) Pid() int {
	return p.pid
}

// Stdout returns the read end of the process's standard output.
// The caller owns it and is responsible for closing it.
func (p *Process) Stdout() io.ReadCloser {
	return p.stdout
}

// Done is closed once the process exited.
func (p *Process) Done() <-chan struct{} {
	return p.termination
}

// Wait blocks until the process exits or ctx is done. It may be called
// any number of times.
func (p *Process) Wait(ctx context.Context) (ExitEvent, error) {
	select {
	case <-ctx.Done():
		return ExitEvent{}, ctx.Err()
	case <-p.termination:
		return getExitEvent(p.state, p.waitErr)
	}
}

// WaitFor waits like Wait, but gives up after timeout with
// ErrWaitTimeout. A timeout <= 0 waits indefinitely.
func (p *Process) WaitFor(ctx context.Context, timeout time.Duration) (ExitEvent, error) {
	if timeout <= 0 {
		return p.Wait(ctx)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ExitEvent{}, ctx.Err()
	case <-p.termination:
		return getExitEvent(p.state, p.waitErr)
	case <-timer.C:
		return ExitEvent{}, ErrWaitTimeout
	}
}

// Signal sends sig to the process. Signalling an exited process is
// not an error.
func (p *Process) Signal(sig os.Signal) error {
	select {
	case <-p.termination:
		p.log.Debug("process already terminated")
		return nil
	default:
	}

	p.log.Info("sending signal", zap.Stringer("signal", sig))

	if err := p.cmd.Process.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}

	return nil
}

// Kill forcibly terminates the process.
func (p *Process) Kill() error {
	return p.Signal(os.Kill)
}

// MARK: - Helpers

func getExitEvent(state *os.ProcessState, err error) (ExitEvent, error) {
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		// the process could not be waited for, its status is unknown
		return ExitEvent{}, err
	}

	if state == nil {
		return ExitEvent{}, errors.New("missing process state")
	}

	event := ExitEvent{Status: state.String()}

	if status, ok := state.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		// the process was terminated by a signal
		signo := int(status.Signal())
		event.Signal = &signo
		return event, nil
	}

	code := state.ExitCode()
	event.Code = &code

	return event, nil
}
