package supervisor

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/factwatch/factwatch/internal/metrics"
	"github.com/factwatch/factwatch/internal/watch/interrupt"
	"github.com/factwatch/factwatch/internal/watch/process"
	"github.com/factwatch/factwatch/internal/watch/pump"
	"go.uber.org/zap"
)

type Params struct {
	// Config is the supervisor config
	Config Config

	// Pump consumes the output of the server process
	Pump *pump.Pump

	// Token requests the server process to be stopped
	Token *interrupt.Token

	// Metrics records whether the server is up, may be nil
	Metrics *metrics.Metrics

	// Log is the logger to use for the supervisor
	Log *zap.Logger
}

// Supervisor runs the server process, pumps its output and waits for it
// to exit, either on its own or after an interrupt.
type Supervisor struct {
	config  Config
	pump    *pump.Pump
	token   *interrupt.Token
	metrics *metrics.Metrics

	taskLock sync.Mutex
	task     *pump.Task

	log *zap.Logger
}

func New(params Params) *Supervisor {
	if params.Token == nil {
		params.Token = interrupt.NewToken()
	}

	return &Supervisor{
		config:  params.Config,
		pump:    params.Pump,
		token:   params.Token,
		metrics: params.Metrics,
		log:     params.Log.Named("supervisor"),
	}
}

// Run supervises the server process and then gives its output up to
// Config.DrainTimeout to be consumed.
func (s *Supervisor) Run(ctx context.Context) error {
	_, err := s.Supervise(ctx)
	if err != nil {
		return err
	}

	task := s.PumpTask()
	if task == nil || s.config.DrainTimeout <= 0 {
		return nil
	}

	drainCtx, cancel := context.WithTimeout(ctx, s.config.DrainTimeout)
	defer cancel()

	if err := task.Wait(drainCtx); errors.Is(err, context.DeadlineExceeded) {
		s.log.Warn("output not drained", zap.Duration("timeout", s.config.DrainTimeout))
	}

	return nil
}

// Supervise starts the server process and blocks until it exited.
// The output pump is started but not waited for, see PumpTask.
func (s *Supervisor) Supervise(ctx context.Context) (process.ExitEvent, error) {
	config := s.config.Process

	log := s.log.With(
		zap.String("command", config.Cmd),
		zap.Strings("args", config.Args),
	)

	log.Debug("starting server process")

	proc, err := process.Start(config, s.log)
	if err != nil {
		log.Error("failed to start server process", zap.Error(err))
		return process.ExitEvent{}, &SpawnError{Cmd: config.Cmd, Err: err}
	}

	s.metrics.SetServerUp(true)
	defer s.metrics.SetServerUp(false)

	log = log.With(zap.Int("pid", proc.Pid()))
	log.Info("started server process")

	s.setPumpTask(s.pump.Start(proc.Stdout()))

	var evt process.ExitEvent

	select {
	case <-s.token.Done():
		log.Info("received interrupt, waiting for server to stop")
		evt, err = s.stop(ctx, proc, log)
	case <-proc.Done():
		evt, err = proc.Wait(ctx)
	}

	if err != nil {
		log.Error("failed to wait for server process", zap.Error(err))
		return evt, &WaitError{Err: err}
	}

	log.Info("server exited", zap.Stringer("status", evt))

	return evt, nil
}

func (s *Supervisor) stop(
	ctx context.Context,
	proc *process.Process,
	log *zap.Logger,
) (process.ExitEvent, error) {
	if s.config.ForwardSignal {
		if err := proc.Signal(os.Interrupt); err != nil {
			log.Error("failed to forward interrupt", zap.Error(err))
		}
	}

	evt, err := proc.WaitFor(ctx, s.config.KillAfter)
	if !errors.Is(err, process.ErrWaitTimeout) {
		return evt, err
	}

	log.Warn("server did not stop in time, killing it", zap.Duration("grace_period", s.config.KillAfter))

	if err := proc.Kill(); err != nil {
		log.Error("failed to kill server process", zap.Error(err))
	}

	return proc.Wait(ctx)
}

// PumpTask returns the output pump of the last supervised process.
func (s *Supervisor) PumpTask() *pump.Task {
	s.taskLock.Lock()
	defer s.taskLock.Unlock()

	return s.task
}

func (s *Supervisor) setPumpTask(task *pump.Task) {
	s.taskLock.Lock()
	defer s.taskLock.Unlock()

	s.task = task
}
