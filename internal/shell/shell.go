package shell

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Runner is the foreground task of a shell. The shell returns once it
// completes.
type Runner interface {
	Run(ctx context.Context) error
}

type Shell struct {
	log     *zap.Logger
	options []fx.Option
}

func New(log *zap.Logger, options ...fx.Option) *Shell {
	return &Shell{
		log:     log,
		options: options,
	}
}

// Run starts the application graph, runs its Runner to completion and
// stops the graph again. Stop hooks run even if the runner failed.
func (s *Shell) Run(ctx context.Context, options ...fx.Option) error {
	// 0. after run ends, flush the logger
	defer s.log.Sync()

	// 1. create execution context
	appCtx, cancelApp := context.WithCancel(ctx)
	defer cancelApp()

	// 2. create fx application with app context, resolve the runner
	var runner Runner
	fxApp := s.createFxApp(appCtx, append(options, fx.Populate(&runner))...)
	if err := fxApp.Err(); err != nil {
		s.log.Error("failed to build application", zap.Error(err))
		return NewExitError(ExitCodeFailure, err)
	}

	// 3. start the application, exit on error
	startCtx, cancelStart := context.WithTimeout(ctx, fxApp.StartTimeout())
	defer cancelStart()

	if err := fxApp.Start(startCtx); err != nil {
		s.log.Error("failed to start application", zap.Error(err))
		return NewExitError(ExitCodeFailure, err)
	}

	// 4. run in the foreground until the runner is done
	runErr := runner.Run(appCtx)

	// 5. gracefully shut down, even if ctx was cancelled
	stopCtx, cancelStop := context.WithTimeout(context.WithoutCancel(ctx), fxApp.StopTimeout())
	defer cancelStop()

	stopErr := fxApp.Stop(stopCtx)
	if stopErr != nil {
		s.log.Warn("failed to stop application", zap.Error(stopErr))
	}

	if runErr != nil {
		return runErr
	}

	if stopErr != nil {
		return NewExitError(ExitCodeFailure, fmt.Errorf("stop: %w", stopErr))
	}

	return nil
}

func (s *Shell) createFxApp(ctx context.Context, options ...fx.Option) *fx.App {
	return fx.New(
		// inject global execution context
		fx.Supply(fx.Annotate(ctx, fx.As(new(context.Context)))),

		// inject the logger
		fx.Supply(s.log),

		// use the logger also for fx' logs
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: s.log.Named("fx")}
		}),

		// shared options
		fx.Options(s.options...),

		// run options
		fx.Options(options...),
	)
}
