package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/factwatch/factwatch/app"
	"github.com/factwatch/factwatch/config"
	"github.com/factwatch/factwatch/internal/server"
	"github.com/factwatch/factwatch/internal/shell"
	"github.com/factwatch/factwatch/internal/watch"
	"github.com/factwatch/factwatch/internal/watch/supervisor"
	"github.com/factwatch/factwatch/util/conf"
	"github.com/factwatch/factwatch/util/logging"
)

const (
	appName      = "factwatch"
	appUsage     = "Run a game server and announce players joining and leaving it on a webhook."
	appArgsUsage = "<executable_path> <notification_endpoint> [child_args...]"
	envPrefix    = "FACTWATCH_"

	appDescription = `Exit codes: 0 on success, 1 on a config or startup failure, 2 if the
executable path or notification endpoint is missing, 3 if the server could
not be started and 4 if its exit status could not be determined.`
)

var errMissingArguments = errors.New("executable path and notification endpoint are required")

// cliMap maps flag names to config keys. Flags not listed map to their
// name with dashes replaced by underscores.
var cliMap = map[string]string{
	"sender":           "notify.sender",
	"delivery-timeout": "notify.timeout",
	"join-pattern":     "patterns.join",
	"leave-pattern":    "patterns.leave",
	"forward-signal":   "supervisor.forward_signal",
	"kill-after":       "supervisor.kill_after",
	"drain-timeout":    "supervisor.drain_timeout",
	"decode":           "pump.decode",
	"max-deliveries":   "dispatch.max_concurrent",
	"metrics-host":     "metrics.host",
	"metrics-port":     "metrics.port",
	"metrics-h2c":      "metrics.h2c",
}

func newRootApp() *cli.App {
	return &cli.App{
		Name:            appName,
		Usage:           appUsage,
		ArgsUsage:       appArgsUsage,
		Description:     appDescription,
		HideHelpCommand: true,
		Args:            true,
		Flags: []cli.Flag{
			// general flags
			&cli.PathFlag{
				Name:    "config",
				Usage:   "load config from a .json or .env file",
				Aliases: []string{"c"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "set the log level. Options: debug, info, warn, error.",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "set the log format. Options: production, development.",
			},
			// notification flags
			&cli.StringFlag{
				Name:     "sender",
				Usage:    "the name notifications are posted as.",
				Category: "notify",
			},
			&cli.DurationFlag{
				Name:     "delivery-timeout",
				Usage:    "the timeout of a single notification.",
				Category: "notify",
			},
			&cli.IntFlag{
				Name:     "max-deliveries",
				Usage:    "the maximum number of notifications sent concurrently.",
				Category: "notify",
			},
			&cli.StringFlag{
				Name:     "join-pattern",
				Usage:    "the expression matching join lines, the first group is the player name.",
				Category: "notify",
			},
			&cli.StringFlag{
				Name:     "leave-pattern",
				Usage:    "the expression matching leave lines, the first group is the player name.",
				Category: "notify",
			},
			// server flags
			&cli.BoolFlag{
				Name:     "forward-signal",
				Usage:    "send an interrupt to the server when factwatch is interrupted. Not supported on windows.",
				Category: "server",
			},
			&cli.DurationFlag{
				Name:     "kill-after",
				Usage:    "kill the server if it did not stop this long after an interrupt. 0 waits forever.",
				Category: "server",
			},
			&cli.DurationFlag{
				Name:     "drain-timeout",
				Usage:    "how long to wait for remaining output after the server exited.",
				Category: "server",
			},
			&cli.StringFlag{
				Name:     "decode",
				Usage:    "how to handle output that is not valid UTF-8. Options: skip, strict.",
				Category: "server",
			},
			// metrics flags
			&cli.StringFlag{
				Name:     "metrics-host",
				Usage:    "the interface to serve metrics on.",
				Category: "metrics",
			},
			&cli.IntFlag{
				Name:     "metrics-port",
				Usage:    "the port to serve metrics on. 0 disables metrics.",
				Category: "metrics",
			},
			&cli.BoolFlag{
				Name:     "metrics-h2c",
				Usage:    "serve metrics over HTTP/2 cleartext.",
				Category: "metrics",
			},
		},
		Before: before,
		Action: watchAction,
		After: func(ctx *cli.Context) error {
			// Before may have failed before the logger was created
			if log, err := logging.LoggerFromContext(ctx.Context); err == nil {
				log.Sync()
			}

			return nil
		},
	}
}

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:               "version",
		Usage:              "print the version",
		DisableDefaultText: true,
	}
}

type ExecuteParams struct {
	Version  string
	Compiled time.Time
}

func Execute(params ExecuteParams) int {
	rootApp := newRootApp()
	rootApp.Version = params.Version
	rootApp.Compiled = params.Compiled

	return run(context.Background(), rootApp, os.Args)
}

// run runs rootApp and returns the exit code of the process.
func run(ctx context.Context, rootApp *cli.App, args []string) int {
	err := rootApp.RunContext(ctx, args)

	// if app exited without error, return
	if err == nil {
		return shell.ExitCodeOK
	}

	errWriter := rootApp.ErrWriter
	if errWriter == nil {
		errWriter = os.Stderr
	}

	fmt.Fprintf(errWriter, "error: %s\n", err.Error())

	return shell.ExitCode(err)
}

func before(ctx *cli.Context) error {
	// bootstrap logger for config errors
	bootstrap, err := logging.New(logging.Options{
		Level:  ctx.String("log-level"),
		Format: ctx.String("log-format"),
		Name:   appName,
	})
	if err != nil {
		return err
	}

	// parse config using defaults, file, env and flags
	cfg, err := conf.Parse[config.Config](conf.ParseOptions{
		Cli:       ctx,
		CliMap:    cliMap,
		Defaults:  config.DefaultConfig,
		EnvPrefix: envPrefix,
		FileName:  ctx.Path("config"),
		Log:       bootstrap,
	})
	if err != nil {
		return err
	}

	// create the logger, the config may change level and format
	log, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Name:   appName,
	})
	if err != nil {
		return err
	}

	// inject logger and config into cli context
	ctx.Context = logging.ContextWithLogger(ctx.Context, log)
	ctx.Context = conf.ContextWithConfig(ctx.Context, cfg)

	return nil
}

func watchAction(ctx *cli.Context) error {
	if ctx.NArg() < 2 {
		_ = cli.ShowAppHelp(ctx)
		return shell.NewExitError(shell.ExitCodeUsage, errMissingArguments)
	}

	cfg, err := conf.GetConfigFromContext[config.Config](ctx.Context)
	if err != nil {
		return err
	}

	args := ctx.Args().Slice()

	cfg.Supervisor.Process.Cmd = args[0]
	cfg.Notify.Endpoint = args[1]
	cfg.Supervisor.Process.Args = args[2:]

	ctx.Context = conf.ContextWithConfig(ctx.Context, cfg)

	s, err := app.New(ctx)
	if err != nil {
		return err
	}

	options := []fx.Option{
		watch.Module(cfg, echoWriter(ctx)),
	}

	if cfg.MetricsEnabled() {
		options = append(options, server.Module(cfg.Metrics))
	}

	return exitError(ctx, s.Run(ctx.Context, options...))
}

func echoWriter(ctx *cli.Context) io.Writer {
	if ctx.App.Writer != nil {
		return ctx.App.Writer
	}

	return os.Stdout
}

// exitError attaches the exit code to supervisor failures and reports
// them to sentry.
func exitError(ctx *cli.Context, err error) error {
	if err == nil {
		return nil
	}

	var (
		spawnErr *supervisor.SpawnError
		waitErr  *supervisor.WaitError
	)

	switch {
	case errors.As(err, &spawnErr):
		report(ctx, err)
		return shell.NewExitError(shell.ExitCodeSpawn, err)
	case errors.As(err, &waitErr):
		report(ctx, err)
		return shell.NewExitError(shell.ExitCodeWait, err)
	}

	return err
}

func report(ctx *cli.Context, err error) {
	eventID := sentry.CaptureException(err)
	if eventID == nil {
		return
	}

	if log, lerr := logging.LoggerFromContext(ctx.Context); lerr == nil {
		log.Debug("reported error", zap.String("event_id", string(*eventID)))
	}
}
