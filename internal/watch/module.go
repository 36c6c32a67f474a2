package watch

import (
	"context"
	"io"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/factwatch/factwatch/config"
	"github.com/factwatch/factwatch/internal/metrics"
	"github.com/factwatch/factwatch/internal/shell"
	"github.com/factwatch/factwatch/internal/watch/dispatcher"
	"github.com/factwatch/factwatch/internal/watch/event"
	"github.com/factwatch/factwatch/internal/watch/interrupt"
	"github.com/factwatch/factwatch/internal/watch/notify"
	"github.com/factwatch/factwatch/internal/watch/pump"
	"github.com/factwatch/factwatch/internal/watch/supervisor"
	"github.com/factwatch/factwatch/util/logging"
)

// Module wires the watcher for cfg. Server output is echoed to echo.
// The supervisor is provided as the shell.Runner.
func Module(cfg config.Config, echo io.Writer) fx.Option {
	return fx.Module(
		"watch",
		// rename logger for module
		logging.DecorateLogger("watch"),
		// provide component configs
		fx.Supply(
			cfg.Patterns,
			cfg.Notify,
			cfg.Dispatch,
			cfg.Pump,
			cfg.Supervisor,
		),
		// provide the echo target
		fx.Supply(fx.Annotate(echo, fx.As(new(io.Writer)))),
		// provide components
		fx.Provide(
			event.NewClassifier,
			fx.Annotate(notify.NewWebhookClient, fx.As(new(notify.Deliverer))),
			newNotifier,
			newDispatcher,
			newPump,
			newToken,
			fx.Annotate(newSupervisor, fx.As(new(shell.Runner))),
		),
	)
}

type notifierParams struct {
	fx.In

	Config    notify.Config
	Deliverer notify.Deliverer
	Metrics   *metrics.Metrics `optional:"true"`
	Log       *zap.Logger
}

func newNotifier(params notifierParams) *notify.Notifier {
	return notify.NewNotifier(notify.Params{
		Config:    params.Config,
		Deliverer: params.Deliverer,
		Metrics:   params.Metrics,
		Log:       params.Log,
	})
}

type dispatcherParams struct {
	fx.In

	Context  context.Context
	Config   dispatcher.Config
	Notifier *notify.Notifier
	Log      *zap.Logger
}

func newDispatcher(params dispatcherParams, lc fx.Lifecycle) (*dispatcher.Dispatcher, error) {
	d, err := dispatcher.New(dispatcher.Params{
		Context: params.Context,
		Config:  params.Config,
		Handler: params.Notifier.Notify,
		Log:     params.Log,
	})
	if err != nil {
		return nil, err
	}

	// deliver what is in flight before the app exits
	lc.Append(fx.StopHook(d.Shutdown))

	return d, nil
}

type pumpParams struct {
	fx.In

	Config     pump.Config
	Echo       io.Writer
	Classifier *event.Classifier
	Dispatcher *dispatcher.Dispatcher
	Metrics    *metrics.Metrics `optional:"true"`
	Log        *zap.Logger
}

func newPump(params pumpParams) (*pump.Pump, error) {
	return pump.New(pump.Params{
		Config:     params.Config,
		Echo:       params.Echo,
		Classifier: params.Classifier,
		Dispatcher: params.Dispatcher,
		Metrics:    params.Metrics,
		Log:        params.Log,
	})
}

func newToken(log *zap.Logger, lc fx.Lifecycle) *interrupt.Token {
	token := interrupt.NewToken()

	var stop func()

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			stop = interrupt.Watch(token, log)
			return nil
		},
		OnStop: func(context.Context) error {
			if stop != nil {
				stop()
			}
			return nil
		},
	})

	return token
}

type supervisorParams struct {
	fx.In

	Config  supervisor.Config
	Pump    *pump.Pump
	Token   *interrupt.Token
	Metrics *metrics.Metrics `optional:"true"`
	Log     *zap.Logger
}

func newSupervisor(params supervisorParams) *supervisor.Supervisor {
	return supervisor.New(supervisor.Params{
		Config:  params.Config,
		Pump:    params.Pump,
		Token:   params.Token,
		Metrics: params.Metrics,
		Log:     params.Log,
	})
}
