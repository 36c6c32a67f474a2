package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"

	"github.com/factwatch/factwatch/config"
	"github.com/factwatch/factwatch/internal/metrics"
	"github.com/factwatch/factwatch/internal/shell"
	"github.com/factwatch/factwatch/util/conf"
	"github.com/factwatch/factwatch/util/logging"
)

func New(ctx *cli.Context) (*shell.Shell, error) {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return nil, err
	}

	config, err := conf.GetConfigFromContext[config.Config](ctx.Context)
	if err != nil {
		return nil, err
	}

	sharedModule := fx.Module(
		"shared",
		// provide global config
		fx.Supply(config),
		// provide metrics registry
		fx.Provide(NewRegistry),
		// provide metrics
		fx.Provide(func(reg *prometheus.Registry) *metrics.Metrics {
			return metrics.New(reg)
		}),
	)

	return shell.New(log, sharedModule), nil
}

// NewRegistry creates a registry with the runtime collectors of the
// supervisor process itself.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}
