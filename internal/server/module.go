package server

import (
	"go.uber.org/fx"

	"github.com/factwatch/factwatch/util/logging"
)

// Module serves the metrics and health endpoints. It expects a
// *prometheus.Registry in the graph.
func Module(config HttpConfig) fx.Option {
	return fx.Module("server",
		// name the logger
		logging.DecorateLogger("server"),
		// provide config
		fx.Supply(config),
		// provide handlers
		fx.Provide(NewMetricsHandler, NewHealthHandler),
		// provide server
		fx.Provide(NewLifecycleServer),
		// invoke server
		fx.Invoke(func(*HttpServer) {}),
	)
}
