package config

import (
	"github.com/factwatch/factwatch/internal/server"
	"github.com/factwatch/factwatch/internal/watch/dispatcher"
	"github.com/factwatch/factwatch/internal/watch/event"
	"github.com/factwatch/factwatch/internal/watch/notify"
	"github.com/factwatch/factwatch/internal/watch/pump"
	"github.com/factwatch/factwatch/internal/watch/supervisor"
	"github.com/factwatch/factwatch/util/conf"
)

type Config struct {
	// LogLevel is the log level for the application
	LogLevel string `conf:"log_level"`

	// LogFormat is the log format for the application
	LogFormat string `conf:"log_format"`

	// Supervisor configures the server process and its shutdown
	Supervisor supervisor.Config `conf:"supervisor"`

	// Notify configures the webhook notifications
	Notify notify.Config `conf:"notify"`

	// Dispatch configures the concurrency of notifications
	Dispatch dispatcher.Config `conf:"dispatch"`

	// Patterns are the expressions used to detect events
	Patterns event.Patterns `conf:"patterns"`

	// Pump configures how the server output is read
	Pump pump.Config `conf:"pump"`

	// Metrics configures the metrics endpoint. A zero port disables it.
	Metrics server.HttpConfig `conf:"metrics"`
}

// MetricsEnabled reports whether the metrics endpoint should be served.
func (c Config) MetricsEnabled() bool {
	return c.Metrics.Port > 0
}

var DefaultConfig = conf.MergeDefaults(
	conf.DefaultConfig{
		"log_level":  "info",
		"log_format": "production",
	},
	map[string]conf.DefaultConfig{
		"supervisor": {
			"forward_signal": supervisor.DefaultConfig.ForwardSignal,
			"kill_after":     supervisor.DefaultConfig.KillAfter,
			"drain_timeout":  supervisor.DefaultConfig.DrainTimeout,
		},
		"notify": {
			"sender":        notify.DefaultConfig.Sender,
			"join_message":  notify.DefaultConfig.JoinMessage,
			"leave_message": notify.DefaultConfig.LeaveMessage,
			"timeout":       notify.DefaultConfig.Timeout,
		},
		"dispatch": {
			"max_concurrent": dispatcher.DefaultConfig.MaxConcurrent,
		},
		"patterns": {
			"join":  event.DefaultPatterns.Join,
			"leave": event.DefaultPatterns.Leave,
		},
		"pump": {
			"decode": string(pump.DefaultConfig.Decode),
		},
		"metrics": {
			"host": "127.0.0.1",
			"port": 0,
			"h2c":  false,
		},
	},
)
