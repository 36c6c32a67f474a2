package logging

import (
	"context"
	"errors"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

type contextKey int

var loggerKey = contextKey(0)

var ErrNoLoggerInContext = errors.New("no logger in context")

type Options struct {
	// Level is the minimum level to log. Options: debug, info, warn, error.
	Level string

	// Format is the log format. Options: production (json), development.
	Format string

	// Name is added to every record as the "app" field
	Name string
}

// New builds a logger for opts. Unknown levels fall back to info,
// unknown formats to production.
func New(opts Options) (*zap.Logger, error) {
	var config zap.Config
	if opts.Format == "development" {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
	}

	if opts.Name != "" {
		config.InitialFields = map[string]any{
			"app": opts.Name,
		}
	}

	config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	if atom, err := zap.ParseAtomicLevel(opts.Level); err == nil && opts.Level != "" {
		config.Level = atom
	}

	return config.Build()
}

func ContextWithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

func LoggerFromContext(ctx context.Context) (*zap.Logger, error) {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger, nil
	}

	return nil, ErrNoLoggerInContext
}

// DecorateLogger names the logger of an fx module.
func DecorateLogger(name string) fx.Option {
	return fx.Decorate(func(log *zap.Logger) *zap.Logger {
		return log.Named(name)
	})
}
