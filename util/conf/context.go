package conf

import (
	"context"
	"errors"
)

type contextKey int

var configKey = contextKey(1)

var (
	ErrNoConfigInContext = errors.New("config not found in context")
	ErrInvalidConfig     = errors.New("invalid config in context")
)

// GetConfigFromContext returns the config of type C stored in ctx.
func GetConfigFromContext[C any](ctx context.Context) (C, error) {
	var c C

	switch config := ctx.Value(configKey).(type) {
	case nil:
		return c, ErrNoConfigInContext
	case C:
		return config, nil
	default:
		return c, ErrInvalidConfig
	}
}

func ContextWithConfig[C any](ctx context.Context, config C) context.Context {
	return context.WithValue(ctx, configKey, config)
}
