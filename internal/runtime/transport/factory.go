package transport

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/drblury/protogate/internal/runtime/config"
	perrors "github.com/drblury/protogate/internal/runtime/errors"
	bus "github.com/drblury/protogate/transport"

	// Registers every built-in transport.
	_ "github.com/drblury/protogate/transport/transports"
)

// Transport combines a publisher and subscriber pair produced by a factory.
type Transport = bus.Transport

// Factory abstracts how the gateway initialises its bus transport.
type Factory interface {
	Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error)

func (f FactoryFunc) Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error) {
	return f(ctx, conf, logger)
}

// DefaultFactory returns the factory backed by the modular transport registry.
func DefaultFactory() Factory {
	return defaultFactory{}
}

type defaultFactory struct{}

func (defaultFactory) Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error) {
	if conf == nil {
		return Transport{}, perrors.ErrConfigRequired
	}
	return bus.Build(ctx, conf, logger)
}
