package pool

import (
	"log/slog"

	"github.com/gantryio/gantry/internal/adapter/transport"
	"github.com/gantryio/gantry/internal/core/constants"
	"github.com/gantryio/gantry/internal/core/ports"
)

// OutboundPipelineInitializer installs the origin-side handler chain on a
// freshly dialed channel. The idle-state handler is not installed here: a new
// connection is acquired immediately, and the pool installs the watchdog only
// when the connection is released back.
type OutboundPipelineInitializer struct {
	registry ports.MetricsRegistry
	logger   *slog.Logger
	origin   string
}

func NewOutboundPipelineInitializer(origin string, registry ports.MetricsRegistry, logger *slog.Logger) *OutboundPipelineInitializer {
	return &OutboundPipelineInitializer{origin: origin, registry: registry, logger: logger}
}

func (i *OutboundPipelineInitializer) Initialize(ch ports.Channel) {
	pipe := ch.Pipeline()
	pipe.AddLast(constants.HandlerOriginLogger, NewOriginLoggerHandler(i.logger))
	pipe.AddLast(constants.HandlerHTTPMetrics, NewHTTPMetricsHandler(i.registry, i.origin))
	pipe.AddLast(constants.HandlerHTTPLifecycle, transport.NewHTTPClientLifecycleHandler())
	pipe.AddLast(constants.HandlerConnectionPool, NewConnectionPoolHandler(i.logger))
}
