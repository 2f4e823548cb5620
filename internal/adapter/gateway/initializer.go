package gateway

import (
	"log/slog"
	"time"

	"github.com/gantryio/gantry/internal/adapter/codec"
	"github.com/gantryio/gantry/internal/adapter/transport"
	"github.com/gantryio/gantry/internal/core/constants"
	"github.com/gantryio/gantry/internal/core/domain"
	"github.com/gantryio/gantry/internal/core/ports"
	"github.com/gantryio/gantry/pkg/passport"
)

// FilterAdapter hands inbound request material to the host's filter pipeline.
// It consumes what it understands; the pipeline answers by injecting a
// ResponseMessage at the response writer.
type FilterAdapter struct {
	filters ports.FilterPipeline
}

func NewFilterAdapter(filters ports.FilterPipeline) *FilterAdapter {
	return &FilterAdapter{filters: filters}
}

func (a *FilterAdapter) OnRead(ctx ports.HandlerContext, msg any) {
	switch frame := msg.(type) {
	case *domain.RequestMessage:
		a.filters.ProcessRequest(ctx.Channel(), frame)
	case *codec.Content:
		a.filters.ProcessContent(ctx.Channel(), frame.Buf, frame.Last)
	default:
		ctx.FireRead(msg)
	}
}

// InjectResponse delivers the filter pipeline's response to the writer,
// bypassing the receiver and filter stages.
func InjectResponse(ch ports.Channel, resp *domain.ResponseMessage) {
	ch.Pipeline().FireReadAt(constants.HandlerResponseWriter, resp)
}

// InjectContent streams one response body chunk to the writer.
func InjectContent(ch ports.Channel, chunk *domain.BodyBuffer, last bool) {
	ch.Pipeline().FireReadAt(constants.HandlerResponseWriter, &codec.Content{Buf: chunk, Last: last})
}

// InboundPipelineInitializer builds the client-facing handler chain on each
// accepted channel. Handlers hold per-cycle state, so every channel gets
// fresh instances.
type InboundPipelineInitializer struct {
	filters     ports.FilterPipeline
	decorator   ports.SessionContextDecorator
	complete    ports.RequestCompleteHandler
	idleTimeout time.Duration
	logger      *slog.Logger
}

func NewInboundPipelineInitializer(
	filters ports.FilterPipeline,
	decorator ports.SessionContextDecorator,
	complete ports.RequestCompleteHandler,
	idleTimeout time.Duration,
	logger *slog.Logger,
) *InboundPipelineInitializer {
	return &InboundPipelineInitializer{
		filters:     filters,
		decorator:   decorator,
		complete:    complete,
		idleTimeout: idleTimeout,
		logger:      logger,
	}
}

func (i *InboundPipelineInitializer) Initialize(ch ports.Channel) {
	transport.PopulateAddressAttrs(ch)
	ch.SetAttr(constants.AttrPassport, passport.New())

	pipe := ch.Pipeline()
	pipe.AddLast(constants.HandlerIdleState, transport.NewIdleStateHandler(i.idleTimeout))
	pipe.AddLast(constants.HandlerHTTPLifecycle, transport.NewHTTPServerLifecycleHandler())
	pipe.AddLast(constants.HandlerRequestReceiver, NewClientRequestReceiver(i.decorator, i.logger))
	pipe.AddLast(constants.HandlerFilterAdapter, NewFilterAdapter(i.filters))
	pipe.AddLast(constants.HandlerResponseWriter, NewClientResponseWriter(i.complete, i.logger))
}
