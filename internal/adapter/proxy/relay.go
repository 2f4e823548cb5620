package proxy

import (
	"log/slog"
	"time"

	"github.com/gantryio/gantry/internal/adapter/codec"
	"github.com/gantryio/gantry/internal/adapter/gateway"
	"github.com/gantryio/gantry/internal/adapter/transport"
	"github.com/gantryio/gantry/internal/core/constants"
	"github.com/gantryio/gantry/internal/core/domain"
	"github.com/gantryio/gantry/internal/core/ports"
)

// originResponseRelay copies one origin response onto the client channel. It
// is installed just ahead of the pool handler for the duration of a single
// cycle and removes itself once the cycle completes, leaving the pooled
// connection's pipeline in its resting shape.
type originResponseRelay struct {
	session *proxySession
	stats   ports.StatsCollector
	logger  *slog.Logger

	finished bool
}

func newOriginResponseRelay(session *proxySession, stats ports.StatsCollector, logger *slog.Logger) *originResponseRelay {
	return &originResponseRelay{session: session, stats: stats, logger: logger}
}

func (h *originResponseRelay) OnRead(ctx ports.HandlerContext, msg any) {
	switch frame := msg.(type) {
	case *codec.ResponseHead:
		latency := (time.Now().UnixNano() - h.session.startNano) / int64(time.Millisecond)
		h.stats.RecordRequest(h.session.server, frame.Status, latency)

		resp := domain.NewResponseMessage(h.session.request, frame.Status)
		for _, e := range frame.Headers.Entries() {
			resp.Headers.Add(e.Key, e.Value)
		}
		gateway.InjectResponse(h.session.clientCh, resp)

	case *codec.Content:
		if frame.Last {
			h.finished = true
		}
		gateway.InjectContent(h.session.clientCh, frame.Buf, frame.Last)

	default:
		ctx.FireRead(msg)
	}
}

func (h *originResponseRelay) OnEvent(ctx ports.HandlerContext, evt any) {
	switch e := evt.(type) {
	case domain.CompleteEvent:
		if e.Reason != domain.CompleteSessionComplete && !h.finished {
			h.abortClient(domain.NewInternalError("origin connection lost mid-response", false))
		}
		ctx.FireEvent(evt)
		ctx.Channel().Pipeline().Remove(constants.HandlerResponseRelay)
		return
	case domain.IdleEvent:
		if !h.finished {
			h.abortClient(domain.NewReadTimeoutError())
		}
	}
	ctx.FireEvent(evt)
}

func (h *originResponseRelay) OnError(ctx ports.HandlerContext, err error) {
	h.logger.Debug("origin error during proxied cycle",
		"error", err, "channel", transport.Info(ctx.Channel()))
	if !h.finished {
		h.abortClient(domain.NewInternalError("origin channel error mid-cycle", false))
	}
	ctx.FireError(err)
}

// abortClient surfaces an origin failure on the client channel. At most one
// abort per cycle; the response writer turns it into a status response when
// nothing has been sent yet, otherwise it closes the client connection.
func (h *originResponseRelay) abortClient(err error) {
	if h.finished {
		return
	}
	h.finished = true
	h.session.clientCh.Pipeline().FireError(err)
}
