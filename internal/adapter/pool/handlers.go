package pool

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gantryio/gantry/internal/adapter/codec"
	"github.com/gantryio/gantry/internal/adapter/transport"
	"github.com/gantryio/gantry/internal/core/domain"
	"github.com/gantryio/gantry/internal/core/ports"
)

// OriginLoggerHandler debug-logs traffic and lifecycle on origin channels.
// It sits first in the outbound chain so it sees every frame.
type OriginLoggerHandler struct {
	logger *slog.Logger
}

func NewOriginLoggerHandler(logger *slog.Logger) *OriginLoggerHandler {
	return &OriginLoggerHandler{logger: logger}
}

func (h *OriginLoggerHandler) OnRead(ctx ports.HandlerContext, msg any) {
	if h.logger.Enabled(context.Background(), slog.LevelDebug) {
		h.logger.Debug("origin read", "frame", fmt.Sprintf("%T", msg), "channel", transport.Info(ctx.Channel()))
	}
	ctx.FireRead(msg)
}

func (h *OriginLoggerHandler) OnWrite(ctx ports.HandlerContext, msg any, done ports.WriteCallback) {
	if h.logger.Enabled(context.Background(), slog.LevelDebug) {
		h.logger.Debug("origin write", "frame", fmt.Sprintf("%T", msg), "channel", transport.Info(ctx.Channel()))
	}
	ctx.Write(msg, done)
}

func (h *OriginLoggerHandler) OnEvent(ctx ports.HandlerContext, evt any) {
	if h.logger.Enabled(context.Background(), slog.LevelDebug) {
		h.logger.Debug("origin event", "event", fmt.Sprintf("%T", evt), "channel", transport.Info(ctx.Channel()))
	}
	ctx.FireEvent(evt)
}

// HTTPMetricsHandler tracks in-flight origin requests and response counts.
type HTTPMetricsHandler struct {
	inflight  ports.Gauge
	responses ports.Counter
	errors    ports.Counter
}

func NewHTTPMetricsHandler(reg ports.MetricsRegistry, origin string) *HTTPMetricsHandler {
	labels := map[string]string{"origin": origin}
	return &HTTPMetricsHandler{
		inflight:  reg.Gauge("origin_http_inflight", labels),
		responses: reg.Counter("origin_http_responses_total", labels),
		errors:    reg.Counter("origin_http_errors_total", labels),
	}
}

func (h *HTTPMetricsHandler) OnRead(ctx ports.HandlerContext, msg any) {
	if _, ok := msg.(*codec.ResponseHead); ok {
		h.responses.Inc()
	}
	ctx.FireRead(msg)
}

func (h *HTTPMetricsHandler) OnEvent(ctx ports.HandlerContext, evt any) {
	switch evt.(type) {
	case domain.StartEvent:
		h.inflight.Inc()
	case domain.CompleteEvent:
		h.inflight.Dec()
	}
	ctx.FireEvent(evt)
}

func (h *HTTPMetricsHandler) OnError(ctx ports.HandlerContext, err error) {
	h.errors.Inc()
	ctx.FireError(err)
}

// ConnectionPoolHandler is the tail of the origin pipeline. It decides the
// connection's fate when a cycle ends: a clean SESSION_COMPLETE releases the
// connection back to its pool, every other outcome removes and closes it.
type ConnectionPoolHandler struct {
	logger *slog.Logger
}

func NewConnectionPoolHandler(logger *slog.Logger) *ConnectionPoolHandler {
	return &ConnectionPoolHandler{logger: logger}
}

func (h *ConnectionPoolHandler) OnEvent(ctx ports.HandlerContext, evt any) {
	ch := ctx.Channel()
	switch e := evt.(type) {
	case domain.CompleteEvent:
		conn, ok := ConnFromChannel(ch)
		if !ok {
			return
		}
		if e.Reason == domain.CompleteSessionComplete {
			if !conn.Release() {
				h.logger.Debug("pool declined released connection", "channel", transport.Info(ch))
			}
			return
		}
		h.logger.Debug("closing origin connection on abnormal complete",
			"reason", string(e.Reason), "channel", transport.Info(ch))
		h.discard(conn)
	case domain.IdleEvent:
		if conn, ok := ConnFromChannel(ch); ok {
			h.logger.Debug("origin connection idle timeout", "channel", transport.Info(ch))
			h.discard(conn)
		}
	case transport.InactiveEvent:
		if conn, ok := ConnFromChannel(ch); ok {
			h.discard(conn)
		}
	}
}

func (h *ConnectionPoolHandler) OnError(ctx ports.HandlerContext, err error) {
	h.logger.Warn("origin channel error", "error", err, "channel", transport.Info(ctx.Channel()))
	if conn, ok := ConnFromChannel(ctx.Channel()); ok {
		h.discard(conn)
		return
	}
	_ = ctx.Channel().Close()
}

func (h *ConnectionPoolHandler) discard(conn *OriginConnection) {
	conn.owner.Remove(conn)
	_ = conn.Close()
}
