package gateway

import (
	"log/slog"
	"strings"

	"github.com/gantryio/gantry/internal/adapter/codec"
	"github.com/gantryio/gantry/internal/adapter/transport"
	"github.com/gantryio/gantry/internal/core/constants"
	"github.com/gantryio/gantry/internal/core/domain"
	"github.com/gantryio/gantry/internal/core/ports"
)

// ClientResponseWriter serializes at most one ResponseMessage per cycle back
// to the client and decides whether the connection is reused or closed. It
// sits at the tail of the inbound chain; the filter pipeline injects the
// response (and streaming chunks) directly at this handler.
type ClientResponseWriter struct {
	completeHandler ports.RequestCompleteHandler
	logger          *slog.Logger

	isHandlingRequest      bool
	startedSendingResponse bool
	closeConnection        bool
	currentGatewayResponse *domain.ResponseMessage
}

func NewClientResponseWriter(completeHandler ports.RequestCompleteHandler, logger *slog.Logger) *ClientResponseWriter {
	return &ClientResponseWriter{completeHandler: completeHandler, logger: logger}
}

func (w *ClientResponseWriter) OnEvent(ctx ports.HandlerContext, evt any) {
	switch e := evt.(type) {
	case domain.StartEvent:
		w.isHandlingRequest = true
		w.startedSendingResponse = false
		w.closeConnection = false
		w.currentGatewayResponse = nil
	case domain.CompleteEvent:
		w.onComplete(ctx, e.Reason)
	case domain.IdleEvent:
		w.logger.Debug("client channel idle", "channel", transport.Info(ctx.Channel()))
	}
	ctx.FireEvent(evt)
}

func (w *ClientResponseWriter) onComplete(ctx ports.HandlerContext, reason domain.CompleteReason) {
	resp := w.currentGatewayResponse
	if resp != nil {
		resp.DisposeBufferedBody()
	}
	w.handleComplete(resp)
	if reason == domain.CompleteSessionComplete && !w.closeConnection {
		// Keep-alive: grant a read for the next pipelined request.
		ctx.Channel().Read()
	} else {
		if w.isHandlingRequest {
			w.logger.Warn("closing client channel mid-request",
				"reason", string(reason), "channel", transport.Info(ctx.Channel()))
		}
		ctx.Close()
	}
	w.isHandlingRequest = false
	w.currentGatewayResponse = nil
}

// handleComplete notifies the host's completion hook. The hook must never be
// able to break the channel, so panics are contained here.
func (w *ClientResponseWriter) handleComplete(resp *domain.ResponseMessage) {
	if w.completeHandler == nil || resp == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("request complete handler panicked", "panic", r)
		}
	}()
	w.completeHandler.Handle(resp.InboundRequest(), resp)
}

func (w *ClientResponseWriter) OnRead(ctx ports.HandlerContext, msg any) {
	switch frame := msg.(type) {
	case *domain.ResponseMessage:
		w.writeResponse(ctx, frame)
	case *codec.Content:
		if ctx.Channel().IsActive() {
			ctx.WriteAndFlush(frame, nil)
			return
		}
		if frame.Buf != nil && frame.Buf.Refs() > 0 {
			frame.Buf.Release()
		}
		ctx.Close()
	default:
		ctx.FireRead(msg)
	}
}

func (w *ClientResponseWriter) writeResponse(ctx ports.HandlerContext, resp *domain.ResponseMessage) {
	if !w.isHandlingRequest || w.startedSendingResponse {
		// Idle-or-timeout raced the response; drop everything and let the
		// close drive the Complete cleanup.
		resp.DisposeBufferedBody()
		if cur := w.currentGatewayResponse; cur != nil && cur != resp {
			cur.DisposeBufferedBody()
		}
		ctx.Close()
		return
	}
	w.startedSendingResponse = true
	w.currentGatewayResponse = resp
	ctx.Channel().SetAttr(constants.AttrGatewayResponse, resp)
	if strings.EqualFold(resp.Headers.GetFirst("Connection"), "close") {
		w.closeConnection = true
	}

	head := w.buildWireResponse(resp)
	ctx.Write(head, nil)
	for _, chunk := range resp.BodyContents() {
		chunk.Retain()
		ctx.Write(&codec.Content{Buf: chunk, Last: chunk.IsLast()}, nil)
	}
	ctx.Flush()
}

// buildWireResponse translates the ResponseMessage into the wire head frame,
// fixing up framing and connection-reuse headers.
func (w *ClientResponseWriter) buildWireResponse(resp *domain.ResponseMessage) *codec.ResponseHead {
	inbound := resp.InboundRequest()

	protocol := "HTTP/1.1"
	if inbound != nil && strings.HasPrefix(inbound.Protocol, "HTTP/1") {
		protocol = inbound.Protocol
	}

	head := codec.NewResponseHead(protocol, resp.Status)
	for _, e := range resp.Headers.Entries() {
		head.Headers.Add(e.Key, e.Value)
	}

	if !codec.IsContentLengthSet(head.Headers) && !codec.HasChunkedTransferEncoding(head.Headers) {
		head.Headers.Add("Transfer-Encoding", "chunked")
	}

	keepAlive := false
	if inbound != nil {
		native, _ := nativeRequest(resp)
		if native != nil {
			keepAlive = codec.IsKeepAlive(native)
		}
	}
	head.Headers.Remove("Connection")
	if keepAlive && !w.closeConnection {
		head.Headers.Add("Connection", "keep-alive")
	} else {
		head.Headers.Add("Connection", "close")
		w.closeConnection = true
	}

	// HTTP/2 stream correlation for the downstream codec.
	if inbound != nil {
		if streamID := inbound.Headers.GetFirst(constants.HeaderStreamID); streamID != "" {
			head.Headers.Set(constants.HeaderStreamID, streamID)
		}
	}
	return head
}

// nativeRequest digs the original wire head back out of the session context.
func nativeRequest(resp *domain.ResponseMessage) (*codec.RequestHead, bool) {
	sess := resp.Context()
	if sess == nil {
		return nil, false
	}
	v, ok := sess.Get(constants.CtxKeyNativeRequest)
	if !ok {
		return nil, false
	}
	head, ok := v.(*codec.RequestHead)
	return head, ok
}

// OnError is the terminal error handler for the client channel: answer with a
// status-only response when one can still be sent, otherwise just close.
func (w *ClientResponseWriter) OnError(ctx ports.HandlerContext, err error) {
	status := 500
	if ge, ok := domain.AsGatewayError(err); ok {
		if ge.Kind == domain.KindReadTimeout {
			status = 504
		} else if ge.StatusCode != 0 {
			status = ge.StatusCode
		}
	}
	w.logger.Warn("client channel error", "error", err, "status", status, "channel", transport.Info(ctx.Channel()))

	if w.isHandlingRequest && !w.startedSendingResponse && ctx.Channel().IsActive() {
		w.startedSendingResponse = true
		head := codec.NewResponseHead("HTTP/1.1", status)
		head.Headers.Add("Connection", "close")
		head.Headers.Add("Content-Length", "0")
		ctx.Write(head, nil)
		ctx.WriteAndFlush(&codec.Content{Buf: nil, Last: true}, func(error) {
			ctx.Close()
		})
		return
	}
	ctx.Close()
}
