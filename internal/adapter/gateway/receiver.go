// Package gateway implements the client-facing handler pair at the heart of
// the proxy: the request receiver that turns wire frames into a
// RequestMessage for the filter pipeline, and the response writer that
// serializes the pipeline's ResponseMessage back to the client.
package gateway

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/gantryio/gantry/internal/adapter/codec"
	"github.com/gantryio/gantry/internal/adapter/transport"
	"github.com/gantryio/gantry/internal/core/constants"
	"github.com/gantryio/gantry/internal/core/domain"
	"github.com/gantryio/gantry/internal/core/ports"
	"github.com/gantryio/gantry/pkg/passport"
)

// ClientRequestReceiver materializes one RequestMessage per request/response
// cycle and guards the filter pipeline against laggard body frames arriving
// after the cycle was cancelled.
type ClientRequestReceiver struct {
	decorator ports.SessionContextDecorator
	logger    *slog.Logger

	clientRequest  *codec.RequestHead
	gatewayRequest *domain.RequestMessage
}

func NewClientRequestReceiver(decorator ports.SessionContextDecorator, logger *slog.Logger) *ClientRequestReceiver {
	return &ClientRequestReceiver{decorator: decorator, logger: logger}
}

func (r *ClientRequestReceiver) OnRead(ctx ports.HandlerContext, msg any) {
	switch frame := msg.(type) {
	case *codec.RequestHead:
		if frame.Err != nil {
			if frame.Body != nil && frame.Body.Refs() > 0 {
				frame.Body.Release()
			}
			err := domain.NewDecodeError(
				fmt.Sprintf("invalid request: uri=%s %s", frame.URI, transport.Info(ctx.Channel())),
				frame.Err,
			)
			ctx.FireError(err)
			return
		}
		r.clientRequest = frame
		r.gatewayRequest = r.buildRequest(ctx, frame)
		if codec.Is100ContinueExpected(frame) {
			ctx.WriteAndFlush(codec.NewResponseHead(frame.Protocol, 100), func(err error) {
				if err != nil {
					r.logger.Warn("failed writing 100 Continue", "error", err)
				}
			})
			frame.Headers.Remove("Expect")
			r.gatewayRequest.Headers.Remove("Expect")
		}
		ctx.FireRead(r.gatewayRequest)

	case *codec.Content:
		if r.gatewayRequest == nil || r.gatewayRequest.Context().IsCancelled() {
			// Laggard chunk; the cycle it belonged to is gone.
			if frame.Buf != nil && frame.Buf.Refs() > 0 {
				frame.Buf.Release()
			}
			return
		}
		ctx.FireRead(frame)

	case *codec.ProxyInfo:
		// Fully consumed by the address handling ahead of this pipeline.

	default:
		releaseIfBuffer(msg)
		ctx.FireError(domain.NewInternalError(fmt.Sprintf("unexpected inbound frame %T", msg), true))
	}
}

func (r *ClientRequestReceiver) buildRequest(ctx ports.HandlerContext, head *codec.RequestHead) *domain.RequestMessage {
	ch := ctx.Channel()

	sess := domain.NewSessionContext()
	if r.decorator != nil {
		sess = r.decorator.Decorate(sess)
	}
	sess.Set(constants.CtxKeyClientChannel, ch)
	sess.Set(constants.CtxKeyNativeRequest, head)

	clientIP, _ := stringAttr(ch, constants.AttrSourceAddress)
	serverName, _ := stringAttr(ch, constants.AttrLocalAddress)
	port := 0
	if v, ok := ch.Attr(constants.AttrLocalPort); ok {
		if p, ok := v.(int); ok {
			port = p
		}
	}

	scheme := constants.SchemeHTTP
	var sslInfo *domain.SSLInfo
	if v, ok := ch.Attr(constants.AttrSSLInfo); ok {
		if info, ok := v.(*domain.SSLInfo); ok {
			sslInfo = info
			scheme = constants.SchemeHTTPS
			sess.Set(constants.CtxKeySSLInfo, info)
		}
	}

	protocol := head.Protocol
	if v, ok := stringAttr(ch, constants.AttrProtocolName); ok {
		protocol = v
	}

	path, rawQuery, _ := strings.Cut(head.URI, "?")
	req := domain.NewRequestMessage(
		sess,
		protocol,
		strings.ToLower(head.Method),
		path,
		domain.ParseQueryParams(rawQuery),
		head.Headers.Copy(),
		clientIP,
		scheme,
		port,
		serverName,
	)
	req.SSLInfo = sslInfo
	req.SetHasBody(codec.HasChunkedTransferEncoding(head.Headers) || codec.HasNonZeroContentLength(head.Headers))
	if head.Body != nil {
		req.BufferBodyContent(head.Body)
	}
	req.StoreInboundRequest()

	ch.SetAttr(constants.AttrGatewayRequest, req)
	return req
}

func (r *ClientRequestReceiver) OnEvent(ctx ports.HandlerContext, evt any) {
	if complete, ok := evt.(domain.CompleteEvent); ok {
		r.onComplete(ctx, complete.Reason)
	}
	ctx.FireEvent(evt)
}

func (r *ClientRequestReceiver) onComplete(ctx ports.HandlerContext, reason domain.CompleteReason) {
	ch := ctx.Channel()
	if req := r.gatewayRequest; req != nil {
		req.Context().Cancel()
		req.DisposeBufferedBody()
		if pp := passportOf(ch); pp != nil {
			if _, sent := pp.FindState(passport.StateOutRespLastContentSent); !sent {
				pp.Add(passport.StateInReqCancelled)
			}
		}
		if reason != domain.CompleteSessionComplete {
			r.logger.Warn("request cut short",
				"method", req.Method,
				"uuid", req.Context().UUID(),
				"path", req.Path,
				"reason", string(reason),
				"channel", transport.Info(ch))
			if req.Context().DebugRequest() {
				r.logger.Debug("request debug dump",
					"headers", req.Headers.Entries(),
					"query", req.Query.Encode(),
					"client_ip", req.ClientIP)
			}
		}
	}
	ch.SetAttr(constants.AttrGatewayRequest, nil)
	ch.SetAttr(constants.AttrGatewayResponse, nil)
	r.clientRequest = nil
	r.gatewayRequest = nil
}

// OnWrite admits only wire response frames and converts write failures into
// WriteError fired back up the pipeline.
func (r *ClientRequestReceiver) OnWrite(ctx ports.HandlerContext, msg any, done ports.WriteCallback) {
	var stage string
	switch msg.(type) {
	case *codec.ResponseHead:
		stage = "response_headers"
	case *codec.Content:
		stage = "response_content"
	default:
		releaseIfBuffer(msg)
		ctx.FireError(domain.NewInternalError(fmt.Sprintf("unexpected outbound frame %T", msg), true))
		return
	}
	ctx.Write(msg, func(err error) {
		if err != nil {
			r.logger.Warn("client write failed", "stage", stage, "error", err, "channel", transport.Info(ctx.Channel()))
			ctx.FireError(domain.NewWriteError(stage, err))
		}
		if done != nil {
			done(err)
		}
	})
}

func stringAttr(ch ports.Channel, key string) (string, bool) {
	if v, ok := ch.Attr(key); ok {
		if s, ok := v.(string); ok {
			return s, true
		}
	}
	return "", false
}

func passportOf(ch ports.Channel) *passport.Passport {
	if v, ok := ch.Attr(constants.AttrPassport); ok {
		if p, ok := v.(*passport.Passport); ok {
			return p
		}
	}
	return nil
}

func releaseIfBuffer(msg any) {
	if c, ok := msg.(*codec.Content); ok && c.Buf != nil && c.Buf.Refs() > 0 {
		c.Buf.Release()
	}
}
