package transport

import (
	"github.com/gantryio/gantry/internal/adapter/codec"
	"github.com/gantryio/gantry/internal/core/constants"
	"github.com/gantryio/gantry/internal/core/domain"
	"github.com/gantryio/gantry/internal/core/ports"
	"github.com/gantryio/gantry/pkg/passport"
)

func isRequestHead(msg any) bool {
	_, ok := msg.(*codec.RequestHead)
	return ok
}

func isLastContent(msg any) bool {
	if c, ok := msg.(*codec.Content); ok {
		return c.Last
	}
	return false
}

// HTTPServerLifecycleHandler brackets each inbound request/response cycle on
// a client-facing channel with Start and Complete events. A cycle starts when
// the request head is read and completes when the last response content has
// been flushed to the transport. Idle and inactive transitions cut a cycle
// short with their own reasons so downstream handlers can release resources.
type HTTPServerLifecycleHandler struct {
	started bool
}

func NewHTTPServerLifecycleHandler() *HTTPServerLifecycleHandler {
	return &HTTPServerLifecycleHandler{}
}

func (h *HTTPServerLifecycleHandler) OnRead(ctx ports.HandlerContext, msg any) {
	if isRequestHead(msg) && !h.started {
		h.started = true
		ctx.FireEvent(domain.StartEvent{})
	}
	ctx.FireRead(msg)
}

func (h *HTTPServerLifecycleHandler) OnWrite(ctx ports.HandlerContext, msg any, done ports.WriteCallback) {
	if isLastContent(msg) {
		ctx.Write(msg, func(err error) {
			if err == nil {
				recordPassport(ctx.Channel(), passport.StateOutRespLastContentSent)
				if h.started {
					h.started = false
					ctx.FireEvent(domain.CompleteEvent{Reason: domain.CompleteSessionComplete})
				}
			}
			if done != nil {
				done(err)
			}
		})
		return
	}
	ctx.Write(msg, done)
}

func (h *HTTPServerLifecycleHandler) OnEvent(ctx ports.HandlerContext, evt any) {
	switch evt.(type) {
	case domain.IdleEvent:
		if h.started {
			h.started = false
			ctx.FireEvent(domain.CompleteEvent{Reason: domain.CompleteIdle})
		}
		ctx.FireEvent(evt)
		ctx.Close()
		return
	case InactiveEvent:
		if h.started {
			h.started = false
			ctx.FireEvent(domain.CompleteEvent{Reason: domain.CompleteInactive})
		}
	case domain.CompleteEvent:
		h.started = false
	case domain.StartEvent:
		h.started = true
	}
	ctx.FireEvent(evt)
}

// HTTPClientLifecycleHandler is the origin-side counterpart: a cycle starts
// when the request head is written toward the origin and completes when the
// last content of the origin response has been read.
type HTTPClientLifecycleHandler struct {
	started bool
}

func NewHTTPClientLifecycleHandler() *HTTPClientLifecycleHandler {
	return &HTTPClientLifecycleHandler{}
}

func (h *HTTPClientLifecycleHandler) OnWrite(ctx ports.HandlerContext, msg any, done ports.WriteCallback) {
	if isRequestHead(msg) && !h.started {
		h.started = true
		ctx.FireEvent(domain.StartEvent{})
	}
	ctx.Write(msg, done)
}

func (h *HTTPClientLifecycleHandler) OnRead(ctx ports.HandlerContext, msg any) {
	last := isLastContent(msg)
	ctx.FireRead(msg)
	if last && h.started {
		h.started = false
		ctx.FireEvent(domain.CompleteEvent{Reason: domain.CompleteSessionComplete})
	}
}

func (h *HTTPClientLifecycleHandler) OnEvent(ctx ports.HandlerContext, evt any) {
	switch evt.(type) {
	case InactiveEvent:
		if h.started {
			h.started = false
			ctx.FireEvent(domain.CompleteEvent{Reason: domain.CompleteInactive})
		}
	case domain.CompleteEvent:
		h.started = false
	case domain.StartEvent:
		h.started = true
	}
	ctx.FireEvent(evt)
}

func recordPassport(ch ports.Channel, state passport.State) {
	if v, ok := ch.Attr(constants.AttrPassport); ok {
		if p, ok := v.(*passport.Passport); ok {
			p.Add(state)
		}
	}
}
