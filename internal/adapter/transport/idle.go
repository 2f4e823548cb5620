package transport

import (
	"time"

	"github.com/gantryio/gantry/internal/core/domain"
	"github.com/gantryio/gantry/internal/core/ports"
)

// IdleStateHandler fires an IdleEvent into the pipeline when no reads have
// been observed for the configured timeout. The pool removes this handler on
// acquire and installs a fresh one on release, so the timer measures idleness
// since the connection was last returned, not since channel open.
type IdleStateHandler struct {
	timeout time.Duration
	timer   *time.Timer
	ctx     ports.HandlerContext
}

func NewIdleStateHandler(timeout time.Duration) *IdleStateHandler {
	return &IdleStateHandler{timeout: timeout}
}

func (h *IdleStateHandler) OnAdded(ctx ports.HandlerContext) {
	h.ctx = ctx
	if h.timeout <= 0 {
		return
	}
	h.timer = time.AfterFunc(h.timeout, func() {
		// Hop back to the event loop; the timer goroutine must not touch
		// the pipeline directly.
		ctx.Channel().EventLoop().Execute(func() {
			if h.timer == nil {
				return
			}
			ctx.FireEvent(domain.IdleEvent{})
		})
	})
}

func (h *IdleStateHandler) OnRemoved(ctx ports.HandlerContext) {
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
	h.ctx = nil
}

func (h *IdleStateHandler) OnRead(ctx ports.HandlerContext, msg any) {
	if h.timer != nil {
		h.timer.Reset(h.timeout)
	}
	ctx.FireRead(msg)
}
