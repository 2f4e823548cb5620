package app

import (
	"github.com/gantryio/gantry/internal/core/domain"
	"github.com/gantryio/gantry/internal/core/ports"
)

// SessionDecorator stamps host-level defaults onto every fresh session
// context before the request is built around it.
type SessionDecorator struct {
	debugRequests bool
}

func NewSessionDecorator(debugRequests bool) *SessionDecorator {
	return &SessionDecorator{debugRequests: debugRequests}
}

func (d *SessionDecorator) Decorate(ctx *domain.SessionContext) *domain.SessionContext {
	ctx.SetDebugRequest(d.debugRequests)
	return ctx
}

var _ ports.SessionContextDecorator = (*SessionDecorator)(nil)
