package domain

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// SessionContext is the opaque per-request state bag threaded through the
// filter pipeline. All access happens on the channel's event loop except the
// cancellation flag, which laggard-frame suppression reads from other call
// sites.
type SessionContext struct {
	values       map[string]any
	uuid         string
	cancelled    atomic.Bool
	debugRequest bool
}

func NewSessionContext() *SessionContext {
	return &SessionContext{
		values: make(map[string]any, 8),
		uuid:   uuid.NewString(),
	}
}

func (c *SessionContext) UUID() string {
	return c.uuid
}

func (c *SessionContext) Get(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

func (c *SessionContext) Set(key string, value any) {
	c.values[key] = value
}

func (c *SessionContext) Cancel() {
	c.cancelled.Store(true)
}

func (c *SessionContext) IsCancelled() bool {
	return c.cancelled.Load()
}

func (c *SessionContext) SetDebugRequest(debug bool) {
	c.debugRequest = debug
}

func (c *SessionContext) DebugRequest() bool {
	return c.debugRequest
}
