package transport

import (
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/gantryio/gantry/internal/core/ports"
)

// InactiveEvent is fired through the pipeline when the channel transitions
// from active to closed.
type InactiveEvent struct{}

// Sink is the frame-level transport below a channel. The production sink is
// the wire codec's wireSink, which encodes frames onto the raw socket.
type Sink interface {
	WriteFrame(msg any) error
	Flush() error
	Close() error
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}

// Channel binds one transport connection to one event loop, carrying the
// handler pipeline and the attribute side table.
type Channel struct {
	loop     ports.EventLoop
	sink     Sink
	pipeline *Pipeline
	attrs    *xsync.Map[string, any]
	logger   *slog.Logger

	readHook  func()
	closeHook func()

	active atomic.Bool
	open   atomic.Bool
}

func NewChannel(loop ports.EventLoop, sink Sink, logger *slog.Logger) *Channel {
	ch := &Channel{
		loop:   loop,
		sink:   sink,
		attrs:  xsync.NewMap[string, any](),
		logger: logger,
	}
	ch.pipeline = newPipeline(ch, logger)
	ch.active.Store(true)
	ch.open.Store(true)
	return ch
}

func (c *Channel) EventLoop() ports.EventLoop {
	return c.loop
}

func (c *Channel) Pipeline() ports.Pipeline {
	return c.pipeline
}

func (c *Channel) Write(msg any, done ports.WriteCallback) {
	c.pipeline.Write(msg, done)
}

func (c *Channel) WriteAndFlush(msg any, done ports.WriteCallback) {
	c.pipeline.Write(msg, done)
	c.flushTransport()
}

func (c *Channel) Flush() {
	c.flushTransport()
}

// SetReadRequestHook installs the engine's read-credit callback; each Read
// grants one inbound message (its head frame and all of its body frames).
func (c *Channel) SetReadRequestHook(hook func()) {
	c.readHook = hook
}

func (c *Channel) Read() {
	if c.readHook != nil {
		c.readHook()
	}
}

// SetCloseHook installs the engine's teardown callback, run once when the
// channel closes.
func (c *Channel) SetCloseHook(hook func()) {
	c.closeHook = hook
}

// Deliver schedules an inbound frame onto the channel's event loop. This is
// the entry point the engine (and tests) use.
func (c *Channel) Deliver(msg any) {
	c.loop.Execute(func() {
		c.pipeline.FireRead(msg)
	})
}

// DeliverEvent schedules a pipeline event onto the channel's event loop.
func (c *Channel) DeliverEvent(evt any) {
	c.loop.Execute(func() {
		c.pipeline.FireEvent(evt)
	})
}

// Close is exactly-once for the sink; later calls are no-ops. The inactive
// event is fired on the event loop after the transport is torn down.
func (c *Channel) Close() error {
	if !c.open.CompareAndSwap(true, false) {
		return nil
	}
	c.active.Store(false)
	if c.closeHook != nil {
		c.closeHook()
	}
	err := c.sink.Close()
	c.loop.Execute(func() {
		c.pipeline.FireEvent(InactiveEvent{})
	})
	return err
}

func (c *Channel) IsActive() bool {
	return c.active.Load()
}

func (c *Channel) IsOpen() bool {
	return c.open.Load()
}

func (c *Channel) LocalAddr() net.Addr {
	return c.sink.LocalAddr()
}

func (c *Channel) RemoteAddr() net.Addr {
	return c.sink.RemoteAddr()
}

func (c *Channel) Attr(key string) (any, bool) {
	return c.attrs.Load(key)
}

func (c *Channel) SetAttr(key string, value any) {
	if value == nil {
		c.attrs.Delete(key)
		return
	}
	c.attrs.Store(key, value)
}

func (c *Channel) writeTransport(msg any, done ports.WriteCallback) {
	if !c.open.Load() {
		if done != nil {
			done(fmt.Errorf("channel closed"))
		}
		return
	}
	err := c.sink.WriteFrame(msg)
	if done != nil {
		done(err)
	}
}

func (c *Channel) flushTransport() {
	if !c.open.Load() {
		return
	}
	if err := c.sink.Flush(); err != nil {
		c.logger.Warn("channel flush failed", "error", err)
	}
}

// Info renders the channel endpoints and state for log lines.
func Info(ch ports.Channel) string {
	remote, local := "-", "-"
	if a := ch.RemoteAddr(); a != nil {
		remote = a.String()
	}
	if a := ch.LocalAddr(); a != nil {
		local = a.String()
	}
	return fmt.Sprintf("channel(remote=%s local=%s active=%t open=%t)", remote, local, ch.IsActive(), ch.IsOpen())
}
