// Package transport implements the channel runtime the gateway handlers hang
// off: an explicit ordered handler pipeline, the channel attribute table, the
// idle-state watchdog and the HTTP lifecycle handlers that bracket each
// request/response cycle with Start/Complete events.
package transport

import (
	"log/slog"

	"github.com/gantryio/gantry/internal/core/ports"
)

// HandlerLifecycle is implemented by handlers that need install/uninstall
// hooks (the idle-state handler arms and disarms its timer through these).
type HandlerLifecycle interface {
	OnAdded(ctx ports.HandlerContext)
	OnRemoved(ctx ports.HandlerContext)
}

type pipelineEntry struct {
	handler any
	p       *Pipeline
	next    *pipelineEntry
	prev    *pipelineEntry
	name    string
}

// Pipeline is a doubly linked handler chain. Mutation and traversal happen on
// the channel's event loop; no internal locking.
type Pipeline struct {
	ch     *Channel
	head   *pipelineEntry
	tail   *pipelineEntry
	logger *slog.Logger
}

func newPipeline(ch *Channel, logger *slog.Logger) *Pipeline {
	return &Pipeline{ch: ch, logger: logger}
}

func (p *Pipeline) Channel() ports.Channel {
	return p.ch
}

func (p *Pipeline) AddLast(name string, handler any) {
	e := &pipelineEntry{name: name, handler: handler, p: p}
	if p.tail == nil {
		p.head, p.tail = e, e
	} else {
		e.prev = p.tail
		p.tail.next = e
		p.tail = e
	}
	if hl, ok := handler.(HandlerLifecycle); ok {
		hl.OnAdded(e)
	}
}

func (p *Pipeline) AddBefore(existing, name string, handler any) bool {
	target := p.find(existing)
	if target == nil {
		return false
	}
	e := &pipelineEntry{name: name, handler: handler, p: p}
	e.next = target
	e.prev = target.prev
	if target.prev != nil {
		target.prev.next = e
	} else {
		p.head = e
	}
	target.prev = e
	if hl, ok := handler.(HandlerLifecycle); ok {
		hl.OnAdded(e)
	}
	return true
}

func (p *Pipeline) Remove(name string) bool {
	e := p.find(name)
	if e == nil {
		return false
	}
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		p.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		p.tail = e.prev
	}
	if hl, ok := e.handler.(HandlerLifecycle); ok {
		hl.OnRemoved(e)
	}
	return true
}

func (p *Pipeline) find(name string) *pipelineEntry {
	for e := p.head; e != nil; e = e.next {
		if e.name == name {
			return e
		}
	}
	return nil
}

func (p *Pipeline) FireRead(msg any) {
	if e := firstReader(p.head); e != nil {
		e.handler.(ports.ReadHandler).OnRead(e, msg)
	}
}

func (p *Pipeline) FireReadAt(name string, msg any) {
	e := p.find(name)
	if e == nil {
		p.logger.Warn("pipeline: no handler for injected read", "handler", name)
		return
	}
	if r, ok := e.handler.(ports.ReadHandler); ok {
		r.OnRead(e, msg)
	}
}

func (p *Pipeline) FireEvent(evt any) {
	if e := firstEventer(p.head); e != nil {
		e.handler.(ports.EventHandler).OnEvent(e, evt)
	}
}

func (p *Pipeline) FireError(err error) {
	if e := firstErrorer(p.head); e != nil {
		e.handler.(ports.ErrorHandler).OnError(e, err)
		return
	}
	p.logger.Error("pipeline: unhandled channel error, closing", "error", err)
	_ = p.ch.Close()
}

func (p *Pipeline) Write(msg any, done ports.WriteCallback) {
	if e := firstWriter(p.tail); e != nil {
		e.handler.(ports.WriteHandler).OnWrite(e, msg, done)
		return
	}
	p.ch.writeTransport(msg, done)
}

func (p *Pipeline) Flush() {
	p.ch.flushTransport()
}

func firstReader(e *pipelineEntry) *pipelineEntry {
	for ; e != nil; e = e.next {
		if _, ok := e.handler.(ports.ReadHandler); ok {
			return e
		}
	}
	return nil
}

func firstEventer(e *pipelineEntry) *pipelineEntry {
	for ; e != nil; e = e.next {
		if _, ok := e.handler.(ports.EventHandler); ok {
			return e
		}
	}
	return nil
}

func firstErrorer(e *pipelineEntry) *pipelineEntry {
	for ; e != nil; e = e.next {
		if _, ok := e.handler.(ports.ErrorHandler); ok {
			return e
		}
	}
	return nil
}

func firstWriter(e *pipelineEntry) *pipelineEntry {
	for ; e != nil; e = e.prev {
		if _, ok := e.handler.(ports.WriteHandler); ok {
			return e
		}
	}
	return nil
}

// pipelineEntry doubles as the ports.HandlerContext passed to its handler.

func (e *pipelineEntry) Channel() ports.Channel {
	return e.p.ch
}

func (e *pipelineEntry) FireRead(msg any) {
	if n := firstReader(e.next); n != nil {
		n.handler.(ports.ReadHandler).OnRead(n, msg)
	}
}

func (e *pipelineEntry) FireEvent(evt any) {
	if n := firstEventer(e.next); n != nil {
		n.handler.(ports.EventHandler).OnEvent(n, evt)
	}
}

func (e *pipelineEntry) FireError(err error) {
	if n := firstErrorer(e.next); n != nil {
		n.handler.(ports.ErrorHandler).OnError(n, err)
		return
	}
	e.p.logger.Error("pipeline: unhandled channel error, closing", "error", err, "handler", e.name)
	_ = e.p.ch.Close()
}

func (e *pipelineEntry) Write(msg any, done ports.WriteCallback) {
	if n := firstWriter(e.prev); n != nil {
		n.handler.(ports.WriteHandler).OnWrite(n, msg, done)
		return
	}
	e.p.ch.writeTransport(msg, done)
}

func (e *pipelineEntry) WriteAndFlush(msg any, done ports.WriteCallback) {
	e.Write(msg, done)
	e.p.ch.flushTransport()
}

func (e *pipelineEntry) Flush() {
	e.p.ch.flushTransport()
}

func (e *pipelineEntry) Close() {
	_ = e.p.ch.Close()
}
