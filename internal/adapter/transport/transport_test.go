package transport

import (
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/gantryio/gantry/internal/core/ports"
)

// syncLoop runs tasks inline so tests observe effects without scheduling.
type syncLoop struct {
	id ports.EventLoopID
}

func (l *syncLoop) ID() ports.EventLoopID { return l.id }
func (l *syncLoop) Execute(task func())   { task() }

// fakeSink records frames and flushes for assertions.
type fakeSink struct {
	mu       sync.Mutex
	frames   []any
	flushes  int
	closed   bool
	writeErr error
	local    net.Addr
	remote   net.Addr
}

func (s *fakeSink) WriteFrame(msg any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.frames = append(s.frames, msg)
	return nil
}

func (s *fakeSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	return nil
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return io.ErrClosedPipe
	}
	s.closed = true
	return nil
}

func (s *fakeSink) LocalAddr() net.Addr  { return s.local }
func (s *fakeSink) RemoteAddr() net.Addr { return s.remote }

func (s *fakeSink) Frames() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]any, len(s.frames))
	copy(out, s.frames)
	return out
}

func (s *fakeSink) Flushes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushes
}

func (s *fakeSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func newTestChannel() (*Channel, *fakeSink) {
	sink := &fakeSink{}
	ch := NewChannel(&syncLoop{id: 1}, sink, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return ch, sink
}

// recordingHandler logs every callback it receives and forwards everything.
type recordingHandler struct {
	name   string
	reads  []any
	events []any
	errs   []error
	writes []any
}

func (h *recordingHandler) OnRead(ctx ports.HandlerContext, msg any) {
	h.reads = append(h.reads, msg)
	ctx.FireRead(msg)
}

func (h *recordingHandler) OnEvent(ctx ports.HandlerContext, evt any) {
	h.events = append(h.events, evt)
	ctx.FireEvent(evt)
}

func (h *recordingHandler) OnError(ctx ports.HandlerContext, err error) {
	h.errs = append(h.errs, err)
	ctx.FireError(err)
}

func (h *recordingHandler) OnWrite(ctx ports.HandlerContext, msg any, done ports.WriteCallback) {
	h.writes = append(h.writes, msg)
	ctx.Write(msg, done)
}
