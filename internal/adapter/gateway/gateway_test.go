package gateway

import (
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/gantryio/gantry/internal/adapter/codec"
	"github.com/gantryio/gantry/internal/adapter/transport"
	"github.com/gantryio/gantry/internal/core/constants"
	"github.com/gantryio/gantry/internal/core/domain"
	"github.com/gantryio/gantry/internal/core/ports"
)

type syncLoop struct {
	id ports.EventLoopID
}

func (l *syncLoop) ID() ports.EventLoopID { return l.id }
func (l *syncLoop) Execute(task func())   { task() }

type fakeSink struct {
	mu     sync.Mutex
	frames []any
	closed bool
}

func (s *fakeSink) WriteFrame(msg any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, msg)
	return nil
}

func (s *fakeSink) Flush() error { return nil }

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSink) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 19620}
}

func (s *fakeSink) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(10, 0, 0, 9), Port: 51000}
}

func (s *fakeSink) Frames() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]any, len(s.frames))
	copy(out, s.frames)
	return out
}

func (s *fakeSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func newGatewayChannel() (*transport.Channel, *fakeSink) {
	sink := &fakeSink{}
	ch := transport.NewChannel(&syncLoop{id: 1}, sink, discardLogger())
	return ch, sink
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// frameRecorder captures reads, events and errors flowing past it.
type frameRecorder struct {
	reads  []any
	events []any
	errs   []error
}

func (r *frameRecorder) OnRead(ctx ports.HandlerContext, msg any) {
	r.reads = append(r.reads, msg)
	ctx.FireRead(msg)
}

func (r *frameRecorder) OnEvent(ctx ports.HandlerContext, evt any) {
	r.events = append(r.events, evt)
	ctx.FireEvent(evt)
}

func (r *frameRecorder) OnError(ctx ports.HandlerContext, err error) {
	r.errs = append(r.errs, err)
}

// requestWithNative builds a RequestMessage wired the way the receiver does,
// with the original wire head stashed in the session context.
func requestWithNative(native *codec.RequestHead) *domain.RequestMessage {
	sess := domain.NewSessionContext()
	sess.Set(constants.CtxKeyNativeRequest, native)
	req := domain.NewRequestMessage(sess, native.Protocol, "get", "/items",
		domain.NewQueryParams(), native.Headers.Copy(), "10.0.0.9", "http", 19620, "")
	req.StoreInboundRequest()
	return req
}
