package gateway

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gantryio/gantry/internal/adapter/codec"
	"github.com/gantryio/gantry/internal/adapter/transport"
	"github.com/gantryio/gantry/internal/core/constants"
	"github.com/gantryio/gantry/internal/core/domain"
	"github.com/gantryio/gantry/internal/core/ports"
	"github.com/gantryio/gantry/pkg/passport"
)

func newReceiverPipeline(decorator ports.SessionContextDecorator) (*transport.Channel, *fakeSink, *frameRecorder, *ClientRequestReceiver) {
	ch, sink := newGatewayChannel()
	rec := &frameRecorder{}
	receiver := NewClientRequestReceiver(decorator, discardLogger())
	ch.Pipeline().AddLast(constants.HandlerRequestReceiver, receiver)
	ch.Pipeline().AddLast("rec", rec)
	return ch, sink, rec, receiver
}

func firstRequest(t *testing.T, rec *frameRecorder) *domain.RequestMessage {
	t.Helper()
	require.NotEmpty(t, rec.reads)
	req, ok := rec.reads[0].(*domain.RequestMessage)
	require.True(t, ok, "first read is %T", rec.reads[0])
	return req
}

func TestReceiverBuildsRequest(t *testing.T) {
	ch, _, rec, _ := newReceiverPipeline(nil)
	ch.SetAttr(constants.AttrSourceAddress, "10.0.0.9")
	ch.SetAttr(constants.AttrLocalPort, 19620)

	head := codec.NewRequestHead("GET", "/items?page=2&page=3", "HTTP/1.1")
	head.Headers.Add("Host", "example.com")
	ch.Pipeline().FireRead(head)

	req := firstRequest(t, rec)
	assert.Equal(t, "get", req.Method)
	assert.Equal(t, "/items", req.Path)
	assert.Equal(t, []string{"2", "3"}, req.Query.GetAll("page"))
	assert.Equal(t, "example.com", req.Headers.GetFirst("Host"))
	assert.Equal(t, "10.0.0.9", req.ClientIP)
	assert.Equal(t, 19620, req.Port)
	assert.Equal(t, constants.SchemeHTTP, req.Scheme)
	assert.False(t, req.HasBody())
	assert.NotNil(t, req.InboundRequest(), "inbound snapshot frozen at receive time")

	// Header copy: mutating the gateway request must not touch the wire head.
	req.Headers.Set("Host", "rewritten")
	assert.Equal(t, "example.com", head.Headers.GetFirst("Host"))

	v, ok := ch.Attr(constants.AttrGatewayRequest)
	require.True(t, ok)
	assert.Same(t, req, v)

	sess := req.Context()
	nativeV, ok := sess.Get(constants.CtxKeyNativeRequest)
	require.True(t, ok)
	assert.Same(t, head, nativeV)
}

func TestReceiverMarksBody(t *testing.T) {
	ch, _, rec, _ := newReceiverPipeline(nil)

	head := codec.NewRequestHead("POST", "/upload", "HTTP/1.1")
	head.Headers.Add("Content-Length", "10")
	ch.Pipeline().FireRead(head)
	assert.True(t, firstRequest(t, rec).HasBody())
}

func TestReceiverSSLScheme(t *testing.T) {
	ch, _, rec, _ := newReceiverPipeline(nil)
	info := &domain.SSLInfo{Protocol: "TLSv1.3"}
	ch.SetAttr(constants.AttrSSLInfo, info)

	ch.Pipeline().FireRead(codec.NewRequestHead("GET", "/", "HTTP/1.1"))

	req := firstRequest(t, rec)
	assert.Equal(t, constants.SchemeHTTPS, req.Scheme)
	assert.Same(t, info, req.SSLInfo)
}

func TestReceiverDecorator(t *testing.T) {
	ch, _, rec, _ := newReceiverPipeline(&debugDecorator{})
	ch.Pipeline().FireRead(codec.NewRequestHead("GET", "/", "HTTP/1.1"))
	assert.True(t, firstRequest(t, rec).Context().DebugRequest())
}

type debugDecorator struct{}

func (d *debugDecorator) Decorate(ctx *domain.SessionContext) *domain.SessionContext {
	ctx.SetDebugRequest(true)
	return ctx
}

func TestReceiverDecodeFailure(t *testing.T) {
	ch, _, rec, _ := newReceiverPipeline(nil)

	head := codec.NewRequestHead("", "", "")
	head.Err = errors.New("malformed request line")
	ch.Pipeline().FireRead(head)

	assert.Empty(t, rec.reads)
	require.Len(t, rec.errs, 1)
	ge, ok := domain.AsGatewayError(rec.errs[0])
	require.True(t, ok)
	assert.Equal(t, domain.KindDecode, ge.Kind)
	assert.Equal(t, 400, ge.StatusCode)
}

func TestReceiver100Continue(t *testing.T) {
	ch, sink, rec, _ := newReceiverPipeline(nil)

	head := codec.NewRequestHead("POST", "/upload", "HTTP/1.1")
	head.Headers.Add("Expect", "100-continue")
	head.Headers.Add("Content-Length", "5")
	ch.Pipeline().FireRead(head)

	frames := sink.Frames()
	require.Len(t, frames, 1)
	interim, ok := frames[0].(*codec.ResponseHead)
	require.True(t, ok)
	assert.Equal(t, 100, interim.Status)

	req := firstRequest(t, rec)
	assert.False(t, req.Headers.Contains("Expect"))
	assert.False(t, head.Headers.Contains("Expect"))
}

func TestReceiverForwardsContent(t *testing.T) {
	ch, _, rec, _ := newReceiverPipeline(nil)

	ch.Pipeline().FireRead(codec.NewRequestHead("POST", "/", "HTTP/1.1"))
	buf := domain.NewBodyBuffer([]byte("chunk"))
	ch.Pipeline().FireRead(&codec.Content{Buf: buf})

	require.Len(t, rec.reads, 2)
	assert.EqualValues(t, 1, buf.Refs())
}

func TestReceiverDropsLaggardContent(t *testing.T) {
	ch, _, rec, _ := newReceiverPipeline(nil)

	// No request in flight at all.
	buf := domain.NewBodyBuffer([]byte("orphan"))
	ch.Pipeline().FireRead(&codec.Content{Buf: buf})
	assert.Empty(t, rec.reads)
	assert.Zero(t, buf.Refs())
}

func TestReceiverDropsContentAfterCancel(t *testing.T) {
	ch, _, rec, _ := newReceiverPipeline(nil)

	ch.Pipeline().FireRead(codec.NewRequestHead("POST", "/", "HTTP/1.1"))
	req := firstRequest(t, rec)
	req.Context().Cancel()

	buf := domain.NewBodyBuffer([]byte("late"))
	ch.Pipeline().FireRead(&codec.Content{Buf: buf})

	assert.Len(t, rec.reads, 1)
	assert.Zero(t, buf.Refs())
}

func TestReceiverCompleteCancelsAndClears(t *testing.T) {
	ch, _, rec, _ := newReceiverPipeline(nil)
	pp := passport.New()
	ch.SetAttr(constants.AttrPassport, pp)

	ch.Pipeline().FireRead(codec.NewRequestHead("GET", "/", "HTTP/1.1"))
	req := firstRequest(t, rec)
	req.BufferBodyContent(domain.NewBodyBuffer([]byte("held")))

	ch.Pipeline().FireEvent(domain.CompleteEvent{Reason: domain.CompleteInactive})

	assert.True(t, req.Context().IsCancelled())
	assert.Empty(t, req.BodyContents())
	_, ok := ch.Attr(constants.AttrGatewayRequest)
	assert.False(t, ok)
	_, cancelled := pp.FindState(passport.StateInReqCancelled)
	assert.True(t, cancelled)
}

func TestReceiverCompleteAfterResponseSentNoCancelMark(t *testing.T) {
	ch, _, rec, _ := newReceiverPipeline(nil)
	pp := passport.New()
	pp.Add(passport.StateOutRespLastContentSent)
	ch.SetAttr(constants.AttrPassport, pp)

	ch.Pipeline().FireRead(codec.NewRequestHead("GET", "/", "HTTP/1.1"))
	_ = firstRequest(t, rec)
	ch.Pipeline().FireEvent(domain.CompleteEvent{Reason: domain.CompleteSessionComplete})

	_, cancelled := pp.FindState(passport.StateInReqCancelled)
	assert.False(t, cancelled, "a fully answered request is not a cancellation")
}

func TestReceiverWriteFailureFiresWriteError(t *testing.T) {
	ch, _ := newGatewayChannel()
	rec := &frameRecorder{}
	failing := &failingWriteHandler{}
	receiver := NewClientRequestReceiver(nil, discardLogger())
	ch.Pipeline().AddLast("failing", failing)
	ch.Pipeline().AddLast(constants.HandlerRequestReceiver, receiver)
	ch.Pipeline().AddLast("rec", rec)

	ch.Pipeline().Write(codec.NewResponseHead("HTTP/1.1", 200), nil)

	require.Len(t, rec.errs, 1)
	ge, ok := domain.AsGatewayError(rec.errs[0])
	require.True(t, ok)
	assert.Equal(t, domain.KindWrite, ge.Kind)
	assert.True(t, ge.Fatal)
	assert.Equal(t, "response_headers", ge.Stage)
}

type failingWriteHandler struct{}

func (h *failingWriteHandler) OnWrite(ctx ports.HandlerContext, msg any, done ports.WriteCallback) {
	if done != nil {
		done(errors.New("broken pipe"))
	}
}

func TestReceiverRejectsUnknownOutboundFrame(t *testing.T) {
	ch, sink, rec, _ := newReceiverPipeline(nil)

	ch.Pipeline().Write("bogus", nil)

	assert.Empty(t, sink.Frames())
	require.Len(t, rec.errs, 1)
	ge, ok := domain.AsGatewayError(rec.errs[0])
	require.True(t, ok)
	assert.Equal(t, domain.KindInternal, ge.Kind)
}
