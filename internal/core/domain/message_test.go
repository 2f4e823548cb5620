package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRequest() *RequestMessage {
	headers := NewHeaders()
	headers.Add("Host", "example.com")
	return NewRequestMessage(NewSessionContext(), "HTTP/1.1", "get", "/items",
		ParseQueryParams("page=2"), headers, "10.0.0.5", "http", 19620, "example.com")
}

func TestRequestMessageBody(t *testing.T) {
	req := newTestRequest()
	assert.False(t, req.HasBody())

	req.SetHasBody(true)
	req.BufferBodyContent(NewBodyBuffer([]byte("part1")))
	req.BufferBodyContent(NewLastBodyBuffer([]byte("part2")))

	require.Len(t, req.BodyContents(), 2)
	assert.True(t, req.BodyContents()[1].IsLast())

	req.DisposeBufferedBody()
	assert.Empty(t, req.BodyContents())
}

func TestDisposeBufferedBodySkipsFreed(t *testing.T) {
	req := newTestRequest()
	chunk := NewBodyBuffer([]byte("x"))
	req.BufferBodyContent(chunk)
	chunk.Release()

	assert.NotPanics(t, func() { req.DisposeBufferedBody() })
}

func TestStoreInboundRequest(t *testing.T) {
	req := newTestRequest()
	req.StoreInboundRequest()

	req.Method = "post"
	req.Path = "/rewritten"
	req.Headers.Set("Host", "internal.local")

	info := req.InboundRequest()
	require.NotNil(t, info)
	assert.Equal(t, "get", info.Method)
	assert.Equal(t, "/items", info.Path)
	assert.Equal(t, "example.com", info.Headers.GetFirst("Host"))
	assert.Equal(t, "10.0.0.5", info.ClientIP)
}

func TestResponseMessage(t *testing.T) {
	req := newTestRequest()
	resp := NewResponseMessage(req, 200)

	assert.Equal(t, 200, resp.Status)
	assert.Same(t, req, resp.Request())
	assert.Same(t, req.Context(), resp.Context())
	assert.Zero(t, resp.Headers.Len())
}

func TestResponseInboundRequestFallback(t *testing.T) {
	req := newTestRequest()
	resp := NewResponseMessage(req, 200)

	// No snapshot taken; live fields are surfaced.
	info := resp.InboundRequest()
	require.NotNil(t, info)
	assert.Equal(t, "get", info.Method)

	req.StoreInboundRequest()
	req.Method = "put"
	assert.Equal(t, "get", resp.InboundRequest().Method)
}

func TestSessionContext(t *testing.T) {
	ctx := NewSessionContext()
	assert.NotEmpty(t, ctx.UUID())

	other := NewSessionContext()
	assert.NotEqual(t, ctx.UUID(), other.UUID())

	_, ok := ctx.Get("k")
	assert.False(t, ok)
	ctx.Set("k", 42)
	v, ok := ctx.Get("k")
	require.True(t, ok)
	assert.Equal(t, 42, v)

	assert.False(t, ctx.IsCancelled())
	ctx.Cancel()
	assert.True(t, ctx.IsCancelled())

	assert.False(t, ctx.DebugRequest())
	ctx.SetDebugRequest(true)
	assert.True(t, ctx.DebugRequest())
}
