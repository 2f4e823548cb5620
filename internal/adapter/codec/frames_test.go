package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gantryio/gantry/internal/core/domain"
)

func TestIs100ContinueExpected(t *testing.T) {
	head := NewRequestHead("POST", "/upload", "HTTP/1.1")
	assert.False(t, Is100ContinueExpected(head))

	head.Headers.Add("Expect", "100-continue")
	assert.True(t, Is100ContinueExpected(head))
}

func TestIsKeepAliveHTTP11(t *testing.T) {
	head := NewRequestHead("GET", "/", "HTTP/1.1")
	assert.True(t, IsKeepAlive(head), "persistent by default")

	head.Headers.Add("Connection", "close")
	assert.False(t, IsKeepAlive(head))
}

func TestIsKeepAliveHTTP10(t *testing.T) {
	head := NewRequestHead("GET", "/", "HTTP/1.0")
	assert.False(t, IsKeepAlive(head), "explicit opt-in required")

	head.Headers.Add("Connection", "keep-alive")
	assert.True(t, IsKeepAlive(head))
}

func TestIsKeepAliveHTTP10CaseInsensitiveProtocol(t *testing.T) {
	head := NewRequestHead("GET", "/", "http/1.0")
	assert.False(t, IsKeepAlive(head))
}

func TestHasChunkedTransferEncoding(t *testing.T) {
	h := domain.NewHeaders()
	assert.False(t, HasChunkedTransferEncoding(h))

	h.Add("Transfer-Encoding", "gzip, Chunked")
	assert.True(t, HasChunkedTransferEncoding(h), "token list is scanned case-insensitively")

	h2 := domain.NewHeaders()
	h2.Add("Transfer-Encoding", "gzip")
	assert.False(t, HasChunkedTransferEncoding(h2))
}

func TestHasNonZeroContentLength(t *testing.T) {
	h := domain.NewHeaders()
	assert.False(t, HasNonZeroContentLength(h))

	h.Set("Content-Length", "0")
	assert.False(t, HasNonZeroContentLength(h))

	h.Set("Content-Length", " 42 ")
	assert.True(t, HasNonZeroContentLength(h))

	h.Set("Content-Length", "banana")
	assert.False(t, HasNonZeroContentLength(h))
}

func TestIsContentLengthSet(t *testing.T) {
	h := domain.NewHeaders()
	assert.False(t, IsContentLengthSet(h))
	h.Add("content-length", "0")
	assert.True(t, IsContentLengthSet(h))
}
