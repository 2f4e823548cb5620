// Package codec defines the framed HTTP message model exchanged between the
// wire codec and the gateway handlers. The byte-level encoder/decoder is the
// transport package's wire sink and reader; handlers only ever see these frames.
package codec

import (
	"strconv"
	"strings"

	"github.com/gantryio/gantry/internal/core/domain"
)

// RequestHead is the decoded request line plus headers. A decode failure is
// still delivered as a head frame with Err set so the receiver can answer 400.
type RequestHead struct {
	Method   string
	URI      string
	Protocol string
	Headers  *domain.Headers

	// Body is set on the aggregated full-request variant, holding the entire
	// body as one last-content chunk.
	Body *domain.BodyBuffer

	Err error
}

// ResponseHead is the response status line plus headers.
type ResponseHead struct {
	Protocol string
	Status   int
	Headers  *domain.Headers
}

// Content is one body chunk. Last marks the end of the message body.
type Content struct {
	Buf  *domain.BodyBuffer
	Last bool
}

// ProxyInfo carries proxy-protocol metadata. It is fully handled by the
// address handler ahead of the gateway handlers.
type ProxyInfo struct {
	SourceAddress string
}

func NewRequestHead(method, uri, protocol string) *RequestHead {
	return &RequestHead{Method: method, URI: uri, Protocol: protocol, Headers: domain.NewHeaders()}
}

func NewResponseHead(protocol string, status int) *ResponseHead {
	return &ResponseHead{Protocol: protocol, Status: status, Headers: domain.NewHeaders()}
}

// Is100ContinueExpected reports whether the request carries
// Expect: 100-continue.
func Is100ContinueExpected(head *RequestHead) bool {
	return head.Headers.ContainsValue("Expect", "100-continue")
}

// IsKeepAlive mirrors HTTP connection-reuse defaults: HTTP/1.1 connections
// persist unless Connection: close is present, HTTP/1.0 only with an explicit
// keep-alive token.
func IsKeepAlive(head *RequestHead) bool {
	if head.Headers.ContainsValue("Connection", "close") {
		return false
	}
	if strings.EqualFold(head.Protocol, "HTTP/1.0") {
		return head.Headers.ContainsValue("Connection", "keep-alive")
	}
	return true
}

func HasChunkedTransferEncoding(h *domain.Headers) bool {
	for _, v := range h.GetAll("Transfer-Encoding") {
		for _, token := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(token), "chunked") {
				return true
			}
		}
	}
	return false
}

func HasNonZeroContentLength(h *domain.Headers) bool {
	cl := h.GetFirst("Content-Length")
	if cl == "" {
		return false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(cl), 10, 64)
	return err == nil && n > 0
}

func IsContentLengthSet(h *domain.Headers) bool {
	return h.Contains("Content-Length")
}
