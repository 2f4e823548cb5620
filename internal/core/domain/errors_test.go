package domain

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name   string
		err    *GatewayError
		kind   ErrorKind
		status int
		fatal  bool
	}{
		{"decode", NewDecodeError("bad request line", io.EOF), KindDecode, 400, false},
		{"max conns", NewMaxConnectionsError("api", 50, 50), KindMaxConnectionsPerHost, 503, false},
		{"connect", NewConnectError(io.ErrUnexpectedEOF), KindConnect, 502, false},
		{"read timeout", NewReadTimeoutError(), KindReadTimeout, 504, false},
		{"write", NewWriteError("response headers", io.ErrClosedPipe), KindWrite, 500, true},
		{"internal fatal", NewInternalError("boom", true), KindInternal, 500, true},
		{"internal non-fatal", NewInternalError("boom", false), KindInternal, 500, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.kind, tc.err.Kind)
			assert.Equal(t, tc.status, tc.err.StatusCode)
			assert.Equal(t, tc.fatal, tc.err.Fatal)
		})
	}
}

func TestGatewayErrorMessage(t *testing.T) {
	withCause := NewDecodeError("malformed chunk size", io.EOF)
	assert.Contains(t, withCause.Error(), "decode_error")
	assert.Contains(t, withCause.Error(), "malformed chunk size")
	assert.Contains(t, withCause.Error(), io.EOF.Error())

	withoutCause := NewReadTimeoutError()
	assert.Equal(t, "read_timeout: read timed out", withoutCause.Error())
}

func TestGatewayErrorUnwrap(t *testing.T) {
	cause := io.ErrUnexpectedEOF
	err := NewConnectError(cause)
	assert.ErrorIs(t, err, cause)
}

func TestAsGatewayError(t *testing.T) {
	ge := NewReadTimeoutError()
	wrapped := fmt.Errorf("proxy cycle: %w", ge)

	got, ok := AsGatewayError(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindReadTimeout, got.Kind)

	_, ok = AsGatewayError(errors.New("plain"))
	assert.False(t, ok)
}

func TestMaxConnectionsErrorMessage(t *testing.T) {
	err := NewMaxConnectionsError("api", 50, 51)
	assert.Contains(t, err.Message, "origin=api")
	assert.Contains(t, err.Message, "limit=50")
	assert.Contains(t, err.Message, "open=51")
}
