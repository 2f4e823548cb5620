package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies gateway errors independent of their Go type.
type ErrorKind string

const (
	KindDecode                ErrorKind = "decode_error"
	KindMaxConnectionsPerHost ErrorKind = "origin_server_max_conns"
	KindConnect               ErrorKind = "connect_error"
	KindReadTimeout           ErrorKind = "read_timeout"
	KindWrite                 ErrorKind = "write_error"
	KindInternal              ErrorKind = "internal_error"
)

// GatewayError carries a status-code hint for the client-facing response and
// a fatal flag. Fatal errors close the channel after the current write;
// non-fatal errors propagate to the filter pipeline which may turn them into
// an error response.
type GatewayError struct {
	Err        error
	Kind       ErrorKind
	Message    string
	Stage      string
	StatusCode int
	Fatal      bool
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

func NewDecodeError(message string, cause error) *GatewayError {
	return &GatewayError{Kind: KindDecode, Message: message, Err: cause, StatusCode: 400}
}

func NewMaxConnectionsError(originName string, limit, openAndOpening int) *GatewayError {
	return &GatewayError{
		Kind:       KindMaxConnectionsPerHost,
		Message:    fmt.Sprintf("max connections per host exceeded: origin=%s limit=%d open=%d", originName, limit, openAndOpening),
		StatusCode: 503,
	}
}

func NewConnectError(cause error) *GatewayError {
	return &GatewayError{Kind: KindConnect, Message: "origin connect failed", Err: cause, StatusCode: 502}
}

func NewReadTimeoutError() *GatewayError {
	return &GatewayError{Kind: KindReadTimeout, Message: "read timed out", StatusCode: 504}
}

func NewWriteError(stage string, cause error) *GatewayError {
	return &GatewayError{
		Kind:       KindWrite,
		Message:    fmt.Sprintf("error writing %s to client", stage),
		Stage:      stage,
		Err:        cause,
		StatusCode: 500,
		Fatal:      true,
	}
}

func NewInternalError(message string, fatal bool) *GatewayError {
	return &GatewayError{Kind: KindInternal, Message: message, StatusCode: 500, Fatal: fatal}
}

// AsGatewayError unwraps err to a *GatewayError if one is in the chain.
func AsGatewayError(err error) (*GatewayError, bool) {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}
