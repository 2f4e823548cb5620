package pool

import (
	"log/slog"
	"time"

	"github.com/gantryio/gantry/internal/core/ports"
	"github.com/gantryio/gantry/pkg/passport"
)

// Dialer produces a connected channel bound to loop. The concrete dialer owns
// the socket and wire codec; it may block up to timeout.
type Dialer func(loop ports.EventLoop, host string, port int, timeout time.Duration) (ports.Channel, error)

// Factory dials origin servers off the event loop and finishes each attempt
// back on the acquiring loop with the outbound pipeline already installed.
type Factory struct {
	dial        Dialer
	initializer *OutboundPipelineInitializer
	timeout     time.Duration
	logger      *slog.Logger
}

func NewFactory(dial Dialer, initializer *OutboundPipelineInitializer, timeout time.Duration, logger *slog.Logger) *Factory {
	return &Factory{dial: dial, initializer: initializer, timeout: timeout, logger: logger}
}

func (f *Factory) Connect(loop ports.EventLoop, host string, port int, pp *passport.Passport, cb ports.ConnectCallback) {
	go func() {
		ch, err := f.dial(loop, host, port, f.timeout)
		if err != nil {
			f.logger.Debug("dial failed", "host", host, "port", port, "error", err)
			loop.Execute(func() { cb(nil, err) })
			return
		}
		loop.Execute(func() {
			f.initializer.Initialize(ch)
			cb(ch, nil)
		})
	}()
}
