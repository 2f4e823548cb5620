package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/gantryio/gantry/internal/core/domain"
	"github.com/gantryio/gantry/internal/core/ports"
	"github.com/gantryio/gantry/pkg/eventbus"
)

// RequestCompletionEvent is published once per finished request/response
// cycle. Consumers subscribe for access logging and stats.
type RequestCompletionEvent struct {
	Timestamp time.Time
	Method    string
	Path      string
	Protocol  string
	Scheme    string
	ClientIP  string
	Status    int
}

// completionWorkers and completionQueueSize bound the async publish path; a
// burst of completions spawns no goroutines and drops instead of blocking.
const (
	completionWorkers   = 2
	completionQueueSize = 256
)

// EventBusCompleteHandler publishes completion records on an event bus
// through a bounded worker pool. Publishing never blocks the channel
// goroutine.
type EventBusCompleteHandler struct {
	pool   *eventbus.WorkerPool[RequestCompletionEvent]
	logger *slog.Logger
}

func NewEventBusCompleteHandler(bus *eventbus.EventBus[RequestCompletionEvent], logger *slog.Logger) *EventBusCompleteHandler {
	return &EventBusCompleteHandler{
		pool:   eventbus.NewWorkerPool(bus, completionWorkers, completionQueueSize),
		logger: logger,
	}
}

// Shutdown stops the publish workers. Call before shutting the bus down.
func (h *EventBusCompleteHandler) Shutdown() {
	h.pool.Shutdown()
}

func (h *EventBusCompleteHandler) Handle(req *domain.RequestInfo, resp *domain.ResponseMessage) {
	event := RequestCompletionEvent{Timestamp: time.Now()}
	if req != nil {
		event.Method = req.Method
		event.Path = req.Path
		event.Protocol = req.Protocol
		event.Scheme = req.Scheme
		event.ClientIP = req.ClientIP
	}
	if resp != nil {
		event.Status = resp.Status
	}
	h.pool.PublishAsync(event)
}

var _ ports.RequestCompleteHandler = (*EventBusCompleteHandler)(nil)

// AccessLogSubscriber drains completion events from the bus and writes one
// access-log line per request. Run it on its own goroutine; it returns when
// ctx is cancelled, or at once if the bus is already shut down when it
// subscribes.
func AccessLogSubscriber(ctx context.Context, bus *eventbus.EventBus[RequestCompletionEvent], logger *slog.Logger) {
	events, cleanup := bus.Subscribe(ctx)
	if events == nil {
		return
	}
	defer cleanup()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			logger.Info("request complete",
				"method", event.Method,
				"path", event.Path,
				"status", event.Status,
				"client_ip", event.ClientIP,
				"scheme", event.Scheme,
				"protocol", event.Protocol,
			)
		}
	}
}
