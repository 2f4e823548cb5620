package ports

import "github.com/gantryio/gantry/internal/core/domain"

// SessionContextDecorator lets the host inject standardized keys into a fresh
// SessionContext before the request is built around it.
type SessionContextDecorator interface {
	Decorate(ctx *domain.SessionContext) *domain.SessionContext
}

// FilterPipeline is the downstream collaborator consuming inbound requests
// and producing responses. It receives the RequestMessage and subsequent body
// chunks fired inbound on the channel, and answers by injecting a
// ResponseMessage (and body chunks) back at the response writer.
type FilterPipeline interface {
	ProcessRequest(ch Channel, req *domain.RequestMessage)
	ProcessContent(ch Channel, chunk *domain.BodyBuffer, last bool)
}

// RequestCompleteHandler is notified once per finished request/response
// cycle. Panics and errors are swallowed by the caller; completion
// notification must never break the channel.
type RequestCompleteHandler interface {
	Handle(req *domain.RequestInfo, resp *domain.ResponseMessage)
}

// ServerSelector picks an origin server for the next attempt.
type ServerSelector interface {
	Select(servers []*domain.Server) (*domain.Server, error)
	Name() string
}

// StatsCollector owns the per-origin ServerStats instances and aggregate
// request accounting.
type StatsCollector interface {
	StatsFor(server *domain.Server) *domain.ServerStats
	RecordRequest(server *domain.Server, status int, latencyMs int64)
	Snapshot() map[string]domain.ServerStatsSnapshot
}
