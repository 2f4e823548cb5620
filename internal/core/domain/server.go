package domain

import (
	"fmt"
	"sync/atomic"
)

// Server identifies one origin endpoint. Immutable once constructed. A server
// is either configured statically or derived from service discovery; both
// variants expose Host/Port uniformly.
type Server struct {
	host       string
	port       int
	serviceID  string
	discovered bool
}

func NewServer(host string, port int) *Server {
	return &Server{host: host, port: port}
}

// NewDiscoveredServer tags the server as discovery-derived and carries the
// discovery service id for logging.
func NewDiscoveredServer(host string, port int, serviceID string) *Server {
	return &Server{host: host, port: port, serviceID: serviceID, discovered: true}
}

func (s *Server) Host() string {
	return s.host
}

func (s *Server) Port() int {
	return s.port
}

func (s *Server) IsDiscovered() bool {
	return s.discovered
}

func (s *Server) ServiceID() string {
	return s.serviceID
}

func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.host, s.port)
}

func (s *Server) String() string {
	if s.discovered {
		return fmt.Sprintf("%s (%s)", s.Address(), s.serviceID)
	}
	return s.Address()
}

// ServerStats holds the mutable per-origin counters the load balancer reads.
// The connection pool is the only writer.
type ServerStats struct {
	openConnections    atomic.Int64
	activeRequests     atomic.Int64
	successiveFailures atomic.Int64
	totalFailures      atomic.Int64
}

func NewServerStats() *ServerStats {
	return &ServerStats{}
}

func (s *ServerStats) OpenConnections() int64 {
	return s.openConnections.Load()
}

func (s *ServerStats) ActiveRequests() int64 {
	return s.activeRequests.Load()
}

func (s *ServerStats) SuccessiveFailures() int64 {
	return s.successiveFailures.Load()
}

func (s *ServerStats) TotalFailures() int64 {
	return s.totalFailures.Load()
}

func (s *ServerStats) IncrementOpenConnections() {
	s.openConnections.Add(1)
}

func (s *ServerStats) DecrementOpenConnections() {
	s.openConnections.Add(-1)
}

func (s *ServerStats) IncrementActiveRequests() {
	s.activeRequests.Add(1)
}

func (s *ServerStats) DecrementActiveRequests() {
	s.activeRequests.Add(-1)
}

func (s *ServerStats) IncrementSuccessiveFailures() {
	s.successiveFailures.Add(1)
}

func (s *ServerStats) ResetSuccessiveFailures() {
	s.successiveFailures.Store(0)
}

func (s *ServerStats) AddToFailureCount() {
	s.totalFailures.Add(1)
}

// ServerStatsSnapshot is a point-in-time copy for reporting.
type ServerStatsSnapshot struct {
	OpenConnections    int64 `json:"open_connections"`
	ActiveRequests     int64 `json:"active_requests"`
	SuccessiveFailures int64 `json:"successive_failures"`
	TotalFailures      int64 `json:"total_failures"`
}

func (s *ServerStats) Snapshot() ServerStatsSnapshot {
	return ServerStatsSnapshot{
		OpenConnections:    s.openConnections.Load(),
		ActiveRequests:     s.activeRequests.Load(),
		SuccessiveFailures: s.successiveFailures.Load(),
		TotalFailures:      s.totalFailures.Load(),
	}
}
