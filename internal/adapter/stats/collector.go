// Package stats centralises per-origin server statistics. The connection pool
// writes connection counters, the request completion path records request
// outcomes, and the balancer and engineering endpoint read snapshots back.
package stats

import (
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/gantryio/gantry/internal/core/domain"
	"github.com/gantryio/gantry/internal/core/ports"
)

// Collector owns the ServerStats instance for every origin server plus
// aggregate request accounting. Hit on every request, so all updates are
// atomic and lock-free.
type Collector struct {
	servers  *xsync.Map[string, *serverEntry]
	requests requestTotals
}

type serverEntry struct {
	stats              *domain.ServerStats
	totalRequests      atomic.Int64
	successfulRequests atomic.Int64
	failedRequests     atomic.Int64
	totalLatency       atomic.Int64
	minLatency         atomic.Int64
	maxLatency         atomic.Int64
	lastUsed           atomic.Int64
}

type requestTotals struct {
	total        atomic.Int64
	successful   atomic.Int64
	failed       atomic.Int64
	totalLatency atomic.Int64
}

func NewCollector() *Collector {
	return &Collector{
		servers: xsync.NewMap[string, *serverEntry](),
	}
}

// StatsFor returns the mutable stats for server, creating them on first use.
// The same instance is returned for the same address for the life of the
// process.
func (c *Collector) StatsFor(server *domain.Server) *domain.ServerStats {
	return c.entryFor(server).stats
}

// RecordRequest accounts one finished request against server. Latency only
// feeds the aggregates on success so failure spikes don't skew averages.
func (c *Collector) RecordRequest(server *domain.Server, status int, latencyMs int64) {
	c.requests.total.Add(1)
	success := status < 500
	if success {
		c.requests.successful.Add(1)
		c.requests.totalLatency.Add(latencyMs)
	} else {
		c.requests.failed.Add(1)
	}

	if server == nil {
		return
	}
	entry := c.entryFor(server)
	entry.totalRequests.Add(1)
	entry.lastUsed.Store(time.Now().UnixNano())
	if success {
		entry.successfulRequests.Add(1)
		entry.totalLatency.Add(latencyMs)
		updateLatencyBounds(entry, latencyMs)
	} else {
		entry.failedRequests.Add(1)
	}
}

// Snapshot copies the per-server connection counters for reporting.
func (c *Collector) Snapshot() map[string]domain.ServerStatsSnapshot {
	out := make(map[string]domain.ServerStatsSnapshot)
	c.servers.Range(func(addr string, entry *serverEntry) bool {
		out[addr] = entry.stats.Snapshot()
		return true
	})
	return out
}

// RequestSnapshot reports the aggregate request accounting.
func (c *Collector) RequestSnapshot() RequestSnapshot {
	total := c.requests.total.Load()
	successful := c.requests.successful.Load()
	failed := c.requests.failed.Load()
	totalLatency := c.requests.totalLatency.Load()

	var avgLatency int64
	if successful > 0 {
		avgLatency = totalLatency / successful
	}
	return RequestSnapshot{
		TotalRequests:      total,
		SuccessfulRequests: successful,
		FailedRequests:     failed,
		AverageLatencyMs:   avgLatency,
	}
}

// ServerRequestSnapshot reports request accounting for one server, or a zero
// snapshot when the server has never been seen.
func (c *Collector) ServerRequestSnapshot(server *domain.Server) RequestSnapshot {
	entry, ok := c.servers.Load(server.Address())
	if !ok {
		return RequestSnapshot{}
	}
	total := entry.totalRequests.Load()
	successful := entry.successfulRequests.Load()
	var avgLatency int64
	if successful > 0 {
		avgLatency = entry.totalLatency.Load() / successful
	}
	minLatency := entry.minLatency.Load()
	if minLatency == -1 {
		minLatency = 0
	}
	return RequestSnapshot{
		TotalRequests:      total,
		SuccessfulRequests: successful,
		FailedRequests:     entry.failedRequests.Load(),
		AverageLatencyMs:   avgLatency,
		MinLatencyMs:       minLatency,
		MaxLatencyMs:       entry.maxLatency.Load(),
		LastUsedNano:       entry.lastUsed.Load(),
	}
}

// RequestSnapshot is a point-in-time copy of request accounting.
type RequestSnapshot struct {
	TotalRequests      int64 `json:"total_requests"`
	SuccessfulRequests int64 `json:"successful_requests"`
	FailedRequests     int64 `json:"failed_requests"`
	AverageLatencyMs   int64 `json:"average_latency_ms"`
	MinLatencyMs       int64 `json:"min_latency_ms"`
	MaxLatencyMs       int64 `json:"max_latency_ms"`
	LastUsedNano       int64 `json:"last_used_nano"`
}

func (c *Collector) entryFor(server *domain.Server) *serverEntry {
	entry, _ := c.servers.LoadOrCompute(server.Address(), func() (*serverEntry, bool) {
		e := &serverEntry{stats: domain.NewServerStats()}
		e.minLatency.Store(-1)
		return e, false
	})
	return entry
}

func updateLatencyBounds(entry *serverEntry, latencyMs int64) {
	for {
		minLatency := entry.minLatency.Load()
		if minLatency != -1 && latencyMs >= minLatency {
			break
		}
		if entry.minLatency.CompareAndSwap(minLatency, latencyMs) {
			break
		}
	}
	for {
		maxLatency := entry.maxLatency.Load()
		if latencyMs <= maxLatency {
			break
		}
		if entry.maxLatency.CompareAndSwap(maxLatency, latencyMs) {
			break
		}
	}
}

var _ ports.StatsCollector = (*Collector)(nil)
