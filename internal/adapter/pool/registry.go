package pool

import (
	"log/slog"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/gantryio/gantry/internal/core/domain"
	"github.com/gantryio/gantry/internal/core/ports"
)

// Registry owns one PerServerConnectionPool per origin server, created on
// first use. Lookups race during warmup; LoadOrCompute guarantees a single
// winner and the losing pool is never observed.
type Registry struct {
	cfg       *domain.ConnectionPoolConfig
	factory   ports.ConnectionFactory
	registry  ports.MetricsRegistry
	collector ports.StatsCollector
	logger    *slog.Logger

	pools *xsync.Map[string, *PerServerConnectionPool]
}

func NewRegistry(cfg *domain.ConnectionPoolConfig, factory ports.ConnectionFactory, registry ports.MetricsRegistry, collector ports.StatsCollector, logger *slog.Logger) *Registry {
	return &Registry{
		cfg:       cfg,
		factory:   factory,
		registry:  registry,
		collector: collector,
		logger:    logger,
		pools:     xsync.NewMap[string, *PerServerConnectionPool](),
	}
}

// PoolFor returns the pool for server, creating it on first use.
func (r *Registry) PoolFor(server *domain.Server) *PerServerConnectionPool {
	p, _ := r.pools.LoadOrCompute(server.Address(), func() (*PerServerConnectionPool, bool) {
		return NewPerServerConnectionPool(server, r.StatsFor(server), r.cfg, r.factory, r.registry, r.logger), false
	})
	return p
}

// StatsFor returns the stats record for server. The record comes from the
// shared collector so the pool and the load balancer read the same counters.
func (r *Registry) StatsFor(server *domain.Server) *domain.ServerStats {
	return r.collector.StatsFor(server)
}

// Snapshot reports per-server stats for every server with a pool.
func (r *Registry) Snapshot() map[string]domain.ServerStatsSnapshot {
	out := make(map[string]domain.ServerStatsSnapshot)
	r.pools.Range(func(addr string, p *PerServerConnectionPool) bool {
		out[addr] = p.Stats().Snapshot()
		return true
	})
	return out
}

// ShutdownAll drains and closes every pool.
func (r *Registry) ShutdownAll() {
	r.pools.Range(func(_ string, p *PerServerConnectionPool) bool {
		p.Shutdown()
		return true
	})
}
