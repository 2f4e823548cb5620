package pool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gantryio/gantry/internal/adapter/metrics"
	"github.com/gantryio/gantry/internal/adapter/stats"
	"github.com/gantryio/gantry/internal/core/domain"
	"github.com/gantryio/gantry/internal/core/ports"
)

func newTestRegistry(t *testing.T) (*Registry, *fakeFactory) {
	t.Helper()
	reg := metrics.NewMemoryRegistry()
	factory := &fakeFactory{initializer: NewOutboundPipelineInitializer("api", reg, discardLogger())}
	cfg := domain.NewConnectionPoolConfig("api", 30*time.Second, 10, 10)
	return NewRegistry(cfg, factory, reg, stats.NewCollector(), discardLogger()), factory
}

func TestRegistryPoolPerServer(t *testing.T) {
	r, _ := newTestRegistry(t)
	a := domain.NewServer("origin-1", 8080)
	b := domain.NewServer("origin-2", 8080)

	poolA := r.PoolFor(a)
	poolB := r.PoolFor(b)
	assert.NotSame(t, poolA, poolB)
	assert.Same(t, poolA, r.PoolFor(domain.NewServer("origin-1", 8080)), "pools are keyed by address")
}

func TestRegistrySharedStats(t *testing.T) {
	r, _ := newTestRegistry(t)
	server := domain.NewServer("origin-1", 8080)

	p := r.PoolFor(server)
	assert.Same(t, r.StatsFor(server), p.Stats(), "pool and balancer read the same counters")
}

func TestRegistrySnapshot(t *testing.T) {
	r, _ := newTestRegistry(t)
	server := domain.NewServer("origin-1", 8080)
	p := r.PoolFor(server)

	loop := &syncLoop{id: 1}
	p.Acquire(loop, "GET", "/", 1, nil, func(conn ports.PooledConnection, err error) {
		require.NoError(t, err)
	})

	snap := r.Snapshot()
	require.Contains(t, snap, "origin-1:8080")
	assert.EqualValues(t, 1, snap["origin-1:8080"].OpenConnections)
	assert.EqualValues(t, 1, snap["origin-1:8080"].ActiveRequests)
}

func TestRegistryShutdownAll(t *testing.T) {
	r, _ := newTestRegistry(t)
	server := domain.NewServer("origin-1", 8080)
	p := r.PoolFor(server)

	loop := &syncLoop{id: 1}
	var conn ports.PooledConnection
	p.Acquire(loop, "GET", "/", 1, nil, func(pc ports.PooledConnection, err error) {
		require.NoError(t, err)
		conn = pc
	})
	require.True(t, p.Release(conn))

	r.ShutdownAll()
	assert.EqualValues(t, 0, p.ConnsInPool())
	assert.False(t, conn.IsActive())
}
