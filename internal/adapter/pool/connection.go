// Package pool implements the per-origin, per-event-loop origin connection
// pool and the origin-side pipeline handlers. Idle connections are kept in a
// lock-free LIFO per event loop so a reused connection never has to hop
// threads; a connection is handed to at most one request at a time.
package pool

import (
	"sync/atomic"
	"time"

	"github.com/gantryio/gantry/internal/core/constants"
	"github.com/gantryio/gantry/internal/core/domain"
	"github.com/gantryio/gantry/internal/core/ports"
	"github.com/gantryio/gantry/pkg/passport"
)

// OriginConnection is one live channel to an origin server, owned by a
// PerServerConnectionPool for its whole life. State transitions (in use,
// in pool) are atomics because release can race with the channel going
// inactive on its event loop.
type OriginConnection struct {
	ch     ports.Channel
	cfg    *domain.ConnectionPoolConfig
	server *domain.Server
	stats  *domain.ServerStats
	owner  *PerServerConnectionPool

	inPool     atomic.Bool
	inUse      atomic.Bool
	closed     atomic.Bool
	usageCount atomic.Uint32

	// Nanos when the current request took ownership; zero while idle.
	requestStart atomic.Int64
}

func newOriginConnection(ch ports.Channel, cfg *domain.ConnectionPoolConfig, server *domain.Server, stats *domain.ServerStats, owner *PerServerConnectionPool) *OriginConnection {
	conn := &OriginConnection{
		ch:     ch,
		cfg:    cfg,
		server: server,
		stats:  stats,
		owner:  owner,
	}
	ch.SetAttr(constants.AttrPooledConnection, conn)
	return conn
}

// ConnFromChannel looks up the pooled connection owning ch, if any.
func ConnFromChannel(ch ports.Channel) (*OriginConnection, bool) {
	v, ok := ch.Attr(constants.AttrPooledConnection)
	if !ok {
		return nil, false
	}
	conn, ok := v.(*OriginConnection)
	return conn, ok
}

func (c *OriginConnection) Channel() ports.Channel {
	return c.ch
}

func (c *OriginConnection) Config() *domain.ConnectionPoolConfig {
	return c.cfg
}

func (c *OriginConnection) Server() *domain.Server {
	return c.server
}

func (c *OriginConnection) ServerStats() *domain.ServerStats {
	return c.stats
}

func (c *OriginConnection) IsActive() bool {
	return !c.closed.Load() && c.ch.IsActive()
}

func (c *OriginConnection) InPool() bool {
	return c.inPool.Load()
}

func (c *OriginConnection) InUse() bool {
	return c.inUse.Load()
}

func (c *OriginConnection) UsageCount() uint32 {
	return c.usageCount.Load()
}

func (c *OriginConnection) setInPool(v bool) {
	c.inPool.Store(v)
}

func (c *OriginConnection) setInUse(v bool) {
	c.inUse.Store(v)
}

func (c *OriginConnection) incrementUsage() {
	c.usageCount.Add(1)
}

func (c *OriginConnection) startRequestTimer() {
	c.requestStart.Store(time.Now().UnixNano())
}

func (c *OriginConnection) clearRequestTimer() {
	c.requestStart.Store(0)
}

// RequestStart reports when the request currently owning the connection
// started; ok is false while the connection is idle.
func (c *OriginConnection) RequestStart() (time.Time, bool) {
	nanos := c.requestStart.Load()
	if nanos == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, nanos), true
}

// Release returns the connection to its pool, or closes it if the pool
// declines it. The pipeline's connection-pool handler calls this when a
// response cycle finishes cleanly.
func (c *OriginConnection) Release() bool {
	return c.owner.Release(c)
}

// Close tears down the transport. Open-connection accounting happens exactly
// once even when close races with an inactive event.
func (c *OriginConnection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.stats.DecrementOpenConnections()
	return c.ch.Close()
}

// passportOf pulls the passport currently bound to the connection's channel.
func (c *OriginConnection) passportOf() *passport.Passport {
	if v, ok := c.ch.Attr(constants.AttrPassport); ok {
		if p, ok := v.(*passport.Passport); ok {
			return p
		}
	}
	return nil
}
