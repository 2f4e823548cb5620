package pool

import (
	"log/slog"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/gantryio/gantry/internal/adapter/transport"
	"github.com/gantryio/gantry/internal/core/constants"
	"github.com/gantryio/gantry/internal/core/domain"
	"github.com/gantryio/gantry/internal/core/ports"
	"github.com/gantryio/gantry/pkg/deque"
	"github.com/gantryio/gantry/pkg/passport"
)

type poolCounters struct {
	requested        ports.Counter
	reused           ports.Counter
	created          ports.Counter
	createSucceeded  ports.Counter
	createFailed     ports.Counter
	released         ports.Counter
	alreadyClosed    ports.Counter
	fromPoolNotOpen  ports.Counter
	maxConnsExceeded ports.Counter
	aboveWaterline   ports.Counter
	inPool           ports.Gauge
	inUse            ports.Gauge
}

func newPoolCounters(reg ports.MetricsRegistry, origin string) poolCounters {
	labels := map[string]string{"origin": origin}
	return poolCounters{
		requested:        reg.Counter("connection_pool_requested_total", labels),
		reused:           reg.Counter("connection_pool_reused_total", labels),
		created:          reg.Counter("connection_pool_created_total", labels),
		createSucceeded:  reg.Counter("connection_pool_create_succeeded_total", labels),
		createFailed:     reg.Counter("connection_pool_create_failed_total", labels),
		released:         reg.Counter("connection_pool_released_total", labels),
		alreadyClosed:    reg.Counter("connection_pool_release_already_closed_total", labels),
		fromPoolNotOpen:  reg.Counter("connection_pool_taken_not_open_total", labels),
		maxConnsExceeded: reg.Counter("connection_pool_max_conns_exceeded_total", labels),
		aboveWaterline:   reg.Counter("connection_pool_closed_above_waterline_total", labels),
		inPool:           reg.Gauge("connection_pool_idle", labels),
		inUse:            reg.Gauge("connection_pool_in_use", labels),
	}
}

// PerServerConnectionPool pools connections to a single origin server. Idle
// connections are partitioned by event loop: a request running on loop L only
// ever reuses connections bound to L, so no reuse crosses a loop boundary.
type PerServerConnectionPool struct {
	server  *domain.Server
	stats   *domain.ServerStats
	cfg     *domain.ConnectionPoolConfig
	factory ports.ConnectionFactory
	logger  *slog.Logger
	m       poolCounters

	idleByLoop *xsync.Map[ports.EventLoopID, *deque.Deque[*OriginConnection]]

	connsInPool         atomic.Int64
	connsInUse          atomic.Int64
	creationsInProgress atomic.Int64
	closed              atomic.Bool
}

func NewPerServerConnectionPool(
	server *domain.Server,
	stats *domain.ServerStats,
	cfg *domain.ConnectionPoolConfig,
	factory ports.ConnectionFactory,
	reg ports.MetricsRegistry,
	logger *slog.Logger,
) *PerServerConnectionPool {
	return &PerServerConnectionPool{
		server:     server,
		stats:      stats,
		cfg:        cfg,
		factory:    factory,
		logger:     logger.With("origin", cfg.OriginName, "server", server.Address()),
		m:          newPoolCounters(reg, cfg.OriginName),
		idleByLoop: xsync.NewMap[ports.EventLoopID, *deque.Deque[*OriginConnection]](),
	}
}

func (p *PerServerConnectionPool) Server() *domain.Server {
	return p.server
}

func (p *PerServerConnectionPool) Stats() *domain.ServerStats {
	return p.stats
}

// Acquire hands out a connection bound to loop, preferring the most recently
// released idle connection (LIFO keeps hot connections hot and lets the cold
// tail idle out). The callback gets exactly one of conn or err.
func (p *PerServerConnectionPool) Acquire(loop ports.EventLoop, httpMethod, uri string, attempt int, pp *passport.Passport, cb ports.AcquireCallback) {
	p.m.requested.Inc()
	if conn := p.pollIdle(loop); conn != nil {
		p.m.reused.Inc()
		p.onAcquire(conn, pp)
		cb(conn, nil)
		return
	}
	p.tryMakingNewConnection(loop, pp, cb)
}

// pollIdle pops idle connections off the loop's LIFO until it finds a live
// one. Connections that died while pooled are discarded here, not reused.
func (p *PerServerConnectionPool) pollIdle(loop ports.EventLoop) *OriginConnection {
	q, ok := p.idleByLoop.Load(loop.ID())
	if !ok {
		return nil
	}
	for {
		conn, ok := q.Poll()
		if !ok {
			return nil
		}
		p.connsInPool.Add(-1)
		p.m.inPool.Dec()
		conn.setInPool(false)
		if conn.IsActive() && conn.ch.IsOpen() {
			return conn
		}
		p.m.fromPoolNotOpen.Inc()
		_ = conn.Close()
	}
}

func (p *PerServerConnectionPool) tryMakingNewConnection(loop ports.EventLoop, pp *passport.Passport, cb ports.AcquireCallback) {
	if limit := p.cfg.MaxConnectionsPerHost; limit != -1 {
		openAndOpening := p.stats.OpenConnections() + p.creationsInProgress.Load()
		if openAndOpening >= int64(limit) {
			p.m.maxConnsExceeded.Inc()
			p.logger.Warn("max connections per host exceeded",
				"limit", limit, "open_and_opening", openAndOpening)
			cb(nil, domain.NewMaxConnectionsError(p.cfg.OriginName, limit, int(openAndOpening)))
			return
		}
	}
	p.creationsInProgress.Add(1)
	p.m.created.Inc()
	if pp != nil {
		pp.Add(passport.StateOriginChConnecting)
	}
	p.factory.Connect(loop, p.server.Host(), p.server.Port(), pp, func(ch ports.Channel, err error) {
		p.handleConnectCompletion(ch, err, pp, cb)
	})
}

func (p *PerServerConnectionPool) handleConnectCompletion(ch ports.Channel, err error, pp *passport.Passport, cb ports.AcquireCallback) {
	p.creationsInProgress.Add(-1)
	if err != nil {
		p.m.createFailed.Inc()
		p.stats.IncrementSuccessiveFailures()
		p.stats.AddToFailureCount()
		p.logger.Warn("origin connect failed", "error", err)
		cb(nil, domain.NewConnectError(err))
		return
	}
	p.m.createSucceeded.Inc()
	p.stats.ResetSuccessiveFailures()
	p.stats.IncrementOpenConnections()
	if pp != nil {
		pp.Add(passport.StateOriginChConnected)
	}
	conn := newOriginConnection(ch, p.cfg, p.server, p.stats, p)
	p.onAcquire(conn, pp)
	cb(conn, nil)
}

// onAcquire is the single choke point for handing a connection to a request:
// bind the passport, disarm the idle watchdog, start the request timer, bump
// the usage and in-use accounting and grant the first read credit.
func (p *PerServerConnectionPool) onAcquire(conn *OriginConnection, pp *passport.Passport) {
	conn.setInUse(true)
	conn.incrementUsage()
	conn.startRequestTimer()
	p.connsInUse.Add(1)
	p.m.inUse.Inc()
	p.stats.IncrementActiveRequests()
	ch := conn.ch
	if pp != nil {
		ch.SetAttr(constants.AttrPassport, pp)
	}
	ch.EventLoop().Execute(func() {
		ch.Pipeline().Remove(constants.HandlerIdleState)
	})
	ch.Read()
}

// Release returns conn to the idle LIFO of its event loop. It declines (and
// closes the connection) when the channel has died, the pool is shut down or
// the loop's idle count already sits at the waterline.
func (p *PerServerConnectionPool) Release(pc ports.PooledConnection) bool {
	conn, ok := pc.(*OriginConnection)
	if !ok || conn == nil {
		return false
	}
	if conn.InPool() {
		return false
	}
	p.m.released.Inc()
	if conn.InUse() {
		conn.setInUse(false)
		conn.clearRequestTimer()
		p.connsInUse.Add(-1)
		p.m.inUse.Dec()
		p.stats.DecrementActiveRequests()
	}
	if p.closed.Load() || !conn.IsActive() || !conn.ch.IsOpen() {
		p.m.alreadyClosed.Inc()
		_ = conn.Close()
		return false
	}
	q := p.dequeFor(conn.ch.EventLoop().ID())
	if wl := p.cfg.PerServerWaterline; wl != -1 && q.Len() >= wl {
		p.m.aboveWaterline.Inc()
		p.logger.Debug("closing connection released above waterline", "waterline", wl)
		_ = conn.Close()
		return false
	}
	if pp := conn.passportOf(); pp != nil {
		pp.Add(passport.StateOriginChPoolReturned)
	}
	// The passport is request-scoped; a pooled connection must not carry the
	// previous request's trace into the next one.
	conn.ch.SetAttr(constants.AttrPassport, nil)
	ch := conn.ch
	timeout := p.cfg.IdleTimeout
	ch.EventLoop().Execute(func() {
		pipe := ch.Pipeline()
		if !pipe.AddBefore(constants.HandlerOriginLogger, constants.HandlerIdleState, transport.NewIdleStateHandler(timeout)) {
			pipe.AddLast(constants.HandlerIdleState, transport.NewIdleStateHandler(timeout))
		}
	})
	conn.setInPool(true)
	q.Offer(conn)
	p.connsInPool.Add(1)
	p.m.inPool.Inc()
	return true
}

// Remove takes conn out of pool accounting without returning it. Callers use
// it when a cycle ends abnormally and the connection must not be reused.
func (p *PerServerConnectionPool) Remove(pc ports.PooledConnection) bool {
	conn, ok := pc.(*OriginConnection)
	if !ok || conn == nil {
		return false
	}
	if conn.InPool() {
		q, ok := p.idleByLoop.Load(conn.ch.EventLoop().ID())
		if ok && q.Remove(conn) {
			conn.setInPool(false)
			p.connsInPool.Add(-1)
			p.m.inPool.Dec()
			return true
		}
		return false
	}
	if conn.InUse() {
		conn.setInUse(false)
		conn.clearRequestTimer()
		p.connsInUse.Add(-1)
		p.m.inUse.Dec()
		p.stats.DecrementActiveRequests()
		return true
	}
	return false
}

// Shutdown drains every idle LIFO and closes the drained connections. In-use
// connections are closed by their pipelines when their cycles end.
func (p *PerServerConnectionPool) Shutdown() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	p.idleByLoop.Range(func(_ ports.EventLoopID, q *deque.Deque[*OriginConnection]) bool {
		for {
			conn, ok := q.Poll()
			if !ok {
				return true
			}
			p.connsInPool.Add(-1)
			p.m.inPool.Dec()
			conn.setInPool(false)
			_ = conn.Close()
		}
	})
}

func (p *PerServerConnectionPool) ConnsInPool() int64 {
	return p.connsInPool.Load()
}

func (p *PerServerConnectionPool) ConnsInUse() int64 {
	return p.connsInUse.Load()
}

func (p *PerServerConnectionPool) dequeFor(id ports.EventLoopID) *deque.Deque[*OriginConnection] {
	q, _ := p.idleByLoop.LoadOrCompute(id, func() (*deque.Deque[*OriginConnection], bool) {
		return deque.New[*OriginConnection](), false
	})
	return q
}
