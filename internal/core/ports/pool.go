package ports

import (
	"github.com/gantryio/gantry/internal/core/domain"
	"github.com/gantryio/gantry/pkg/passport"
)

// PooledConnection is one origin connection owned by a pool.
type PooledConnection interface {
	Channel() Channel
	Config() *domain.ConnectionPoolConfig
	Server() *domain.Server
	IsActive() bool
	InPool() bool
	InUse() bool
	UsageCount() uint32
	Close() error
}

// AcquireCallback completes an acquire. Exactly one of conn and err is
// non-nil; it runs on the acquiring event loop.
type AcquireCallback func(conn PooledConnection, err error)

// ConnectionPool hands out origin connections with at-most-one concurrent
// user per connection.
type ConnectionPool interface {
	Acquire(loop EventLoop, httpMethod, uri string, attempt int, p *passport.Passport, cb AcquireCallback)
	Release(conn PooledConnection) bool
	Remove(conn PooledConnection) bool
	Shutdown()
	ConnsInPool() int64
	ConnsInUse() int64
}

// ConnectCallback completes a transport connect attempt on the target loop.
type ConnectCallback func(ch Channel, err error)

// ConnectionFactory dials origin servers and installs the outbound pipeline
// on the new channel before the callback runs.
type ConnectionFactory interface {
	Connect(loop EventLoop, host string, port int, p *passport.Passport, cb ConnectCallback)
}
