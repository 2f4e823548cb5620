package ports

import "net"

// EventLoopID identifies one single-threaded I/O worker. The connection pool
// partitions idle connections by this identity.
type EventLoopID uint64

// EventLoop is a single-threaded executor. All handler callbacks for a
// channel run serially on its bound loop; Execute enqueues work onto that
// thread. Implementations must never block the caller.
type EventLoop interface {
	ID() EventLoopID
	Execute(task func())
}

// WriteCallback is invoked on the channel's event loop once a write has been
// flushed to the transport or has failed.
type WriteCallback func(err error)

// Channel is one open transport connection plus its handler pipeline and
// attribute side table. A channel is permanently bound to one event loop.
type Channel interface {
	EventLoop() EventLoop
	Pipeline() Pipeline

	// Write enqueues msg for the outbound handler traversal without flushing.
	Write(msg any, done WriteCallback)
	WriteAndFlush(msg any, done WriteCallback)
	Flush()

	// Read requests a single inbound read from the engine (one-message credit:
	// the head frame and all of its body frames).
	Read()

	// Close is exactly-once for the underlying transport; subsequent calls
	// are no-ops returning nil.
	Close() error

	IsActive() bool
	IsOpen() bool

	LocalAddr() net.Addr
	RemoteAddr() net.Addr

	Attr(key string) (any, bool)
	SetAttr(key string, value any)
}

// ChannelInitializer builds the handler pipeline on a freshly created
// channel before any frame is delivered.
type ChannelInitializer interface {
	Initialize(ch Channel)
}

// Pipeline is the ordered handler chain attached to one channel. Reads and
// events traverse head to tail; writes traverse tail to head before reaching
// the transport.
type Pipeline interface {
	Channel() Channel

	AddLast(name string, handler any)
	AddBefore(existing, name string, handler any) bool
	Remove(name string) bool

	FireRead(msg any)
	// FireReadAt injects msg so that the named handler is the first to see it.
	FireReadAt(name string, msg any)
	FireEvent(evt any)
	FireError(err error)

	Write(msg any, done WriteCallback)
	Flush()
}

// HandlerContext is a handler's view of its position in the pipeline. Fire*
// forwards to the next handler toward the tail; Write starts the outbound
// traversal from this handler toward the transport.
type HandlerContext interface {
	Channel() Channel
	FireRead(msg any)
	FireEvent(evt any)
	FireError(err error)
	Write(msg any, done WriteCallback)
	WriteAndFlush(msg any, done WriteCallback)
	Flush()
	Close()
}

// Pipeline stages implement any subset of the callbacks below; the pipeline
// skips stages that do not implement a given direction.

type ReadHandler interface {
	OnRead(ctx HandlerContext, msg any)
}

type WriteHandler interface {
	OnWrite(ctx HandlerContext, msg any, done WriteCallback)
}

type EventHandler interface {
	OnEvent(ctx HandlerContext, evt any)
}

type ErrorHandler interface {
	OnError(ctx HandlerContext, err error)
}
