// Package eventloop provides the in-process event loop engine adapter: a
// fixed set of single-goroutine executors that channels bind to. Socket
// reads are driven by the transport package's server and reader; the loops
// here give handlers their serial execution guarantee.
package eventloop

import (
	"sync"
	"sync/atomic"

	"github.com/gantryio/gantry/internal/core/ports"
)

var loopSeq atomic.Uint64

// Loop is a single-threaded task executor implementing ports.EventLoop.
type Loop struct {
	tasks  chan func()
	done   chan struct{}
	id     ports.EventLoopID
	closed atomic.Bool
	once   sync.Once
}

func NewLoop() *Loop {
	l := &Loop{
		tasks: make(chan func(), 1024),
		done:  make(chan struct{}),
		id:    ports.EventLoopID(loopSeq.Add(1)),
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	for task := range l.tasks {
		task()
	}
	close(l.done)
}

func (l *Loop) ID() ports.EventLoopID {
	return l.id
}

// Execute enqueues task to run serially on the loop goroutine. Tasks
// submitted after Close are dropped.
func (l *Loop) Execute(task func()) {
	if l.closed.Load() {
		return
	}
	defer func() {
		// The loop may close concurrently with the send.
		_ = recover()
	}()
	l.tasks <- task
}

// Close stops the loop after draining queued tasks.
func (l *Loop) Close() {
	l.once.Do(func() {
		l.closed.Store(true)
		close(l.tasks)
		<-l.done
	})
}

// Group is a fixed-size collection of loops handed out round-robin, the way
// the engine assigns accepted channels to workers.
type Group struct {
	loops []*Loop
	next  atomic.Uint64
}

func NewGroup(size int) *Group {
	if size <= 0 {
		size = 1
	}
	g := &Group{loops: make([]*Loop, size)}
	for i := range g.loops {
		g.loops[i] = NewLoop()
	}
	return g
}

func (g *Group) Next() *Loop {
	n := g.next.Add(1)
	return g.loops[(n-1)%uint64(len(g.loops))]
}

func (g *Group) Loops() []*Loop {
	return g.loops
}

func (g *Group) Close() {
	for _, l := range g.loops {
		l.Close()
	}
}
