package eventloop

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopRunsTasksInOrder(t *testing.T) {
	l := NewLoop()
	defer l.Close()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(3)
	for i := 1; i <= 3; i++ {
		i := i
		l.Execute(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		})
	}
	wg.Wait()

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestLoopSerialExecution(t *testing.T) {
	l := NewLoop()
	defer l.Close()

	var inFlight atomic.Int32
	var overlapped atomic.Bool
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		l.Execute(func() {
			if inFlight.Add(1) > 1 {
				overlapped.Store(true)
			}
			inFlight.Add(-1)
			wg.Done()
		})
	}
	wg.Wait()

	assert.False(t, overlapped.Load())
}

func TestLoopCloseDrainsQueuedTasks(t *testing.T) {
	l := NewLoop()

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		l.Execute(func() { ran.Add(1) })
	}
	l.Close()

	assert.EqualValues(t, 10, ran.Load())
}

func TestLoopExecuteAfterCloseDropped(t *testing.T) {
	l := NewLoop()
	l.Close()

	require.NotPanics(t, func() {
		l.Execute(func() { t.Error("task ran after close") })
	})
}

func TestLoopCloseIdempotent(t *testing.T) {
	l := NewLoop()
	l.Close()
	require.NotPanics(t, l.Close)
}

func TestLoopIDsUnique(t *testing.T) {
	a := NewLoop()
	b := NewLoop()
	defer a.Close()
	defer b.Close()

	assert.NotEqual(t, a.ID(), b.ID())
}

func TestGroupRoundRobin(t *testing.T) {
	g := NewGroup(3)
	defer g.Close()

	require.Len(t, g.Loops(), 3)
	first := g.Next()
	second := g.Next()
	third := g.Next()
	assert.NotSame(t, first, second)
	assert.NotSame(t, second, third)
	assert.Same(t, first, g.Next(), "assignment wraps around")
}

func TestGroupSizeFloor(t *testing.T) {
	g := NewGroup(0)
	defer g.Close()
	assert.Len(t, g.Loops(), 1)
}
