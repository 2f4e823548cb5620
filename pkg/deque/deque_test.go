package deque

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfferPollLIFO(t *testing.T) {
	d := New[int]()
	d.Offer(1)
	d.Offer(2)
	d.Offer(3)

	v, ok := d.Poll()
	require.True(t, ok)
	assert.Equal(t, 3, v)

	v, ok = d.Poll()
	require.True(t, ok)
	assert.Equal(t, 2, v)

	v, ok = d.Poll()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = d.Poll()
	assert.False(t, ok)
}

func TestPollEmpty(t *testing.T) {
	d := New[string]()
	v, ok := d.Poll()
	assert.False(t, ok)
	assert.Empty(t, v)
	assert.Zero(t, d.Len())
}

func TestRemove(t *testing.T) {
	d := New[int]()
	d.Offer(1)
	d.Offer(2)
	d.Offer(3)

	assert.True(t, d.Remove(2))
	assert.Equal(t, 2, d.Len())
	assert.False(t, d.Remove(2), "already removed")
	assert.False(t, d.Remove(99), "never offered")

	// Removed node is skipped by Poll.
	v, ok := d.Poll()
	require.True(t, ok)
	assert.Equal(t, 3, v)
	v, ok = d.Poll()
	require.True(t, ok)
	assert.Equal(t, 1, v)
	_, ok = d.Poll()
	assert.False(t, ok)
}

func TestRemoveHead(t *testing.T) {
	d := New[int]()
	d.Offer(1)
	d.Offer(2)

	assert.True(t, d.Remove(2))
	v, ok := d.Poll()
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestLen(t *testing.T) {
	d := New[int]()
	assert.Zero(t, d.Len())
	d.Offer(10)
	d.Offer(20)
	assert.Equal(t, 2, d.Len())
	d.Poll()
	assert.Equal(t, 1, d.Len())
	d.Remove(10)
	assert.Zero(t, d.Len())
}

func TestItems(t *testing.T) {
	d := New[int]()
	d.Offer(1)
	d.Offer(2)
	d.Offer(3)
	d.Remove(2)

	assert.Equal(t, []int{3, 1}, d.Items())
}

func TestDuplicateValues(t *testing.T) {
	d := New[int]()
	d.Offer(7)
	d.Offer(7)
	assert.Equal(t, 2, d.Len())

	// Remove marks only the first live node.
	assert.True(t, d.Remove(7))
	assert.Equal(t, 1, d.Len())
	v, ok := d.Poll()
	require.True(t, ok)
	assert.Equal(t, 7, v)
	_, ok = d.Poll()
	assert.False(t, ok)
}

func TestConcurrentOfferPoll(t *testing.T) {
	const (
		writers = 4
		perG    = 1000
	)
	d := New[int]()

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perG; i++ {
				d.Offer(base + i)
			}
		}(w * perG)
	}
	wg.Wait()

	seen := make(map[int]bool, writers*perG)
	var mu sync.Mutex
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				v, ok := d.Poll()
				if !ok {
					return
				}
				mu.Lock()
				require.False(t, seen[v], "value polled twice: %d", v)
				seen[v] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, writers*perG)
	assert.Zero(t, d.Len())
}

func TestConcurrentRemoveAndPoll(t *testing.T) {
	const n = 500
	d := New[int]()
	for i := 0; i < n; i++ {
		d.Offer(i)
	}

	var removed, polled int64
	var mu sync.Mutex
	claimed := make(map[int]int, n)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			if d.Remove(i) {
				mu.Lock()
				removed++
				claimed[i]++
				mu.Unlock()
			}
		}
	}()
	go func() {
		defer wg.Done()
		for {
			v, ok := d.Poll()
			if !ok {
				return
			}
			mu.Lock()
			polled++
			claimed[v]++
			mu.Unlock()
		}
	}()
	wg.Wait()

	// Every value is claimed by exactly one of Remove or Poll.
	for v, count := range claimed {
		assert.Equal(t, 1, count, "value %d claimed %d times", v, count)
	}
	assert.EqualValues(t, n, removed+polled+int64(d.Len()))
}
