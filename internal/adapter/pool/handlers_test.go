package pool

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gantryio/gantry/internal/adapter/codec"
	"github.com/gantryio/gantry/internal/adapter/metrics"
	"github.com/gantryio/gantry/internal/adapter/transport"
	"github.com/gantryio/gantry/internal/core/constants"
	"github.com/gantryio/gantry/internal/core/domain"
)

func newMetricsChannel(reg *metrics.MemoryRegistry, sink *fakeSink) *transport.Channel {
	ch := transport.NewChannel(&syncLoop{id: 1}, sink, discardLogger())
	ch.Pipeline().AddLast(constants.HandlerHTTPMetrics, NewHTTPMetricsHandler(reg, "api"))
	return ch
}

func TestPoolHandlerReleasesOnSessionComplete(t *testing.T) {
	f := newPoolFixture(t, 10, 10)
	conn := f.acquire(t)

	conn.Channel().Pipeline().FireEvent(domain.CompleteEvent{Reason: domain.CompleteSessionComplete})

	assert.True(t, conn.InPool())
	assert.EqualValues(t, 1, f.pool.ConnsInPool())
	assert.EqualValues(t, 0, f.pool.ConnsInUse())
	assert.True(t, conn.IsActive())
}

func TestPoolHandlerDiscardsOnAbnormalComplete(t *testing.T) {
	f := newPoolFixture(t, 10, 10)
	conn := f.acquire(t)

	conn.Channel().Pipeline().FireEvent(domain.CompleteEvent{Reason: domain.CompleteDisconnect})

	assert.False(t, conn.InPool())
	assert.False(t, conn.IsActive())
	assert.EqualValues(t, 0, f.pool.ConnsInUse())
	assert.EqualValues(t, 0, f.stats.OpenConnections())
}

func TestPoolHandlerDiscardsOnIdle(t *testing.T) {
	f := newPoolFixture(t, 10, 10)
	conn := f.acquire(t)
	require.True(t, f.pool.Release(conn))

	conn.Channel().Pipeline().FireEvent(domain.IdleEvent{})

	assert.False(t, conn.IsActive())
	assert.EqualValues(t, 0, f.pool.ConnsInPool())
}

func TestPoolHandlerDiscardsOnError(t *testing.T) {
	f := newPoolFixture(t, 10, 10)
	conn := f.acquire(t)

	conn.Channel().Pipeline().FireError(errors.New("origin reset"))

	assert.False(t, conn.IsActive())
	assert.EqualValues(t, 0, f.pool.ConnsInUse())
	assert.EqualValues(t, 0, f.stats.OpenConnections())
}

func TestMetricsHandlerCountsResponses(t *testing.T) {
	reg := metrics.NewMemoryRegistry()
	sink := &fakeSink{}
	ch := newMetricsChannel(reg, sink)
	labels := map[string]string{"origin": "api"}

	ch.Pipeline().FireEvent(domain.StartEvent{})
	assert.Equal(t, float64(1), reg.GaugeValue("origin_http_inflight", labels))

	ch.Pipeline().FireRead(codec.NewResponseHead("HTTP/1.1", 200))
	assert.Equal(t, float64(1), reg.CounterValue("origin_http_responses_total", labels))

	ch.Pipeline().FireEvent(domain.CompleteEvent{Reason: domain.CompleteSessionComplete})
	assert.Equal(t, float64(0), reg.GaugeValue("origin_http_inflight", labels))
}

func TestMetricsHandlerCountsErrors(t *testing.T) {
	reg := metrics.NewMemoryRegistry()
	sink := &fakeSink{}
	ch := newMetricsChannel(reg, sink)

	ch.Pipeline().FireError(errors.New("origin reset"))

	assert.Equal(t, float64(1), reg.CounterValue("origin_http_errors_total", map[string]string{"origin": "api"}))
}
