// Package balancer ships the server selection strategies and the factory
// that builds them by name from configuration.
package balancer

import (
	"fmt"
	"sync"

	"github.com/gantryio/gantry/internal/core/ports"
)

const DefaultBalancerRoundRobin = "round_robin"
const DefaultBalancerLeastConnections = "least_connections"

type Factory struct {
	creators       map[string]func(ports.StatsCollector) ports.ServerSelector
	statsCollector ports.StatsCollector
	mu             sync.RWMutex
}

func NewFactory(statsCollector ports.StatsCollector) *Factory {
	factory := &Factory{
		creators:       make(map[string]func(ports.StatsCollector) ports.ServerSelector),
		statsCollector: statsCollector,
	}

	factory.Register(DefaultBalancerRoundRobin, func(ports.StatsCollector) ports.ServerSelector {
		return NewRoundRobinSelector()
	})
	factory.Register(DefaultBalancerLeastConnections, func(collector ports.StatsCollector) ports.ServerSelector {
		return NewLeastConnectionsSelector(collector)
	})

	return factory
}

func (f *Factory) Register(name string, creator func(ports.StatsCollector) ports.ServerSelector) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creators[name] = creator
}

func (f *Factory) Create(name string) (ports.ServerSelector, error) {
	f.mu.RLock()
	creator, exists := f.creators[name]
	f.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unknown load balancer strategy: %s", name)
	}

	return creator(f.statsCollector), nil
}

func (f *Factory) GetAvailableStrategies() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	strategies := make([]string, 0, len(f.creators))
	for name := range f.creators {
		strategies = append(strategies, name)
	}
	return strategies
}
