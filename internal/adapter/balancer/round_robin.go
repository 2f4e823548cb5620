package balancer

import (
	"fmt"
	"sync/atomic"

	"github.com/gantryio/gantry/internal/core/domain"
)

type RoundRobinSelector struct {
	counter atomic.Uint64
}

func NewRoundRobinSelector() *RoundRobinSelector {
	return &RoundRobinSelector{}
}

func (r *RoundRobinSelector) Name() string {
	return DefaultBalancerRoundRobin
}

// Select walks the server list in order, one server per call.
func (r *RoundRobinSelector) Select(servers []*domain.Server) (*domain.Server, error) {
	if len(servers) == 0 {
		return nil, fmt.Errorf("no servers available")
	}

	current := r.counter.Add(1) - 1 // Subtract 1 to start from 0
	index := current % uint64(len(servers))

	return servers[index], nil
}
