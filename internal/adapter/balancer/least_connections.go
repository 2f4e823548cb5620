package balancer

import (
	"fmt"

	"github.com/gantryio/gantry/internal/core/domain"
	"github.com/gantryio/gantry/internal/core/ports"
)

// LeastConnectionsSelector picks the server with the fewest active requests.
// Active request counts come from the stats collector, which the connection
// pool keeps current.
type LeastConnectionsSelector struct {
	statsCollector ports.StatsCollector
}

func NewLeastConnectionsSelector(statsCollector ports.StatsCollector) *LeastConnectionsSelector {
	return &LeastConnectionsSelector{
		statsCollector: statsCollector,
	}
}

func (l *LeastConnectionsSelector) Name() string {
	return DefaultBalancerLeastConnections
}

func (l *LeastConnectionsSelector) Select(servers []*domain.Server) (*domain.Server, error) {
	if len(servers) == 0 {
		return nil, fmt.Errorf("no servers available")
	}

	var selected *domain.Server
	minActive := int64(-1)

	for _, server := range servers {
		active := l.statsCollector.StatsFor(server).ActiveRequests()
		if minActive == -1 || active < minActive {
			minActive = active
			selected = server
		}
	}

	return selected, nil
}
