package proxy

import (
	"strings"

	"github.com/gantryio/gantry/internal/core/domain"
)

// Route is one origin a request can be steered to.
type Route struct {
	Origin  string
	Servers []*domain.Server
}

// Router maps an inbound request to an origin by Host header, falling back
// to the first configured origin when no host matches.
type Router struct {
	byHost   map[string]*Route
	fallback *Route
}

func NewRouter(routes []*Route) *Router {
	r := &Router{byHost: make(map[string]*Route, len(routes))}
	for _, route := range routes {
		if r.fallback == nil {
			r.fallback = route
		}
		r.byHost[strings.ToLower(route.Origin)] = route
	}
	return r
}

// Route resolves the origin for req. The Host header is matched without its
// port and case-insensitively.
func (r *Router) Route(req *domain.RequestMessage) (*Route, bool) {
	host := req.Headers.GetFirst("Host")
	if host != "" {
		if idx := strings.LastIndexByte(host, ':'); idx > 0 && !strings.Contains(host[idx:], "]") {
			host = host[:idx]
		}
		if route, ok := r.byHost[strings.ToLower(host)]; ok {
			return route, true
		}
	}
	if r.fallback == nil {
		return nil, false
	}
	return r.fallback, true
}
