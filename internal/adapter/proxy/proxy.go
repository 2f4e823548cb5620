// Package proxy is the filter pipeline that turns the gateway core into a
// working reverse proxy: it routes each request to an origin, borrows a
// pooled connection on the client's own event loop and relays the origin
// response back through the client channel.
package proxy

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gantryio/gantry/internal/adapter/codec"
	"github.com/gantryio/gantry/internal/adapter/gateway"
	"github.com/gantryio/gantry/internal/adapter/pool"
	"github.com/gantryio/gantry/internal/core/constants"
	"github.com/gantryio/gantry/internal/core/domain"
	"github.com/gantryio/gantry/internal/core/ports"
	"github.com/gantryio/gantry/pkg/passport"
)

// proxySession is the per-cycle state bridging the client channel and the
// origin connection. Body chunks arriving before the origin connect finishes
// are parked in pending and flushed once the request head has been written.
type proxySession struct {
	request  *domain.RequestMessage
	clientCh ports.Channel
	server   *domain.Server
	conn     ports.PooledConnection

	connected bool
	failed    bool
	pending   []*codec.Content
	startNano int64
}

// Filter proxies every request to the routed origin. It implements the
// filter pipeline contract; all calls arrive on the client channel's loop and
// the origin connection is acquired on that same loop, so no cross-loop
// synchronization is needed on the session.
type Filter struct {
	router     *Router
	selector   ports.ServerSelector
	registries map[string]*pool.Registry
	stats      ports.StatsCollector
	logger     *slog.Logger
}

func NewFilter(router *Router, selector ports.ServerSelector, registries map[string]*pool.Registry, stats ports.StatsCollector, logger *slog.Logger) *Filter {
	return &Filter{
		router:     router,
		selector:   selector,
		registries: registries,
		stats:      stats,
		logger:     logger,
	}
}

func (f *Filter) ProcessRequest(ch ports.Channel, req *domain.RequestMessage) {
	route, ok := f.router.Route(req)
	if !ok {
		f.respondUnavailable(ch, req, "no origin configured")
		return
	}
	server, err := f.selector.Select(route.Servers)
	if err != nil {
		f.logger.Warn("server selection failed", "origin", route.Origin, "error", err)
		f.respondUnavailable(ch, req, "no origin server available")
		return
	}
	registry, ok := f.registries[route.Origin]
	if !ok {
		f.respondUnavailable(ch, req, "no pool for origin")
		return
	}

	session := &proxySession{
		request:   req,
		clientCh:  ch,
		server:    server,
		startNano: time.Now().UnixNano(),
	}
	ch.SetAttr(constants.AttrProxySession, session)

	p := registry.PoolFor(server)
	p.Acquire(ch.EventLoop(), req.Method, req.Path, 1, passportOf(ch), func(conn ports.PooledConnection, err error) {
		if err != nil {
			session.failed = true
			f.disposePending(session)
			req.DisposeBufferedBody()
			ch.SetAttr(constants.AttrProxySession, nil)
			ch.Pipeline().FireError(err)
			return
		}
		if req.Context().IsCancelled() {
			// The client went away while we were connecting.
			session.failed = true
			f.disposePending(session)
			_ = conn.Channel().Close()
			ch.SetAttr(constants.AttrProxySession, nil)
			return
		}
		session.conn = conn
		f.forwardRequest(session)
	})
}

// forwardRequest installs the per-cycle relay on the origin pipeline, writes
// the rebuilt request head and flushes any body chunks parked while the
// connect was in flight.
func (f *Filter) forwardRequest(session *proxySession) {
	origin := session.conn.Channel()
	origin.Pipeline().AddBefore(constants.HandlerConnectionPool, constants.HandlerResponseRelay,
		newOriginResponseRelay(session, f.stats, f.logger))

	head := buildOriginRequest(session.request, session.server)
	origin.Write(head, nil)
	for _, buffered := range session.request.BodyContents() {
		buffered.Retain()
		origin.Write(&codec.Content{Buf: buffered, Last: buffered.IsLast()}, nil)
	}
	session.connected = true
	pending := session.pending
	session.pending = nil
	for _, chunk := range pending {
		origin.Write(chunk, nil)
	}
	origin.Flush()
}

func (f *Filter) ProcessContent(ch ports.Channel, chunk *domain.BodyBuffer, last bool) {
	v, _ := ch.Attr(constants.AttrProxySession)
	session, ok := v.(*proxySession)
	if !ok || session == nil || session.failed {
		if chunk != nil && chunk.Refs() > 0 {
			chunk.Release()
		}
		return
	}
	frame := &codec.Content{Buf: chunk, Last: last}
	if !session.connected {
		session.pending = append(session.pending, frame)
		return
	}
	session.conn.Channel().WriteAndFlush(frame, nil)
}

func (f *Filter) respondUnavailable(ch ports.Channel, req *domain.RequestMessage, reason string) {
	f.logger.Warn("request not routable",
		"method", req.Method, "path", req.Path, "reason", reason)
	resp := domain.NewResponseMessage(req, 503)
	resp.Headers.Add("Content-Length", "0")
	gateway.InjectResponse(ch, resp)
	gateway.InjectContent(ch, domain.NewLastBodyBuffer(nil), true)
}

func (f *Filter) disposePending(session *proxySession) {
	for _, frame := range session.pending {
		if frame.Buf != nil && frame.Buf.Refs() > 0 {
			frame.Buf.Release()
		}
	}
	session.pending = nil
}

// buildOriginRequest rebuilds the wire head for the origin hop. Hop-by-hop
// headers are stripped and the client address is appended to
// X-Forwarded-For.
func buildOriginRequest(req *domain.RequestMessage, server *domain.Server) *codec.RequestHead {
	uri := req.Path
	if q := req.Query.Encode(); q != "" {
		uri += "?" + q
	}
	head := codec.NewRequestHead(strings.ToUpper(req.Method), uri, "HTTP/1.1")
	for _, e := range req.Headers.Entries() {
		head.Headers.Add(e.Key, e.Value)
	}
	head.Headers.Remove("Connection")
	head.Headers.Remove("Keep-Alive")
	head.Headers.Remove("Proxy-Connection")
	head.Headers.Remove(constants.HeaderStreamID)

	if req.ClientIP != "" {
		if prior := head.Headers.GetFirst("X-Forwarded-For"); prior != "" {
			head.Headers.Set("X-Forwarded-For", prior+", "+req.ClientIP)
		} else {
			head.Headers.Set("X-Forwarded-For", req.ClientIP)
		}
	}
	if req.Scheme != "" {
		head.Headers.Set("X-Forwarded-Proto", req.Scheme)
	}
	return head
}

func passportOf(ch ports.Channel) *passport.Passport {
	if v, ok := ch.Attr(constants.AttrPassport); ok {
		if p, ok := v.(*passport.Passport); ok {
			return p
		}
	}
	return nil
}
