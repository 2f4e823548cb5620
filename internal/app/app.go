// Package app assembles the gateway from its parts: event loops, per-origin
// connection pools, the load balancer, the proxy filter and the client-facing
// listener, plus the engineering surface serving metrics and stats.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/gantryio/gantry/internal/adapter/balancer"
	"github.com/gantryio/gantry/internal/adapter/eventloop"
	"github.com/gantryio/gantry/internal/adapter/gateway"
	"github.com/gantryio/gantry/internal/adapter/metrics"
	"github.com/gantryio/gantry/internal/adapter/pool"
	"github.com/gantryio/gantry/internal/adapter/proxy"
	"github.com/gantryio/gantry/internal/adapter/stats"
	"github.com/gantryio/gantry/internal/adapter/transport"
	"github.com/gantryio/gantry/internal/config"
	"github.com/gantryio/gantry/internal/core/ports"
	"github.com/gantryio/gantry/pkg/eventbus"
)

// Application owns the lifecycle of every runtime component. Start brings the
// gateway up in dependency order; Stop tears it down in reverse.
type Application struct {
	cfg    *config.Config
	logger *slog.Logger

	loops       *eventloop.Group
	collector   *stats.Collector
	registries  map[string]*pool.Registry
	server      *transport.Server
	bus         *eventbus.EventBus[gateway.RequestCompletionEvent]
	completions *gateway.EventBusCompleteHandler
	engineering *EngineeringServer

	busCtx    context.Context
	busCancel context.CancelFunc
}

// loopGroup adapts the concrete event loop group to the listener's view.
type loopGroup struct {
	group *eventloop.Group
}

func (g loopGroup) Next() ports.EventLoop {
	return g.group.Next()
}

func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	loopCount := cfg.Server.EventLoops
	if loopCount <= 0 {
		loopCount = runtime.NumCPU()
	}
	loops := eventloop.NewGroup(loopCount)

	collector := stats.NewCollector()

	var metricsRegistry ports.MetricsRegistry
	var engineering *EngineeringServer
	if cfg.Engineering.MetricsEnabled {
		engineering = NewEngineeringServer(cfg.Engineering.MetricsAddress, collector, logger)
		metricsRegistry = engineering.Registry()
	} else {
		metricsRegistry = metrics.NewMemoryRegistry()
	}

	selector, err := balancer.NewFactory(collector).Create(cfg.Balancer.Strategy)
	if err != nil {
		return nil, fmt.Errorf("load balancer: %w", err)
	}

	dial := transport.NewTCPDialer(logger)
	registries := make(map[string]*pool.Registry, len(cfg.Origins))
	routes := make([]*proxy.Route, 0, len(cfg.Origins))
	for _, origin := range cfg.Origins {
		initializer := pool.NewOutboundPipelineInitializer(origin.Name, metricsRegistry, logger)
		factory := pool.NewFactory(pool.Dialer(dial), initializer, cfg.Pool.ConnectTimeout, logger)
		registries[origin.Name] = pool.NewRegistry(
			cfg.PoolConfigFor(origin.Name), factory, metricsRegistry, collector, logger)
		routes = append(routes, &proxy.Route{Origin: origin.Name, Servers: origin.DomainServers()})
	}

	bus := eventbus.New[gateway.RequestCompletionEvent]()
	completions := gateway.NewEventBusCompleteHandler(bus, logger)
	filter := proxy.NewFilter(proxy.NewRouter(routes), selector, registries, collector, logger)
	initializer := gateway.NewInboundPipelineInitializer(
		filter,
		NewSessionDecorator(cfg.Server.DebugRequests),
		completions,
		cfg.Server.IdleTimeout,
		logger,
	)

	server := transport.NewServer(transport.ServerConfig{
		Address:           cfg.Server.GetAddress(),
		TrustedProxyCIDRs: cfg.Server.TrustedProxyCIDRsParsed,
	}, loopGroup{group: loops}, initializer, logger)

	return &Application{
		cfg:         cfg,
		logger:      logger,
		loops:       loops,
		collector:   collector,
		registries:  registries,
		server:      server,
		bus:         bus,
		completions: completions,
		engineering: engineering,
	}, nil
}

// Start binds the listener and brings up the background consumers. It returns
// once the gateway is accepting; serving runs on background goroutines and
// surfaces failures through errCh.
func (a *Application) Start(ctx context.Context, errCh chan<- error) error {
	if err := a.server.Listen(); err != nil {
		return err
	}

	a.busCtx, a.busCancel = context.WithCancel(ctx)
	go gateway.AccessLogSubscriber(a.busCtx, a.bus, a.logger)

	go func() {
		if err := a.server.Serve(); err != nil {
			errCh <- fmt.Errorf("gateway listener: %w", err)
		}
	}()

	if a.engineering != nil {
		go func() {
			if err := a.engineering.Start(); err != nil {
				a.logger.Warn("engineering server stopped", "error", err)
			}
		}()
	}

	a.logger.Info("gateway started",
		"address", a.server.Addr().String(),
		"origins", len(a.registries),
		"event_loops", len(a.loops.Loops()),
		"strategy", a.cfg.Balancer.Strategy)
	return nil
}

// Addr reports the bound listener address once Start has succeeded.
func (a *Application) Addr() string {
	if addr := a.server.Addr(); addr != nil {
		return addr.String()
	}
	return ""
}

// Stop drains the gateway: stop accepting, close client channels, shut every
// pool down and stop the loops. Bounded by the configured shutdown timeout.
func (a *Application) Stop() {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := a.server.Shutdown(); err != nil {
			a.logger.Warn("listener shutdown", "error", err)
		}
		for name, registry := range a.registries {
			registry.ShutdownAll()
			a.logger.Debug("origin pools shut down", "origin", name)
		}
	}()

	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	select {
	case <-done:
	case <-time.After(timeout):
		a.logger.Warn("shutdown timed out", "timeout", timeout)
	}

	if a.engineering != nil {
		a.engineering.Stop()
	}
	if a.busCancel != nil {
		a.busCancel()
	}
	a.completions.Shutdown()
	a.bus.Shutdown()
	a.loops.Close()
	a.logger.Info("gateway stopped")
}
