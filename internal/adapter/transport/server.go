package transport

import (
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/gantryio/gantry/internal/core/ports"
)

// LoopGroup hands out the event loop for the next accepted channel.
type LoopGroup interface {
	Next() ports.EventLoop
}

// ServerConfig carries the listener settings.
type ServerConfig struct {
	Address           string
	TrustedProxyCIDRs []*net.IPNet
}

// Server accepts TCP connections, binds each to an event loop and runs the
// HTTP request decoder against the channel's pipeline.
type Server struct {
	cfg         ServerConfig
	loops       LoopGroup
	initializer ports.ChannelInitializer
	logger      *slog.Logger

	listener net.Listener
	mu       sync.Mutex
	channels map[*Channel]struct{}
	closed   bool
	wg       sync.WaitGroup
}

func NewServer(cfg ServerConfig, loops LoopGroup, initializer ports.ChannelInitializer, logger *slog.Logger) *Server {
	return &Server{
		cfg:         cfg,
		loops:       loops,
		initializer: initializer,
		logger:      logger,
		channels:    make(map[*Channel]struct{}),
	}
}

// Listen binds the configured address. Serve must be called afterwards.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Address, err)
	}
	s.listener = listener
	return nil
}

// Addr returns the bound address, useful when listening on port 0.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until the listener closes. It blocks; run it on
// its own goroutine.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}

	loop := s.loops.Next()
	sink := newWireSink(conn)
	ch := NewChannel(loop, sink, s.logger)
	reader := newWireReader(ch, conn)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.channels[ch] = struct{}{}
	s.mu.Unlock()

	loop.Execute(func() {
		s.initializer.Initialize(ch)
		ch.Read()
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		reader.runServer(s.cfg.TrustedProxyCIDRs)
		s.mu.Lock()
		delete(s.channels, ch)
		s.mu.Unlock()
	}()
}

// Shutdown stops accepting and closes every open client channel.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	open := make([]*Channel, 0, len(s.channels))
	for ch := range s.channels {
		open = append(open, ch)
	}
	s.mu.Unlock()

	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	for _, ch := range open {
		_ = ch.Close()
	}
	s.wg.Wait()
	return err
}
