// Package server runs the hijacking responder: it owns the listeners, hands
// every query to the resolution engine and reports counters periodically.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/SaudiLinux/urlget/internal/core"
	"github.com/SaudiLinux/urlget/internal/resolver"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

// State of the responder.
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

const shutdownTimeout = 5 * time.Second

// Options configure a Server.
type Options struct {
	Addr          string // host:port to bind
	TCP           bool   // also serve DNS over TCP on the same port
	StatsInterval time.Duration
}

// Server is the responder runtime. Start and Stop are idempotent.
type Server struct {
	opts   Options
	engine *resolver.Engine
	log    logrus.FieldLogger

	mu      sync.Mutex
	state   State
	gen     int
	servers []*dns.Server
	addr    net.Addr
	cancel  context.CancelFunc
	done    sync.WaitGroup
}

// New creates a stopped server.
func New(opts Options, engine *resolver.Engine, log logrus.FieldLogger) *Server {
	if opts.StatsInterval <= 0 {
		opts.StatsInterval = core.DefaultStatsInterval
	}
	return &Server{opts: opts, engine: engine, log: log}
}

// Start binds the listeners and serves in the background. Only a bind
// failure is returned; later serve errors are logged and stop the server.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Running {
		s.log.Warn("DNS server is already running")
		return nil
	}

	pc, err := net.ListenPacket("udp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("%w: udp %s: %v", core.ErrBind, s.opts.Addr, err)
	}
	servers := []*dns.Server{{PacketConn: pc, Net: "udp", Handler: s.engine}}
	if s.opts.TCP {
		l, err := net.Listen("tcp", pc.LocalAddr().String())
		if err != nil {
			pc.Close()
			return fmt.Errorf("%w: tcp %s: %v", core.ErrBind, pc.LocalAddr(), err)
		}
		servers = append(servers, &dns.Server{Listener: l, Net: "tcp", Handler: s.engine})
	}

	s.gen++
	for i, srv := range servers {
		if err := s.activate(srv, s.gen); err != nil {
			for _, started := range servers[:i] {
				started.Shutdown()
			}
			for _, rest := range servers[i:] {
				closeListener(rest)
			}
			return fmt.Errorf("%w: %v", core.ErrBind, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.servers = servers
	s.addr = pc.LocalAddr()
	s.cancel = cancel
	s.state = Running

	s.done.Add(1)
	go s.reportStats(ctx)

	s.log.Infof("DNS server started on %s (tcp=%t)", s.addr, s.opts.TCP)
	return nil
}

// activate starts srv and waits until it is accepting.
func (s *Server) activate(srv *dns.Server, gen int) error {
	started := make(chan struct{})
	errCh := make(chan error, 1)
	srv.NotifyStartedFunc = func() { close(started) }
	go func() { errCh <- srv.ActivateAndServe() }()

	select {
	case <-started:
		go s.watch(srv, gen, errCh)
		return nil
	case err := <-errCh:
		if err == nil {
			err = errors.New("server exited before start")
		}
		return err
	}
}

// watch marks the server stopped if a serve loop dies on its own.
func (s *Server) watch(srv *dns.Server, gen int, errCh <-chan error) {
	err := <-errCh
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || s.state != Running {
		return
	}
	s.log.Errorf("DNS %s listener failed: %v", srv.Net, err)
	s.stopLocked()
}

func closeListener(srv *dns.Server) {
	if srv.PacketConn != nil {
		srv.PacketConn.Close()
	}
	if srv.Listener != nil {
		srv.Listener.Close()
	}
}

// Stop closes the listeners. In-flight queries finish on their own.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Running {
		s.log.Warn("DNS server is not running")
		return nil
	}
	err := s.stopLocked()
	s.log.Info("DNS server stopped")
	return err
}

func (s *Server) stopLocked() error {
	s.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	for _, srv := range s.servers {
		if err := srv.ShutdownContext(ctx); err != nil {
			// a listener that already died cannot be shut down; make sure the port is released
			closeListener(srv)
			errs = append(errs, fmt.Errorf("shutdown %s: %w", srv.Net, err))
		}
	}
	s.servers = nil
	s.state = Stopped
	return errors.Join(errs...)
}

// Wait blocks until the stats reporter of every past run has exited.
func (s *Server) Wait() { s.done.Wait() }

// State reports whether the server is running.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Addr returns the bound UDP address of the current or last run.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Stats returns the engine's counters.
func (s *Server) Stats() *resolver.Stats { return s.engine.Stats() }

func (s *Server) reportStats(ctx context.Context) {
	defer s.done.Done()
	ticker := time.NewTicker(s.opts.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := s.engine.Stats().Snapshot()
			s.log.WithFields(logrus.Fields{
				"requests":  snap.Requests,
				"spoofed":   snap.Spoofed,
				"forwarded": snap.Forwarded,
				"errors":    snap.Errors,
			}).Info("DNS stats")
		}
	}
}
