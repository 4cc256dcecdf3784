package socksproxy

import (
	"context"
	"fmt"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"github.com/opd-ai/go-socks-proxy/internal/metrics"
	"github.com/opd-ai/go-socks-proxy/internal/sockserr"
	"github.com/opd-ai/go-socks-proxy/internal/trace"
)

// ServerConfig configures the top-level listener, per spec.md §4.7.
type ServerConfig struct {
	// BindAddress is the TCP address the accept loop listens on, e.g.
	// "127.0.0.1:1080". May be IPv4 or IPv6.
	BindAddress string
	Dialer      DialerConfig
	// ShutdownGrace bounds how long Shutdown waits for in-flight
	// sessions to finish relaying before returning.
	ShutdownGrace time.Duration
}

// DefaultServerConfig returns spec-mandated defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		BindAddress:   "127.0.0.1:1080",
		Dialer:        DefaultDialerConfig(),
		ShutdownGrace: 10 * time.Second,
	}
}

// Server owns the listener, the shared Handler, and the ambient
// observability stack, and dispatches accepted connections to the v4 or
// v5 session state machine based on the first byte read.
type Server struct {
	cfg      ServerConfig
	handler  Handler
	dialer   *Dialer
	registry *Registry
	inst     *Instrumentation

	listener net.Listener
	wg       sync.WaitGroup

	mu       sync.Mutex
	cancel   context.CancelFunc
	shutdown chan struct{}
	stopOnce sync.Once
}

// NewServer creates a Server ready to ListenAndServe. A nil handler
// defaults to DefaultHandler; a nil Instrumentation (or nil field) gets
// the defaults described on Instrumentation: an Info-level stdout logger,
// a tracer that discards spans, and a fresh Metrics.
func NewServer(cfg ServerConfig, handler Handler, inst *Instrumentation) *Server {
	if handler == nil {
		handler = DefaultHandler{}
	}
	inst = inst.normalize()

	return &Server{
		cfg:      cfg,
		handler:  handler,
		dialer:   NewDialer(cfg.Dialer, inst.Log),
		registry: NewRegistry(inst.Log),
		inst:     inst,
		shutdown: make(chan struct{}),
	}
}

// ListenAndServe binds cfg.BindAddress and runs the accept loop until ctx
// is cancelled or Shutdown is called, per spec.md §4.7's listener entry
// point.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.BindAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.BindAddress, err)
	}

	s.mu.Lock()
	s.listener = ln
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.inst.Log.Info("socks proxy listening", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.wg.Wait()
				return nil
			default:
				s.inst.Log.Warn("accept failed", "error", err)
				continue
			}
		}

		s.wg.Add(1)
		go s.handleConnection(ctx, conn)
	}
}

// Shutdown stops the accept loop and waits up to cfg.ShutdownGrace (or
// ctx's deadline, whichever is sooner) for in-flight sessions to drain.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() {
		close(s.shutdown)
		s.mu.Lock()
		if s.cancel != nil {
			s.cancel()
		}
		s.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	grace := s.cfg.ShutdownGrace
	if grace <= 0 {
		grace = 10 * time.Second
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(grace):
		return sockserr.TimeoutError("shutdown grace period exceeded", nil)
	}
}

// ActiveSessions returns the number of sessions the registry currently
// tracks.
func (s *Server) ActiveSessions() int {
	return s.registry.Count()
}

// Addr returns the listener's bound address, or nil before
// ListenAndServe has accepted its first call to net.Listen. Useful when
// BindAddress uses an ephemeral port (":0").
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Metrics returns the counters and gauges this server updates as it
// serves sessions, for wiring into an HTTP metrics exposition server.
func (s *Server) Metrics() *metrics.Metrics {
	return s.inst.Metrics
}

// RegistrySnapshot returns the current set of tracked sessions.
func (s *Server) RegistrySnapshot() []SessionRecord {
	return s.registry.Snapshot()
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()
	defer func() {
		if r := recover(); r != nil {
			s.inst.Log.Error("session goroutine panic recovered",
				"panic", r, "stack", string(debug.Stack()))
		}
	}()

	first := make([]byte, 1)
	if _, err := conn.Read(first); err != nil {
		s.inst.Log.Debug("failed to read version byte", "error", err)
		return
	}

	version := Version(first[0])
	rec := s.registry.Register(conn.RemoteAddr().String(), version)
	defer s.registry.Deregister(rec.ID)

	ctx, acceptSpan := s.inst.Tracer.StartSpan(ctx, trace.SpanSessionAccept, trace.SpanKindServer)
	acceptSpan.SetAttributes(map[string]interface{}{
		"peer":          conn.RemoteAddr().String(),
		"socks_version": byte(version),
	})
	defer acceptSpan.End()

	sessionInst := &Instrumentation{
		Log:     s.inst.Log.Session(rec.ID),
		Tracer:  s.inst.Tracer,
		Metrics: s.inst.Metrics,
	}

	s.inst.Metrics.SessionsAccepted.Inc()

	var stats RelayStats
	var err error
	switch version {
	case V4:
		s.inst.Metrics.V4Sessions.Inc()
		stats, err = ServeV4(ctx, conn, first[0], s.handler, s.dialer, sessionInst)
	case V5:
		s.inst.Metrics.V5Sessions.Inc()
		stats, err = ServeV5(ctx, conn, first[0], s.handler, s.dialer, sessionInst)
	default:
		err = sockserr.WireFormatError("unrecognized SOCKS version byte")
	}

	if err != nil {
		s.inst.Metrics.SessionsFailed.Inc()
		if sockserr.IsCategory(err, sockserr.CategoryPolicy) {
			s.inst.Metrics.PolicyDenied.Inc()
		}
		acceptSpan.RecordError(err)
		sessionInst.Log.Debug("session ended", "error", err,
			"bytes_c2t", stats.BytesC2T, "bytes_t2c", stats.BytesT2C)
		return
	}

	acceptSpan.SetAttributes(map[string]interface{}{
		"bytes_c2t": stats.BytesC2T,
		"bytes_t2c": stats.BytesT2C,
	})
	sessionInst.Log.Debug("session ended",
		"bytes_c2t", stats.BytesC2T, "bytes_t2c", stats.BytesT2C)
}
