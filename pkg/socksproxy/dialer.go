package socksproxy

import (
	"context"
	"errors"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/opd-ai/go-socks-proxy/internal/logger"
	"github.com/opd-ai/go-socks-proxy/internal/sockserr"
)

// DialState tracks the lifecycle of an outbound dial, mirroring the
// connecting/open/closed/failed shape used throughout this codebase for
// any stateful network resource.
type DialState int

const (
	DialStateDialing DialState = iota
	DialStateOpen
	DialStateClosed
	DialStateFailed
)

func (s DialState) String() string {
	switch s {
	case DialStateDialing:
		return "dialing"
	case DialStateOpen:
		return "open"
	case DialStateClosed:
		return "closed"
	case DialStateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// DialerConfig configures the outbound dialer used by the Connecting state.
type DialerConfig struct {
	// ConnectTimeout bounds how long the outbound TCP connect may take.
	// Default 10s per spec.md §4.3.
	ConnectTimeout time.Duration
}

// DefaultDialerConfig returns the spec-mandated default dialer configuration.
func DefaultDialerConfig() DialerConfig {
	return DialerConfig{ConnectTimeout: 10 * time.Second}
}

// Dialer performs the timed, error-classified outbound TCP connect used by
// the Connecting state of both session state machines.
type Dialer struct {
	cfg    DialerConfig
	log    *logger.Logger
	netDial func(ctx context.Context, network, addr string) (net.Conn, error)

	mu    sync.Mutex
	state DialState
}

// NewDialer creates a Dialer with the given configuration and logger.
func NewDialer(cfg DialerConfig, log *logger.Logger) *Dialer {
	if log == nil {
		log = logger.NewDefault()
	}
	d := &net.Dialer{}
	return &Dialer{
		cfg:     cfg,
		log:     log.Component("dialer"),
		netDial: d.DialContext,
		state:   DialStateDialing,
	}
}

func (d *Dialer) setState(s DialState) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

// State returns the dialer's last observed state.
func (d *Dialer) State() DialState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Dial connects to addr ("host:port") within the configured timeout and
// returns the established connection, or a sockserr error (Timeout
// category if the timeout expired, Io otherwise) that ClassifyV5DialError
// or ClassifyV4DialError maps to a reply code.
func (d *Dialer) Dial(ctx context.Context, addr string) (net.Conn, error) {
	d.setState(DialStateDialing)

	dialCtx, cancel := context.WithTimeout(ctx, d.cfg.ConnectTimeout)
	defer cancel()

	conn, err := d.netDial(dialCtx, "tcp", addr)
	if err != nil {
		d.setState(DialStateFailed)
		if errors.Is(dialCtx.Err(), context.DeadlineExceeded) {
			d.log.Warn("outbound connect timed out", "target", addr)
			return nil, sockserr.TimeoutError("outbound connect timed out", err)
		}
		d.log.Warn("outbound connect failed", "target", addr, "error", err)
		return nil, sockserr.IoError("outbound connect failed", err)
	}

	d.setState(DialStateOpen)
	d.log.Debug("outbound connect succeeded", "target", addr)
	return conn, nil
}

// ClassifyV5DialError maps a dial error to the most specific SOCKS5 reply
// code, per spec.md §4.3's Connecting-state error mapping.
func ClassifyV5DialError(err error) V5ReplyCode {
	if sockserr.IsCategory(err, sockserr.CategoryTimeout) {
		return V5HostUnreachable
	}
	if sockserr.IsCategory(err, sockserr.CategoryResolution) {
		return V5HostUnreachable
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return V5ConnectionRefused
	}
	if errors.Is(err, syscall.ENETUNREACH) {
		return V5NetworkUnreachable
	}
	if errors.Is(err, syscall.EHOSTUNREACH) {
		return V5HostUnreachable
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return V5HostUnreachable
	}
	return V5GeneralFailure
}

// ClassifyV4DialError maps a dial error to the SOCKS4 reply code. SOCKS4
// has only one failure code for outbound connect problems.
func ClassifyV4DialError(err error) V4ReplyCode {
	return V4RejectOrFailed
}
