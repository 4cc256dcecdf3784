package socksproxy

import (
	"context"
	"errors"
	"net"
	"syscall"
	"testing"

	"github.com/opd-ai/go-socks-proxy/internal/sockserr"
)

func TestClassifyV5DialErrorConnectionRefused(t *testing.T) {
	err := sockserr.IoError("dial failed", syscall.ECONNREFUSED)
	if got := ClassifyV5DialError(err); got != V5ConnectionRefused {
		t.Errorf("got %v, want V5ConnectionRefused", got)
	}
}

func TestClassifyV5DialErrorNetworkUnreachable(t *testing.T) {
	err := sockserr.IoError("dial failed", syscall.ENETUNREACH)
	if got := ClassifyV5DialError(err); got != V5NetworkUnreachable {
		t.Errorf("got %v, want V5NetworkUnreachable", got)
	}
}

func TestClassifyV5DialErrorTimeout(t *testing.T) {
	err := sockserr.TimeoutError("dial timed out", nil)
	if got := ClassifyV5DialError(err); got != V5HostUnreachable {
		t.Errorf("got %v, want V5HostUnreachable", got)
	}
}

func TestClassifyV5DialErrorDNS(t *testing.T) {
	err := sockserr.ResolutionError("lookup failed", &net.DNSError{Err: "no such host", Name: "example.invalid"})
	if got := ClassifyV5DialError(err); got != V5HostUnreachable {
		t.Errorf("got %v, want V5HostUnreachable", got)
	}
}

func TestClassifyV5DialErrorGeneral(t *testing.T) {
	err := sockserr.IoError("dial failed", errors.New("mystery failure"))
	if got := ClassifyV5DialError(err); got != V5GeneralFailure {
		t.Errorf("got %v, want V5GeneralFailure", got)
	}
}

func TestClassifyV4DialErrorAlwaysRejectOrFailed(t *testing.T) {
	for _, err := range []error{
		sockserr.IoError("x", syscall.ECONNREFUSED),
		sockserr.TimeoutError("x", nil),
		errors.New("anything"),
	} {
		if got := ClassifyV4DialError(err); got != V4RejectOrFailed {
			t.Errorf("ClassifyV4DialError(%v) = %v, want V4RejectOrFailed", err, got)
		}
	}
}

func TestDialerDialContextAlreadyCancelled(t *testing.T) {
	d := NewDialer(DefaultDialerConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Dial(ctx, "127.0.0.1:9")
	if err == nil {
		t.Fatal("expected error for already-cancelled context")
	}
	if !sockserr.IsCategory(err, sockserr.CategoryTimeout) && !sockserr.IsCategory(err, sockserr.CategoryIo) {
		t.Errorf("expected Timeout or Io category, got %v", sockserr.GetCategory(err))
	}
}
