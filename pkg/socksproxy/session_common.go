package socksproxy

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/opd-ai/go-socks-proxy/internal/logger"
	"github.com/opd-ai/go-socks-proxy/internal/metrics"
	"github.com/opd-ai/go-socks-proxy/internal/sockserr"
	"github.com/opd-ai/go-socks-proxy/internal/trace"
)

// Instrumentation bundles the ambient logger, tracer, and metrics a
// session reports through. A nil field is replaced with a default so
// sessions never need to nil-check it: an Info-level logger writing to
// stdout, a tracer whose exporter discards spans, and a fresh Metrics.
type Instrumentation struct {
	Log     *logger.Logger
	Tracer  *trace.Tracer
	Metrics *metrics.Metrics
}

func (i *Instrumentation) normalize() *Instrumentation {
	if i == nil {
		i = &Instrumentation{}
	}
	if i.Log == nil {
		i.Log = logger.NewDefault()
	}
	if i.Tracer == nil {
		i.Tracer = trace.NewTracer("socksproxy", trace.NewNoopExporter(), trace.AlwaysSample())
	}
	if i.Metrics == nil {
		i.Metrics = metrics.New()
	}
	return i
}

// replyEncoder builds the wire bytes for a session's reply, given the
// handler's policy decision (or a dial-error-derived denial) and, on
// success, the resolved target address to echo/report. v4 and v5 supply
// distinct implementations; the shared tail never encodes bytes itself.
type replyEncoder func(reply Reply, addr V5Address, port uint16) ([]byte, error)

// dialErrorClassifier maps a dial error to the version-specific denial
// reply code.
type dialErrorClassifier func(err error) byte

// resolveAddress turns a parsed V5Address into a dialable IP address,
// performing DNS resolution for domain names. For v4 requests (whose
// Addr.Kind is always AddrIPv4) this is a pass-through.
func resolveAddress(ctx context.Context, addr V5Address) (net.IP, error) {
	switch addr.Kind {
	case AddrIPv4, AddrIPv6:
		return addr.IP, nil
	case AddrDomainName:
		ips, err := net.DefaultResolver.LookupIPAddr(ctx, string(addr.Name))
		if err != nil || len(ips) == 0 {
			return nil, sockserr.ResolutionError("domain name resolution failed", err)
		}
		return ips[0].IP, nil
	default:
		return nil, sockserr.WireFormatError("cannot resolve unknown address kind")
	}
}

// runTail drives the shared ResolvingAddress -> Policy -> Connecting ->
// ReplyWrite -> Relay sequence common to both session state machines, per
// spec.md §4.3's v5 state order and §9's "extract the tail" guidance. A
// domain name that can never resolve is rejected before the handler ever
// sees the request.
func runTail(
	ctx context.Context,
	inst *Instrumentation,
	handler Handler,
	dialer *Dialer,
	clientConn net.Conn,
	req Request,
	encodeReply replyEncoder,
	classifyDialErr dialErrorClassifier,
	genericFailureCode byte,
) (RelayStats, error) {
	inst = inst.normalize()
	log := inst.Log

	ctx, connectSpan := inst.Tracer.StartSpan(ctx, trace.SpanTargetConnected, trace.SpanKindInternal)
	resolvedIP, err := resolveAddress(ctx, req.Addr)
	if err != nil {
		connectSpan.RecordError(err)
		connectSpan.End()
		denial := Reply{Granted: false, Code: classifyDialErr(err)}
		return writeTerminalReply(clientConn, encodeReply, denial, req.Addr, req.Port, err, log)
	}

	_, policySpan := inst.Tracer.StartSpan(ctx, trace.SpanPolicyDecided, trace.SpanKindInternal)
	reply, err := handler.Request(ctx, req)
	if err != nil {
		trace.EndSpan(policySpan, err, nil)
		connectSpan.End()
		return writeTerminalReply(clientConn, encodeReply, Reply{Granted: false, Code: genericFailureCode}, req.Addr, req.Port, nil, log)
	}
	policySpan.SetAttribute("granted", reply.Granted)
	trace.EndSpan(policySpan, nil, nil)

	if !reply.Granted {
		// Handler explicitly denied the request (spec.md §4.3 Policy state).
		connectSpan.End()
		return writeTerminalReply(clientConn, encodeReply, reply, req.Addr, req.Port, nil, log)
	}

	targetAddr := net.JoinHostPort(resolvedIP.String(), strconv.Itoa(int(req.Port)))
	dialStart := time.Now()
	targetConn, err := dialer.Dial(ctx, targetAddr)
	inst.Metrics.RecordConnect(err == nil, time.Since(dialStart))
	if err != nil {
		// The outbound connect failed: this takes precedence over the
		// handler's granted decision (spec.md §4.3 tie-break (i)).
		connectSpan.RecordError(err)
		connectSpan.End()
		denial := Reply{Granted: false, Code: classifyDialErr(err)}
		return writeTerminalReply(clientConn, encodeReply, denial, req.Addr, req.Port, err, log)
	}
	connectSpan.SetAttribute("target", targetAddr)
	connectSpan.End()

	replyBytes, err := encodeReply(GrantedReply(), req.Addr, req.Port)
	if err != nil {
		targetConn.Close()
		return RelayStats{}, sockserr.WireFormatError("failed to encode success reply")
	}
	if err := writeAll(clientConn, replyBytes); err != nil {
		// Post-decision I/O errors before the session enters relay are
		// terminal and best-effort (spec.md §7).
		targetConn.Close()
		return RelayStats{}, err
	}

	inst.Metrics.ActiveSessions.Inc()
	defer inst.Metrics.ActiveSessions.Dec()

	_, relaySpan := inst.Tracer.StartSpan(ctx, trace.SpanRelayCompleted, trace.SpanKindInternal)
	stats := Relay(clientConn, targetConn, log)
	inst.Metrics.RelayBytesC2T.Add(int64(stats.BytesC2T))
	inst.Metrics.RelayBytesT2C.Add(int64(stats.BytesT2C))
	relaySpan.SetAttributes(map[string]interface{}{
		"bytes_c2t": stats.BytesC2T,
		"bytes_t2c": stats.BytesT2C,
	})
	relaySpan.End()

	return stats, nil
}

// writeTerminalReply encodes and best-effort writes a denial reply, then
// reports the write error (if any) without attempting relay. A non-nil
// cause (a resolution or dial failure) is returned as the session's error;
// otherwise the denial is reported as a Policy-category error.
func writeTerminalReply(clientConn net.Conn, encodeReply replyEncoder, reply Reply, addr V5Address, port uint16, cause error, log *logger.Logger) (RelayStats, error) {
	replyBytes, err := encodeReply(reply, addr, port)
	if err != nil {
		return RelayStats{}, sockserr.WireFormatError("failed to encode denial reply")
	}
	if err := writeAll(clientConn, replyBytes); err != nil {
		log.Debug("failed to write denial reply", "error", err)
		return RelayStats{}, err
	}
	if cause != nil {
		return RelayStats{}, cause
	}
	return RelayStats{}, sockserr.PolicyError("request denied", nil)
}
