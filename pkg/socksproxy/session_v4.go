package socksproxy

import (
	"context"
	"net"

	"github.com/opd-ai/go-socks-proxy/internal/sockserr"
	"github.com/opd-ai/go-socks-proxy/internal/trace"
)

// ServeV4 drives a SOCKS4 session to completion: AwaitRequest ->
// ValidatingCommand -> Policy -> Connecting -> ReplyWrite -> Relay ->
// Terminated. Per the Open Question decision recorded in DESIGN.md, v4
// sessions never call Handler.Auth — SOCKS4 has no method-negotiation
// phase.
func ServeV4(ctx context.Context, conn net.Conn, first byte, handler Handler, dialer *Dialer, inst *Instrumentation) (RelayStats, error) {
	inst = inst.normalize()
	log := inst.Log.Peer(conn.RemoteAddr().String()).Version(byte(V4))

	ctx, handshakeSpan := inst.Tracer.StartSpan(ctx, trace.SpanHandshakeParsed, trace.SpanKindInternal)
	defer handshakeSpan.End()

	raw, release, err := readFrame(conn)
	if err != nil {
		handshakeSpan.RecordError(err)
		return RelayStats{}, err
	}
	// The caller already consumed the version byte to decide v4 vs v5;
	// splice it back on so ParseV4Request sees the full frame.
	frame := append([]byte{first}, raw...)
	req, err := ParseV4Request(frame)
	release()
	if err != nil {
		log.Debug("malformed v4 request", "error", err)
		handshakeSpan.RecordError(err)
		return RelayStats{}, err
	}
	handshakeSpan.SetAttributes(map[string]interface{}{"command": req.Command})

	if req.Command != CmdConnect {
		// ValidatingCommand: v4 BIND is out of scope (spec.md Non-goals).
		writeAll(conn, EncodeV4Response(V4Response{Reply: V4RejectOrFailed}))
		return RelayStats{}, sockserr.PolicyError("unsupported v4 command", nil)
	}

	hreq := Request{
		Version: V4,
		Command: req.Command,
		Addr:    V5Address{Kind: AddrIPv4, IP: net.IP(req.IP[:])},
		Port:    req.Port,
	}

	encode := func(reply Reply, addr V5Address, port uint16) ([]byte, error) {
		// Per spec.md §3, Connect replies carry a zero port and IP; only
		// the reply code is meaningful to a Connect-only client.
		code := V4ReplyCode(reply.Code)
		if reply.Granted {
			code = V4Granted
		}
		return EncodeV4Response(V4Response{Reply: code}), nil
	}

	classify := func(err error) byte { return byte(ClassifyV4DialError(err)) }

	return runTail(ctx, inst, handler, dialer, conn, hreq, encode, classify, byte(V4RejectOrFailed))
}
