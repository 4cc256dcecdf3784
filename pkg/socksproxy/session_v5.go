package socksproxy

import (
	"context"
	"net"

	"github.com/opd-ai/go-socks-proxy/internal/sockserr"
	"github.com/opd-ai/go-socks-proxy/internal/trace"
)

// ServeV5 drives a SOCKS5 session to completion: AwaitGreeting ->
// MethodSelect -> WriteChoice -> AwaitRequest -> ValidatingCommand ->
// ResolvingAddress -> Policy -> Connecting -> ReplyWrite -> Relay ->
// Terminated.
func ServeV5(ctx context.Context, conn net.Conn, first byte, handler Handler, dialer *Dialer, inst *Instrumentation) (RelayStats, error) {
	inst = inst.normalize()
	log := inst.Log.Peer(conn.RemoteAddr().String()).Version(byte(V5))

	ctx, handshakeSpan := inst.Tracer.StartSpan(ctx, trace.SpanHandshakeParsed, trace.SpanKindInternal)
	defer handshakeSpan.End()

	greetingFrame, release, err := readFrame(conn)
	if err != nil {
		handshakeSpan.RecordError(err)
		return RelayStats{}, err
	}
	greetingBytes := append([]byte{first}, greetingFrame...)
	greeting, err := ParseV5Greeting(greetingBytes)
	release()
	if err != nil {
		log.Debug("malformed v5 greeting", "error", err)
		handshakeSpan.RecordError(err)
		return RelayStats{}, err
	}
	handshakeSpan.SetAttribute("methods", len(greeting.Methods))

	choice, err := handler.Auth(ctx, *greeting)
	if err != nil {
		log.Debug("auth handler error", "error", err)
		writeAll(conn, EncodeV5Choice(V5Choice{Method: NoAcceptableMethod}))
		handshakeSpan.RecordError(err)
		return RelayStats{}, sockserr.PolicyError("auth handler rejected greeting", err)
	}
	handshakeSpan.SetAttribute("auth_method", choice.Method)

	if err := writeAll(conn, EncodeV5Choice(choice)); err != nil {
		handshakeSpan.RecordError(err)
		return RelayStats{}, err
	}
	if choice.Method == NoAcceptableMethod {
		return RelayStats{}, sockserr.PolicyError("no acceptable auth method", nil)
	}

	requestFrame, release, err := readFrame(conn)
	if err != nil {
		handshakeSpan.RecordError(err)
		return RelayStats{}, err
	}
	req, err := ParseV5Request(requestFrame)
	release()
	if err != nil {
		log.Debug("malformed v5 request", "error", err)
		handshakeSpan.RecordError(err)
		return RelayStats{}, err
	}
	handshakeSpan.SetAttributes(map[string]interface{}{"command": req.Command, "addr_kind": req.Addr.Kind})

	if req.Command != CmdConnect {
		// ValidatingCommand: BIND and UDP ASSOCIATE are out of scope
		// (spec.md Non-goals); reply as the spec's scenario 5 dictates.
		resp, _ := EncodeV5Response(V5Response{Reply: V5CommandNotSupported, Addr: ZeroV5Address()})
		writeAll(conn, resp)
		return RelayStats{}, sockserr.PolicyError("unsupported v5 command", nil)
	}

	hreq := Request{
		Version: V5,
		Command: req.Command,
		Addr:    req.Addr,
		Port:    req.Port,
	}

	encode := func(reply Reply, addr V5Address, port uint16) ([]byte, error) {
		if reply.Granted {
			return EncodeV5Response(V5Response{Reply: V5RequestGranted, Addr: addr, Port: port})
		}
		return EncodeV5Response(V5Response{Reply: V5ReplyCode(reply.Code), Addr: ZeroV5Address()})
	}

	classify := func(err error) byte { return byte(ClassifyV5DialError(err)) }

	return runTail(ctx, inst, handler, dialer, conn, hreq, encode, classify, byte(V5GeneralFailure))
}
