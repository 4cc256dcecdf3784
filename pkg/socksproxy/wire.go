// Package socksproxy implements the SOCKS4 and SOCKS5 (RFC 1928) wire
// codec, connection framing, per-version session state machines, and the
// full-duplex relay engine that together form a SOCKS proxy core.
package socksproxy

import (
	"fmt"
	"net"

	"github.com/opd-ai/go-socks-proxy/internal/convert"
	"github.com/opd-ai/go-socks-proxy/internal/sockserr"
)

// Version identifies the SOCKS protocol version of a frame.
type Version byte

const (
	V4      Version = 0x04
	V5      Version = 0x05
	Invalid Version = 0x00
)

// Command identifies the requested operation.
type Command byte

const (
	CmdConnect   Command = 0x01
	CmdBind      Command = 0x02
	CmdAssociate Command = 0x03
	CmdInvalid   Command = 0x00
)

// AddrKind identifies the shape of a v5 address (IPv4, IPv6, or domain name).
type AddrKind byte

const (
	AddrIPv4       AddrKind = 0x01
	AddrDomainName AddrKind = 0x03
	AddrIPv6       AddrKind = 0x04
	AddrUnknown    AddrKind = 0x00
)

// V4ReplyCode is a SOCKS4 response's reply byte.
type V4ReplyCode byte

const (
	V4Granted                        V4ReplyCode = 0x5A
	V4RejectOrFailed                 V4ReplyCode = 0x5B
	V4FailedClientNotRunningIdentd   V4ReplyCode = 0x5C
	V4FailedClientIdentdNotConfirmed V4ReplyCode = 0x5D
)

// V5ReplyCode is a SOCKS5 response's reply byte.
type V5ReplyCode byte

const (
	V5RequestGranted          V5ReplyCode = 0x00
	V5GeneralFailure          V5ReplyCode = 0x01
	V5NotAllowedByRuleset     V5ReplyCode = 0x02
	V5NetworkUnreachable      V5ReplyCode = 0x03
	V5HostUnreachable         V5ReplyCode = 0x04
	V5ConnectionRefused       V5ReplyCode = 0x05
	V5TtlExpired              V5ReplyCode = 0x06
	V5CommandNotSupported     V5ReplyCode = 0x07
	V5AddressTypeNotSupported V5ReplyCode = 0x08
)

// V4Request is the parsed SOCKS4 request frame.
type V4Request struct {
	Command Command
	Port    uint16
	IP      [4]byte
	ID      []byte
}

// V4Response is the 8-byte SOCKS4 response frame.
type V4Response struct {
	Reply V4ReplyCode
	Port  uint16
	IP    [4]byte
}

// V5Greeting is the client's method-advertisement frame.
type V5Greeting struct {
	Methods []byte
}

// V5Choice is the server's method-selection response.
type V5Choice struct {
	Method byte
}

// NoAcceptableMethod is the distinguished "no acceptable method" choice.
const NoAcceptableMethod byte = 0xFF

// MethodNoAuth is the "no authentication required" method code.
const MethodNoAuth byte = 0x00

// V5Address is a discriminated union over the three v5 address shapes.
// Exactly one of IP (4 or 16 bytes, per Kind) or Name is meaningful.
type V5Address struct {
	Kind AddrKind
	IP   net.IP
	Name []byte
}

// V5Request is the parsed SOCKS5 request frame.
type V5Request struct {
	Command Command
	Addr    V5Address
	Port    uint16
}

// V5Response is the SOCKS5 response frame.
type V5Response struct {
	Reply V5ReplyCode
	Addr  V5Address
	Port  uint16
}

// ParseV4Request parses a SOCKS4 request frame from raw bytes.
// Per spec.md §4.1, it never panics and never reads past the slice.
func ParseV4Request(b []byte) (*V4Request, error) {
	const minLen = 9 // version(1) + command(1) + port(2) + ip(4) + at least one NUL
	if len(b) < minLen {
		return nil, sockserr.WireFormatError("v4 request shorter than minimum frame length")
	}
	if Version(b[0]) != V4 {
		return nil, sockserr.WireFormatError("v4 request has wrong version byte")
	}

	idStart := 8
	idEnd := idStart
	for idEnd < len(b) && b[idEnd] != 0x00 {
		idEnd++
	}
	if idEnd >= len(b) {
		return nil, sockserr.WireFormatError("v4 request id field is not NUL-terminated")
	}

	req := &V4Request{
		Command: Command(b[1]),
		Port:    beUint16(b[2:4]),
		ID:      append([]byte(nil), b[idStart:idEnd]...),
	}
	copy(req.IP[:], b[4:8])
	return req, nil
}

// EncodeV4Response encodes a SOCKS4 response into its canonical 8-byte layout.
func EncodeV4Response(r V4Response) []byte {
	out := make([]byte, 8)
	out[0] = 0x00
	out[1] = byte(r.Reply)
	putBeUint16(out[2:4], r.Port)
	copy(out[4:8], r.IP[:])
	return out
}

// ParseV5Greeting parses a SOCKS5 greeting frame.
func ParseV5Greeting(b []byte) (*V5Greeting, error) {
	if len(b) < 2 {
		return nil, sockserr.WireFormatError("v5 greeting shorter than minimum frame length")
	}
	if Version(b[0]) != V5 {
		return nil, sockserr.WireFormatError("v5 greeting has wrong version byte")
	}
	nMethods := int(b[1])
	if nMethods < 1 {
		return nil, sockserr.WireFormatError("v5 greeting declares zero methods")
	}
	if len(b) < 2+nMethods {
		return nil, sockserr.WireFormatError("v5 greeting shorter than declared method count")
	}
	return &V5Greeting{Methods: append([]byte(nil), b[2:2+nMethods]...)}, nil
}

// EncodeV5Choice encodes a SOCKS5 method-selection response.
func EncodeV5Choice(c V5Choice) []byte {
	return []byte{byte(V5), c.Method}
}

// ParseV5Request parses a SOCKS5 request frame.
func ParseV5Request(b []byte) (*V5Request, error) {
	const headerLen = 4 // version(1) command(1) reserved(1) addr_kind(1)
	if len(b) < headerLen {
		return nil, sockserr.WireFormatError("v5 request shorter than header length")
	}
	if Version(b[0]) != V5 {
		return nil, sockserr.WireFormatError("v5 request has wrong version byte")
	}

	kind := AddrKind(b[3])
	req := &V5Request{Command: Command(b[1])}

	switch kind {
	case AddrIPv4:
		const total = headerLen + 4 + 2
		if len(b) < total {
			return nil, sockserr.WireFormatError("v5 request (IPv4) shorter than required length")
		}
		req.Addr = V5Address{Kind: AddrIPv4, IP: net.IP(append([]byte(nil), b[headerLen:headerLen+4]...))}
		req.Port = beUint16(b[headerLen+4 : headerLen+6])
	case AddrIPv6:
		const total = headerLen + 16 + 2
		if len(b) < total {
			return nil, sockserr.WireFormatError("v5 request (IPv6) shorter than required length")
		}
		req.Addr = V5Address{Kind: AddrIPv6, IP: net.IP(append([]byte(nil), b[headerLen:headerLen+16]...))}
		req.Port = beUint16(b[headerLen+16 : headerLen+18])
	case AddrDomainName:
		if len(b) < headerLen+1 {
			return nil, sockserr.WireFormatError("v5 request (domain) missing length byte")
		}
		nameLen := int(b[headerLen])
		total := headerLen + 1 + nameLen + 2
		if len(b) < total {
			return nil, sockserr.WireFormatError("v5 request (domain) shorter than declared name length")
		}
		name := append([]byte(nil), b[headerLen+1:headerLen+1+nameLen]...)
		req.Addr = V5Address{Kind: AddrDomainName, Name: name}
		req.Port = beUint16(b[headerLen+1+nameLen : total])
	default:
		return nil, sockserr.WireFormatError(fmt.Sprintf("v5 request has unknown address kind 0x%02x", byte(kind)))
	}

	return req, nil
}

// EncodeV5Response encodes a SOCKS5 response frame. Per spec.md §4.1, the
// address portion is whatever the caller supplies in Addr (the session
// state machine echoes the request's address on success and substitutes a
// zero IPv4 address on failure).
func EncodeV5Response(r V5Response) ([]byte, error) {
	out := []byte{byte(V5), byte(r.Reply), 0x00}

	switch r.Addr.Kind {
	case AddrIPv4:
		ip4 := r.Addr.IP.To4()
		if ip4 == nil {
			ip4 = net.IPv4zero.To4()
		}
		out = append(out, byte(AddrIPv4))
		out = append(out, ip4...)
	case AddrIPv6:
		ip16 := r.Addr.IP.To16()
		if ip16 == nil {
			return nil, sockserr.WireFormatError("v5 response has AddrIPv6 kind with invalid IP")
		}
		out = append(out, byte(AddrIPv6))
		out = append(out, ip16...)
	case AddrDomainName:
		nameLen, err := convert.IntToUint8(len(r.Addr.Name))
		if err != nil {
			return nil, sockserr.WireFormatError("v5 response domain name too long to encode")
		}
		out = append(out, byte(AddrDomainName), nameLen)
		out = append(out, r.Addr.Name...)
	default:
		// Failure responses are permitted to use a zero IPv4 address (spec.md §4.1).
		out = append(out, byte(AddrIPv4))
		out = append(out, net.IPv4zero.To4()...)
	}

	port := make([]byte, 2)
	putBeUint16(port, r.Port)
	out = append(out, port...)
	return out, nil
}

// ZeroV5Address builds the zero-filled IPv4 address used on failure responses.
func ZeroV5Address() V5Address {
	return V5Address{Kind: AddrIPv4, IP: net.IPv4zero.To4()}
}

func beUint16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}

func putBeUint16(b []byte, v uint16) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}
