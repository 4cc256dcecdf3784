package socksproxy

import (
	"bytes"
	"net"
	"testing"

	"github.com/opd-ai/go-socks-proxy/internal/sockserr"
)

func TestParseV4RequestRoundTrip(t *testing.T) {
	frame := []byte{0x04, 0x01, 0x00, 0x50, 0x7F, 0x00, 0x00, 0x01, 0x00}
	req, err := ParseV4Request(frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Command != CmdConnect {
		t.Errorf("expected CmdConnect, got %v", req.Command)
	}
	if req.Port != 80 {
		t.Errorf("expected port 80, got %d", req.Port)
	}
	if !bytes.Equal(req.IP[:], []byte{127, 0, 0, 1}) {
		t.Errorf("expected 127.0.0.1, got %v", req.IP)
	}
	if len(req.ID) != 0 {
		t.Errorf("expected empty id, got %v", req.ID)
	}
}

func TestParseV4RequestShortFrame(t *testing.T) {
	for n := 0; n < 9; n++ {
		frame := make([]byte, n)
		_, err := ParseV4Request(frame)
		if !sockserr.IsCategory(err, sockserr.CategoryWireFormat) {
			t.Errorf("len=%d: expected WireFormat error, got %v", n, err)
		}
	}
}

func TestParseV4RequestBadVersion(t *testing.T) {
	frame := []byte{0x05, 0x01, 0x00, 0x50, 0x7F, 0x00, 0x00, 0x01, 0x00}
	_, err := ParseV4Request(frame)
	if !sockserr.IsCategory(err, sockserr.CategoryWireFormat) {
		t.Fatalf("expected WireFormat error, got %v", err)
	}
}

func TestEncodeV4ResponseExactLayout(t *testing.T) {
	out := EncodeV4Response(V4Response{Reply: V4Granted})
	want := []byte{0x00, 0x5A, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	if !bytes.Equal(out, want) {
		t.Errorf("got % x, want % x", out, want)
	}
}

func TestParseV5GreetingRoundTrip(t *testing.T) {
	frame := []byte{0x05, 0x02, 0x00, 0x01}
	g, err := ParseV5Greeting(frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(g.Methods, []byte{0x00, 0x01}) {
		t.Errorf("expected methods [0x00 0x01], got %v", g.Methods)
	}
}

func TestParseV5GreetingShortFrame(t *testing.T) {
	for _, frame := range [][]byte{{}, {0x05}, {0x05, 0x02, 0x00}} {
		_, err := ParseV5Greeting(frame)
		if !sockserr.IsCategory(err, sockserr.CategoryWireFormat) {
			t.Errorf("frame %v: expected WireFormat error, got %v", frame, err)
		}
	}
}

func TestParseV5GreetingBadVersion(t *testing.T) {
	_, err := ParseV5Greeting([]byte{0x04, 0x01, 0x00})
	if !sockserr.IsCategory(err, sockserr.CategoryWireFormat) {
		t.Fatalf("expected WireFormat error, got %v", err)
	}
}

func TestEncodeV5ChoiceExactLayout(t *testing.T) {
	out := EncodeV5Choice(V5Choice{Method: MethodNoAuth})
	if !bytes.Equal(out, []byte{0x05, 0x00}) {
		t.Errorf("got % x", out)
	}

	out = EncodeV5Choice(V5Choice{Method: NoAcceptableMethod})
	if !bytes.Equal(out, []byte{0x05, 0xFF}) {
		t.Errorf("got % x", out)
	}
}

func TestParseV5RequestIPv4(t *testing.T) {
	frame := []byte{0x05, 0x01, 0x00, 0x01, 0x7F, 0x00, 0x00, 0x01, 0x00, 0x50}
	req, err := ParseV5Request(frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Addr.Kind != AddrIPv4 {
		t.Errorf("expected AddrIPv4, got %v", req.Addr.Kind)
	}
	if !req.Addr.IP.Equal(net.IPv4(127, 0, 0, 1)) {
		t.Errorf("expected 127.0.0.1, got %v", req.Addr.IP)
	}
	if req.Port != 80 {
		t.Errorf("expected port 80, got %d", req.Port)
	}
}

func TestParseV5RequestDomainName(t *testing.T) {
	name := "example.com"
	frame := []byte{0x05, 0x01, 0x00, 0x03, byte(len(name))}
	frame = append(frame, []byte(name)...)
	frame = append(frame, 0x00, 0x50)

	req, err := ParseV5Request(frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Addr.Kind != AddrDomainName {
		t.Errorf("expected AddrDomainName, got %v", req.Addr.Kind)
	}
	if string(req.Addr.Name) != name {
		t.Errorf("expected %q, got %q", name, req.Addr.Name)
	}
}

func TestParseV5RequestIPv6(t *testing.T) {
	ip := net.ParseIP("::1").To16()
	frame := []byte{0x05, 0x01, 0x00, 0x04}
	frame = append(frame, ip...)
	frame = append(frame, 0x00, 0x50)

	req, err := ParseV5Request(frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Addr.Kind != AddrIPv6 {
		t.Errorf("expected AddrIPv6, got %v", req.Addr.Kind)
	}
	if !req.Addr.IP.Equal(net.ParseIP("::1")) {
		t.Errorf("expected ::1, got %v", req.Addr.IP)
	}
}

func TestParseV5RequestUnknownAddrKind(t *testing.T) {
	frame := []byte{0x05, 0x01, 0x00, 0x02, 0x00, 0x50}
	_, err := ParseV5Request(frame)
	if !sockserr.IsCategory(err, sockserr.CategoryWireFormat) {
		t.Fatalf("expected WireFormat error, got %v", err)
	}
}

func TestParseV5RequestShortFrame(t *testing.T) {
	frame := []byte{0x05, 0x01, 0x00, 0x01, 0x7F, 0x00, 0x00, 0x01, 0x00}
	_, err := ParseV5Request(frame)
	if !sockserr.IsCategory(err, sockserr.CategoryWireFormat) {
		t.Fatalf("expected WireFormat error, got %v", err)
	}
}

func TestParseV5RequestTrailingBytesIgnored(t *testing.T) {
	frame := []byte{0x05, 0x01, 0x00, 0x01, 0x7F, 0x00, 0x00, 0x01, 0x00, 0x50, 0xDE, 0xAD}
	req, err := ParseV5Request(frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Port != 80 {
		t.Errorf("expected port 80, got %d", req.Port)
	}
}

func TestEncodeV5ResponseEchoesRequestAddress(t *testing.T) {
	frame := []byte{0x05, 0x01, 0x00, 0x01, 0x7F, 0x00, 0x00, 0x01, 0x00, 0x50}
	req, err := ParseV5Request(frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := EncodeV5Response(V5Response{Reply: V5RequestGranted, Addr: req.Addr, Port: req.Port})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []byte{0x05, 0x00, 0x00, 0x01, 0x7F, 0x00, 0x00, 0x01, 0x00, 0x50}
	if !bytes.Equal(out, want) {
		t.Errorf("got % x, want % x", out, want)
	}
}

func TestEncodeV5ResponseFailureUsesZeroAddress(t *testing.T) {
	out, err := EncodeV5Response(V5Response{Reply: V5CommandNotSupported, Addr: ZeroV5Address(), Port: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []byte{0x05, 0x07, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	if !bytes.Equal(out, want) {
		t.Errorf("got % x, want % x", out, want)
	}
}

func TestEncodeV5ResponseDomainNameEcho(t *testing.T) {
	name := "example.com"
	frame := []byte{0x05, 0x01, 0x00, 0x03, byte(len(name))}
	frame = append(frame, []byte(name)...)
	frame = append(frame, 0x00, 0x50)

	req, err := ParseV5Request(frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := EncodeV5Response(V5Response{Reply: V5RequestGranted, Addr: req.Addr, Port: req.Port})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The reply echoes the request's address and port; byte 1 carries the
	// reply code (granted = 0x00) where the request carried its command.
	want := append([]byte(nil), frame...)
	want[1] = byte(V5RequestGranted)
	if !bytes.Equal(out, want) {
		t.Errorf("got % x, want % x", out, want)
	}
}
