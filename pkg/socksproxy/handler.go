package socksproxy

import "context"

// Request is the version-agnostic view of a client's SOCKS request passed
// to Handler.Request. For v4, Addr.Kind is always AddrIPv4.
type Request struct {
	Version Version
	Command Command
	Addr    V5Address
	Port    uint16
}

// Reply is the handler's policy decision. Granted means the session
// should proceed to the Connecting state; otherwise Code carries the
// version-specific wire reply byte the session should write before
// closing (V4ReplyCode or V5ReplyCode, cast to byte).
type Reply struct {
	Granted bool
	Code    byte
}

// GrantedReply is the policy decision that allows the session to proceed.
func GrantedReply() Reply {
	return Reply{Granted: true}
}

// DeniedReplyV4 builds a denial decision carrying a SOCKS4 reply code.
func DeniedReplyV4(code V4ReplyCode) Reply {
	return Reply{Granted: false, Code: byte(code)}
}

// DeniedReplyV5 builds a denial decision carrying a SOCKS5 reply code.
func DeniedReplyV5(code V5ReplyCode) Reply {
	return Reply{Granted: false, Code: byte(code)}
}

// Handler is the sole extension point of the session state machines, per
// spec.md §6. Its methods are invoked from every session's goroutine and
// must be safe to call concurrently; a single Handler instance is shared
// for the lifetime of a Server.
type Handler interface {
	// Auth is called only by v5 sessions at the MethodSelect state. It
	// receives the parsed greeting and returns the chosen method. An
	// error is mapped by the session to writing {0x05, 0xFF} and closing.
	Auth(ctx context.Context, greeting V5Greeting) (V5Choice, error)

	// Request is called by both v4 and v5 sessions at the Policy state,
	// after the target address has been resolved but before the outbound
	// connect is attempted.
	Request(ctx context.Context, req Request) (Reply, error)
}

// DefaultHandler implements the trivial "no authentication, always
// granted" policy, per spec.md §6's requirement that such a handler be
// available for tests and simple setups.
type DefaultHandler struct{}

// Auth always selects the "no authentication required" method.
func (DefaultHandler) Auth(ctx context.Context, greeting V5Greeting) (V5Choice, error) {
	return V5Choice{Method: MethodNoAuth}, nil
}

// Request always grants the connection.
func (DefaultHandler) Request(ctx context.Context, req Request) (Reply, error) {
	return GrantedReply(), nil
}

var _ Handler = DefaultHandler{}
