package socksproxy

import (
	"net"

	"github.com/opd-ai/go-socks-proxy/internal/sockserr"
	"github.com/opd-ai/go-socks-proxy/pkg/pool"
)

// readFrame performs a single read into a pooled 65535-byte buffer and
// returns the bytes actually read. Per spec.md §4.2, one read is assumed
// to deliver a complete control frame from well-behaved clients; it fails
// with a WireFormat-category StreamClosed error on a zero-byte read.
func readFrame(conn net.Conn) ([]byte, func(), error) {
	buf := pool.FrameBufferPool.Get()
	release := func() { pool.FrameBufferPool.Put(buf) }

	n, err := conn.Read(buf)
	if err != nil {
		release()
		return nil, func() {}, sockserr.IoError("read frame", err)
	}
	if n == 0 {
		release()
		return nil, func() {}, sockserr.WireFormatError("stream closed: zero-byte read")
	}
	return buf[:n], release, nil
}

// writeAll writes the full contents of b to conn, retrying on short writes.
// Per spec.md §4.2, a partial write is not permitted to escape this call.
func writeAll(conn net.Conn, b []byte) error {
	for len(b) > 0 {
		n, err := conn.Write(b)
		if err != nil {
			return sockserr.IoError("write frame", err)
		}
		b = b[n:]
	}
	return nil
}
