package socksproxy

import (
	"net"

	"github.com/opd-ai/go-socks-proxy/internal/logger"
	"github.com/opd-ai/go-socks-proxy/pkg/pool"
)

// RelayStats accumulates byte and packet counts in each direction over the
// lifetime of a relayed session, per spec.md §3.
type RelayStats struct {
	BytesC2T   uint64
	BytesT2C   uint64
	PacketsC2T uint64
	PacketsT2C uint64
}

// Relay forwards bytes full-duplex between client and target until either
// side yields EOF, per spec.md §4.4. It returns once both relay goroutines
// have exited; the direction whose peer closed first determines the
// relay's own termination (first-EOF-closes-both, per spec.md §9's
// resolved open question).
func Relay(client, target net.Conn, log *logger.Logger) RelayStats {
	if log == nil {
		log = logger.NewDefault()
	}

	var stats RelayStats
	done := make(chan struct{}, 2)

	go func() {
		defer func() { done <- struct{}{} }()
		copyDirection(target, client, &stats.BytesC2T, &stats.PacketsC2T)
	}()
	go func() {
		defer func() { done <- struct{}{} }()
		copyDirection(client, target, &stats.BytesT2C, &stats.PacketsT2C)
	}()

	// First direction to finish (its peer hit EOF or errored) closes both
	// streams so the other direction's blocking read unblocks too.
	<-done
	client.Close()
	target.Close()
	<-done

	log.Debug("relay completed",
		"bytes_c2t", stats.BytesC2T, "bytes_t2c", stats.BytesT2C,
		"packets_c2t", stats.PacketsC2T, "packets_t2c", stats.PacketsT2C)

	return stats
}

// copyDirection reads repeatedly from src and writes exactly what was read
// to dst (write-all discipline), accumulating byte and packet counts,
// until src yields EOF or either side errors.
func copyDirection(dst, src net.Conn, bytesCounter, packetsCounter *uint64) {
	buf := pool.RelayBufferPool.Get()
	defer pool.RelayBufferPool.Put(buf)

	for {
		n, err := src.Read(buf)
		if n > 0 {
			if werr := writeAllRaw(dst, buf[:n]); werr != nil {
				return
			}
			*bytesCounter += uint64(n)
			*packetsCounter++
		}
		if err != nil {
			return
		}
	}
}

// writeAllRaw is writeAll without the sockserr wrapping; the relay loop
// only needs to know whether to stop, not the classified error.
func writeAllRaw(conn net.Conn, b []byte) error {
	for len(b) > 0 {
		n, err := conn.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}
