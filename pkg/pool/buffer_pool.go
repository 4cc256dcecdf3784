// Package pool provides resource pooling for performance optimization.
// This package includes the scratch buffer pool used for SOCKS frame
// reads and relay copying.
package pool

import (
	"sync"
)

// BufferPool provides a pool of byte slices for reuse.
type BufferPool struct {
	pool sync.Pool
	size int
}

// NewBufferPool creates a new buffer pool with the specified buffer size.
func NewBufferPool(size int) *BufferPool {
	return &BufferPool{
		pool: sync.Pool{
			New: func() interface{} {
				buf := make([]byte, size)
				return &buf
			},
		},
		size: size,
	}
}

// Get retrieves a buffer from the pool. The returned slice always has
// length equal to the pool's configured size.
func (p *BufferPool) Get() []byte {
	obj := p.pool.Get()
	bufPtr, ok := obj.(*[]byte)
	if !ok {
		// Defensive: never panic on unexpected pool contents.
		return make([]byte, p.size)
	}
	return (*bufPtr)[:p.size]
}

// Put returns a buffer to the pool. Callers must not retain the slice
// afterward; the pool zeroes nothing.
func (p *BufferPool) Put(buf []byte) {
	if cap(buf) < p.size {
		return
	}
	buf = buf[:p.size]
	p.pool.Put(&buf)
}

// FrameBufferSize is the minimum capacity required to read any SOCKS
// control frame in one read, per spec.md §4.2.
const FrameBufferSize = 65535

// RelayBufferSize is the fixed scratch buffer size the relay engine uses
// for each direction, per spec.md §4.4 and §9 ("making it tunable adds
// little value in the reference implementation").
const RelayBufferSize = 64 * 1024

// FrameBufferPool is a pre-configured pool for reading SOCKS control
// frames (greeting, request).
var FrameBufferPool = NewBufferPool(FrameBufferSize)

// RelayBufferPool is a pre-configured pool for the relay engine's two
// per-direction scratch buffers.
var RelayBufferPool = NewBufferPool(RelayBufferSize)
