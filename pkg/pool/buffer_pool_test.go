package pool

import "testing"

func TestBufferPool(t *testing.T) {
	pool := NewBufferPool(1024)

	buf := pool.Get()
	if len(buf) != 1024 {
		t.Errorf("expected buffer length 1024, got %d", len(buf))
	}
	if cap(buf) < 1024 {
		t.Errorf("expected buffer capacity >= 1024, got %d", cap(buf))
	}

	pool.Put(buf)

	buf2 := pool.Get()
	if len(buf2) != 1024 {
		t.Errorf("expected buffer length 1024, got %d", len(buf2))
	}
}

func TestBufferPoolConcurrent(t *testing.T) {
	pool := NewBufferPool(512)
	done := make(chan bool)

	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				buf := pool.Get()
				buf[0] = byte(j)
				pool.Put(buf)
			}
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestFrameBufferPool(t *testing.T) {
	buf := FrameBufferPool.Get()
	if len(buf) != FrameBufferSize {
		t.Errorf("expected frame buffer length %d, got %d", FrameBufferSize, len(buf))
	}
	FrameBufferPool.Put(buf)
}

func TestRelayBufferPool(t *testing.T) {
	buf := RelayBufferPool.Get()
	if len(buf) != RelayBufferSize {
		t.Errorf("expected relay buffer length %d, got %d", RelayBufferSize, len(buf))
	}
	RelayBufferPool.Put(buf)
}

func TestBufferPoolSmallBufferRejected(t *testing.T) {
	pool := NewBufferPool(1024)

	buf := pool.Get()
	smallBuf := make([]byte, 512)
	pool.Put(smallBuf)

	buf2 := pool.Get()
	if len(buf2) != 1024 {
		t.Errorf("expected buffer length 1024 after putting small buffer, got %d", len(buf2))
	}

	pool.Put(buf)
	pool.Put(buf2)
}

func TestBufferPoolLargeBufferTruncated(t *testing.T) {
	pool := NewBufferPool(1024)

	largeBuf := make([]byte, 2048)
	pool.Put(largeBuf)

	buf := pool.Get()
	if len(buf) != 1024 {
		t.Errorf("expected buffer length 1024, got %d", len(buf))
	}
	pool.Put(buf)
}

func BenchmarkBufferPoolGetPut(b *testing.B) {
	pool := NewBufferPool(1024)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf := pool.Get()
		pool.Put(buf)
	}
}

func BenchmarkNoPooling(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf := make([]byte, 1024)
		_ = buf
	}
}
