package bench

import (
	"context"
	"fmt"
	"io"
	"net"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/proxy"

	"github.com/opd-ai/go-socks-proxy/pkg/socksproxy"
)

// waitForAddr polls srv.Addr() until ListenAndServe has bound its
// listener, or timeout elapses.
func waitForAddr(srv *socksproxy.Server, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if addr := srv.Addr(); addr != nil {
			return addr.String(), nil
		}
		time.Sleep(5 * time.Millisecond)
	}
	return "", fmt.Errorf("server did not start listening within %s", timeout)
}

// startEchoTarget spins a loopback TCP listener that echoes every byte
// it reads back to the caller, for use as the benchmark's dial target.
func startEchoTarget() (net.Listener, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				io.Copy(c, c)
			}(conn)
		}
	}()
	return ln, nil
}

// BenchmarkConcurrentSessions validates the server's ability to relay
// many concurrent SOCKS5 sessions simultaneously, each one a real
// connection through pkg/socksproxy.Server to a loopback echo target.
// Target: 100+ concurrent sessions on typical hardware.
func (s *Suite) BenchmarkConcurrentSessions(ctx context.Context) error {
	s.log.Info("Running concurrent sessions benchmark")

	const (
		targetSessions = 100
		opsPerSession  = 20
		payloadSize    = 1024
	)

	target, err := startEchoTarget()
	if err != nil {
		return fmt.Errorf("starting echo target: %w", err)
	}
	defer target.Close()

	cfg := socksproxy.DefaultServerConfig()
	cfg.BindAddress = "127.0.0.1:0"
	srv := socksproxy.NewServer(cfg, nil, nil)
	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		_ = srv.ListenAndServe(serveCtx)
	}()

	bindAddr, err := waitForAddr(srv, 2*time.Second)
	if err != nil {
		return err
	}

	runtime.GC()
	memBefore := GetMemorySnapshot()

	tracker := NewLatencyTracker(targetSessions * opsPerSession)
	startTime := time.Now()

	var successCount, errorCount int64
	var wg sync.WaitGroup
	wg.Add(targetSessions)

	for i := 0; i < targetSessions; i++ {
		go func(sessionID int) {
			defer wg.Done()

			dialer, err := proxy.SOCKS5("tcp", bindAddr, nil, proxy.Direct)
			if err != nil {
				atomic.AddInt64(&errorCount, 1)
				return
			}
			conn, err := dialer.Dial("tcp", target.Addr().String())
			if err != nil {
				atomic.AddInt64(&errorCount, 1)
				return
			}
			defer conn.Close()

			payload := make([]byte, payloadSize)
			payload[0] = byte(sessionID)
			got := make([]byte, payloadSize)

			for j := 0; j < opsPerSession; j++ {
				opStart := time.Now()
				if _, err := conn.Write(payload); err != nil {
					atomic.AddInt64(&errorCount, 1)
					return
				}
				if _, err := io.ReadFull(conn, got); err != nil {
					atomic.AddInt64(&errorCount, 1)
					return
				}
				tracker.Record(time.Since(opStart))
				atomic.AddInt64(&successCount, 1)
			}
		}(i)
	}

	wg.Wait()
	totalDuration := time.Since(startTime)
	memAfter := GetMemorySnapshot()

	cancel()
	_ = srv.Shutdown(context.Background())

	totalOps := atomic.LoadInt64(&successCount)
	totalErrors := atomic.LoadInt64(&errorCount)
	throughput := float64(totalOps) / totalDuration.Seconds()
	success := totalOps > 0 && totalErrors == 0

	result := Result{
		Name:             "Concurrent Relayed Sessions",
		Duration:         totalDuration,
		MemoryAllocated:  memAfter.TotalAlloc - memBefore.TotalAlloc,
		MemoryInUse:      memAfter.Alloc,
		OperationsPerSec: throughput,
		TotalOperations:  totalOps,
		P50Latency:       tracker.Percentile(0.50),
		P95Latency:       tracker.Percentile(0.95),
		P99Latency:       tracker.Percentile(0.99),
		MaxLatency:       tracker.Max(),
		Success:          success,
		AdditionalMetrics: map[string]interface{}{
			"target_sessions":  targetSessions,
			"ops_per_session":  opsPerSession,
			"total_operations": totalOps,
			"error_count":      totalErrors,
			"data_transferred": FormatBytes(uint64(totalOps) * payloadSize),
			"gc_runs":          memAfter.NumGC - memBefore.NumGC,
		},
	}

	if !success {
		result.Error = fmt.Errorf("failed to relay %d concurrent sessions cleanly", targetSessions)
	}

	s.addResult(result)
	s.log.Info("Concurrent sessions benchmark complete",
		"sessions", targetSessions,
		"ops", totalOps,
		"throughput", throughput,
		"success", success)

	return nil
}

// BenchmarkHandshakeLatency measures the time from TCP connect through a
// completed v5 greeting+request+reply, without any relayed payload.
func (s *Suite) BenchmarkHandshakeLatency(ctx context.Context) error {
	s.log.Info("Running handshake latency benchmark")

	const iterations = 200

	target, err := startEchoTarget()
	if err != nil {
		return fmt.Errorf("starting echo target: %w", err)
	}
	defer target.Close()

	cfg := socksproxy.DefaultServerConfig()
	cfg.BindAddress = "127.0.0.1:0"
	srv := socksproxy.NewServer(cfg, nil, nil)
	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		_ = srv.ListenAndServe(serveCtx)
	}()

	bindAddr, err := waitForAddr(srv, 2*time.Second)
	if err != nil {
		return err
	}

	tracker := NewLatencyTracker(iterations)
	startTime := time.Now()
	var errorCount int64

	for i := 0; i < iterations; i++ {
		opStart := time.Now()
		dialer, err := proxy.SOCKS5("tcp", bindAddr, nil, proxy.Direct)
		if err != nil {
			errorCount++
			continue
		}
		conn, err := dialer.Dial("tcp", target.Addr().String())
		if err != nil {
			errorCount++
			continue
		}
		tracker.Record(time.Since(opStart))
		conn.Close()
	}

	totalDuration := time.Since(startTime)
	cancel()
	_ = srv.Shutdown(context.Background())

	result := Result{
		Name:             "Handshake Latency",
		Duration:         totalDuration,
		TotalOperations:  int64(tracker.Count()),
		OperationsPerSec: float64(tracker.Count()) / totalDuration.Seconds(),
		P50Latency:       tracker.Percentile(0.50),
		P95Latency:       tracker.Percentile(0.95),
		P99Latency:       tracker.Percentile(0.99),
		MaxLatency:       tracker.Max(),
		Success:          errorCount == 0,
		AdditionalMetrics: map[string]interface{}{
			"iterations": iterations,
			"errors":     errorCount,
		},
	}
	if errorCount > 0 {
		result.Error = fmt.Errorf("%d of %d handshakes failed", errorCount, iterations)
	}

	s.addResult(result)
	s.log.Info("Handshake latency benchmark complete", "p95", result.P95Latency, "success", result.Success)
	return nil
}

// RunAll runs every benchmark in the suite.
func (s *Suite) RunAll(ctx context.Context) error {
	s.log.Info("Starting comprehensive benchmark suite")

	if err := s.BenchmarkHandshakeLatency(ctx); err != nil {
		s.log.Warn("Handshake latency benchmark failed", "error", err)
	}

	if err := s.BenchmarkConcurrentSessions(ctx); err != nil {
		s.log.Warn("Concurrent sessions benchmark failed", "error", err)
	}

	s.log.Info("Benchmark suite complete", "total_tests", len(s.results))
	return nil
}
