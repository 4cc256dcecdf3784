// Package bench provides end-to-end performance benchmarks for the
// go-socks-proxy server: relay throughput under concurrent sessions,
// handshake latency, and steady-state memory use.
package bench

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/opd-ai/go-socks-proxy/internal/logger"
)

// Result holds the results of a benchmark run.
type Result struct {
	Name              string
	Duration          time.Duration
	MemoryAllocated   uint64
	MemoryInUse       uint64
	OperationsPerSec  float64
	TotalOperations   int64
	P50Latency        time.Duration
	P95Latency        time.Duration
	P99Latency        time.Duration
	MaxLatency        time.Duration
	Success           bool
	Error             error
	AdditionalMetrics map[string]interface{}
}

// Suite runs a collection of benchmarks against a live server and
// accumulates their results.
type Suite struct {
	log     *logger.Logger
	results []Result
}

// NewSuite creates a new benchmark suite.
func NewSuite(log *logger.Logger) *Suite {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Suite{log: log, results: make([]Result, 0)}
}

// MemorySnapshot captures current memory statistics.
type MemorySnapshot struct {
	Timestamp   time.Time
	Alloc       uint64
	TotalAlloc  uint64
	Sys         uint64
	NumGC       uint32
	HeapAlloc   uint64
	HeapSys     uint64
	HeapObjects uint64
}

// GetMemorySnapshot returns current memory statistics.
func GetMemorySnapshot() MemorySnapshot {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemorySnapshot{
		Timestamp:   time.Now(),
		Alloc:       m.Alloc,
		TotalAlloc:  m.TotalAlloc,
		Sys:         m.Sys,
		NumGC:       m.NumGC,
		HeapAlloc:   m.HeapAlloc,
		HeapSys:     m.HeapSys,
		HeapObjects: m.HeapObjects,
	}
}

// FormatBytes formats bytes as a human-readable string.
func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// LatencyTracker tracks operation latencies for percentile calculation.
type LatencyTracker struct {
	mu        sync.Mutex
	latencies []time.Duration
}

// NewLatencyTracker creates a new latency tracker.
func NewLatencyTracker(capacity int) *LatencyTracker {
	return &LatencyTracker{latencies: make([]time.Duration, 0, capacity)}
}

// Record records a latency measurement.
func (lt *LatencyTracker) Record(latency time.Duration) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	lt.latencies = append(lt.latencies, latency)
}

// Percentile calculates the specified percentile (0.0 to 1.0).
func (lt *LatencyTracker) Percentile(p float64) time.Duration {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	if len(lt.latencies) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(lt.latencies))
	copy(sorted, lt.latencies)
	quickSort(sorted, 0, len(sorted)-1)

	index := int(float64(len(sorted)-1) * p)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}

// Max returns the maximum recorded latency.
func (lt *LatencyTracker) Max() time.Duration {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	if len(lt.latencies) == 0 {
		return 0
	}
	max := lt.latencies[0]
	for _, l := range lt.latencies[1:] {
		if l > max {
			max = l
		}
	}
	return max
}

// Count returns the number of recorded latencies.
func (lt *LatencyTracker) Count() int {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return len(lt.latencies)
}

func quickSort(arr []time.Duration, low, high int) {
	if low < high {
		pi := partition(arr, low, high)
		quickSort(arr, low, pi-1)
		quickSort(arr, pi+1, high)
	}
}

func partition(arr []time.Duration, low, high int) int {
	pivot := arr[high]
	i := low - 1
	for j := low; j < high; j++ {
		if arr[j] < pivot {
			i++
			arr[i], arr[j] = arr[j], arr[i]
		}
	}
	arr[i+1], arr[high] = arr[high], arr[i+1]
	return i + 1
}

// Results returns all benchmark results recorded so far.
func (s *Suite) Results() []Result {
	return s.results
}

func (s *Suite) addResult(r Result) {
	s.results = append(s.results, r)
}

// PrintSummary prints a human-readable summary of all benchmark results.
func (s *Suite) PrintSummary() {
	separator := "================================================================================"
	fmt.Println("\n" + separator)
	fmt.Println("BENCHMARK RESULTS SUMMARY")
	fmt.Println(separator)

	for _, r := range s.results {
		fmt.Printf("\n%s\n", r.Name)
		fmt.Printf("  Duration: %v\n", r.Duration)
		if r.TotalOperations > 0 {
			fmt.Printf("  Operations: %d (%.2f ops/sec)\n", r.TotalOperations, r.OperationsPerSec)
		}
		if r.P50Latency > 0 {
			fmt.Printf("  Latency (p50/p95/p99/max): %v / %v / %v / %v\n",
				r.P50Latency, r.P95Latency, r.P99Latency, r.MaxLatency)
		}
		if r.MemoryInUse > 0 {
			fmt.Printf("  Memory: %s in use, %s allocated\n",
				FormatBytes(r.MemoryInUse), FormatBytes(r.MemoryAllocated))
		}
		if r.Error != nil {
			fmt.Printf("  Error: %v\n", r.Error)
		} else {
			fmt.Printf("  Status: PASS\n")
		}

		if len(r.AdditionalMetrics) > 0 {
			fmt.Println("  Additional Metrics:")
			for k, v := range r.AdditionalMetrics {
				fmt.Printf("    %s: %v\n", k, v)
			}
		}
	}

	fmt.Println("\n" + separator)
}
