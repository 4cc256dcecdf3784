//go:build regression
// +build regression

package bench

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opd-ai/go-socks-proxy/internal/logger"
)

// PerformanceBaseline stores baseline performance metrics for comparison
// against future runs.
type PerformanceBaseline struct {
	Version           string            `json:"version"`
	Timestamp         time.Time         `json:"timestamp"`
	HandshakeLatency  PerformanceMetric `json:"handshake_latency"`
	RelayThroughput   PerformanceMetric `json:"relay_throughput"`
}

// PerformanceMetric stores timing and statistical data.
type PerformanceMetric struct {
	Mean time.Duration `json:"mean"`
	Min  time.Duration `json:"min"`
	Max  time.Duration `json:"max"`
	P95  time.Duration `json:"p95"`
}

// LoadBaseline loads a performance baseline from file.
func LoadBaseline(path string) (*PerformanceBaseline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read baseline file: %w", err)
	}

	var baseline PerformanceBaseline
	if err := json.Unmarshal(data, &baseline); err != nil {
		return nil, fmt.Errorf("failed to parse baseline: %w", err)
	}

	return &baseline, nil
}

// SaveBaseline saves a performance baseline to file.
func SaveBaseline(baseline *PerformanceBaseline, path string) error {
	data, err := json.MarshalIndent(baseline, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal baseline: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write baseline file: %w", err)
	}

	return nil
}

// TestRegressionEndToEnd runs the full benchmark suite against a live
// server and compares handshake latency against a stored baseline, if
// one exists at testdata/baseline.json.
func TestRegressionEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping regression test in short mode")
	}

	suite := NewSuite(logger.NewDefault())
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := suite.RunAll(ctx); err != nil {
		t.Fatalf("benchmark suite failed: %v", err)
	}

	var handshake *Result
	for i := range suite.results {
		if suite.results[i].Name == "Handshake Latency" {
			handshake = &suite.results[i]
		}
	}
	if handshake == nil {
		t.Fatal("handshake latency result missing from suite")
	}
	if !handshake.Success {
		t.Fatalf("handshake latency benchmark reported failure: %v", handshake.Error)
	}

	baselinePath := filepath.Join("testdata", "baseline.json")
	baseline, err := LoadBaseline(baselinePath)
	if err != nil {
		t.Logf("no baseline found at %s, writing current run as the new baseline", baselinePath)
		newBaseline := &PerformanceBaseline{
			Version: "current",
			HandshakeLatency: PerformanceMetric{
				Mean: handshake.Duration / time.Duration(handshake.TotalOperations),
				P95:  handshake.P95Latency,
				Max:  handshake.MaxLatency,
			},
		}
		if err := SaveBaseline(newBaseline, baselinePath); err != nil {
			t.Logf("failed to save baseline: %v", err)
		}
		return
	}

	if handshake.P95Latency > baseline.HandshakeLatency.P95*2 {
		t.Errorf("handshake p95 latency regressed: got %v, baseline %v",
			handshake.P95Latency, baseline.HandshakeLatency.P95)
	}

	t.Logf("handshake latency p50/p95/max: %v / %v / %v",
		handshake.P50Latency, handshake.P95Latency, handshake.MaxLatency)
}
