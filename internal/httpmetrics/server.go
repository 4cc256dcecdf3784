// Package httpmetrics exposes the SOCKS proxy's metrics and health over
// plain net/http, in JSON and Prometheus text formats, plus a small
// auto-refreshing HTML dashboard.
package httpmetrics

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/opd-ai/go-socks-proxy/internal/health"
	"github.com/opd-ai/go-socks-proxy/internal/logger"
	"github.com/opd-ai/go-socks-proxy/internal/metrics"
)

// MetricsProvider supplies a point-in-time metrics snapshot.
type MetricsProvider interface {
	Snapshot() *metrics.Snapshot
}

// HealthProvider supplies the current aggregate health.
type HealthProvider interface {
	Check(ctx context.Context) health.OverallHealth
}

// Server serves /metrics, /metrics/json, /health, and /debug/metrics.
type Server struct {
	address         string
	metricsProvider MetricsProvider
	healthProvider  HealthProvider
	logger          *logger.Logger
	server          *http.Server
	listener        net.Listener
	mux             *http.ServeMux

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates an HTTP metrics/health server bound to address once
// Start is called.
func NewServer(address string, metricsProvider MetricsProvider, healthProvider HealthProvider, log *logger.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	mux := http.NewServeMux()

	s := &Server{
		address:         address,
		metricsProvider: metricsProvider,
		healthProvider:  healthProvider,
		logger:          log.Component("httpmetrics"),
		mux:             mux,
		ctx:             ctx,
		cancel:          cancel,
	}

	mux.HandleFunc("/metrics", s.handlePrometheusMetrics)
	mux.HandleFunc("/metrics/json", s.handleJSONMetrics)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/debug/metrics", s.handleDashboard)
	mux.HandleFunc("/", s.handleIndex)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start binds the server's address and serves in the background.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}

	s.listener = listener
	s.logger.Info("HTTP metrics server listening", "address", listener.Addr().String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts the server down within a bounded timeout.
func (s *Server) Stop() error {
	s.logger.Info("Stopping HTTP metrics server")
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warn("HTTP server shutdown error", "error", err)
		return err
	}

	s.wg.Wait()
	s.logger.Info("HTTP metrics server stopped")
	return nil
}

// GetAddress returns the actual listening address once Start has run.
func (s *Server) GetAddress() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.address
}

func (s *Server) handlePrometheusMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := s.metricsProvider.Snapshot()
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP socks_sessions_accepted_total Total sessions accepted\n# TYPE socks_sessions_accepted_total counter\nsocks_sessions_accepted_total %d\n", snap.SessionsAccepted)
	fmt.Fprintf(w, "# HELP socks_sessions_failed_total Total sessions that ended in an error\n# TYPE socks_sessions_failed_total counter\nsocks_sessions_failed_total %d\n", snap.SessionsFailed)
	fmt.Fprintf(w, "# HELP socks_active_sessions Current in-flight sessions\n# TYPE socks_active_sessions gauge\nsocks_active_sessions %d\n", snap.ActiveSessions)
	fmt.Fprintf(w, "# HELP socks_v4_sessions_total Total SOCKS4 sessions\n# TYPE socks_v4_sessions_total counter\nsocks_v4_sessions_total %d\n", snap.V4Sessions)
	fmt.Fprintf(w, "# HELP socks_v5_sessions_total Total SOCKS5 sessions\n# TYPE socks_v5_sessions_total counter\nsocks_v5_sessions_total %d\n", snap.V5Sessions)
	fmt.Fprintf(w, "# HELP socks_connect_attempted_total Total outbound connect attempts\n# TYPE socks_connect_attempted_total counter\nsocks_connect_attempted_total %d\n", snap.ConnectAttempted)
	fmt.Fprintf(w, "# HELP socks_connect_succeeded_total Total successful outbound connects\n# TYPE socks_connect_succeeded_total counter\nsocks_connect_succeeded_total %d\n", snap.ConnectSucceeded)
	fmt.Fprintf(w, "# HELP socks_connect_failed_total Total failed outbound connects\n# TYPE socks_connect_failed_total counter\nsocks_connect_failed_total %d\n", snap.ConnectFailed)
	fmt.Fprintf(w, "# HELP socks_connect_duration_seconds_avg Average outbound connect duration\n# TYPE socks_connect_duration_seconds_avg gauge\nsocks_connect_duration_seconds_avg %.3f\n", snap.ConnectTimeAvg.Seconds())
	fmt.Fprintf(w, "# HELP socks_connect_duration_seconds_p95 95th percentile outbound connect duration\n# TYPE socks_connect_duration_seconds_p95 gauge\nsocks_connect_duration_seconds_p95 %.3f\n", snap.ConnectTimeP95.Seconds())
	fmt.Fprintf(w, "# HELP socks_relay_bytes_client_to_target_total Bytes relayed from client to target\n# TYPE socks_relay_bytes_client_to_target_total counter\nsocks_relay_bytes_client_to_target_total %d\n", snap.RelayBytesC2T)
	fmt.Fprintf(w, "# HELP socks_relay_bytes_target_to_client_total Bytes relayed from target to client\n# TYPE socks_relay_bytes_target_to_client_total counter\nsocks_relay_bytes_target_to_client_total %d\n", snap.RelayBytesT2C)
	fmt.Fprintf(w, "# HELP socks_policy_denied_total Total requests denied by the handler\n# TYPE socks_policy_denied_total counter\nsocks_policy_denied_total %d\n", snap.PolicyDenied)
	fmt.Fprintf(w, "# HELP socks_uptime_seconds Server uptime in seconds\n# TYPE socks_uptime_seconds gauge\nsocks_uptime_seconds %d\n", snap.UptimeSeconds)
}

func (s *Server) handleJSONMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(s.metricsProvider.Snapshot()); err != nil {
		s.logger.Error("Failed to encode metrics", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	result := s.healthProvider.Check(ctx)

	statusCode := http.StatusOK
	if result.Status == health.StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		s.logger.Error("Failed to encode health status", "error", err)
	}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tmpl := template.Must(template.New("dashboard").Parse(dashboardTemplate))
	data := struct {
		Metrics   *metrics.Snapshot
		Timestamp time.Time
	}{
		Metrics:   s.metricsProvider.Snapshot(),
		Timestamp: time.Now(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := tmpl.Execute(w, data); err != nil {
		s.logger.Error("Failed to render dashboard", "error", err)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>go-socks-proxy Metrics</title></head>
<body>
    <h1>go-socks-proxy Metrics Server</h1>
    <ul>
        <li><a href="/metrics">/metrics</a> - Prometheus format metrics</li>
        <li><a href="/metrics/json">/metrics/json</a> - JSON format metrics</li>
        <li><a href="/health">/health</a> - Health check status</li>
        <li><a href="/debug/metrics">/debug/metrics</a> - Real-time dashboard</li>
    </ul>
</body>
</html>`)
}

const dashboardTemplate = `<!DOCTYPE html>
<html>
<head>
    <title>go-socks-proxy Dashboard</title>
    <meta http-equiv="refresh" content="5">
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Arial, sans-serif; margin: 0; padding: 20px; background: #f5f5f5; }
        .container { max-width: 1000px; margin: 0 auto; }
        h1 { color: #333; border-bottom: 3px solid #3B82F6; padding-bottom: 10px; }
        .timestamp { color: #666; font-size: 0.9em; margin-bottom: 20px; }
        .metrics-grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(300px, 1fr)); gap: 20px; }
        .metric-card { background: white; border-radius: 8px; padding: 20px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        .metric-card h2 { margin-top: 0; color: #555; font-size: 1.2em; border-bottom: 2px solid #eee; padding-bottom: 10px; }
        .metric-row { display: flex; justify-content: space-between; padding: 8px 0; border-bottom: 1px solid #f0f0f0; }
        .metric-label { color: #666; font-weight: 500; }
        .metric-value { color: #333; font-weight: bold; }
        .success { color: #28a745; } .danger { color: #dc3545; }
    </style>
</head>
<body>
    <div class="container">
        <h1>go-socks-proxy Dashboard</h1>
        <div class="timestamp">Last updated: {{.Timestamp.Format "2006-01-02 15:04:05 MST"}} (auto-refresh every 5s)</div>
        <div class="metrics-grid">
            <div class="metric-card">
                <h2>Sessions</h2>
                <div class="metric-row"><span class="metric-label">Active:</span><span class="metric-value">{{.Metrics.ActiveSessions}}</span></div>
                <div class="metric-row"><span class="metric-label">Accepted:</span><span class="metric-value">{{.Metrics.SessionsAccepted}}</span></div>
                <div class="metric-row"><span class="metric-label">Failed:</span><span class="metric-value danger">{{.Metrics.SessionsFailed}}</span></div>
                <div class="metric-row"><span class="metric-label">v4 / v5:</span><span class="metric-value">{{.Metrics.V4Sessions}} / {{.Metrics.V5Sessions}}</span></div>
            </div>
            <div class="metric-card">
                <h2>Outbound connects</h2>
                <div class="metric-row"><span class="metric-label">Attempted:</span><span class="metric-value">{{.Metrics.ConnectAttempted}}</span></div>
                <div class="metric-row"><span class="metric-label">Succeeded:</span><span class="metric-value success">{{.Metrics.ConnectSucceeded}}</span></div>
                <div class="metric-row"><span class="metric-label">Failed:</span><span class="metric-value danger">{{.Metrics.ConnectFailed}}</span></div>
                <div class="metric-row"><span class="metric-label">Avg / P95:</span><span class="metric-value">{{printf "%.2fs" .Metrics.ConnectTimeAvg.Seconds}} / {{printf "%.2fs" .Metrics.ConnectTimeP95.Seconds}}</span></div>
            </div>
            <div class="metric-card">
                <h2>Relay throughput</h2>
                <div class="metric-row"><span class="metric-label">Client to target:</span><span class="metric-value">{{.Metrics.RelayBytesC2T}} bytes</span></div>
                <div class="metric-row"><span class="metric-label">Target to client:</span><span class="metric-value">{{.Metrics.RelayBytesT2C}} bytes</span></div>
            </div>
            <div class="metric-card">
                <h2>Policy and uptime</h2>
                <div class="metric-row"><span class="metric-label">Denied:</span><span class="metric-value danger">{{.Metrics.PolicyDenied}}</span></div>
                <div class="metric-row"><span class="metric-label">Uptime:</span><span class="metric-value">{{.Metrics.UptimeSeconds}}s</span></div>
            </div>
        </div>
    </div>
</body>
</html>`
