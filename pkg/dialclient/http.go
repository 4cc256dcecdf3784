// Package dialclient provides convenience functions for building
// net/http clients that route through a go-socks-proxy server. It
// exercises the server's wire compatibility against x/net/proxy, a
// well-known third-party SOCKS5 client implementation, rather than
// only against hand-rolled test code.
package dialclient

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/proxy"
)

// Config configures the HTTP client built around a SOCKS proxy.
type Config struct {
	// Timeout for HTTP requests (default: 30s)
	Timeout time.Duration

	// DialTimeout for establishing the proxy connection (default: 10s)
	DialTimeout time.Duration

	// TLSHandshakeTimeout for TLS handshake (default: 10s)
	TLSHandshakeTimeout time.Duration

	// MaxIdleConns controls the maximum number of idle connections (default: 10)
	MaxIdleConns int

	// IdleConnTimeout controls how long idle connections are kept (default: 90s)
	IdleConnTimeout time.Duration

	// DisableKeepAlives disables HTTP keep-alives (default: false)
	DisableKeepAlives bool
}

// DefaultConfig returns sensible defaults for proxied HTTP clients.
func DefaultConfig() *Config {
	return &Config{
		Timeout:             30 * time.Second,
		DialTimeout:         10 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		DisableKeepAlives:   false,
	}
}

// NewHTTPClient creates an http.Client that routes all traffic through
// the SOCKS5 proxy listening at proxyAddr (host:port, no authentication).
//
// Example:
//
//	httpClient, _ := dialclient.NewHTTPClient("127.0.0.1:1080", nil)
//	resp, _ := httpClient.Get("http://example.com")
func NewHTTPClient(proxyAddr string, config *Config) (*http.Client, error) {
	transport, err := NewHTTPTransport(proxyAddr, config)
	if err != nil {
		return nil, err
	}

	if config == nil {
		config = DefaultConfig()
	}

	return &http.Client{
		Transport: transport,
		Timeout:   config.Timeout,
	}, nil
}

// NewHTTPTransport creates an http.Transport that dials through the
// given SOCKS5 proxy address. This allows further customization of the
// transport before wrapping it in an http.Client.
func NewHTTPTransport(proxyAddr string, config *Config) (*http.Transport, error) {
	if proxyAddr == "" {
		return nil, fmt.Errorf("proxyAddr cannot be empty")
	}

	if config == nil {
		config = DefaultConfig()
	}

	dialer, err := proxy.SOCKS5("tcp", proxyAddr, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	return &http.Transport{
		DialContext:           DialContext(dialer, config.DialTimeout),
		MaxIdleConns:          config.MaxIdleConns,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		DisableKeepAlives:     config.DisableKeepAlives,
		ResponseHeaderTimeout: config.Timeout,
	}, nil
}

// DialContext returns a context-aware DialContext function backed by
// dialer, bounding each dial attempt by timeout (0 disables the bound).
func DialContext(dialer proxy.Dialer, timeout time.Duration) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		type result struct {
			conn net.Conn
			err  error
		}

		ch := make(chan result, 1)
		go func() {
			conn, err := dialer.Dial(network, addr)
			ch <- result{conn, err}
		}()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-ch:
			return res.conn, res.err
		}
	}
}

// WrapHTTPClient replaces httpClient's Transport with one that dials
// through the SOCKS5 proxy at proxyAddr.
func WrapHTTPClient(httpClient *http.Client, proxyAddr string, config *Config) error {
	if httpClient == nil {
		return fmt.Errorf("httpClient cannot be nil")
	}

	transport, err := NewHTTPTransport(proxyAddr, config)
	if err != nil {
		return fmt.Errorf("failed to create transport: %w", err)
	}

	httpClient.Transport = transport
	return nil
}
