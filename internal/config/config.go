// Package config provides configuration management for the SOCKS proxy
// server.
package config

import (
	"fmt"
	"time"
)

// Config represents the SOCKS proxy server configuration.
type Config struct {
	// Network settings
	ListenAddress string // SOCKS listen address, e.g. "127.0.0.1:1080"

	// Dial behavior
	ConnectTimeout time.Duration // Max time to wait for an outbound connect (default: 10s)
	RelayBufferKiB int           // Relay buffer size in KiB (default: 32); validated and saved, but not read by the server, whose relay always uses the fixed 64 KiB pool.RelayBufferSize

	// Graceful shutdown
	ShutdownGrace time.Duration // Max time to wait for in-flight sessions to drain (default: 10s)

	// Logging
	LogLevel string // Log level: debug, info, warn, error (default: info)

	// Monitoring and observability
	MetricsAddress string // HTTP metrics/health bind address ("" disables it)
	EnableTracing  bool   // Sample and export session spans (default: true)
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddress:  "127.0.0.1:1080",
		ConnectTimeout: 10 * time.Second,
		RelayBufferKiB: 32,
		ShutdownGrace:  10 * time.Second,
		LogLevel:       "info",
		MetricsAddress: "",
		EnableTracing:  true,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.ListenAddress == "" {
		return fmt.Errorf("ListenAddress must not be empty")
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("ConnectTimeout must be positive")
	}
	if c.RelayBufferKiB < 1 {
		return fmt.Errorf("RelayBufferKiB must be at least 1")
	}
	if c.ShutdownGrace <= 0 {
		return fmt.Errorf("ShutdownGrace must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid LogLevel: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	if c.MetricsAddress != "" && c.MetricsAddress == c.ListenAddress {
		return fmt.Errorf("MetricsAddress must not equal ListenAddress")
	}

	return nil
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
