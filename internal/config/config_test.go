package config

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig() returned nil")
	}

	if cfg.ListenAddress != "127.0.0.1:1080" {
		t.Errorf("ListenAddress = %v, want 127.0.0.1:1080", cfg.ListenAddress)
	}
	if cfg.ConnectTimeout != 10*time.Second {
		t.Errorf("ConnectTimeout = %v, want 10s", cfg.ConnectTimeout)
	}
	if cfg.RelayBufferKiB != 32 {
		t.Errorf("RelayBufferKiB = %v, want 32", cfg.RelayBufferKiB)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %v, want info", cfg.LogLevel)
	}
	if cfg.MetricsAddress != "" {
		t.Errorf("MetricsAddress = %v, want empty", cfg.MetricsAddress)
	}
	if !cfg.EnableTracing {
		t.Error("EnableTracing = false, want true")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "empty ListenAddress",
			modify: func(c *Config) {
				c.ListenAddress = ""
			},
			wantErr: true,
		},
		{
			name: "invalid ConnectTimeout",
			modify: func(c *Config) {
				c.ConnectTimeout = 0
			},
			wantErr: true,
		},
		{
			name: "negative ConnectTimeout",
			modify: func(c *Config) {
				c.ConnectTimeout = -1 * time.Second
			},
			wantErr: true,
		},
		{
			name: "invalid RelayBufferKiB",
			modify: func(c *Config) {
				c.RelayBufferKiB = 0
			},
			wantErr: true,
		},
		{
			name: "invalid ShutdownGrace",
			modify: func(c *Config) {
				c.ShutdownGrace = 0
			},
			wantErr: true,
		},
		{
			name: "invalid LogLevel",
			modify: func(c *Config) {
				c.LogLevel = "verbose"
			},
			wantErr: true,
		},
		{
			name: "valid LogLevel debug",
			modify: func(c *Config) {
				c.LogLevel = "debug"
			},
			wantErr: false,
		},
		{
			name: "MetricsAddress equal to ListenAddress",
			modify: func(c *Config) {
				c.MetricsAddress = c.ListenAddress
			},
			wantErr: true,
		},
		{
			name: "MetricsAddress distinct from ListenAddress",
			modify: func(c *Config) {
				c.MetricsAddress = "127.0.0.1:9090"
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigClone(t *testing.T) {
	original := DefaultConfig()
	original.ListenAddress = "127.0.0.1:1081"

	clone := original.Clone()

	if clone.ListenAddress != original.ListenAddress {
		t.Errorf("ListenAddress = %v, want %v", clone.ListenAddress, original.ListenAddress)
	}

	clone.ListenAddress = "127.0.0.1:9999"
	if original.ListenAddress == clone.ListenAddress {
		t.Error("modifying clone affected original")
	}
}
