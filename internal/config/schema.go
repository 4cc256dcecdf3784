package config

import (
	"encoding/json"
	"fmt"
)

// JSONSchema is a JSON Schema v7 description of Config, for IDE
// autocomplete, validation, and documentation.
type JSONSchema struct {
	Schema      string                    `json:"$schema"`
	Title       string                    `json:"title"`
	Description string                    `json:"description"`
	Type        string                    `json:"type"`
	Properties  map[string]PropertySchema `json:"properties"`
	Required    []string                  `json:"required,omitempty"`
}

// PropertySchema represents a property in the JSON schema.
type PropertySchema struct {
	Type        string        `json:"type,omitempty"`
	Description string        `json:"description,omitempty"`
	Default     interface{}   `json:"default,omitempty"`
	Minimum     *int          `json:"minimum,omitempty"`
	Maximum     *int          `json:"maximum,omitempty"`
	Enum        []string      `json:"enum,omitempty"`
	Pattern     string        `json:"pattern,omitempty"`
	Examples    []interface{} `json:"examples,omitempty"`
}

// GenerateJSONSchema creates a JSON Schema v7 document for Config.
func GenerateJSONSchema() (*JSONSchema, error) {
	minBuf := 1

	schema := &JSONSchema{
		Schema:      "http://json-schema.org/draft-07/schema#",
		Title:       "go-socks-proxy Configuration",
		Description: "Configuration schema for the go-socks-proxy SOCKS4/5 server",
		Type:        "object",
		Properties: map[string]PropertySchema{
			"ListenAddress": {
				Type:        "string",
				Description: "SOCKS listen address in host:port form",
				Default:     "127.0.0.1:1080",
				Examples:    []interface{}{"127.0.0.1:1080", "0.0.0.0:1080"},
			},
			"ConnectTimeout": {
				Type:        "string",
				Description: "Maximum time to wait for an outbound connect (duration string)",
				Default:     "10s",
				Pattern:     "^[0-9]+(ns|us|µs|ms|s|m|h)$",
				Examples:    []interface{}{"10s", "30s"},
			},
			"RelayBufferKiB": {
				Type:        "integer",
				Description: "Relay buffer size in KiB (not read by the server; the relay uses a fixed 64 KiB buffer)",
				Default:     32,
				Minimum:     &minBuf,
				Examples:    []interface{}{16, 32, 64},
			},
			"ShutdownGrace": {
				Type:        "string",
				Description: "Maximum time to wait for in-flight sessions to drain on shutdown",
				Default:     "10s",
				Pattern:     "^[0-9]+(ns|us|µs|ms|s|m|h)$",
				Examples:    []interface{}{"10s", "30s"},
			},
			"LogLevel": {
				Type:        "string",
				Description: "Minimum log level emitted by the server",
				Default:     "info",
				Enum:        []string{"debug", "info", "warn", "error"},
			},
			"MetricsAddress": {
				Type:        "string",
				Description: "HTTP metrics/health bind address, empty to disable",
				Default:     "",
				Examples:    []interface{}{"", "127.0.0.1:9090"},
			},
		},
		Required: []string{"ListenAddress"},
	}

	return schema, nil
}

// ToJSON converts the schema to JSON format.
func (s *JSONSchema) ToJSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// ValidationError represents a configuration validation error with context.
type ValidationError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
	Severity   string
}

func (v *ValidationError) Error() string {
	if v.Suggestion != "" {
		return fmt.Sprintf("%s: %s (suggestion: %s)", v.Field, v.Message, v.Suggestion)
	}
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// ValidationResult contains the results of configuration validation.
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// ValidateDetailed performs comprehensive validation with suggestions,
// distinguishing hard errors from advisory warnings.
func (c *Config) ValidateDetailed() *ValidationResult {
	result := &ValidationResult{Valid: true, Errors: []ValidationError{}, Warnings: []ValidationError{}}

	if c.ListenAddress == "" {
		result.Valid = false
		result.Errors = append(result.Errors, ValidationError{
			Field:      "ListenAddress",
			Message:    "must not be empty",
			Suggestion: "set a host:port such as 127.0.0.1:1080",
			Severity:   "error",
		})
	}

	if c.ConnectTimeout <= 0 {
		result.Valid = false
		result.Errors = append(result.Errors, ValidationError{
			Field:      "ConnectTimeout",
			Value:      c.ConnectTimeout,
			Message:    "must be positive",
			Suggestion: "use a duration such as 10s",
			Severity:   "error",
		})
	}

	if c.RelayBufferKiB < 1 {
		result.Valid = false
		result.Errors = append(result.Errors, ValidationError{
			Field:      "RelayBufferKiB",
			Value:      c.RelayBufferKiB,
			Message:    "must be at least 1",
			Suggestion: "use 32 for a balanced default",
			Severity:   "error",
		})
	} else if c.RelayBufferKiB > 256 {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:      "RelayBufferKiB",
			Value:      c.RelayBufferKiB,
			Message:    "unusually large relay buffer",
			Suggestion: "large buffers increase per-session memory without improving throughput beyond path MTU",
			Severity:   "warning",
		})
	}

	if c.ShutdownGrace <= 0 {
		result.Valid = false
		result.Errors = append(result.Errors, ValidationError{
			Field:      "ShutdownGrace",
			Value:      c.ShutdownGrace,
			Message:    "must be positive",
			Suggestion: "use a duration such as 10s",
			Severity:   "error",
		})
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		result.Valid = false
		result.Errors = append(result.Errors, ValidationError{
			Field:      "LogLevel",
			Value:      c.LogLevel,
			Message:    "must be one of debug, info, warn, error",
			Suggestion: "use info for normal operation",
			Severity:   "error",
		})
	}

	if c.MetricsAddress != "" && c.MetricsAddress == c.ListenAddress {
		result.Valid = false
		result.Errors = append(result.Errors, ValidationError{
			Field:      "MetricsAddress",
			Value:      c.MetricsAddress,
			Message:    "conflicts with ListenAddress",
			Suggestion: "choose a different port for metrics",
			Severity:   "error",
		})
	}

	return result
}
