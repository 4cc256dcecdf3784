package config

import (
	"encoding/json"
	"testing"
	"time"
)

func TestGenerateJSONSchema(t *testing.T) {
	schema, err := GenerateJSONSchema()
	if err != nil {
		t.Fatalf("GenerateJSONSchema() error = %v", err)
	}
	if schema.Type != "object" {
		t.Errorf("Type = %s, want object", schema.Type)
	}

	for _, field := range []string{"ListenAddress", "ConnectTimeout", "RelayBufferKiB", "ShutdownGrace", "LogLevel", "MetricsAddress"} {
		if _, ok := schema.Properties[field]; !ok {
			t.Errorf("schema missing property %s", field)
		}
	}

	logLevel := schema.Properties["LogLevel"]
	if len(logLevel.Enum) != 4 {
		t.Errorf("LogLevel enum has %d entries, want 4", len(logLevel.Enum))
	}

	found := false
	for _, req := range schema.Required {
		if req == "ListenAddress" {
			found = true
		}
	}
	if !found {
		t.Error("ListenAddress should be required")
	}
}

func TestJSONSchemaToJSON(t *testing.T) {
	schema, err := GenerateJSONSchema()
	if err != nil {
		t.Fatalf("GenerateJSONSchema() error = %v", err)
	}

	data, err := schema.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("produced JSON does not parse: %v", err)
	}
	if decoded["title"] != "go-socks-proxy Configuration" {
		t.Errorf("title = %v, want go-socks-proxy Configuration", decoded["title"])
	}
}

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  ValidationError
		want string
	}{
		{
			name: "without suggestion",
			err:  ValidationError{Field: "LogLevel", Message: "invalid"},
			want: "LogLevel: invalid",
		},
		{
			name: "with suggestion",
			err:  ValidationError{Field: "LogLevel", Message: "invalid", Suggestion: "use info"},
			want: "LogLevel: invalid (suggestion: use info)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidateDetailed(t *testing.T) {
	t.Run("valid default config has no errors", func(t *testing.T) {
		cfg := DefaultConfig()
		result := cfg.ValidateDetailed()
		if !result.Valid {
			t.Errorf("expected valid, got errors: %+v", result.Errors)
		}
		if len(result.Errors) != 0 {
			t.Errorf("expected no errors, got %d", len(result.Errors))
		}
	})

	t.Run("empty ListenAddress is an error", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.ListenAddress = ""
		result := cfg.ValidateDetailed()
		if result.Valid {
			t.Error("expected invalid")
		}
		if len(result.Errors) != 1 || result.Errors[0].Field != "ListenAddress" {
			t.Errorf("expected one ListenAddress error, got %+v", result.Errors)
		}
	})

	t.Run("large RelayBufferKiB is a warning, not an error", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.RelayBufferKiB = 512
		result := cfg.ValidateDetailed()
		if !result.Valid {
			t.Errorf("expected valid (warning only), got errors: %+v", result.Errors)
		}
		if len(result.Warnings) != 1 || result.Warnings[0].Field != "RelayBufferKiB" {
			t.Errorf("expected one RelayBufferKiB warning, got %+v", result.Warnings)
		}
	})

	t.Run("zero RelayBufferKiB is an error", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.RelayBufferKiB = 0
		result := cfg.ValidateDetailed()
		if result.Valid {
			t.Error("expected invalid")
		}
	})

	t.Run("non-positive timeouts are errors", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.ConnectTimeout = -1 * time.Second
		result := cfg.ValidateDetailed()
		if result.Valid {
			t.Error("expected invalid")
		}
	})

	t.Run("MetricsAddress colliding with ListenAddress is an error", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.MetricsAddress = cfg.ListenAddress
		result := cfg.ValidateDetailed()
		if result.Valid {
			t.Error("expected invalid")
		}
	})
}
