package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// LoadFromFile loads configuration from a torrc-style file: one `Key
// Value` pair per line, `#` starts a comment, blank lines are ignored.
func LoadFromFile(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validatePath(path); err != nil {
		return fmt.Errorf("path validation failed: %w", err)
	}

	file, err := os.Open(path) // #nosec G304 - path is validated by validatePath
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Fields(line)
		if len(parts) < 1 {
			continue
		}

		key := parts[0]
		value := ""
		if len(parts) > 1 {
			value = strings.Join(parts[1:], " ")
		}

		if err := processConfigOption(cfg, key, value); err != nil {
			return fmt.Errorf("line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}

func processConfigOption(cfg *Config, key, value string) error {
	switch key {
	case "ListenAddress":
		cfg.ListenAddress = value

	case "ConnectTimeout":
		timeout, err := parseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid ConnectTimeout: %w", err)
		}
		cfg.ConnectTimeout = timeout

	case "RelayBufferKiB":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid RelayBufferKiB value: %s", value)
		}
		cfg.RelayBufferKiB = n

	case "ShutdownGrace":
		grace, err := parseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid ShutdownGrace: %w", err)
		}
		cfg.ShutdownGrace = grace

	case "LogLevel":
		cfg.LogLevel = strings.ToLower(value)

	case "MetricsAddress":
		cfg.MetricsAddress = value

	case "EnableTracing":
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid EnableTracing value: %s", value)
		}
		cfg.EnableTracing = enabled

	default:
		// Silently ignore unknown options for forward compatibility.
	}

	return nil
}

// parseDuration parses a duration string with support for common time
// units: seconds (s), minutes (m), hours (h), days (d).
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration string")
	}

	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration format: %s", s)
	}

	suffix := s[len(s)-1:]
	valueStr := s[:len(s)-1]

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration value: %s", s)
	}

	switch suffix {
	case "s", "S":
		return time.Duration(value) * time.Second, nil
	case "m", "M":
		return time.Duration(value) * time.Minute, nil
	case "h", "H":
		return time.Duration(value) * time.Hour, nil
	case "d", "D":
		return time.Duration(value) * 24 * time.Hour, nil
	default:
		val, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration format: %s", s)
		}
		return time.Duration(val) * time.Second, nil
	}
}

// validatePath rejects paths containing directory traversal components.
func validatePath(path string) error {
	cleanPath := filepath.Clean(path)

	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("invalid path: directory traversal detected")
	}

	if !filepath.IsAbs(path) && filepath.IsAbs(cleanPath) {
		return fmt.Errorf("invalid path: attempts to escape working directory")
	}

	return nil
}

// SaveToFile saves the configuration to a torrc-style file.
func SaveToFile(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validatePath(path); err != nil {
		return fmt.Errorf("path validation failed: %w", err)
	}

	file, err := os.Create(path) // #nosec G304 - path is validated by validatePath
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	defer writer.Flush()

	fmt.Fprintf(writer, "# go-socks-proxy configuration file\n")
	fmt.Fprintf(writer, "# Generated automatically - edit with care\n\n")

	fmt.Fprintf(writer, "# Network Settings\n")
	fmt.Fprintf(writer, "ListenAddress %s\n\n", cfg.ListenAddress)

	fmt.Fprintf(writer, "# Dial Behavior\n")
	fmt.Fprintf(writer, "ConnectTimeout %s\n", formatDuration(cfg.ConnectTimeout))
	fmt.Fprintf(writer, "RelayBufferKiB %d\n\n", cfg.RelayBufferKiB)

	fmt.Fprintf(writer, "# Shutdown\n")
	fmt.Fprintf(writer, "ShutdownGrace %s\n\n", formatDuration(cfg.ShutdownGrace))

	fmt.Fprintf(writer, "# Logging\n")
	fmt.Fprintf(writer, "LogLevel %s\n\n", cfg.LogLevel)

	fmt.Fprintf(writer, "# Monitoring\n")
	fmt.Fprintf(writer, "MetricsAddress %s\n", cfg.MetricsAddress)
	fmt.Fprintf(writer, "EnableTracing %t\n", cfg.EnableTracing)

	return writer.Flush()
}

func formatDuration(d time.Duration) string {
	if d%time.Hour == 0 && d >= time.Hour {
		return fmt.Sprintf("%dh", d/time.Hour)
	}
	if d%time.Minute == 0 && d >= time.Minute {
		return fmt.Sprintf("%dm", d/time.Minute)
	}
	return fmt.Sprintf("%ds", d/time.Second)
}
