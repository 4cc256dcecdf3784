package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ReloadableConfig wraps a Config with hot reload capabilities.
type ReloadableConfig struct {
	mu              sync.RWMutex
	config          *Config
	configPath      string
	lastModTime     time.Time
	reloadCallbacks []ReloadCallback
	logger          *slog.Logger
	stopCh          chan struct{}
	doneCh          chan struct{}
}

// ReloadCallback is called when configuration is successfully reloaded.
// It receives the old and new configuration for comparison.
type ReloadCallback func(oldConfig, newConfig *Config) error

// ReloadableFields lists which configuration fields support hot reload.
// Fields not in this list require a service restart to take effect
// (ListenAddress rebinds the listener, so it is deliberately excluded).
var ReloadableFields = map[string]bool{
	"LogLevel":       true,
	"ConnectTimeout": true,
	"ShutdownGrace":  true,
}

// NewReloadableConfig creates a new reloadable configuration.
func NewReloadableConfig(config *Config, configPath string, logger *slog.Logger) *ReloadableConfig {
	if logger == nil {
		logger = slog.Default()
	}

	var modTime time.Time
	if configPath != "" {
		if info, err := os.Stat(configPath); err == nil {
			modTime = info.ModTime()
		}
	}

	return &ReloadableConfig{
		config:          config,
		configPath:      configPath,
		lastModTime:     modTime,
		reloadCallbacks: make([]ReloadCallback, 0),
		logger:          logger,
		stopCh:          make(chan struct{}),
		doneCh:          make(chan struct{}),
	}
}

// Get returns a copy of the current configuration (thread-safe).
func (rc *ReloadableConfig) Get() *Config {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	cfg := *rc.config
	return &cfg
}

// OnReload registers a callback invoked whenever configuration is reloaded.
func (rc *ReloadableConfig) OnReload(callback ReloadCallback) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.reloadCallbacks = append(rc.reloadCallbacks, callback)
}

// StartWatcher polls the configuration file for changes every interval
// and reloads it when the modification time advances.
func (rc *ReloadableConfig) StartWatcher(ctx context.Context, interval time.Duration) {
	if rc.configPath == "" {
		rc.logger.Warn("Configuration hot reload disabled: no config file specified")
		close(rc.doneCh)
		return
	}

	rc.logger.Info("Starting configuration file watcher",
		"path", rc.configPath,
		"interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer close(rc.doneCh)

	for {
		select {
		case <-ctx.Done():
			rc.logger.Info("Configuration watcher stopped: context cancelled")
			return
		case <-rc.stopCh:
			rc.logger.Info("Configuration watcher stopped")
			return
		case <-ticker.C:
			if err := rc.checkAndReload(); err != nil {
				rc.logger.Error("Failed to reload configuration",
					"error", err,
					"path", rc.configPath)
			}
		}
	}
}

// Stop stops the configuration watcher.
func (rc *ReloadableConfig) Stop() {
	close(rc.stopCh)
	<-rc.doneCh
}

func (rc *ReloadableConfig) checkAndReload() error {
	info, err := os.Stat(rc.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			rc.logger.Warn("Configuration file disappeared", "path", rc.configPath)
			return nil
		}
		return fmt.Errorf("stat config file: %w", err)
	}

	modTime := info.ModTime()
	if !modTime.After(rc.lastModTime) {
		return nil
	}

	rc.logger.Info("Configuration file changed, reloading",
		"path", rc.configPath,
		"old_mod_time", rc.lastModTime,
		"new_mod_time", modTime)

	newConfig, err := rc.loadConfigFile()
	if err != nil {
		return fmt.Errorf("load config file: %w", err)
	}

	if err := newConfig.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := rc.applyConfig(newConfig); err != nil {
		return fmt.Errorf("apply config: %w", err)
	}

	rc.lastModTime = modTime

	rc.logger.Info("Configuration reloaded successfully", "path", rc.configPath)
	return nil
}

// Reload explicitly reloads configuration from the file.
func (rc *ReloadableConfig) Reload() error {
	if rc.configPath == "" {
		return fmt.Errorf("no configuration file specified")
	}

	rc.logger.Info("Manually reloading configuration", "path", rc.configPath)

	newConfig, err := rc.loadConfigFile()
	if err != nil {
		return fmt.Errorf("load config file: %w", err)
	}

	if err := newConfig.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := rc.applyConfig(newConfig); err != nil {
		return fmt.Errorf("apply config: %w", err)
	}

	if info, err := os.Stat(rc.configPath); err == nil {
		rc.lastModTime = info.ModTime()
	}

	rc.logger.Info("Configuration reloaded successfully", "path", rc.configPath)
	return nil
}

func (rc *ReloadableConfig) loadConfigFile() (*Config, error) {
	newConfig := DefaultConfig()

	ext := filepath.Ext(rc.configPath)
	switch ext {
	case ".conf", "":
		if err := LoadFromFile(rc.configPath, newConfig); err != nil {
			return nil, err
		}
		return newConfig, nil
	default:
		return nil, fmt.Errorf("unsupported config file extension: %s", ext)
	}
}

func (rc *ReloadableConfig) applyConfig(newConfig *Config) error {
	rc.mu.Lock()
	oldConfig := rc.config
	mergedConfig := rc.mergeReloadableFields(oldConfig, newConfig)
	tempConfig := mergedConfig
	rc.mu.Unlock()

	for _, callback := range rc.reloadCallbacks {
		if err := callback(oldConfig, tempConfig); err != nil {
			rc.logger.Error("Reload callback failed, rolling back", "error", err)
			return fmt.Errorf("reload callback failed: %w", err)
		}
	}

	rc.mu.Lock()
	rc.config = tempConfig
	rc.mu.Unlock()

	rc.logReloadedFields(oldConfig, tempConfig)
	return nil
}

// mergeReloadableFields creates a new config with only reloadable fields
// updated, leaving fields that require a restart (ListenAddress,
// RelayBufferKiB, MetricsAddress) untouched.
func (rc *ReloadableConfig) mergeReloadableFields(oldConfig, newConfig *Config) *Config {
	merged := *oldConfig

	if ReloadableFields["LogLevel"] {
		merged.LogLevel = newConfig.LogLevel
	}
	if ReloadableFields["ConnectTimeout"] {
		merged.ConnectTimeout = newConfig.ConnectTimeout
	}
	if ReloadableFields["ShutdownGrace"] {
		merged.ShutdownGrace = newConfig.ShutdownGrace
	}

	return &merged
}

func (rc *ReloadableConfig) logReloadedFields(oldConfig, newConfig *Config) {
	changes := make([]string, 0)

	if oldConfig.LogLevel != newConfig.LogLevel {
		changes = append(changes, fmt.Sprintf("LogLevel: %s -> %s", oldConfig.LogLevel, newConfig.LogLevel))
	}
	if oldConfig.ConnectTimeout != newConfig.ConnectTimeout {
		changes = append(changes, fmt.Sprintf("ConnectTimeout: %v -> %v", oldConfig.ConnectTimeout, newConfig.ConnectTimeout))
	}
	if oldConfig.ShutdownGrace != newConfig.ShutdownGrace {
		changes = append(changes, fmt.Sprintf("ShutdownGrace: %v -> %v", oldConfig.ShutdownGrace, newConfig.ShutdownGrace))
	}

	if len(changes) > 0 {
		rc.logger.Info("Configuration fields updated", "changes", changes, "count", len(changes))
	}
}
