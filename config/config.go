// Package config loads the runner configuration from a YAML file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level runner configuration.
type Config struct {
	// ModulesDir is scanned for .wasm widget modules at startup.
	ModulesDir string `yaml:"modules_dir"`

	// MemoryLimitPages caps each guest's linear memory, in 64KiB pages.
	// Zero leaves the engine default in place.
	MemoryLimitPages uint32 `yaml:"memory_limit_pages"`

	// RequestBuffer and EventBuffer size the dispatch loop channels.
	RequestBuffer int `yaml:"request_buffer"`
	EventBuffer   int `yaml:"event_buffer"`

	// RenderQueueBound caps the dispatch loop's pending render queue.
	RenderQueueBound int `yaml:"render_queue_bound"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// EnvModulesDir overrides the configured modules directory when set.
const EnvModulesDir = "WIDGET_MODULES_DIR"

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		ModulesDir:       "modules",
		RequestBuffer:    64,
		EventBuffer:      64,
		RenderQueueBound: 256,
		LogLevel:         "info",
	}
}

// Load reads a YAML config file and fills unset fields from Default. An
// empty path skips the file and yields the defaults. WIDGET_MODULES_DIR
// overrides the modules directory either way.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %q: %w", path, err)
		}
	}

	if dir := os.Getenv(EnvModulesDir); dir != "" {
		cfg.ModulesDir = dir
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects values the runner cannot start with.
func (c Config) Validate() error {
	if c.ModulesDir == "" {
		return fmt.Errorf("config: modules_dir must not be empty")
	}
	if c.RequestBuffer <= 0 {
		return fmt.Errorf("config: request_buffer must be positive, got %d", c.RequestBuffer)
	}
	if c.EventBuffer <= 0 {
		return fmt.Errorf("config: event_buffer must be positive, got %d", c.EventBuffer)
	}
	if c.RenderQueueBound <= 0 {
		return fmt.Errorf("config: render_queue_bound must be positive, got %d", c.RenderQueueBound)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	return nil
}
