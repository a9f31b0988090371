// Package config resolves runtime settings from a YAML file and the
// environment. Precedence, lowest first: defaults, file, environment, flags
// (flags are applied by the caller).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rcliao/tiered-memory/internal/llm"
	"github.com/rcliao/tiered-memory/internal/memory"
	"github.com/rcliao/tiered-memory/internal/store"
)

// Environment variables read by ApplyEnv.
const (
	EnvRoot        = "TIERED_MEMORY_ROOT"
	EnvUser        = "TIERED_MEMORY_USER"
	EnvLLMProvider = "TIERED_MEMORY_LLM_PROVIDER"
	EnvLLMModel    = "TIERED_MEMORY_LLM_MODEL"
	EnvLLMURL      = "TIERED_MEMORY_LLM_URL"
	EnvOpenAIKey   = "OPENAI_API_KEY"
	EnvAnthropic   = "ANTHROPIC_API_KEY"
)

// DefaultUser is the namespace used when none is configured.
const DefaultUser = "default"

// Config is the full runtime configuration.
type Config struct {
	Root   string       `yaml:"root"`
	User   string       `yaml:"user"`
	Memory MemoryConfig `yaml:"memory"`
	LLM    llm.Config   `yaml:"llm"`
}

// MemoryConfig holds coordinator tuning.
type MemoryConfig struct {
	ActiveCapacity    int    `yaml:"active_capacity"`
	HandlerName       string `yaml:"handler_name"`
	PersonaName       string `yaml:"persona_name"`
	StoreDailySummary bool   `yaml:"store_daily_summary"`
	DreamsEnabled     bool   `yaml:"dreams_enabled"`
}

// DefaultRoot returns ~/.tiered-memory, or a relative directory when the
// home directory is unknown.
func DefaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tiered-memory"
	}
	return filepath.Join(home, ".tiered-memory")
}

// DefaultPath is the config file consulted when none is given.
func DefaultPath() string {
	return filepath.Join(DefaultRoot(), "config.yaml")
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Root: DefaultRoot(),
		User: DefaultUser,
		Memory: MemoryConfig{
			ActiveCapacity: store.DefaultActiveCapacity,
			HandlerName:    memory.DefaultHandlerName,
			PersonaName:    memory.DefaultPersonaName,
			DreamsEnabled:  true,
		},
	}
}

// LoadFile reads a YAML config file on top of the defaults. Keys absent
// from the file keep their default values.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file %s: %w", path, err)
	}
	cfg.Root = expandHome(cfg.Root)
	return cfg, nil
}

// ApplyEnv overrides fields from the environment via lookup (os.LookupEnv
// in production). API keys are taken from the variable matching the
// selected provider.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvRoot); ok && v != "" {
		c.Root = expandHome(v)
	}
	if v, ok := lookup(EnvUser); ok && v != "" {
		c.User = v
	}
	if v, ok := lookup(EnvLLMProvider); ok {
		c.LLM.Provider = v
	}
	if v, ok := lookup(EnvLLMModel); ok && v != "" {
		c.LLM.Model = v
	}
	if v, ok := lookup(EnvLLMURL); ok && v != "" {
		c.LLM.BaseURL = v
	}
	if c.LLM.APIKey == "" {
		switch strings.ToLower(c.LLM.Provider) {
		case llm.ProviderOpenAI:
			c.LLM.APIKey, _ = lookup(EnvOpenAIKey)
		case llm.ProviderAnthropic:
			c.LLM.APIKey, _ = lookup(EnvAnthropic)
		}
	}
}

// CoordinatorConfig converts to the coordinator's configuration.
func (c Config) CoordinatorConfig() memory.Config {
	return memory.Config{
		Root:              c.Root,
		User:              c.User,
		ActiveCapacity:    c.Memory.ActiveCapacity,
		HandlerName:       c.Memory.HandlerName,
		PersonaName:       c.Memory.PersonaName,
		StoreDailySummary: c.Memory.StoreDailySummary,
		DreamsEnabled:     c.Memory.DreamsEnabled,
	}
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
