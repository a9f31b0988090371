package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DefaultUser, cfg.User)
	assert.Equal(t, 20, cfg.Memory.ActiveCapacity)
	assert.True(t, cfg.Memory.DreamsEnabled)
	assert.Equal(t, "Handler", cfg.Memory.HandlerName)
	assert.Empty(t, cfg.LLM.Provider)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
root: /data/memory
user: alice
memory:
  handler_name: Sam
  dreams_enabled: false
  store_daily_summary: true
llm:
  provider: ollama
  model: llama3.2
  timeout: 45s
`), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/memory", cfg.Root)
	assert.Equal(t, "alice", cfg.User)
	assert.Equal(t, "Sam", cfg.Memory.HandlerName)
	assert.Equal(t, "Assistant", cfg.Memory.PersonaName, "unset keys keep defaults")
	assert.Equal(t, 20, cfg.Memory.ActiveCapacity)
	assert.False(t, cfg.Memory.DreamsEnabled)
	assert.True(t, cfg.Memory.StoreDailySummary)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout)

	mc := cfg.CoordinatorConfig()
	assert.Equal(t, "/data/memory", mc.Root)
	assert.Equal(t, "Sam", mc.HandlerName)
	assert.False(t, mc.DreamsEnabled)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("root: [unclosed"), 0o644))
	_, err = LoadFile(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	cfg.ApplyEnv(envMap(map[string]string{
		EnvRoot:        "/tmp/tm",
		EnvUser:        "bob",
		EnvLLMProvider: "anthropic",
		EnvLLMModel:    "claude-test",
		EnvOpenAIKey:   "sk-openai",
		EnvAnthropic:   "sk-ant",
	}))
	assert.Equal(t, "/tmp/tm", cfg.Root)
	assert.Equal(t, "bob", cfg.User)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "claude-test", cfg.LLM.Model)
	assert.Equal(t, "sk-ant", cfg.LLM.APIKey, "key follows the selected provider")
}

func TestApplyEnvKeepsFileValuesWhenUnset(t *testing.T) {
	cfg := Default()
	cfg.User = "from-file"
	cfg.LLM.Provider = "openai"
	cfg.ApplyEnv(envMap(map[string]string{EnvOpenAIKey: "sk-openai"}))
	assert.Equal(t, "from-file", cfg.User)
	assert.Equal(t, "sk-openai", cfg.LLM.APIKey)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	assert.Equal(t, filepath.Join(home, "mem"), expandHome("~/mem"))
	assert.Equal(t, "/abs", expandHome("/abs"))
}
