// Package llm provides pluggable text-generation providers used for daily
// summaries, event extraction and dream narration.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Provider names accepted by New.
const (
	ProviderNone      = ""
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// DefaultMaxTokens bounds replies for providers that require a limit.
const DefaultMaxTokens = 1024

var (
	// ErrUnknownProvider is returned by New for an unsupported provider name.
	ErrUnknownProvider = errors.New("llm: unknown provider")
	// ErrEmptyReply is returned when a provider answers with no text.
	ErrEmptyReply = errors.New("llm: empty reply")
)

// Provider completes a single prompt.
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Name() string
}

// Config selects and configures a provider.
type Config struct {
	Provider  string        `yaml:"provider"`
	Model     string        `yaml:"model"`
	BaseURL   string        `yaml:"base_url"`
	APIKey    string        `yaml:"-"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
}

// New creates the provider named by cfg.Provider. An empty name yields nil:
// text generation is disabled.
func New(cfg Config) (Provider, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderNone:
		return nil, nil
	case ProviderOllama:
		return NewOllama(cfg), nil
	case ProviderOpenAI:
		return NewOpenAI(cfg), nil
	case ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("llm: anthropic provider requires an API key")
		}
		return NewAnthropic(cfg), nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownProvider, cfg.Provider)
	}
}

// Generator adapts a Provider to the "optional reply" contract: failures are
// logged and reported as no reply, never as an error.
type Generator struct {
	provider Provider
	logger   *slog.Logger
}

// NewGenerator wraps p. A nil provider always answers with no reply.
func NewGenerator(p Provider, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{provider: p, logger: logger}
}

// Generate returns the provider's reply, or ok=false when there is none.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, bool) {
	if g == nil || g.provider == nil {
		return "", false
	}
	start := time.Now()
	text, err := g.provider.Complete(ctx, prompt)
	if err != nil {
		g.logger.Warn("llm: generation failed", "provider", g.provider.Name(), "err", err)
		return "", false
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	g.logger.Debug("llm: generated", "provider", g.provider.Name(), "chars", len(text), "elapsed", time.Since(start))
	return text, true
}
