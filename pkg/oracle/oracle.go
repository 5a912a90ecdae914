// Package oracle wraps the external text-completion services that propose
// task attributes from free text. Responses carry no schema guarantee; the
// analysis package parses them defensively.
package oracle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Prompt is a system instruction plus the user message.
type Prompt struct {
	System string
	User   string
}

// Oracle returns unstructured text for a prompt. Implementations must honour
// ctx cancellation.
type Oracle interface {
	Suggest(ctx context.Context, p Prompt) (string, error)
	Name() string
}

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	ProviderNone   = "none"
)

// Config selects and configures a backend.
type Config struct {
	Provider      string        `yaml:"provider"`
	Model         string        `yaml:"model"`
	APIKey        string        `yaml:"api_key"`
	BaseURL       string        `yaml:"base_url"`
	Timeout       time.Duration `yaml:"timeout"`
	RatePerMinute int           `yaml:"rate_per_minute"`
}

// New builds the configured backend. A "none" or empty provider yields a nil
// Oracle, which the analysis engine treats as permanently unavailable.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (Oracle, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		o   Oracle
		err error
	)
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderNone:
		logger.Info("no suggestion oracle configured, analysis will use defaults")
		return nil, nil
	case ProviderOpenAI:
		o, err = NewOpenAI(cfg.APIKey, cfg.Model, cfg.BaseURL, logger)
	case ProviderGemini:
		o, err = NewGemini(ctx, cfg.APIKey, cfg.Model, logger)
	case ProviderOllama:
		o, err = NewOllama(cfg.BaseURL, cfg.Model, logger)
	default:
		return nil, fmt.Errorf("unknown oracle provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	if cfg.RatePerMinute > 0 {
		o = WithRateLimit(o, cfg.RatePerMinute)
	}
	logger.Info("suggestion oracle configured", zap.String("provider", o.Name()))
	return o, nil
}
