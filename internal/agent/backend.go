// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"context"
	"fmt"
	"net/http"

	"k8s.io/klog/v2"

	"github.com/pdiddy/docflow/pkg/types"
)

// NewBackend builds the backend named by cfg.Provider. An empty provider
// selects Gemini.
func NewBackend(ctx context.Context, cfg types.AIConfig) (Backend, error) {
	hc := &http.Client{Timeout: cfg.Timeout}

	klog.V(2).Infof("agent backend: provider=%q model=%q", cfg.Provider, cfg.Model)
	switch cfg.Provider {
	case types.ProviderGemini, "":
		return NewGeminiBackend(ctx, cfg, hc)
	case types.ProviderOpenAI:
		return NewOpenAIBackend(cfg, hc)
	case types.ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic API key is required")
		}
		return &ClaudeBackend{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			MaxTokens:  cfg.MaxTokens,
			MaxRetries: cfg.RateLimitRetries,
			UserAgent:  cfg.UserAgent,
			Client:     hc,
			URL:        cfg.BaseURL,
		}, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
