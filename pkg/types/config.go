// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings for components that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout. A timeout is reported like any
	// other invocation failure.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "docflow/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// Provider identifies the model vendor behind the agents.
type Provider string

const (
	ProviderGemini    Provider = "gemini"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// AIConfig holds settings for the agent backend.
type AIConfig struct {
	HTTPConfig `yaml:",inline"`

	// Provider selects the backend: gemini, openai, or anthropic.
	Provider Provider `json:"provider" yaml:"provider"`

	// Model is the model identifier (e.g. "gemini-2.5-flash").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the provider.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL overrides the provider endpoint (OpenAI-compatible gateways,
	// test servers).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// MaxTokens caps the length of a single response (default 8192).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`

	// RateLimitRetries is the number of HTTP 429 back-off attempts the
	// transport makes before reporting failure. This is transport behaviour;
	// the workflow itself never retries an agent call.
	RateLimitRetries int `json:"rate_limit_retries" yaml:"rate_limit_retries"`
}

// ResearchSource selects where research results come from.
type ResearchSource string

const (
	ResearchModel ResearchSource = "model"
	ResearchArxiv ResearchSource = "arxiv"
)

// ResearchConfig holds settings for the research agent and its decoder.
type ResearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// Source selects the research backend: model (grounded search) or arxiv.
	Source ResearchSource `json:"source" yaml:"source"`

	// PlaceholderURL is used when no grounding citation matches a result.
	PlaceholderURL string `json:"placeholder_url" yaml:"placeholder_url"`

	// DefaultSummary is used when a result has no summary line.
	DefaultSummary string `json:"default_summary" yaml:"default_summary"`
}

// StoreConfig holds settings for the SQLite project store.
type StoreConfig struct {
	// Path is the database file (default ".docflow/docflow.db").
	Path string `json:"path" yaml:"path"`
}

// ConvertConfig holds settings for knowledge-file conversion.
type ConvertConfig struct {
	// Markitdown enables PDF and Office conversion through the markitdown
	// container image.
	Markitdown bool `json:"markitdown" yaml:"markitdown"`

	// Image is the markitdown container image (default "markitdown:latest").
	Image string `json:"image" yaml:"image"`
}

// Config groups every docflow setting.
type Config struct {
	AI       AIConfig       `json:"ai" yaml:"ai"`
	Research ResearchConfig `json:"research" yaml:"research"`
	Store    StoreConfig    `json:"store" yaml:"store"`
	Convert  ConvertConfig  `json:"convert" yaml:"convert"`

	// DraftConcurrency bounds parallel section drafting (default 2).
	DraftConcurrency int `json:"draft_concurrency" yaml:"draft_concurrency"`
}
