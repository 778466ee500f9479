// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"context"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/pdiddy/docflow/pkg/types"
)

const defaultOpenAIModel = "gpt-4o"

// OpenAIBackend calls an OpenAI-compatible chat completions endpoint.
// URL citations attached to the answer are returned as grounding citations.
type OpenAIBackend struct {
	client    openai.Client
	model     string
	maxTokens int
}

// NewOpenAIBackend builds a backend from cfg. BaseURL selects a compatible
// gateway.
func NewOpenAIBackend(cfg types.AIConfig, hc *http.Client) (*OpenAIBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.RateLimitRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if hc != nil {
		opts = append(opts, option.WithHTTPClient(hc))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, option.WithHeader("User-Agent", cfg.UserAgent))
	}

	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIBackend{
		client:    openai.NewClient(opts...),
		model:     model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

func (b *OpenAIBackend) messages(req Request) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Turns)+1)
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	for _, t := range req.Turns {
		if t.Role == types.RoleModel {
			msgs = append(msgs, openai.AssistantMessage(t.Text))
			continue
		}
		msgs = append(msgs, openai.UserMessage(t.Text))
	}
	return msgs
}

// Complete sends one chat completion request. The JSON flag is carried by
// the prompt; json_object mode would reject the array the parser expects.
func (b *OpenAIBackend) Complete(ctx context.Context, req Request) (Response, error) {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(b.model),
		Messages: b.messages(req),
	}
	if b.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(b.maxTokens))
	}

	resp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("calling OpenAI API: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, fmt.Errorf("OpenAI API returned no choices")
	}

	msg := resp.Choices[0].Message
	var citations []types.Citation
	for _, a := range msg.Annotations {
		if a.URLCitation.URL == "" {
			continue
		}
		citations = append(citations, types.Citation{Title: a.URLCitation.Title, URL: a.URLCitation.URL})
	}
	return Response{Text: msg.Content, Citations: citations}, nil
}
