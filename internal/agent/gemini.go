// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/pdiddy/docflow/pkg/types"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiBackend calls the Gemini API. Grounded requests enable Google
// Search and return the grounding chunks as citations.
type GeminiBackend struct {
	client    *genai.Client
	model     string
	maxTokens int
}

// NewGeminiBackend builds a backend from cfg. BaseURL points the client at
// a proxy or test server.
func NewGeminiBackend(ctx context.Context, cfg types.AIConfig, hc *http.Client) (*GeminiBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: hc,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiBackend{client: client, model: model, maxTokens: cfg.MaxTokens}, nil
}

// Complete sends one GenerateContent call.
func (b *GeminiBackend) Complete(ctx context.Context, req Request) (Response, error) {
	contents := geminiContents(req.Turns)

	gc := &genai.GenerateContentConfig{}
	if req.System != "" {
		gc.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if b.maxTokens > 0 {
		gc.MaxOutputTokens = int32(b.maxTokens)
	}
	switch {
	case req.Grounding:
		// Search grounding cannot be combined with a JSON response type.
		gc.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	case req.JSON:
		gc.ResponseMIMEType = "application/json"
	}

	resp, err := b.client.Models.GenerateContent(ctx, b.model, contents, gc)
	if err != nil {
		return Response{}, fmt.Errorf("calling Gemini API: %w", err)
	}
	return Response{Text: resp.Text(), Citations: groundingCitations(resp)}, nil
}

func groundingCitations(resp *genai.GenerateContentResponse) []types.Citation {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	md := resp.Candidates[0].GroundingMetadata
	if md == nil {
		return nil
	}
	var out []types.Citation
	for _, chunk := range md.GroundingChunks {
		if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" {
			continue
		}
		out = append(out, types.Citation{Title: chunk.Web.Title, URL: chunk.Web.URI})
	}
	return out
}

// geminiContents maps conversation turns onto Gemini user and model roles.
func geminiContents(turns []types.Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		role := genai.Role(genai.RoleUser)
		if t.Role == types.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Text, role))
	}
	return contents
}
