// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/docflow/internal/httputil"
	"github.com/pdiddy/docflow/pkg/types"
)

// claudeAPIURL is the Claude API endpoint. Package-level var for test substitution.
var claudeAPIURL = "https://api.anthropic.com/v1/messages"

const (
	claudeAPIVersion   = "2023-06-01"
	claudeSearchTool   = "web_search_20250305"
	claudeSearchUses   = 5
	defaultMaxTokens   = 8192
	defaultClaudeModel = "claude-sonnet-4-20250514"
)

// ClaudeBackend calls the Claude Messages API. Grounded requests enable
// the server-side web search tool and collect its citations.
type ClaudeBackend struct {
	APIKey     string
	Model      string
	MaxTokens  int
	MaxRetries int
	UserAgent  string
	Client     *http.Client

	// URL overrides claudeAPIURL.
	URL string
}

// claudeRequest is the request body for the Claude Messages API.
type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	System    string          `json:"system,omitempty"`
	Messages  []claudeMessage `json:"messages"`
	Tools     []claudeTool    `json:"tools,omitempty"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeTool struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	MaxUses int    `json:"max_uses,omitempty"`
}

// claudeResponse is the response body from the Claude Messages API.
type claudeResponse struct {
	Content []claudeContent `json:"content"`
}

type claudeContent struct {
	Type      string           `json:"type"`
	Text      string           `json:"text"`
	Citations []claudeCitation `json:"citations"`
}

type claudeCitation struct {
	Type  string `json:"type"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Complete sends one Messages API call.
func (c *ClaudeBackend) Complete(ctx context.Context, req Request) (Response, error) {
	body := claudeRequest{
		Model:     c.Model,
		MaxTokens: c.MaxTokens,
		System:    req.System,
	}
	if body.Model == "" {
		body.Model = defaultClaudeModel
	}
	if body.MaxTokens <= 0 {
		body.MaxTokens = defaultMaxTokens
	}
	for _, t := range req.Turns {
		role := "user"
		if t.Role == types.RoleModel {
			role = "assistant"
		}
		body.Messages = append(body.Messages, claudeMessage{Role: role, Content: t.Text})
	}
	if req.Grounding {
		body.Tools = []claudeTool{{Type: claudeSearchTool, Name: "web_search", MaxUses: claudeSearchUses}}
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("marshaling request: %w", err)
	}

	url := c.URL
	if url == "" {
		url = claudeAPIURL
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return Response{}, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.APIKey)
	httpReq.Header.Set("anthropic-version", claudeAPIVersion)
	if c.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.UserAgent)
	}

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := httputil.DoWithRetry(ctx, client, httpReq, c.MaxRetries)
	if err != nil {
		return Response{}, fmt.Errorf("calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return Response{}, fmt.Errorf("Claude API returned %d: %s", resp.StatusCode, string(b))
	}

	var cResp claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return Response{}, fmt.Errorf("decoding Claude response: %w", err)
	}

	var text strings.Builder
	var citations []types.Citation
	seen := make(map[string]bool)
	for _, block := range cResp.Content {
		if block.Type != "text" {
			continue
		}
		text.WriteString(block.Text)
		for _, cit := range block.Citations {
			if cit.URL == "" || seen[cit.URL] {
				continue
			}
			seen[cit.URL] = true
			citations = append(citations, types.Citation{Title: cit.Title, URL: cit.URL})
		}
	}
	if text.Len() == 0 {
		return Response{}, fmt.Errorf("no text content in Claude API response")
	}
	return Response{Text: text.String(), Citations: citations}, nil
}
