// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/docflow/internal/httputil"
	"github.com/pdiddy/docflow/pkg/types"
)

func chatRequest() Request {
	return Request{
		System: "Be brief.",
		Turns: []types.Turn{
			{Role: types.RoleUser, Text: "hello"},
			{Role: types.RoleModel, Text: "hi"},
			{Role: types.RoleUser, Text: "again"},
		},
	}
}

// --- Claude ---

func TestClaudeBackendComplete(t *testing.T) {
	var got claudeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, claudeAPIVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"content":[
			{"type":"server_tool_use","id":"x"},
			{"type":"text","text":"Part one. ","citations":[{"type":"web_search_result_location","url":"https://a.example","title":"A"}]},
			{"type":"text","text":"Part two.","citations":[{"type":"web_search_result_location","url":"https://a.example","title":"A"},{"type":"web_search_result_location","url":"https://b.example","title":"B"}]}
		]}`)
	}))
	defer srv.Close()

	b := &ClaudeBackend{APIKey: "test-key", Model: "claude-test", URL: srv.URL}
	req := chatRequest()
	req.Grounding = true

	resp, err := b.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Part one. Part two.", resp.Text)
	assert.Equal(t, []types.Citation{{Title: "A", URL: "https://a.example"}, {Title: "B", URL: "https://b.example"}}, resp.Citations)

	assert.Equal(t, "claude-test", got.Model)
	assert.Equal(t, defaultMaxTokens, got.MaxTokens)
	assert.Equal(t, "Be brief.", got.System)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "assistant", got.Messages[1].Role)
	require.Len(t, got.Tools, 1)
	assert.Equal(t, claudeSearchTool, got.Tools[0].Type)
}

func TestClaudeBackendNoToolsWithoutGrounding(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		io.WriteString(w, `{"content":[{"type":"text","text":"ok"}]}`)
	}))
	defer srv.Close()

	b := &ClaudeBackend{APIKey: "k", URL: srv.URL}
	_, err := b.Complete(context.Background(), Request{Turns: []types.Turn{{Role: types.RoleUser, Text: "x"}}})
	require.NoError(t, err)
	assert.NotContains(t, raw, "tools")
	assert.NotContains(t, raw, "system")
}

func TestClaudeBackendErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":"boom"}`, want: "returned 500"},
		{name: "bad json", status: http.StatusOK, body: `not json`, want: "decoding Claude response"},
		{name: "no text", status: http.StatusOK, body: `{"content":[]}`, want: "no text content"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			b := &ClaudeBackend{APIKey: "k", URL: srv.URL}
			_, err := b.Complete(context.Background(), chatRequest())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestClaudeBackendRetriesRateLimit(t *testing.T) {
	orig := httputil.RetryBaseDelay
	httputil.RetryBaseDelay = time.Millisecond
	defer func() { httputil.RetryBaseDelay = orig }()

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		io.WriteString(w, `{"content":[{"type":"text","text":"ok"}]}`)
	}))
	defer srv.Close()

	b := &ClaudeBackend{APIKey: "k", URL: srv.URL, MaxRetries: 2}
	resp, err := b.Complete(context.Background(), chatRequest())
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, 2, calls)
}

// --- OpenAI ---

func TestOpenAIBackendComplete(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-test",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Answer.",
			"annotations":[{"type":"url_citation","url_citation":{"url":"https://a.example","title":"A","start_index":0,"end_index":6}}]}}]}`)
	}))
	defer srv.Close()

	b, err := NewOpenAIBackend(types.AIConfig{APIKey: "test-key", Model: "gpt-test", BaseURL: srv.URL + "/"}, srv.Client())
	require.NoError(t, err)

	resp, err := b.Complete(context.Background(), chatRequest())
	require.NoError(t, err)
	assert.Equal(t, "Answer.", resp.Text)
	assert.Equal(t, []types.Citation{{Title: "A", URL: "https://a.example"}}, resp.Citations)

	assert.Equal(t, "gpt-test", got.Model)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "Be brief.", got.Messages[0].Content)
	assert.Equal(t, "assistant", got.Messages[2].Role)
	assert.Equal(t, "again", got.Messages[3].Content)
}

func TestOpenAIBackendRequiresKey(t *testing.T) {
	_, err := NewOpenAIBackend(types.AIConfig{}, nil)
	assert.EqualError(t, err, "openai API key is required")
}

// --- Gemini ---

func TestGeminiBackendComplete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "gemini-test:generateContent")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"Grounded answer."}]},
			"groundingMetadata":{"groundingChunks":[{"web":{"uri":"https://a.example","title":"A"}},{"web":{"uri":"https://b.example","title":"B"}}]}}]}`)
	}))
	defer srv.Close()

	b, err := NewGeminiBackend(context.Background(), types.AIConfig{APIKey: "test-key", Model: "gemini-test", BaseURL: srv.URL}, srv.Client())
	require.NoError(t, err)

	req := chatRequest()
	req.Grounding = true
	resp, err := b.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Grounded answer.", resp.Text)
	assert.Equal(t, []types.Citation{{Title: "A", URL: "https://a.example"}, {Title: "B", URL: "https://b.example"}}, resp.Citations)

	contents, ok := got["contents"].([]any)
	require.True(t, ok)
	assert.Len(t, contents, 3)
	assert.Contains(t, got, "systemInstruction")
	assert.Contains(t, got, "tools")
}

func TestGeminiBackendRequiresKey(t *testing.T) {
	_, err := NewGeminiBackend(context.Background(), types.AIConfig{}, nil)
	assert.EqualError(t, err, "gemini API key is required")
}

// --- factory ---

func TestNewBackend(t *testing.T) {
	tests := []struct {
		name    string
		cfg     types.AIConfig
		want    any
		wantErr string
	}{
		{name: "anthropic", cfg: types.AIConfig{Provider: types.ProviderAnthropic, APIKey: "k"}, want: &ClaudeBackend{}},
		{name: "openai", cfg: types.AIConfig{Provider: types.ProviderOpenAI, APIKey: "k"}, want: &OpenAIBackend{}},
		{name: "gemini default", cfg: types.AIConfig{APIKey: "k"}, want: &GeminiBackend{}},
		{name: "anthropic without key", cfg: types.AIConfig{Provider: types.ProviderAnthropic}, wantErr: "anthropic API key is required"},
		{name: "unknown", cfg: types.AIConfig{Provider: "mystery", APIKey: "k"}, wantErr: `unknown provider "mystery"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBackend(context.Background(), tt.cfg)
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, b)
		})
	}
}
