// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package agent defines the six agent invocation contracts and the model
// backends that serve them.
//
// Every call is single shot: the request is assembled by package assemble,
// sent once through a Backend, and the decoded result is returned to the
// caller. Nothing here retries, caches, or mutates caller state. Failures
// wrap ErrInvocation (the call failed or the output was unusable) or
// ErrValidation (the output parsed but had the wrong shape).
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"k8s.io/klog/v2"

	"github.com/pdiddy/docflow/internal/assemble"
	"github.com/pdiddy/docflow/internal/outline"
	"github.com/pdiddy/docflow/pkg/types"
)

var (
	// ErrInvocation reports a failed model call or unusable output.
	ErrInvocation = errors.New("agent invocation failed")

	// ErrValidation reports a response that failed a shape check.
	ErrValidation = errors.New("agent response failed validation")

	// ErrEmptyHistory reports a chat continuation with no user turn.
	ErrEmptyHistory = errors.New("content generation requires a non-empty message history")
)

// Request is one call across the model boundary.
type Request struct {
	System string
	Turns  []types.Turn

	// Grounding asks the backend to use web search and return citations.
	Grounding bool

	// JSON asks the backend for machine-parseable output only.
	JSON bool
}

// Response is the model's answer.
type Response struct {
	Text      string
	Citations []types.Citation
}

// Backend abstracts the model vendor so tests can supply a mock.
type Backend interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Agents serves the invocation contracts over one Backend.
type Agents struct {
	backend Backend
	decoder ResearchDecoder
}

// New returns Agents backed by b. Research fallbacks come from cfg.
func New(b Backend, cfg types.ResearchConfig) *Agents {
	return &Agents{backend: b, decoder: NewResearchDecoder(cfg)}
}

func (a *Agents) invoke(ctx context.Context, kind types.AgentKind, p assemble.Prompt, grounding, asJSON bool) (Response, error) {
	klog.V(4).Infof("agent %s: %d turn(s), system %d bytes", kind, len(p.Turns), len(p.System))
	resp, err := a.backend.Complete(ctx, Request{
		System:    p.System,
		Turns:     p.Turns,
		Grounding: grounding,
		JSON:      asJSON,
	})
	if err != nil {
		klog.V(2).Infof("agent %s failed: %v", kind, err)
		return Response{}, fmt.Errorf("%s: %w: %w", kind, ErrInvocation, err)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return Response{}, fmt.Errorf("%s: %w: empty response", kind, ErrInvocation)
	}
	klog.V(4).Infof("agent %s: %d bytes, %d citation(s)", kind, len(resp.Text), len(resp.Citations))
	return resp, nil
}

// OutlineRequest is the input to GenerateOutline.
type OutlineRequest struct {
	Coordinator string
	Draft       string
	Instruction string
}

// GenerateOutline asks the Outliner for a complete replacement outline
// draft in hyphen and indentation markdown.
func (a *Agents) GenerateOutline(ctx context.Context, req OutlineRequest) (string, error) {
	resp, err := a.invoke(ctx, types.AgentOutliner, assemble.Outliner(req.Coordinator, req.Draft, req.Instruction), false, false)
	if err != nil {
		return "", err
	}
	return stripFence(resp.Text), nil
}

// parsedNode is the wire shape of one outline node in the Parse response.
type parsedNode struct {
	Title    string       `json:"title"`
	Children []parsedNode `json:"children"`
}

// ParseOutline converts a markdown draft into a finalized outline tree with
// ids, levels, and status attached.
func (a *Agents) ParseOutline(ctx context.Context, draft string) ([]types.OutlineNode, error) {
	resp, err := a.invoke(ctx, types.AgentParser, assemble.Parse(draft), false, true)
	if err != nil {
		return nil, err
	}
	return DecodeOutline(resp.Text)
}

// DecodeOutline decodes a Parse response. Leading code fences are stripped.
// Malformed JSON is an invocation failure; JSON that is not a non-empty list
// of titled nodes is a validation failure.
func DecodeOutline(text string) ([]types.OutlineNode, error) {
	raw := stripFence(text)

	var probe any
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		return nil, fmt.Errorf("%s: %w: decoding outline JSON: %w", types.AgentParser, ErrInvocation, err)
	}
	if _, ok := probe.([]any); !ok {
		return nil, fmt.Errorf("%s: %w: outline is not a list", types.AgentParser, ErrValidation)
	}

	var nodes []parsedNode
	if err := json.Unmarshal([]byte(raw), &nodes); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", types.AgentParser, ErrValidation, err)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%s: %w: outline is empty", types.AgentParser, ErrValidation)
	}

	tree, err := toTree(nodes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", types.AgentParser, ErrValidation, err)
	}
	return outline.NumberTitles(outline.AttachMetadata(tree)), nil
}

func toTree(nodes []parsedNode) ([]types.OutlineNode, error) {
	out := make([]types.OutlineNode, 0, len(nodes))
	for _, n := range nodes {
		if strings.TrimSpace(n.Title) == "" {
			return nil, errors.New("node has no title")
		}
		node := types.OutlineNode{Title: n.Title}
		if len(n.Children) > 0 {
			children, err := toTree(n.Children)
			if err != nil {
				return nil, err
			}
			node.Children = children
		}
		out = append(out, node)
	}
	return out, nil
}

// GenerateContent continues a section's Writer conversation. The history
// must contain at least one user turn.
func (a *Agents) GenerateContent(ctx context.Context, in assemble.WriterInput, history []types.Message) (string, error) {
	if !hasUserTurn(history) {
		return "", ErrEmptyHistory
	}
	resp, err := a.invoke(ctx, types.AgentWriter, assemble.WriterChat(in, history), false, false)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

func hasUserTurn(history []types.Message) bool {
	for _, m := range history {
		if m.Sender == types.SenderUser {
			return true
		}
	}
	return false
}

// GenerateInitialDraft drafts a section in a single turn. An empty
// instruction uses the default instruction for the section.
func (a *Agents) GenerateInitialDraft(ctx context.Context, in assemble.WriterInput, instruction string) (string, error) {
	resp, err := a.invoke(ctx, types.AgentWriter, assemble.WriterDraft(in, instruction), false, false)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

// ResearchTopic runs a grounded search on topic and decodes at most
// types.MaxResearchResults results.
func (a *Agents) ResearchTopic(ctx context.Context, coordinator, topic string) ([]types.ResearchResult, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, fmt.Errorf("%s: %w: empty topic", types.AgentResearcher, ErrValidation)
	}
	resp, err := a.invoke(ctx, types.AgentResearcher, assemble.Research(coordinator, topic), true, false)
	if err != nil {
		return nil, err
	}
	return a.decoder.Decode(resp.Text, resp.Citations), nil
}

// TailorRequest is the input to CreateTailoredPrompt.
type TailorRequest struct {
	DocTitle     string
	Tree         []types.OutlineNode
	SectionTitle string
	Coordinator  string
}

// CreateTailoredPrompt produces a section-specific Writer persona.
func (a *Agents) CreateTailoredPrompt(ctx context.Context, req TailorRequest) (string, error) {
	p := assemble.Tailor(req.DocTitle, outline.Flatten(req.Tree), req.SectionTitle, req.Coordinator)
	resp, err := a.invoke(ctx, types.AgentTailor, p, false, false)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

// stripFence removes a surrounding markdown code fence, with or without a
// language tag.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
