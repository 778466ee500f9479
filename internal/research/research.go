// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package research finds sources for a section's research topic.
//
// A Source returns at most types.MaxResearchResults results per call. The
// model source runs the Researcher agent with search grounding; the arXiv
// source queries the arXiv API directly and needs no model.
package research

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pdiddy/docflow/internal/agent"
	"github.com/pdiddy/docflow/pkg/types"
)

// Source searches one research backend.
type Source interface {
	Name() string
	Search(ctx context.Context, coordinator, topic string) ([]types.ResearchResult, error)
}

// ModelSource runs the Researcher agent.
type ModelSource struct {
	Agents *agent.Agents
}

// Name returns the source identifier.
func (ModelSource) Name() string { return string(types.ResearchModel) }

// Search asks the Researcher agent about topic.
func (s ModelSource) Search(ctx context.Context, coordinator, topic string) ([]types.ResearchResult, error) {
	return s.Agents.ResearchTopic(ctx, coordinator, topic)
}

// New returns the source named by cfg.Source. An empty source selects the
// model.
func New(cfg types.ResearchConfig, agents *agent.Agents) (Source, error) {
	switch cfg.Source {
	case types.ResearchModel, "":
		return ModelSource{Agents: agents}, nil
	case types.ResearchArxiv:
		return &ArxivSource{
			Client:    &http.Client{Timeout: cfg.Timeout},
			UserAgent: cfg.UserAgent,
			Decoder:   agent.NewResearchDecoder(cfg),
		}, nil
	default:
		return nil, fmt.Errorf("unknown research source %q", cfg.Source)
	}
}
