// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "strings"

// Sender identifies who wrote a conversation message.
type Sender string

const (
	SenderUser  Sender = "user"
	SenderAgent Sender = "agent"
)

// Message is one turn of a conversation log.
type Message struct {
	Sender Sender `json:"sender" yaml:"sender"`
	Text   string `json:"text" yaml:"text"`
}

// File is an uploaded artifact reduced to its text.
type File struct {
	// Name is the original filename, used as the provenance tag in prompts.
	Name string `json:"name" yaml:"name"`

	// Text is the converted plain-text or Markdown content.
	Text string `json:"text" yaml:"text"`
}

// ResearchResult is one source returned by the research agent.
type ResearchResult struct {
	ID      string `json:"id" yaml:"id"`
	Title   string `json:"title" yaml:"title"`
	URL     string `json:"url" yaml:"url"`
	Summary string `json:"summary" yaml:"summary"`
}

// MaxResearchResults is the number of research results a section keeps.
const MaxResearchResults = 3

// SectionContent holds everything the workflow knows about one section
// besides its outline node.
type SectionContent struct {
	// Content is the current draft; the user may edit it after generation.
	Content string `json:"content" yaml:"content"`

	// Messages is the append-only Writer conversation for this section.
	Messages []Message `json:"messages" yaml:"messages"`

	// ContextIDs are other sections whose content is sent as reference
	// context. The section's own id is never stored here.
	ContextIDs []string `json:"context_ids" yaml:"context_ids"`

	// SessionFiles are per-section uploads. They live only as long as the
	// running process and are never persisted.
	SessionFiles []File `json:"-" yaml:"-"`

	// ResearchResults holds at most MaxResearchResults entries.
	ResearchResults []ResearchResult `json:"research_results" yaml:"research_results"`

	// SystemPrompt is the cached, tailored Writer persona for this section.
	// Empty means it has not been computed yet.
	SystemPrompt string `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
}

// HasContent reports whether the section holds non-blank draft text.
func (c SectionContent) HasContent() bool {
	return strings.TrimSpace(c.Content) != ""
}
