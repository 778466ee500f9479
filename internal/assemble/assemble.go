// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package assemble builds the exact text sent to each agent.
//
// Every function is pure: it reads snapshots of the outline, the section
// store, and project settings, and returns a Prompt. Prompt parts are
// emitted in a fixed order (global knowledge, research, cross-references,
// session files, instruction) and a part with no content is omitted
// entirely, header included.
package assemble

import (
	"fmt"
	"strings"

	"github.com/pdiddy/docflow/internal/outline"
	"github.com/pdiddy/docflow/internal/section"
	"github.com/pdiddy/docflow/pkg/types"
)

// Prompt is the complete payload for one agent call.
type Prompt struct {
	// System is the system instruction. It may be empty.
	System string

	// Turns is the conversation, oldest first. The last turn is the one the
	// model answers.
	Turns []types.Turn
}

// Text returns the text of the final turn, or "" when there are no turns.
func (p Prompt) Text() string {
	if len(p.Turns) == 0 {
		return ""
	}
	return p.Turns[len(p.Turns)-1].Text
}

// partSeparator joins prompt parts.
const partSeparator = "\n\n"

// GlobalKnowledgeContext concatenates every knowledge file, each under a
// provenance header naming its file. No files yields "".
func GlobalKnowledgeContext(files []types.File) string {
	return taggedFiles(files)
}

func taggedFiles(files []types.File) string {
	var parts []string
	for _, f := range files {
		text := strings.TrimSpace(f.Text)
		if text == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("--- START OF FILE: %s ---\n%s\n--- END OF FILE: %s ---", f.Name, text, f.Name))
	}
	return strings.Join(parts, partSeparator)
}

// ResearchContext renders a section's research results with their title,
// URL, and summary.
func ResearchContext(results []types.ResearchResult) string {
	var parts []string
	for _, r := range results {
		parts = append(parts, fmt.Sprintf("Title: %s\nURL: %s\nSummary: %s", r.Title, r.URL, r.Summary))
	}
	return strings.Join(parts, partSeparator)
}

// ReferenceContext renders the content of every section selected as a
// cross-reference for selfID. Ids that no longer exist in the tree, ids
// whose section has no content, and selfID itself are skipped.
func ReferenceContext(tree []types.OutlineNode, store section.Store, selfID string) string {
	var parts []string
	for _, ref := range store.Get(selfID).ContextIDs {
		if ref == selfID {
			continue
		}
		node, ok := outline.Find(tree, ref)
		if !ok {
			continue
		}
		c := store.Get(ref)
		if !c.HasContent() {
			continue
		}
		parts = append(parts, fmt.Sprintf("--- Section: %s ---\n%s", node.Title, strings.TrimSpace(c.Content)))
	}
	return strings.Join(parts, partSeparator)
}

// DefaultInstruction is the Writer instruction used when the user gives none.
func DefaultInstruction(title string) string {
	return fmt.Sprintf("Write the content for the section titled \"%s\".", title)
}

// WriterInput is the snapshot the Writer prompt is built from.
type WriterInput struct {
	Coordinator string
	Knowledge   []types.File
	Tree        []types.OutlineNode
	Sections    section.Store
	SectionID   string
}

// title returns the target section's title, or its id when it is unknown.
func (in WriterInput) title() string {
	if n, ok := outline.Find(in.Tree, in.SectionID); ok {
		return n.Title
	}
	return in.SectionID
}

// WriterMessage composes the user-facing Writer message: the context parts
// followed by the instruction. An empty instruction becomes the default
// instruction for the section.
func WriterMessage(in WriterInput, instruction string) string {
	c := in.Sections.Get(in.SectionID)
	if strings.TrimSpace(instruction) == "" {
		instruction = DefaultInstruction(in.title())
	}

	var parts []string
	add := func(header, body string) {
		if body == "" {
			return
		}
		parts = append(parts, header+"\n"+body)
	}
	add("GLOBAL KNOWLEDGE CONTEXT:", GlobalKnowledgeContext(in.Knowledge))
	add("RESEARCH CONTEXT:", ResearchContext(c.ResearchResults))
	add("REFERENCE CONTEXT FROM OTHER SECTIONS:", ReferenceContext(in.Tree, in.Sections, in.SectionID))
	add("SESSION FILES:", taggedFiles(c.SessionFiles))
	add("INSTRUCTION:", instruction)
	return strings.Join(parts, partSeparator)
}

// WriterSystem joins the coordinator prompt and the section persona.
func WriterSystem(coordinator, persona string) string {
	return joinNonEmpty(coordinator, persona)
}

// WriterDraft builds a single-turn Writer prompt for an initial draft.
func WriterDraft(in WriterInput, instruction string) Prompt {
	return Prompt{
		System: WriterSystem(in.Coordinator, in.Sections.Get(in.SectionID).SystemPrompt),
		Turns:  []types.Turn{{Role: types.RoleUser, Text: WriterMessage(in, instruction)}},
	}
}

// WriterChat builds a chat-continuation Writer prompt from the section's
// message history. Context parts are spliced into the last user turn only;
// earlier turns are passed through as they were recorded. An empty history
// yields a prompt with no turns.
func WriterChat(in WriterInput, history []types.Message) Prompt {
	turns := make([]types.Turn, len(history))
	last := -1
	for i, m := range history {
		role := types.RoleModel
		if m.Sender == types.SenderUser {
			role = types.RoleUser
			last = i
		}
		turns[i] = types.Turn{Role: role, Text: m.Text}
	}
	if last >= 0 {
		turns[last].Text = WriterMessage(in, history[last].Text)
	}
	return Prompt{
		System: WriterSystem(in.Coordinator, in.Sections.Get(in.SectionID).SystemPrompt),
		Turns:  turns,
	}
}

func joinNonEmpty(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, partSeparator)
}
