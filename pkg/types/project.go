// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Flow is one authoring unit: an outline, its section contents, and the
// Outliner conversation that produced it.
type Flow struct {
	// ID is a UUID assigned at creation.
	ID string `json:"id" yaml:"id"`

	// Title is the document title, used by the tailored-prompt agent.
	Title string `json:"title" yaml:"title"`

	// Outline is the finalized section forest. It is empty until the
	// draft has been finalized.
	Outline []OutlineNode `json:"outline" yaml:"outline"`

	// Contents maps section id to its content. Entries are created lazily.
	Contents map[string]SectionContent `json:"contents" yaml:"contents"`

	// OutlineDraft is the Markdown outline being edited before finalization.
	OutlineDraft string `json:"outline_draft" yaml:"outline_draft"`

	// OutlinerMessages is the conversation with the Outliner agent.
	OutlinerMessages []Message `json:"outliner_messages" yaml:"outliner_messages"`
}

// Finalized reports whether the flow has a structured outline.
func (f Flow) Finalized() bool {
	return len(f.Outline) > 0
}

// Project owns one or more flows and the settings shared across them.
type Project struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`

	// CoordinatorPrompt is the master directive prepended to every agent's
	// system instruction.
	CoordinatorPrompt string `json:"coordinator_prompt" yaml:"coordinator_prompt"`

	// KnowledgeFiles are the global-knowledge uploads shared by all flows.
	KnowledgeFiles []File `json:"knowledge_files" yaml:"knowledge_files"`

	// Flows are the project's documents in creation order.
	Flows []Flow `json:"flows" yaml:"flows"`
}

// FlowIndex returns the position of the flow with the given id, or -1.
func (p Project) FlowIndex(id string) int {
	for i := range p.Flows {
		if p.Flows[i].ID == id {
			return i
		}
	}
	return -1
}
