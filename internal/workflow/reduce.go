// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pdiddy/docflow/internal/outline"
	"github.com/pdiddy/docflow/internal/section"
	"github.com/pdiddy/docflow/pkg/types"
)

// Command is one state transition request.
type Command interface {
	command()
}

// Project and flow management.
type (
	// CreateFlow adds an empty flow and makes it active.
	CreateFlow struct{ ID, Title string }

	// DeleteFlow removes a flow and every section it owns.
	DeleteFlow struct{ ID string }

	// SelectFlow makes a flow active and clears the section selection.
	SelectFlow struct{ ID string }

	// RenameProject sets the project name.
	RenameProject struct{ Name string }

	// SetCoordinator sets the project's coordinator prompt.
	SetCoordinator struct{ Prompt string }

	// SetKnowledgeFiles replaces the project's global knowledge files.
	SetKnowledgeFiles struct{ Files []types.File }
)

// Selection.
type (
	// SelectSection selects a section of the active flow, creating its
	// content entry on first visit.
	SelectSection struct{ ID string }

	// DeselectSection clears the selection.
	DeselectSection struct{}
)

// Outline lifecycle.
type (
	// EditOutlineDraft replaces the active flow's draft with user text.
	EditOutlineDraft struct{ Text string }

	// ApplyOutlinerReply records one Outliner exchange and replaces the
	// draft with the reply.
	ApplyOutlinerReply struct {
		FlowID      string
		Instruction string
		Draft       string
	}

	// ApplyOutline replaces a flow's tree and clears its draft. Section
	// content follows its title into the new tree; content whose title is
	// gone is dropped. It fails with ErrBusy while a section agent of the
	// flow is thinking.
	ApplyOutline struct {
		FlowID string
		Tree   []types.OutlineNode
	}
)

// Section commands. Each is keyed by flow and section id.
type (
	// BeginWriting moves a section to writing when the Writer is dispatched.
	BeginWriting struct{ FlowID, SectionID string }

	// ApplyContent stores a Writer result: the content, the user and agent
	// messages of the exchange, and, when ContextIDs is non-nil, the
	// references the result was generated with. All fields land together.
	ApplyContent struct {
		FlowID      string
		SectionID   string
		Instruction string
		Content     string
		ContextIDs  []string
	}

	// CommitSection marks a section completed. It is a no-op when the
	// section has no content.
	CommitSection struct{ FlowID, SectionID string }

	// ApplyResearch replaces a section's research results.
	ApplyResearch struct {
		FlowID    string
		SectionID string
		Results   []types.ResearchResult
	}

	// SetSessionFiles replaces a section's session files.
	SetSessionFiles struct {
		FlowID    string
		SectionID string
		Files     []types.File
	}

	// ToggleContext adds or removes a cross-reference.
	ToggleContext struct {
		FlowID    string
		SectionID string
		RefID     string
		Included  bool
	}

	// ApplySystemPrompt caches a section's Writer persona.
	ApplySystemPrompt struct {
		FlowID    string
		SectionID string
		Prompt    string
	}

	// InvalidateSystemPrompt drops a section's cached persona.
	InvalidateSystemPrompt struct{ FlowID, SectionID string }
)

// SetAgentStatus moves an agent target through its lifecycle.
type SetAgentStatus struct {
	Target Target
	Status types.AgentStatus
}

func (CreateFlow) command()             {}
func (DeleteFlow) command()             {}
func (SelectFlow) command()             {}
func (RenameProject) command()          {}
func (SetCoordinator) command()         {}
func (SetKnowledgeFiles) command()      {}
func (SelectSection) command()          {}
func (DeselectSection) command()        {}
func (EditOutlineDraft) command()       {}
func (ApplyOutlinerReply) command()     {}
func (ApplyOutline) command()           {}
func (BeginWriting) command()           {}
func (ApplyContent) command()           {}
func (CommitSection) command()          {}
func (ApplyResearch) command()          {}
func (SetSessionFiles) command()        {}
func (ToggleContext) command()          {}
func (ApplySystemPrompt) command()      {}
func (InvalidateSystemPrompt) command() {}
func (SetAgentStatus) command()         {}

// Reduce applies cmd to s. It never mutates s; on error the returned state
// is s unchanged.
func Reduce(s State, cmd Command) (State, error) {
	next, err := reduce(s, cmd)
	if err != nil {
		return s, fmt.Errorf("%T: %w", cmd, err)
	}
	return next, nil
}

func reduce(s State, cmd Command) (State, error) {
	switch c := cmd.(type) {
	case CreateFlow:
		if c.ID == "" || s.Project.FlowIndex(c.ID) >= 0 {
			return s, fmt.Errorf("flow id %q is empty or already used", c.ID)
		}
		s.Project.Flows = append(slices.Clip(s.Project.Flows), types.Flow{
			ID:       c.ID,
			Title:    strings.TrimSpace(c.Title),
			Contents: map[string]types.SectionContent{},
		})
		s.ActiveFlow = c.ID
		s.Selected = ""
		return s, nil

	case DeleteFlow:
		i := s.Project.FlowIndex(c.ID)
		if i < 0 {
			return s, ErrNoFlow
		}
		s.Project.Flows = slices.Delete(slices.Clone(s.Project.Flows), i, i+1)
		if s.ActiveFlow == c.ID {
			s.ActiveFlow = ""
			s.Selected = ""
		}
		return s, nil

	case SelectFlow:
		if s.Project.FlowIndex(c.ID) < 0 {
			return s, ErrNoFlow
		}
		if s.ActiveFlow != c.ID {
			s.ActiveFlow = c.ID
			s.Selected = ""
		}
		return s, nil

	case RenameProject:
		s.Project.Name = strings.TrimSpace(c.Name)
		return s, nil

	case SetCoordinator:
		s.Project.CoordinatorPrompt = c.Prompt
		return s, nil

	case SetKnowledgeFiles:
		s.Project.KnowledgeFiles = slices.Clone(c.Files)
		return s, nil

	case SelectSection:
		next, err := s.withSections(s.ActiveFlow, c.ID, func(st section.Store) section.Store {
			return st.Ensure(c.ID)
		})
		if err != nil {
			return s, err
		}
		next.Selected = c.ID
		return next, nil

	case DeselectSection:
		s.Selected = ""
		return s, nil

	case EditOutlineDraft:
		return s.withFlow(s.ActiveFlow, func(f types.Flow) (types.Flow, error) {
			f.OutlineDraft = c.Text
			return f, nil
		})

	case ApplyOutlinerReply:
		return s.withFlow(c.FlowID, func(f types.Flow) (types.Flow, error) {
			f.OutlineDraft = c.Draft
			f.OutlinerMessages = append(slices.Clip(f.OutlinerMessages),
				types.Message{Sender: types.SenderUser, Text: c.Instruction},
				types.Message{Sender: types.SenderAgent, Text: c.Draft},
			)
			return f, nil
		})

	case ApplyOutline:
		if len(c.Tree) == 0 {
			return s, fmt.Errorf("outline is empty")
		}
		if err := outline.Validate(c.Tree); err != nil {
			return s, err
		}
		for t, st := range s.Agents {
			if t.FlowID == c.FlowID && t.SectionID != "" && st == types.AgentThinking {
				return s, fmt.Errorf("section %s: %w", t.SectionID, ErrBusy)
			}
		}
		var ids map[string]string
		next, err := s.withFlow(c.FlowID, func(f types.Flow) (types.Flow, error) {
			f.Outline, f.Contents, ids = rekey(f.Outline, c.Tree, f.Contents)
			f.OutlineDraft = ""
			return f, nil
		})
		if err != nil {
			return s, err
		}
		if next.ActiveFlow == c.FlowID {
			next.Selected = ids[next.Selected]
		}
		next.Agents = remapAgents(next.Agents, c.FlowID, ids)
		return next, nil

	case BeginWriting:
		return advance(s, c.FlowID, c.SectionID, types.StatusWriting)

	case ApplyContent:
		return s.withSections(c.FlowID, c.SectionID, func(st section.Store) section.Store {
			st = st.SetContent(c.SectionID, c.Content).
				AppendMessages(c.SectionID,
					types.Message{Sender: types.SenderUser, Text: c.Instruction},
					types.Message{Sender: types.SenderAgent, Text: c.Content},
				)
			if c.ContextIDs != nil {
				st = st.SetContextIDs(c.SectionID, c.ContextIDs)
			}
			return st
		})

	case CommitSection:
		f, ok := s.Flow(c.FlowID)
		if !ok {
			return s, ErrNoFlow
		}
		if _, err := Node(f, c.SectionID); err != nil {
			return s, err
		}
		if !Sections(f).Get(c.SectionID).HasContent() {
			return s, nil
		}
		return advance(s, c.FlowID, c.SectionID, types.StatusCompleted)

	case ApplyResearch:
		return s.withSections(c.FlowID, c.SectionID, func(st section.Store) section.Store {
			return st.SetResearch(c.SectionID, c.Results)
		})

	case SetSessionFiles:
		return s.withSections(c.FlowID, c.SectionID, func(st section.Store) section.Store {
			return st.SetSessionFiles(c.SectionID, c.Files)
		})

	case ToggleContext:
		f, ok := s.Flow(c.FlowID)
		if !ok {
			return s, ErrNoFlow
		}
		if _, err := Node(f, c.RefID); err != nil && c.Included {
			return s, fmt.Errorf("reference %q: %w", c.RefID, err)
		}
		return s.withSections(c.FlowID, c.SectionID, func(st section.Store) section.Store {
			return st.ToggleContext(c.SectionID, c.RefID, c.Included)
		})

	case ApplySystemPrompt:
		return s.withSections(c.FlowID, c.SectionID, func(st section.Store) section.Store {
			return st.SetSystemPrompt(c.SectionID, c.Prompt)
		})

	case InvalidateSystemPrompt:
		return s.withSections(c.FlowID, c.SectionID, func(st section.Store) section.Store {
			return st.InvalidateSystemPrompt(c.SectionID)
		})

	case SetAgentStatus:
		if err := AgentLifecycle.Validate(s.AgentStatus(c.Target), c.Status); err != nil {
			return s, err
		}
		return s.withAgent(c.Target, c.Status), nil
	}
	return s, fmt.Errorf("unknown command %T", cmd)
}

// remapAgents moves section-scoped agent statuses of flowID to their new
// ids and drops those whose section no longer exists.
func remapAgents(agents map[Target]types.AgentStatus, flowID string, ids map[string]string) map[Target]types.AgentStatus {
	if len(agents) == 0 {
		return agents
	}
	out := make(map[Target]types.AgentStatus, len(agents))
	for t, st := range agents {
		if t.FlowID == flowID && t.SectionID != "" {
			id, ok := ids[t.SectionID]
			if !ok {
				continue
			}
			t.SectionID = id
		}
		out[t] = st
	}
	return out
}

// advance moves a section forward to status. A section already at or past
// status is left as it is.
func advance(s State, flowID, sectionID string, status types.SectionStatus) (State, error) {
	return s.withFlow(flowID, func(f types.Flow) (types.Flow, error) {
		n, err := Node(f, sectionID)
		if err != nil {
			return f, err
		}
		if !n.Status.Before(status) {
			return f, nil
		}
		if err := SectionLifecycle.Validate(n.Status, status); err != nil {
			return f, err
		}
		f.Outline = outline.SetStatus(f.Outline, sectionID, status)
		return f, nil
	})
}
