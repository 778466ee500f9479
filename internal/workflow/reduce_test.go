// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/docflow/internal/outline"
	"github.com/pdiddy/docflow/pkg/types"
)

const flowID = "flow-1"

func testTree() []types.OutlineNode {
	return outline.AttachMetadata([]types.OutlineNode{
		{Title: "Intro"},
		{Title: "Body", Children: []types.OutlineNode{{Title: "Sub"}}},
		{Title: "End"},
	})
}

// finalized returns a state with one active flow whose outline is final.
func finalized() State {
	return NewState(types.Project{
		ID:   "p-1",
		Name: "Bread",
		Flows: []types.Flow{{
			ID:       flowID,
			Title:    "Bread Guide",
			Outline:  testTree(),
			Contents: map[string]types.SectionContent{},
		}},
	}, "")
}

func mustReduce(t *testing.T, s State, cmds ...Command) State {
	t.Helper()
	for _, c := range cmds {
		var err error
		s, err = Reduce(s, c)
		require.NoError(t, err, "%T", c)
	}
	return s
}

func status(t *testing.T, s State, id string) types.SectionStatus {
	t.Helper()
	f, ok := s.Flow(flowID)
	require.True(t, ok)
	n, ok := outline.Find(f.Outline, id)
	require.True(t, ok)
	return n.Status
}

func content(t *testing.T, s State, id string) types.SectionContent {
	t.Helper()
	f, ok := s.Flow(flowID)
	require.True(t, ok)
	return Sections(f).Get(id)
}

func TestNewStateActivatesFirstFlow(t *testing.T) {
	s := finalized()
	assert.Equal(t, flowID, s.ActiveFlow)

	empty := NewState(types.Project{}, "missing")
	assert.Equal(t, "", empty.ActiveFlow)
	_, err := empty.Active()
	assert.ErrorIs(t, err, ErrNoFlow)
}

func TestFlowManagement(t *testing.T) {
	s := mustReduce(t, NewState(types.Project{}, ""),
		CreateFlow{ID: "a", Title: " First "},
		CreateFlow{ID: "b", Title: "Second"},
	)
	require.Len(t, s.Project.Flows, 2)
	assert.Equal(t, "First", s.Project.Flows[0].Title)
	assert.Equal(t, "b", s.ActiveFlow)

	_, err := Reduce(s, CreateFlow{ID: "a"})
	assert.Error(t, err)

	s = mustReduce(t, s, SelectFlow{ID: "a"}, DeleteFlow{ID: "a"})
	assert.Equal(t, "", s.ActiveFlow)
	require.Len(t, s.Project.Flows, 1)

	_, err = Reduce(s, SelectFlow{ID: "a"})
	assert.ErrorIs(t, err, ErrNoFlow)
}

func TestDeleteFlowDoesNotMutateInput(t *testing.T) {
	base := mustReduce(t, NewState(types.Project{}, ""), CreateFlow{ID: "a"}, CreateFlow{ID: "b"})
	next := mustReduce(t, base, DeleteFlow{ID: "a"})
	require.Len(t, base.Project.Flows, 2)
	assert.Equal(t, "a", base.Project.Flows[0].ID)
	require.Len(t, next.Project.Flows, 1)
	assert.Equal(t, "b", next.Project.Flows[0].ID)
}

func TestSectionCommandsBeforeFinalize(t *testing.T) {
	s := mustReduce(t, NewState(types.Project{}, ""), CreateFlow{ID: flowID})

	for _, cmd := range []Command{
		SelectSection{ID: "1"},
		BeginWriting{FlowID: flowID, SectionID: "1"},
		CommitSection{FlowID: flowID, SectionID: "1"},
		ApplyResearch{FlowID: flowID, SectionID: "1"},
	} {
		_, err := Reduce(s, cmd)
		assert.ErrorIs(t, err, ErrNoOutline, "%T", cmd)
	}
}

func TestSelectSection(t *testing.T) {
	s := mustReduce(t, finalized(), SelectSection{ID: "2.1"})
	assert.Equal(t, "2.1", s.Selected)
	f, _ := s.Active()
	assert.True(t, Sections(f).Has("2.1"))

	_, err := Reduce(s, SelectSection{ID: "9"})
	assert.ErrorIs(t, err, ErrNoSection)

	s = mustReduce(t, s, DeselectSection{})
	assert.Equal(t, "", s.Selected)
}

func TestSectionStatusIsForwardOnly(t *testing.T) {
	s := mustReduce(t, finalized(),
		BeginWriting{FlowID: flowID, SectionID: "1"},
		ApplyContent{FlowID: flowID, SectionID: "1", Instruction: "go", Content: "Text."},
		CommitSection{FlowID: flowID, SectionID: "1"},
	)
	assert.Equal(t, types.StatusCompleted, status(t, s, "1"))

	// Re-dispatching the Writer does not move a completed section back.
	s = mustReduce(t, s, BeginWriting{FlowID: flowID, SectionID: "1"})
	assert.Equal(t, types.StatusCompleted, status(t, s, "1"))
}

func TestCommitOnEmptyContentIsNoop(t *testing.T) {
	tests := []struct {
		name  string
		setup []Command
		want  types.SectionStatus
	}{
		{name: "outline", want: types.StatusOutline},
		{name: "writing", setup: []Command{BeginWriting{FlowID: flowID, SectionID: "1"}}, want: types.StatusWriting},
		{
			name: "whitespace content",
			setup: []Command{
				BeginWriting{FlowID: flowID, SectionID: "1"},
				ApplyContent{FlowID: flowID, SectionID: "1", Content: "  \n"},
			},
			want: types.StatusWriting,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := mustReduce(t, finalized(), tt.setup...)
			next := mustReduce(t, s, CommitSection{FlowID: flowID, SectionID: "1"})
			assert.Equal(t, tt.want, status(t, next, "1"))
		})
	}
}

func TestApplyContentIsAtomic(t *testing.T) {
	s := mustReduce(t, finalized(),
		ApplyContent{FlowID: flowID, SectionID: "2.1", Instruction: "write", Content: "Sub text.", ContextIDs: []string{"1", "2.1"}},
	)
	c := content(t, s, "2.1")
	assert.Equal(t, "Sub text.", c.Content)
	assert.Equal(t, []types.Message{
		{Sender: types.SenderUser, Text: "write"},
		{Sender: types.SenderAgent, Text: "Sub text."},
	}, c.Messages)
	assert.Equal(t, []string{"1"}, c.ContextIDs)

	// A nil ContextIDs keeps the existing references.
	s = mustReduce(t, s, ApplyContent{FlowID: flowID, SectionID: "2.1", Instruction: "again", Content: "v2"})
	assert.Equal(t, []string{"1"}, content(t, s, "2.1").ContextIDs)
	assert.Len(t, content(t, s, "2.1").Messages, 4)
}

func TestApplyOutline(t *testing.T) {
	s := mustReduce(t, finalized(), SelectSection{ID: "3"}, EditOutlineDraft{Text: "- A\n- B\n"})

	tree := outline.ParseMarkdown("- A\n- B\n")
	s = mustReduce(t, s, ApplyOutline{FlowID: flowID, Tree: tree})

	f, _ := s.Active()
	assert.Equal(t, "", f.OutlineDraft)
	assert.Equal(t, []string{"1", "2"}, outline.IDs(f.Outline))
	assert.Equal(t, "", s.Selected, "selection of a node that no longer exists is cleared")

	_, err := Reduce(s, ApplyOutline{FlowID: flowID})
	assert.Error(t, err)

	bad := []types.OutlineNode{{ID: "7", Title: "x", Status: types.StatusOutline}}
	_, err = Reduce(s, ApplyOutline{FlowID: flowID, Tree: bad})
	assert.Error(t, err)
}

func TestApplyOutlineDropsContentOfRemovedTitles(t *testing.T) {
	s := mustReduce(t, finalized(),
		ApplyContent{FlowID: flowID, SectionID: "1", Instruction: "write", Content: "Prose about intros."},
		ApplySystemPrompt{FlowID: flowID, SectionID: "1", Prompt: "You are an intro expert."},
		SelectSection{ID: "1"},
	)

	s = mustReduce(t, s, ApplyOutline{FlowID: flowID, Tree: outline.ParseMarkdown("- Zebras\n- Yaks")})
	assert.Equal(t, types.StatusOutline, status(t, s, "1"))
	c := content(t, s, "1")
	assert.Equal(t, "", c.Content)
	assert.Empty(t, c.Messages)
	assert.Equal(t, "", c.SystemPrompt)
	assert.Equal(t, "", s.Selected)

	// Committing the new section 1 finds nothing to complete.
	s = mustReduce(t, s, SelectSection{ID: "1"}, CommitSection{FlowID: flowID, SectionID: "1"})
	assert.Equal(t, types.StatusOutline, status(t, s, "1"))
	f, _ := s.Active()
	assert.Equal(t, "", outline.Export(f.Outline, f.Contents))
}

func TestApplyOutlineCarriesContentByTitle(t *testing.T) {
	s := mustReduce(t, finalized(),
		ApplyContent{FlowID: flowID, SectionID: "3", Instruction: "write", Content: "The end.", ContextIDs: []string{"1", "2.1"}},
		ApplySystemPrompt{FlowID: flowID, SectionID: "3", Prompt: "You write endings."},
		ApplySystemPrompt{FlowID: flowID, SectionID: "1", Prompt: "You write intros."},
		CommitSection{FlowID: flowID, SectionID: "3"},
		SelectSection{ID: "3"},
		SetAgentStatus{Target: Target{Kind: types.AgentTailor, FlowID: flowID, SectionID: "3"}, Status: types.AgentThinking},
		SetAgentStatus{Target: Target{Kind: types.AgentTailor, FlowID: flowID, SectionID: "3"}, Status: types.AgentError},
	)

	// "End" moves from 3 to 2; "Body" and "Sub" are gone.
	s = mustReduce(t, s, ApplyOutline{FlowID: flowID, Tree: outline.ParseMarkdown("- 1. Intro\n- 3. End\n- Coda")})

	assert.Equal(t, types.StatusCompleted, status(t, s, "2"))
	assert.Equal(t, types.StatusOutline, status(t, s, "3"))
	moved := content(t, s, "2")
	assert.Equal(t, "The end.", moved.Content)
	assert.Len(t, moved.Messages, 2)
	assert.Equal(t, []string{"1"}, moved.ContextIDs)
	assert.Equal(t, "", moved.SystemPrompt, "a persona tailored for another position is dropped")
	assert.Equal(t, "You write intros.", content(t, s, "1").SystemPrompt)
	assert.Equal(t, "", content(t, s, "3").Content)
	assert.Equal(t, "2", s.Selected)
	assert.Equal(t, types.AgentError, s.AgentStatus(Target{Kind: types.AgentTailor, FlowID: flowID, SectionID: "2"}))
	assert.Equal(t, types.AgentIdle, s.AgentStatus(Target{Kind: types.AgentTailor, FlowID: flowID, SectionID: "3"}))

	f, _ := s.Active()
	assert.Equal(t, "# 2. End\n\nThe end.\n", outline.Export(f.Outline, f.Contents))
}

func TestApplyOutlineWhileWriterThinking(t *testing.T) {
	s := mustReduce(t, finalized(),
		SetAgentStatus{Target: Target{Kind: types.AgentWriter, FlowID: flowID, SectionID: "1"}, Status: types.AgentThinking},
	)
	_, err := Reduce(s, ApplyOutline{FlowID: flowID, Tree: outline.ParseMarkdown("- A")})
	assert.ErrorIs(t, err, ErrBusy)
}

func TestApplyOutlinerReply(t *testing.T) {
	s := mustReduce(t, finalized(), ApplyOutlinerReply{FlowID: flowID, Instruction: "add end", Draft: "- Intro\n- End"})
	f, _ := s.Active()
	assert.Equal(t, "- Intro\n- End", f.OutlineDraft)
	assert.Equal(t, []types.Message{
		{Sender: types.SenderUser, Text: "add end"},
		{Sender: types.SenderAgent, Text: "- Intro\n- End"},
	}, f.OutlinerMessages)
}

func TestToggleContext(t *testing.T) {
	s := mustReduce(t, finalized(),
		ToggleContext{FlowID: flowID, SectionID: "2.1", RefID: "1", Included: true},
		ToggleContext{FlowID: flowID, SectionID: "2.1", RefID: "2.1", Included: true},
	)
	assert.Equal(t, []string{"1"}, content(t, s, "2.1").ContextIDs)

	_, err := Reduce(s, ToggleContext{FlowID: flowID, SectionID: "2.1", RefID: "9", Included: true})
	assert.ErrorIs(t, err, ErrNoSection)

	s = mustReduce(t, s, ToggleContext{FlowID: flowID, SectionID: "2.1", RefID: "1", Included: false})
	assert.Empty(t, content(t, s, "2.1").ContextIDs)
}

func TestApplyResearchCapsAtThree(t *testing.T) {
	results := []types.ResearchResult{{ID: "b-1"}, {ID: "b-2"}, {ID: "b-3"}, {ID: "b-4"}, {ID: "b-5"}}
	s := mustReduce(t, finalized(), ApplyResearch{FlowID: flowID, SectionID: "1", Results: results})
	got := content(t, s, "1").ResearchResults
	require.Len(t, got, 3)
	assert.Equal(t, "b-1", got[0].ID)
	assert.Equal(t, "b-3", got[2].ID)
}

func TestSystemPromptCache(t *testing.T) {
	s := mustReduce(t, finalized(), ApplySystemPrompt{FlowID: flowID, SectionID: "1", Prompt: "You are a baker."})
	assert.Equal(t, "You are a baker.", content(t, s, "1").SystemPrompt)
	s = mustReduce(t, s, InvalidateSystemPrompt{FlowID: flowID, SectionID: "1"})
	assert.Equal(t, "", content(t, s, "1").SystemPrompt)
}

func TestSetAgentStatusTransitions(t *testing.T) {
	target := Target{Kind: types.AgentWriter, FlowID: flowID, SectionID: "1"}
	s := finalized()
	assert.Equal(t, types.AgentIdle, s.AgentStatus(target))

	s = mustReduce(t, s,
		SetAgentStatus{Target: target, Status: types.AgentThinking},
		SetAgentStatus{Target: target, Status: types.AgentError},
		SetAgentStatus{Target: target, Status: types.AgentThinking},
		SetAgentStatus{Target: target, Status: types.AgentIdle},
	)
	assert.Equal(t, types.AgentIdle, s.AgentStatus(target))

	_, err := Reduce(s, SetAgentStatus{Target: target, Status: types.AgentError})
	var invalid *InvalidTransitionError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "agent", invalid.Machine)
	assert.Equal(t, "idle", invalid.From)
	assert.Equal(t, "error", invalid.To)
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	base := finalized()
	next := mustReduce(t, base,
		SelectSection{ID: "1"},
		ApplyContent{FlowID: flowID, SectionID: "1", Instruction: "i", Content: "c"},
		SetAgentStatus{Target: Target{Kind: types.AgentWriter, FlowID: flowID, SectionID: "1"}, Status: types.AgentThinking},
	)

	assert.Equal(t, "", base.Selected)
	assert.Empty(t, base.Project.Flows[0].Contents)
	assert.Nil(t, base.Agents)
	assert.Equal(t, "c", content(t, next, "1").Content)
}

func TestSectionLifecycleTable(t *testing.T) {
	tests := []struct {
		from, to types.SectionStatus
		want     bool
	}{
		{types.StatusOutline, types.StatusWriting, true},
		{types.StatusWriting, types.StatusCompleted, true},
		{types.StatusOutline, types.StatusCompleted, true},
		{types.StatusWriting, types.StatusOutline, false},
		{types.StatusCompleted, types.StatusWriting, false},
		{types.StatusCompleted, types.StatusOutline, false},
		{types.StatusWriting, types.StatusWriting, false},
	}
	for _, tt := range tests {
		if got := SectionLifecycle.CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
