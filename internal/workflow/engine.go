// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/pdiddy/docflow/internal/agent"
	"github.com/pdiddy/docflow/internal/assemble"
	"github.com/pdiddy/docflow/internal/outline"
	"github.com/pdiddy/docflow/internal/research"
	"github.com/pdiddy/docflow/pkg/types"
)

// Engine is the single writer of a project's State.
type Engine struct {
	agents   *agent.Agents
	research research.Source

	mu    sync.Mutex
	state State
}

// NewEngine returns an engine over s. A nil source uses the Researcher
// agent.
func NewEngine(s State, agents *agent.Agents, src research.Source) *Engine {
	if src == nil {
		src = research.ModelSource{Agents: agents}
	}
	return &Engine{agents: agents, research: src, state: s}
}

// Snapshot returns the current state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Apply reduces cmd against the current state.
func (e *Engine) Apply(cmd Command) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.apply(cmd)
}

func (e *Engine) apply(cmd Command) error {
	next, err := Reduce(e.state, cmd)
	if err != nil {
		return err
	}
	e.state = next
	return nil
}

// begin marks t thinking. It fails with ErrBusy when t is already thinking.
// The caller holds e.mu.
func (e *Engine) begin(t Target) error {
	if e.state.AgentStatus(t) == types.AgentThinking {
		return fmt.Errorf("%s %s: %w", t.Kind, targetName(t), ErrBusy)
	}
	return e.apply(SetAgentStatus{Target: t, Status: types.AgentThinking})
}

// end returns t to idle, or to error when err is non-nil, and applies
// result on success. result and the status change land together.
func (e *Engine) end(t Target, err error, result Command) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err == nil && result != nil {
		err = e.apply(result)
	}
	status := types.AgentIdle
	if err != nil {
		status = types.AgentError
		klog.V(2).Infof("%s %s failed: %v", t.Kind, targetName(t), err)
	}
	if serr := e.apply(SetAgentStatus{Target: t, Status: status}); serr != nil {
		klog.Warningf("%s %s: %v", t.Kind, targetName(t), serr)
	}
	return err
}

func targetName(t Target) string {
	if t.SectionID == "" {
		return "flow " + t.FlowID
	}
	return "section " + t.SectionID
}

// selected returns the active flow and the selected node. The caller holds
// e.mu.
func (e *Engine) selected() (types.Flow, types.OutlineNode, error) {
	f, err := e.state.Active()
	if err != nil {
		return types.Flow{}, types.OutlineNode{}, err
	}
	if !f.Finalized() {
		return f, types.OutlineNode{}, ErrNoOutline
	}
	if e.state.Selected == "" {
		return f, types.OutlineNode{}, fmt.Errorf("no section selected: %w", ErrNoSection)
	}
	n, err := Node(f, e.state.Selected)
	return f, n, err
}

func (e *Engine) writerInput(f types.Flow, sectionID string) assemble.WriterInput {
	return assemble.WriterInput{
		Coordinator: e.state.Project.CoordinatorPrompt,
		Knowledge:   e.state.Project.KnowledgeFiles,
		Tree:        f.Outline,
		Sections:    Sections(f),
		SectionID:   sectionID,
	}
}

// --- project and flow management ---

// CreateFlow adds a flow titled title and makes it active.
func (e *Engine) CreateFlow(title string) (string, error) {
	id := uuid.NewString()
	if err := e.Apply(CreateFlow{ID: id, Title: title}); err != nil {
		return "", err
	}
	return id, nil
}

// DeleteFlow removes a flow.
func (e *Engine) DeleteFlow(id string) error { return e.Apply(DeleteFlow{ID: id}) }

// SelectFlow makes a flow active.
func (e *Engine) SelectFlow(id string) error { return e.Apply(SelectFlow{ID: id}) }

// SetCoordinatorPrompt sets the project's master directive.
func (e *Engine) SetCoordinatorPrompt(prompt string) error {
	return e.Apply(SetCoordinator{Prompt: prompt})
}

// SetGlobalKnowledgeFiles replaces the project's knowledge files.
func (e *Engine) SetGlobalKnowledgeFiles(files []types.File) error {
	return e.Apply(SetKnowledgeFiles{Files: files})
}

// --- selection ---

// SelectSection selects a section of the active flow. On first visit the
// section's Writer persona is tailored; when that fails the fallback
// persona is cached instead and the tailor target reports error.
func (e *Engine) SelectSection(ctx context.Context, id string) error {
	if err := e.Apply(SelectSection{ID: id}); err != nil {
		return err
	}
	e.mu.Lock()
	flowID := e.state.ActiveFlow
	e.mu.Unlock()
	return e.ensurePersona(ctx, flowID, id)
}

// DeselectSection clears the selection.
func (e *Engine) DeselectSection() error { return e.Apply(DeselectSection{}) }

// ensurePersona tailors and caches a section's Writer persona when none is
// cached. Only precondition failures are returned.
func (e *Engine) ensurePersona(ctx context.Context, flowID, sectionID string) error {
	t := Target{Kind: types.AgentTailor, FlowID: flowID, SectionID: sectionID}

	e.mu.Lock()
	f, ok := e.state.Flow(flowID)
	if !ok {
		e.mu.Unlock()
		return ErrNoFlow
	}
	n, err := Node(f, sectionID)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if Sections(f).Get(sectionID).SystemPrompt != "" {
		e.mu.Unlock()
		return nil
	}
	if err := e.begin(t); err != nil {
		e.mu.Unlock()
		if errors.Is(err, ErrBusy) {
			return nil
		}
		return err
	}
	coordinator := e.state.Project.CoordinatorPrompt
	req := agent.TailorRequest{
		DocTitle:     f.Title,
		Tree:         f.Outline,
		SectionTitle: n.Title,
		Coordinator:  coordinator,
	}
	e.mu.Unlock()

	persona, err := e.agents.CreateTailoredPrompt(ctx, req)
	if err != nil {
		klog.Warningf("tailoring persona for section %s: %v; using fallback", sectionID, err)
		fallback := ApplySystemPrompt{FlowID: flowID, SectionID: sectionID, Prompt: assemble.FallbackPersona(n.Title)}
		e.mu.Lock()
		defer e.mu.Unlock()
		if aerr := e.apply(fallback); aerr != nil {
			klog.Warningf("caching fallback persona for section %s: %v", sectionID, aerr)
		}
		if serr := e.apply(SetAgentStatus{Target: t, Status: types.AgentError}); serr != nil {
			klog.Warningf("%s %s: %v", t.Kind, targetName(t), serr)
		}
		return nil
	}
	return e.end(t, nil, ApplySystemPrompt{FlowID: flowID, SectionID: sectionID, Prompt: persona})
}

// InvalidateSystemPrompt drops a section's cached persona so the next
// selection tailors it again.
func (e *Engine) InvalidateSystemPrompt(sectionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.apply(InvalidateSystemPrompt{FlowID: e.state.ActiveFlow, SectionID: sectionID})
}

// --- outline lifecycle ---

// SubmitOutlinerCommand sends instruction and the current draft to the
// Outliner and replaces the draft with its reply.
func (e *Engine) SubmitOutlinerCommand(ctx context.Context, instruction string) (string, error) {
	if strings.TrimSpace(instruction) == "" {
		return "", errors.New("outliner instruction is empty")
	}

	e.mu.Lock()
	f, err := e.state.Active()
	if err != nil {
		e.mu.Unlock()
		return "", err
	}
	t := Target{Kind: types.AgentOutliner, FlowID: f.ID}
	if err := e.begin(t); err != nil {
		e.mu.Unlock()
		return "", err
	}
	req := agent.OutlineRequest{
		Coordinator: e.state.Project.CoordinatorPrompt,
		Draft:       f.OutlineDraft,
		Instruction: instruction,
	}
	e.mu.Unlock()

	draft, err := e.agents.GenerateOutline(ctx, req)
	if err := e.end(t, err, ApplyOutlinerReply{FlowID: f.ID, Instruction: instruction, Draft: draft}); err != nil {
		return "", err
	}
	return draft, nil
}

// EditOutlineDraft replaces the active flow's draft.
func (e *Engine) EditOutlineDraft(text string) error {
	return e.Apply(EditOutlineDraft{Text: text})
}

// FinalizeOutline parses the draft with the Parse agent and replaces the
// tree. The draft is cleared only when parsing succeeds.
func (e *Engine) FinalizeOutline(ctx context.Context) ([]types.OutlineNode, error) {
	e.mu.Lock()
	f, err := e.state.Active()
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if strings.TrimSpace(f.OutlineDraft) == "" {
		e.mu.Unlock()
		return nil, errors.New("outline draft is empty")
	}
	t := Target{Kind: types.AgentParser, FlowID: f.ID}
	if err := e.begin(t); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.mu.Unlock()

	tree, err := e.agents.ParseOutline(ctx, f.OutlineDraft)
	if err := e.end(t, err, ApplyOutline{FlowID: f.ID, Tree: tree}); err != nil {
		return nil, err
	}
	return e.outlineOf(f.ID), nil
}

// outlineOf returns the current tree of flow id.
func (e *Engine) outlineOf(id string) []types.OutlineNode {
	e.mu.Lock()
	defer e.mu.Unlock()
	f, _ := e.state.Flow(id)
	return f.Outline
}

// FinalizeOutlineLocal parses the draft without a model.
func (e *Engine) FinalizeOutlineLocal() ([]types.OutlineNode, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	f, err := e.state.Active()
	if err != nil {
		return nil, err
	}
	tree := outline.ParseMarkdown(f.OutlineDraft)
	if len(tree) == 0 {
		return nil, errors.New("outline draft has no list items or headings")
	}
	if err := e.apply(ApplyOutline{FlowID: f.ID, Tree: tree}); err != nil {
		return nil, err
	}
	next, _ := e.state.Flow(f.ID)
	return next.Outline, nil
}

// ImportOutline replaces the active flow's tree with an already structured
// outline.
func (e *Engine) ImportOutline(tree []types.OutlineNode) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.apply(ApplyOutline{FlowID: e.state.ActiveFlow, Tree: tree})
}

// --- writing ---

// GenerateForSection continues the selected section's Writer conversation
// with prompt, or with the default instruction when prompt is empty. A
// non-nil contextIDs replaces the section's references for this and later
// turns. The section moves to writing at dispatch; content, both messages,
// and references are applied together only when the call succeeds.
func (e *Engine) GenerateForSection(ctx context.Context, prompt string, contextIDs []string) (string, error) {
	e.mu.Lock()
	f, n, err := e.selected()
	if err != nil {
		e.mu.Unlock()
		return "", err
	}
	t := Target{Kind: types.AgentWriter, FlowID: f.ID, SectionID: n.ID}
	if err := e.begin(t); err != nil {
		e.mu.Unlock()
		return "", err
	}
	if err := e.apply(BeginWriting{FlowID: f.ID, SectionID: n.ID}); err != nil {
		e.mu.Unlock()
		return "", e.end(t, err, nil)
	}

	instruction := strings.TrimSpace(prompt)
	if instruction == "" {
		instruction = assemble.DefaultInstruction(n.Title)
	}
	in := e.writerInput(f, n.ID)
	if contextIDs != nil {
		in.Sections = in.Sections.SetContextIDs(n.ID, contextIDs)
	}
	history := append(slices.Clip(in.Sections.Get(n.ID).Messages), types.Message{Sender: types.SenderUser, Text: instruction})
	e.mu.Unlock()

	content, err := e.agents.GenerateContent(ctx, in, history)
	apply := ApplyContent{FlowID: f.ID, SectionID: n.ID, Instruction: instruction, Content: content, ContextIDs: contextIDs}
	if err := e.end(t, err, apply); err != nil {
		return "", err
	}
	return content, nil
}

// DraftSection writes an initial single-turn draft for any section of the
// active flow, tailoring its persona first when none is cached.
func (e *Engine) DraftSection(ctx context.Context, sectionID, instruction string) (string, error) {
	e.mu.Lock()
	f, err := e.state.Active()
	e.mu.Unlock()
	if err != nil {
		return "", err
	}
	if err := e.ensurePersona(ctx, f.ID, sectionID); err != nil {
		return "", err
	}

	e.mu.Lock()
	f, ok := e.state.Flow(f.ID)
	if !ok {
		e.mu.Unlock()
		return "", ErrNoFlow
	}
	n, err := Node(f, sectionID)
	if err != nil {
		e.mu.Unlock()
		return "", err
	}
	t := Target{Kind: types.AgentWriter, FlowID: f.ID, SectionID: n.ID}
	if err := e.begin(t); err != nil {
		e.mu.Unlock()
		return "", err
	}
	if err := e.apply(BeginWriting{FlowID: f.ID, SectionID: n.ID}); err != nil {
		e.mu.Unlock()
		return "", e.end(t, err, nil)
	}
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		instruction = assemble.DefaultInstruction(n.Title)
	}
	in := e.writerInput(f, n.ID)
	e.mu.Unlock()

	content, err := e.agents.GenerateInitialDraft(ctx, in, instruction)
	apply := ApplyContent{FlowID: f.ID, SectionID: n.ID, Instruction: instruction, Content: content}
	if err := e.end(t, err, apply); err != nil {
		return "", err
	}
	return content, nil
}

// CommitSection marks the selected section completed. It does nothing when
// the section has no content.
func (e *Engine) CommitSection() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	f, n, err := e.selected()
	if err != nil {
		return err
	}
	return e.apply(CommitSection{FlowID: f.ID, SectionID: n.ID})
}

// --- research and context ---

// SubmitResearch searches query for the selected section and replaces its
// research results.
func (e *Engine) SubmitResearch(ctx context.Context, query string) ([]types.ResearchResult, error) {
	e.mu.Lock()
	f, n, err := e.selected()
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	t := Target{Kind: types.AgentResearcher, FlowID: f.ID, SectionID: n.ID}
	if err := e.begin(t); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	coordinator := e.state.Project.CoordinatorPrompt
	e.mu.Unlock()

	results, err := e.research.Search(ctx, coordinator, query)
	if len(results) > types.MaxResearchResults {
		results = results[:types.MaxResearchResults]
	}
	if err := e.end(t, err, ApplyResearch{FlowID: f.ID, SectionID: n.ID, Results: results}); err != nil {
		return nil, err
	}
	return results, nil
}

// SetSessionFiles attaches ephemeral files to a section.
func (e *Engine) SetSessionFiles(sectionID string, files []types.File) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.apply(SetSessionFiles{FlowID: e.state.ActiveFlow, SectionID: sectionID, Files: files})
}

// ToggleContextReference adds or removes refID from sectionID's references.
func (e *Engine) ToggleContextReference(sectionID, refID string, included bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.apply(ToggleContext{FlowID: e.state.ActiveFlow, SectionID: sectionID, RefID: refID, Included: included})
}

// --- export ---

// ExportCompletedDocument renders every completed section of the active
// flow as markdown.
func (e *Engine) ExportCompletedDocument() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	f, err := e.state.Active()
	if err != nil {
		return "", err
	}
	return outline.Export(f.Outline, f.Contents), nil
}
