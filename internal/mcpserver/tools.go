// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/pdiddy/docflow/internal/convert"
	"github.com/pdiddy/docflow/internal/outline"
	"github.com/pdiddy/docflow/internal/workflow"
	"github.com/pdiddy/docflow/pkg/types"
)

// Tool arguments.
type (
	CreateFlowArgs struct {
		Title string `json:"title"`
	}
	IDArgs struct {
		ID string `json:"id"`
	}
	TextArgs struct {
		Text string `json:"text"`
	}
	FinalizeArgs struct {
		Local bool `json:"local"`
	}
	GenerateArgs struct {
		Prompt     string   `json:"prompt"`
		ContextIDs []string `json:"context_ids"`
	}
	ResearchArgs struct {
		Query string `json:"query"`
	}
	FilesArgs struct {
		SectionID string   `json:"section_id"`
		Paths     []string `json:"paths"`
	}
	ToggleArgs struct {
		SectionID string `json:"section_id"`
		RefID     string `json:"ref_id"`
		Included  bool   `json:"included"`
	}
	NoArgs struct{}
)

// FlowView summarizes one flow.
type FlowView struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Active bool   `json:"active"`
}

// AgentView is one non-idle agent target.
type AgentView struct {
	Kind      types.AgentKind   `json:"kind"`
	FlowID    string            `json:"flow_id"`
	SectionID string            `json:"section_id,omitempty"`
	Status    types.AgentStatus `json:"status"`
}

// StateView is the get_state response.
type StateView struct {
	Project        string              `json:"project"`
	Coordinator    string              `json:"coordinator_prompt"`
	KnowledgeFiles []string            `json:"knowledge_files"`
	Flows          []FlowView          `json:"flows"`
	Selected       string              `json:"selected,omitempty"`
	OutlineDraft   string              `json:"outline_draft,omitempty"`
	Outline        []types.OutlineNode `json:"outline,omitempty"`
	Agents         []AgentView         `json:"agents,omitempty"`
}

// SectionView is the show_section response. Session files are not part of
// the content encoding, so their names are listed separately.
type SectionView struct {
	Node         types.OutlineNode    `json:"node"`
	Content      types.SectionContent `json:"content"`
	SessionFiles []string             `json:"session_files"`
}

func (s *Server) tools() []server.ServerTool {
	return []server.ServerTool{
		{
			Tool: mcp.NewTool("get_state",
				mcp.WithDescription("Show the project, its flows, the active outline, and agent status"),
			),
			Handler: query(func(context.Context, NoArgs) (any, error) { return s.view(), nil }),
		},
		{
			Tool: mcp.NewTool("create_flow",
				mcp.WithDescription("Create a new document flow and make it active"),
				mcp.WithString("title", mcp.Required(), mcp.Description("Document title")),
			),
			Handler: command(s, func(_ context.Context, a CreateFlowArgs) (any, error) {
				id, err := s.engine.CreateFlow(a.Title)
				return map[string]string{"id": id}, err
			}),
		},
		{
			Tool: mcp.NewTool("select_flow",
				mcp.WithDescription("Make a flow active"),
				mcp.WithString("id", mcp.Required(), mcp.Description("Flow id")),
			),
			Handler: command(s, func(_ context.Context, a IDArgs) (any, error) {
				return "ok", s.engine.SelectFlow(a.ID)
			}),
		},
		{
			Tool: mcp.NewTool("set_coordinator_prompt",
				mcp.WithDescription("Set the master directive prepended to every agent"),
				mcp.WithString("text", mcp.Required(), mcp.Description("Coordinator prompt")),
			),
			Handler: command(s, func(_ context.Context, a TextArgs) (any, error) {
				return "ok", s.engine.SetCoordinatorPrompt(a.Text)
			}),
		},
		{
			Tool: mcp.NewTool("set_knowledge_files",
				mcp.WithDescription("Replace the global knowledge files with the given local files"),
				mcp.WithArray("paths", mcp.Required(), mcp.Description("File paths"),
					mcp.Items(map[string]any{"type": "string"})),
			),
			Handler: command(s, func(ctx context.Context, a FilesArgs) (any, error) {
				files, err := s.load(ctx, a.Paths)
				if err != nil {
					return nil, err
				}
				return names(files), s.engine.SetGlobalKnowledgeFiles(files)
			}),
		},
		{
			Tool: mcp.NewTool("outline_chat",
				mcp.WithDescription("Send an instruction to the Outliner; returns the new outline draft"),
				mcp.WithString("text", mcp.Required(), mcp.Description("Instruction for the Outliner")),
			),
			Handler: command(s, func(ctx context.Context, a TextArgs) (any, error) {
				return s.engine.SubmitOutlinerCommand(ctx, a.Text)
			}),
		},
		{
			Tool: mcp.NewTool("edit_outline_draft",
				mcp.WithDescription("Replace the outline draft with hand-edited markdown"),
				mcp.WithString("text", mcp.Required(), mcp.Description("Hyphen and indentation outline")),
			),
			Handler: command(s, func(_ context.Context, a TextArgs) (any, error) {
				return "ok", s.engine.EditOutlineDraft(a.Text)
			}),
		},
		{
			Tool: mcp.NewTool("finalize_outline",
				mcp.WithDescription("Parse the outline draft into the section tree"),
				mcp.WithBoolean("local", mcp.Description("Parse without a model")),
			),
			Handler: command(s, func(ctx context.Context, a FinalizeArgs) (any, error) {
				var (
					tree []types.OutlineNode
					err  error
				)
				if a.Local {
					tree, err = s.engine.FinalizeOutlineLocal()
				} else {
					tree, err = s.engine.FinalizeOutline(ctx)
				}
				if err != nil {
					return nil, err
				}
				return outline.RenderMarkdown(tree), nil
			}),
		},
		{
			Tool: mcp.NewTool("select_section",
				mcp.WithDescription("Select a section of the active outline"),
				mcp.WithString("id", mcp.Required(), mcp.Description("Section id, e.g. 2.1")),
			),
			Handler: command(s, func(ctx context.Context, a IDArgs) (any, error) {
				return "ok", s.engine.SelectSection(ctx, a.ID)
			}),
		},
		{
			Tool:    mcp.NewTool("deselect_section", mcp.WithDescription("Clear the section selection")),
			Handler: command(s, func(context.Context, NoArgs) (any, error) { return "ok", s.engine.DeselectSection() }),
		},
		{
			Tool: mcp.NewTool("show_section",
				mcp.WithDescription("Show a section's outline node and content"),
				mcp.WithString("id", mcp.Description("Section id; defaults to the selection")),
			),
			Handler: query(func(_ context.Context, a IDArgs) (any, error) { return s.section(a.ID) }),
		},
		{
			Tool: mcp.NewTool("generate_section",
				mcp.WithDescription("Ask the Writer to continue the selected section"),
				mcp.WithString("prompt", mcp.Description("Instruction; empty asks for a full draft")),
				mcp.WithArray("context_ids", mcp.Description("Sections to send as reference context"),
					mcp.Items(map[string]any{"type": "string"})),
			),
			Handler: command(s, func(ctx context.Context, a GenerateArgs) (any, error) {
				return s.engine.GenerateForSection(ctx, a.Prompt, a.ContextIDs)
			}),
		},
		{
			Tool:    mcp.NewTool("commit_section", mcp.WithDescription("Mark the selected section completed")),
			Handler: command(s, func(context.Context, NoArgs) (any, error) { return "ok", s.engine.CommitSection() }),
		},
		{
			Tool: mcp.NewTool("research",
				mcp.WithDescription("Research a topic for the selected section"),
				mcp.WithString("query", mcp.Required(), mcp.Description("Research topic")),
			),
			Handler: command(s, func(ctx context.Context, a ResearchArgs) (any, error) {
				return s.engine.SubmitResearch(ctx, a.Query)
			}),
		},
		{
			Tool: mcp.NewTool("set_session_files",
				mcp.WithDescription("Attach local files to one section for this session"),
				mcp.WithString("section_id", mcp.Required(), mcp.Description("Section id")),
				mcp.WithArray("paths", mcp.Description("File paths; empty clears"),
					mcp.Items(map[string]any{"type": "string"})),
			),
			Handler: command(s, func(ctx context.Context, a FilesArgs) (any, error) {
				files, err := s.load(ctx, a.Paths)
				if err != nil {
					return nil, err
				}
				return names(files), s.engine.SetSessionFiles(a.SectionID, files)
			}),
		},
		{
			Tool: mcp.NewTool("toggle_context",
				mcp.WithDescription("Include or exclude another section as reference context"),
				mcp.WithString("section_id", mcp.Required(), mcp.Description("Section being written")),
				mcp.WithString("ref_id", mcp.Required(), mcp.Description("Section to reference")),
				mcp.WithBoolean("included", mcp.Required(), mcp.Description("Whether to include it")),
			),
			Handler: command(s, func(_ context.Context, a ToggleArgs) (any, error) {
				return "ok", s.engine.ToggleContextReference(a.SectionID, a.RefID, a.Included)
			}),
		},
		{
			Tool: mcp.NewTool("export_document",
				mcp.WithDescription("Render every completed section of the active flow as markdown"),
			),
			Handler: query(func(context.Context, NoArgs) (any, error) { return s.engine.ExportCompletedDocument() }),
		},
	}
}

func (s *Server) view() StateView {
	st := s.engine.Snapshot()
	v := StateView{
		Project:        st.Project.Name,
		Coordinator:    st.Project.CoordinatorPrompt,
		KnowledgeFiles: names(st.Project.KnowledgeFiles),
		Flows:          []FlowView{},
		Selected:       st.Selected,
	}
	for _, f := range st.Project.Flows {
		v.Flows = append(v.Flows, FlowView{ID: f.ID, Title: f.Title, Active: f.ID == st.ActiveFlow})
	}
	if f, err := st.Active(); err == nil {
		v.OutlineDraft = f.OutlineDraft
		v.Outline = f.Outline
	}
	for t, status := range st.Agents {
		if status == types.AgentIdle {
			continue
		}
		v.Agents = append(v.Agents, AgentView{Kind: t.Kind, FlowID: t.FlowID, SectionID: t.SectionID, Status: status})
	}
	sort.Slice(v.Agents, func(i, j int) bool {
		a, b := v.Agents[i], v.Agents[j]
		if a.SectionID != b.SectionID {
			return a.SectionID < b.SectionID
		}
		return a.Kind < b.Kind
	})
	return v
}

func (s *Server) section(id string) (SectionView, error) {
	st := s.engine.Snapshot()
	f, err := st.Active()
	if err != nil {
		return SectionView{}, err
	}
	if id == "" {
		id = st.Selected
	}
	if id == "" {
		return SectionView{}, fmt.Errorf("no section selected: %w", workflow.ErrNoSection)
	}
	n, err := workflow.Node(f, id)
	if err != nil {
		return SectionView{}, err
	}
	n.Children = nil
	c := workflow.Sections(f).Get(id)
	return SectionView{Node: n, Content: c, SessionFiles: names(c.SessionFiles)}, nil
}

// load converts paths. Any failure fails the whole call so a tool never
// applies a partial file set.
func (s *Server) load(ctx context.Context, paths []string) ([]types.File, error) {
	if len(paths) == 0 {
		return []types.File{}, nil
	}
	if s.convert == nil {
		return nil, errors.New("file conversion is not configured")
	}
	files, result := convert.LoadFiles(ctx, s.convert, paths, io.Discard)
	if result.HasFailures() {
		return nil, fmt.Errorf("%d of %d files could not be converted", result.Failed, result.Total())
	}
	return files, nil
}

func names(files []types.File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Name
	}
	return out
}
