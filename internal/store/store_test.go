// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"maps"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/docflow/internal/outline"
	"github.com/pdiddy/docflow/pkg/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(types.StoreConfig{Path: filepath.Join(t.TempDir(), "nested", "docflow.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleProject() types.Project {
	return types.Project{
		ID:                "p-1",
		Name:              "Bread",
		CoordinatorPrompt: "Write for home bakers.",
		KnowledgeFiles:    []types.File{{Name: "style.md", Text: "Metric units."}},
		Flows: []types.Flow{
			{
				ID:    "f-1",
				Title: "Sourdough",
				Outline: []types.OutlineNode{
					{ID: "1", Title: "1. Starter", Status: types.StatusCompleted},
					{ID: "2", Title: "2. Baking", Status: types.StatusWriting, Children: []types.OutlineNode{
						{ID: "2.1", Title: "2.1. Oven", Level: 1, Status: types.StatusOutline},
					}},
				},
				Contents: map[string]types.SectionContent{
					"1": {
						Content:         "Feed the starter with rye flour twice a day.",
						Messages:        []types.Message{{Sender: types.SenderUser, Text: "go"}, {Sender: types.SenderAgent, Text: "Feed..."}},
						ContextIDs:      []string{"2"},
						SessionFiles:    []types.File{{Name: "scratch.txt", Text: "temporary"}},
						ResearchResults: []types.ResearchResult{{ID: "b-1", Title: "Rye", URL: "#", Summary: "s"}},
						SystemPrompt:    "You are a baker.",
					},
				},
				OutlineDraft:     "- Starter",
				OutlinerMessages: []types.Message{{Sender: types.SenderUser, Text: "outline"}},
			},
			{ID: "f-2", Title: "Rye"},
		},
	}
}

func TestProjectRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	p := sampleProject()
	require.NoError(t, s.SaveProject(ctx, p))

	got, err := s.LoadProject(ctx, "p-1")
	require.NoError(t, err)

	assert.Equal(t, "Bread", got.Name)
	assert.Equal(t, p.CoordinatorPrompt, got.CoordinatorPrompt)
	assert.Equal(t, p.KnowledgeFiles, got.KnowledgeFiles)
	require.Len(t, got.Flows, 2)
	assert.Equal(t, "f-1", got.Flows[0].ID)
	assert.Equal(t, "f-2", got.Flows[1].ID)
	assert.Equal(t, p.Flows[0].Outline, got.Flows[0].Outline)
	assert.Equal(t, "- Starter", got.Flows[0].OutlineDraft)
	assert.Equal(t, p.Flows[0].OutlinerMessages, got.Flows[0].OutlinerMessages)

	c := got.Flows[0].Contents["1"]
	want := p.Flows[0].Contents["1"]
	assert.Equal(t, want.Content, c.Content)
	assert.Equal(t, want.Messages, c.Messages)
	assert.Equal(t, want.ContextIDs, c.ContextIDs)
	assert.Equal(t, want.ResearchResults, c.ResearchResults)
	assert.Equal(t, want.SystemPrompt, c.SystemPrompt)
	assert.Empty(t, c.SessionFiles, "session files are never persisted")

	assert.False(t, got.Flows[1].Finalized())
	assert.Empty(t, got.Flows[1].Contents)
}

func TestSaveProjectReplacesFlows(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	p := sampleProject()
	require.NoError(t, s.SaveProject(ctx, p))

	p.Flows = p.Flows[1:]
	p.Name = "Rye only"
	require.NoError(t, s.SaveProject(ctx, p))

	got, err := s.LoadProject(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "Rye only", got.Name)
	require.Len(t, got.Flows, 1)
	assert.Equal(t, "f-2", got.Flows[0].ID)

	hits, err := s.SearchSections(ctx, "p-1", "rye", 0)
	require.NoError(t, err)
	assert.Empty(t, hits, "sections of removed flows are gone")
}

func TestLoadProjectNotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.LoadProject(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteProject(context.Background(), "missing"), ErrNotFound)
}

func TestSaveProjectRequiresID(t *testing.T) {
	s := testStore(t)
	assert.Error(t, s.SaveProject(context.Background(), types.Project{Name: "x"}))
}

func TestListAndDeleteProjects(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveProject(ctx, sampleProject()))
	require.NoError(t, s.SaveProject(ctx, types.Project{ID: "p-2", Name: "Cakes"}))

	list, err := s.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "p-2", list[0].ID)
	assert.Equal(t, 0, list[0].Flows)
	assert.Equal(t, 2, list[1].Flows)

	require.NoError(t, s.DeleteProject(ctx, "p-1"))
	list, err = s.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Cakes", list[0].Name)
}

func TestSession(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	v, err := s.Session(ctx, KeyProject)
	require.NoError(t, err)
	assert.Equal(t, "", v)

	require.NoError(t, s.SetSession(ctx, KeyProject, "p-1"))
	require.NoError(t, s.SetSession(ctx, KeyProject, "p-2"))
	v, err = s.Session(ctx, KeyProject)
	require.NoError(t, err)
	assert.Equal(t, "p-2", v)

	require.NoError(t, s.SetSession(ctx, KeyProject, ""))
	v, err = s.Session(ctx, KeyProject)
	require.NoError(t, err)
	assert.Equal(t, "", v)
}

func TestSearchSections(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveProject(ctx, sampleProject()))

	hits, err := s.SearchSections(ctx, "p-1", "rye", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, SearchHit{FlowID: "f-1", FlowTitle: "Sourdough", SectionID: "1", Snippet: hits[0].Snippet}, hits[0])
	assert.Contains(t, hits[0].Snippet, "[rye]")

	hits, err = s.SearchSections(ctx, "p-2", "rye", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docflow.db")
	s, err := Open(types.StoreConfig{Path: path})
	require.NoError(t, err)
	require.NoError(t, s.SaveProject(context.Background(), sampleProject()))
	require.NoError(t, s.Close())

	s, err = Open(types.StoreConfig{Path: path})
	require.NoError(t, err)
	defer s.Close()
	got, err := s.LoadProject(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Len(t, got.Flows, 2)
}

func TestSaveChangesKeepsConcurrentSectionWrites(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveProject(ctx, sampleProject()))

	a, err := s.LoadProject(ctx, "p-1")
	require.NoError(t, err)
	b, err := s.LoadProject(ctx, "p-1")
	require.NoError(t, err)

	nextA := withSection(a, "1", "written by A", types.StatusCompleted)
	nextA = withStatus(nextA, "2", types.StatusCompleted)
	require.NoError(t, s.SaveChanges(ctx, a, nextA))
	nextB := withSection(b, "2", "written by B", types.StatusWriting)
	nextB = withStatus(nextB, "2.1", types.StatusWriting)
	require.NoError(t, s.SaveChanges(ctx, b, nextB))

	got, err := s.LoadProject(ctx, "p-1")
	require.NoError(t, err)
	contents := got.Flows[0].Contents
	assert.Equal(t, "written by A", contents["1"].Content)
	assert.Equal(t, "written by B", contents["2"].Content)

	statuses := map[string]types.SectionStatus{}
	outline.Walk(got.Flows[0].Outline, func(n types.OutlineNode) { statuses[n.ID] = n.Status })
	assert.Equal(t, types.StatusCompleted, statuses["1"])
	assert.Equal(t, types.StatusCompleted, statuses["2"])
	assert.Equal(t, types.StatusWriting, statuses["2.1"])

	hits, err := s.SearchSections(ctx, "p-1", "written", 5)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestSaveChangesReplacesRestructuredOutline(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveProject(ctx, sampleProject()))

	base, err := s.LoadProject(ctx, "p-1")
	require.NoError(t, err)
	next := base
	next.Flows = slices.Clone(base.Flows)
	next.Flows[0].Outline = []types.OutlineNode{{ID: "1", Title: "1. Flour", Status: types.StatusOutline}}
	next.Flows[0].Contents = map[string]types.SectionContent{}
	next.Flows = next.Flows[:1]
	next.Flows = append(next.Flows, types.Flow{ID: "f-3", Title: "Spelt"})
	next.Name = "Flour"
	require.NoError(t, s.SaveChanges(ctx, base, next))

	got, err := s.LoadProject(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "Flour", got.Name)
	assert.Equal(t, "Write for home bakers.", got.CoordinatorPrompt)
	require.Len(t, got.Flows, 2)
	assert.Equal(t, "f-3", got.Flows[1].ID)
	assert.Equal(t, next.Flows[0].Outline, got.Flows[0].Outline)
	assert.Empty(t, got.Flows[0].Contents)
	assert.Equal(t, "- Starter", got.Flows[0].OutlineDraft)
}

func TestSaveChangesRequiresID(t *testing.T) {
	s := testStore(t)
	assert.Error(t, s.SaveChanges(context.Background(), types.Project{}, types.Project{Name: "x"}))
}

// withSection returns p with section id of the first flow holding text and
// advanced to status. p is not modified.
func withSection(p types.Project, id, text string, status types.SectionStatus) types.Project {
	p = withStatus(p, id, status)
	f := p.Flows[0]
	contents := maps.Clone(f.Contents)
	c := contents[id]
	c.Content = text
	contents[id] = c
	f.Contents = contents
	p.Flows[0] = f
	return p
}

func withStatus(p types.Project, id string, status types.SectionStatus) types.Project {
	p.Flows = slices.Clone(p.Flows)
	f := p.Flows[0]
	f.Outline = outline.SetStatus(f.Outline, id, status)
	p.Flows[0] = f
	return p
}
