// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package outline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/docflow/pkg/types"
)

func TestExport(t *testing.T) {
	tree := sampleTree()
	tree = SetStatus(tree, "1", types.StatusCompleted)
	tree = SetStatus(tree, "2.1", types.StatusCompleted)
	tree = SetStatus(tree, "2.1.1", types.StatusCompleted)
	tree = SetStatus(tree, "3", types.StatusCompleted)
	tree = SetStatus(tree, "2.2", types.StatusWriting)

	contents := map[string]types.SectionContent{
		"1":     {Content: "Opening words.\n"},
		"2":     {Content: "Body text that is not committed."},
		"2.1":   {Content: "Sub text."},
		"2.1.1": {Content: "  Detail text.  "},
		"2.2":   {Content: "Still writing."},
		"3":     {Content: "   "},
	}

	got := Export(tree, contents)
	want := "# Intro\n\nOpening words.\n\n" +
		"## Sub\n\nSub text.\n\n" +
		"### Detail\n\nDetail text.\n"
	assert.Equal(t, want, got)
}

func TestExportIsIdempotent(t *testing.T) {
	tree := SetStatus(sampleTree(), "2", types.StatusCompleted)
	contents := map[string]types.SectionContent{"2": {Content: "Body."}}

	first := Export(tree, contents)
	second := Export(tree, contents)
	assert.Equal(t, first, second)
	assert.Equal(t, "# Body\n\nBody.\n", first)
}

func TestExportNothingCompleted(t *testing.T) {
	assert.Equal(t, "", Export(sampleTree(), nil))
}

func TestExportCapsHeadingDepth(t *testing.T) {
	deep := []types.OutlineNode{{Title: "L0"}}
	cur := &deep[0]
	for i := 1; i < 8; i++ {
		cur.Children = []types.OutlineNode{{Title: "L"}}
		cur = &cur.Children[0]
	}
	tree := AttachMetadata(deep)
	id := IDs(tree)[7]
	tree = SetStatus(tree, id, types.StatusCompleted)

	got := Export(tree, map[string]types.SectionContent{id: {Content: "deep"}})
	assert.Equal(t, "###### L\n\ndeep\n", got)
}

func TestYAMLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "outline.yaml")

	tree := SetStatus(sampleTree(), "2.1", types.StatusWriting)
	require.NoError(t, SaveYAML(path, tree))

	loaded, err := LoadYAML(path)
	require.NoError(t, err)
	assert.Equal(t, tree, loaded)
}

func TestLoadYAML(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantIDs []string
		wantErr bool
	}{
		{
			name: "fresh outline receives metadata",
			yaml: `sections:
  - title: Introduction
  - title: Methods
    children:
      - title: Data
`,
			wantIDs: []string{"1", "2", "2.1"},
		},
		{
			name: "inconsistent ids are rejected",
			yaml: `sections:
  - id: "1"
    title: Introduction
    level: 0
    status: outline
  - id: "5"
    title: Methods
    level: 0
    status: outline
`,
			wantErr: true,
		},
		{
			name:    "no sections",
			yaml:    "sections: []\n",
			wantErr: true,
		},
		{
			name:    "invalid yaml",
			yaml:    ":::bad\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "outline.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))

			tree, err := LoadYAML(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantIDs, IDs(tree))
		})
	}
}

func TestLoadYAMLMissingFile(t *testing.T) {
	_, err := LoadYAML(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
