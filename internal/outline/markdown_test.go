// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package outline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMarkdown(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantIDs    []string
		wantTitles []string
	}{
		{
			name:       "flat list",
			input:      "- Intro\n- Body\n- End\n",
			wantIDs:    []string{"1", "2", "3"},
			wantTitles: []string{"1. Intro", "2. Body", "3. End"},
		},
		{
			name: "nested with two-space indent",
			input: `- Intro
- Body
  - Sub
    - Detail
  - Other
`,
			wantIDs:    []string{"1", "2", "2.1", "2.1.1", "2.2"},
			wantTitles: []string{"1. Intro", "2. Body", "2.1. Sub", "2.1.1. Detail", "2.2. Other"},
		},
		{
			name:       "tabs and mixed markers",
			input:      "* Intro\n\t+ Sub\n- Next\n",
			wantIDs:    []string{"1", "1.1", "2"},
			wantTitles: []string{"1. Intro", "1.1. Sub", "2. Next"},
		},
		{
			name:       "existing numbering and emphasis are normalized",
			input:      "- **1. Intro**\n  - 1.1 Background\n",
			wantIDs:    []string{"1", "1.1"},
			wantTitles: []string{"1. Intro", "1.1. Background"},
		},
		{
			name:       "prose lines are ignored",
			input:      "Here is the outline:\n\n- Intro\nSome note\n- End\n",
			wantIDs:    []string{"1", "2"},
			wantTitles: []string{"1. Intro", "2. End"},
		},
		{
			name:       "headings nest list items",
			input:      "# Part One\n- Chapter\n## Part One B\n# Part Two\n",
			wantIDs:    []string{"1", "1.1", "1.2", "2"},
			wantTitles: []string{"1. Part One", "1.1. Chapter", "1.2. Part One B", "2. Part Two"},
		},
		{
			name:  "empty input",
			input: "\n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := ParseMarkdown(tt.input)
			assert.Equal(t, tt.wantIDs, IDs(tree))

			var titles []string
			for _, id := range IDs(tree) {
				n, _ := Find(tree, id)
				titles = append(titles, n.Title)
			}
			assert.Equal(t, tt.wantTitles, titles)
			assert.NoError(t, Validate(tree))
		})
	}
}

func TestParseMarkdownDeterministic(t *testing.T) {
	input := "- A\n  - B\n  - C\n- D\n"
	assert.Equal(t, ParseMarkdown(input), ParseMarkdown(input))
}

func TestRenderMarkdownRoundTrip(t *testing.T) {
	tree := ParseMarkdown("- Intro\n- Body\n  - Sub\n")
	rendered := RenderMarkdown(tree)
	assert.Equal(t, "- 1. Intro\n- 2. Body\n  - 2.1. Sub\n", rendered)

	again := ParseMarkdown(rendered)
	require.Equal(t, tree, again)
}
