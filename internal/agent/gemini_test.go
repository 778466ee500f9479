// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/pdiddy/docflow/pkg/types"
)

func TestGeminiContentsRoles(t *testing.T) {
	got := geminiContents([]types.Turn{
		{Role: types.RoleUser, Text: "draft it"},
		{Role: types.RoleModel, Text: "Drafted."},
		{Role: types.RoleUser, Text: "shorter"},
	})
	require.Len(t, got, 3)

	wantRoles := []string{genai.RoleUser, genai.RoleModel, genai.RoleUser}
	for i, c := range got {
		assert.Equal(t, wantRoles[i], c.Role)
		require.Len(t, c.Parts, 1)
	}
	assert.Equal(t, "Drafted.", got[1].Parts[0].Text)
	assert.Empty(t, geminiContents(nil))
}
