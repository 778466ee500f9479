// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"slices"
	"strings"

	"github.com/pdiddy/docflow/internal/outline"
	"github.com/pdiddy/docflow/pkg/types"
)

// rekey moves a flow's section content from its old tree onto tree. A new
// node takes over the entry of the old node with the same title, ignoring
// numbering; titles that repeat are paired in document order. Entries with
// no match are dropped. It returns the new tree with carried statuses, the
// new contents, and the old-to-new id map.
func rekey(old, tree []types.OutlineNode, contents map[string]types.SectionContent) ([]types.OutlineNode, map[string]types.SectionContent, map[string]string) {
	byTitle := make(map[string][]types.OutlineNode)
	outline.Walk(old, func(n types.OutlineNode) {
		key := titleKey(n.Title)
		byTitle[key] = append(byTitle[key], n)
	})

	ids := make(map[string]string)
	statuses := make(map[string]types.SectionStatus)
	outline.Walk(tree, func(n types.OutlineNode) {
		key := titleKey(n.Title)
		queue := byTitle[key]
		if len(queue) == 0 {
			return
		}
		prev := queue[0]
		byTitle[key] = queue[1:]
		ids[prev.ID] = n.ID
		statuses[n.ID] = prev.Status
	})

	for id, status := range statuses {
		tree = outline.SetStatus(tree, id, status)
	}

	next := make(map[string]types.SectionContent, len(contents))
	for oldID, c := range contents {
		newID, ok := ids[oldID]
		if !ok {
			continue
		}
		refs := make([]string, 0, len(c.ContextIDs))
		for _, ref := range c.ContextIDs {
			if r, ok := ids[ref]; ok && r != newID {
				refs = append(refs, r)
			}
		}
		c.ContextIDs = refs
		c.Messages = slices.Clone(c.Messages)
		if newID != oldID {
			// The persona was tailored to the old position in the tree.
			c.SystemPrompt = ""
		}
		next[newID] = c
	}
	return tree, next, ids
}

func titleKey(title string) string {
	return strings.ToLower(outline.StripNumbering(title))
}
