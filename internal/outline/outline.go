// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package outline implements the document outline tree: lookup, status
// updates with structural sharing, metadata attachment, and the Markdown and
// YAML codecs used to move outlines in and out of the workflow.
//
// Every function treats its input as immutable. Updates return a new forest
// that copies only the path from the root to the changed node; untouched
// subtrees share their backing arrays with the input.
package outline

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/pdiddy/docflow/pkg/types"
)

// Find returns the node with the given id using a depth-first search.
func Find(tree []types.OutlineNode, id string) (types.OutlineNode, bool) {
	for _, n := range tree {
		if n.ID == id {
			return n, true
		}
		if found, ok := Find(n.Children, id); ok {
			return found, true
		}
	}
	return types.OutlineNode{}, false
}

// FindParent returns the parent of the node with the given id. Top-level
// nodes and unknown ids report false.
func FindParent(tree []types.OutlineNode, id string) (types.OutlineNode, bool) {
	for _, n := range tree {
		for _, c := range n.Children {
			if c.ID == id {
				return n, true
			}
		}
		if found, ok := FindParent(n.Children, id); ok {
			return found, true
		}
	}
	return types.OutlineNode{}, false
}

// SetStatus returns a tree in which the node with the given id has the
// given status. Only the nodes on the path to the target are copied. An
// unknown id returns the input unchanged.
func SetStatus(tree []types.OutlineNode, id string, status types.SectionStatus) []types.OutlineNode {
	out, ok := update(tree, id, func(n types.OutlineNode) types.OutlineNode {
		n.Status = status
		return n
	})
	if !ok {
		return tree
	}
	return out
}

// Advance moves the node forward to status. A request that would keep the
// status or move it backwards returns the input unchanged.
func Advance(tree []types.OutlineNode, id string, status types.SectionStatus) []types.OutlineNode {
	n, ok := Find(tree, id)
	if !ok || !n.Status.Before(status) {
		return tree
	}
	return SetStatus(tree, id, status)
}

func update(nodes []types.OutlineNode, id string, fn func(types.OutlineNode) types.OutlineNode) ([]types.OutlineNode, bool) {
	for i := range nodes {
		if nodes[i].ID == id {
			out := slices.Clone(nodes)
			out[i] = fn(nodes[i])
			return out, true
		}
		if children, ok := update(nodes[i].Children, id, fn); ok {
			out := slices.Clone(nodes)
			out[i].Children = children
			return out, true
		}
	}
	return nil, false
}

// Walk calls fn for every node in document (pre-)order.
func Walk(tree []types.OutlineNode, fn func(types.OutlineNode)) {
	for _, n := range tree {
		fn(n)
		Walk(n.Children, fn)
	}
}

// IDs returns every node id in document order.
func IDs(tree []types.OutlineNode) []string {
	var ids []string
	Walk(tree, func(n types.OutlineNode) {
		ids = append(ids, n.ID)
	})
	return ids
}

// Count returns the number of nodes in the forest.
func Count(tree []types.OutlineNode) int {
	total := 0
	Walk(tree, func(types.OutlineNode) { total++ })
	return total
}

// AttachMetadata returns a copy of the forest with ids, levels, and the
// initial status assigned. A node's id is its parent's id followed by its
// 1-based position among its siblings. The pass is deterministic: the same
// input shape always yields the same ids.
func AttachMetadata(tree []types.OutlineNode) []types.OutlineNode {
	return attach(tree, "", 0)
}

func attach(nodes []types.OutlineNode, parentID string, level int) []types.OutlineNode {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]types.OutlineNode, len(nodes))
	for i, n := range nodes {
		id := strconv.Itoa(i + 1)
		if parentID != "" {
			id = parentID + "." + id
		}
		out[i] = types.OutlineNode{
			ID:       id,
			Title:    strings.TrimSpace(n.Title),
			Level:    level,
			Status:   types.StatusOutline,
			Children: attach(n.Children, id, level+1),
		}
	}
	return out
}

// NumberTitles returns a copy of the forest whose titles carry the node's
// hierarchical number ("2.1. Background"). Any numbering already present on
// a title is replaced.
func NumberTitles(tree []types.OutlineNode) []types.OutlineNode {
	if len(tree) == 0 {
		return nil
	}
	out := make([]types.OutlineNode, len(tree))
	for i, n := range tree {
		n.Title = n.ID + ". " + StripNumbering(n.Title)
		n.Children = NumberTitles(n.Children)
		out[i] = n
	}
	return out
}

// StripNumbering removes a leading hierarchical number such as "1.", "2.3"
// or "4)" from a title. A bare number without a dot or parenthesis ("2023
// in Review") is part of the title and is kept.
func StripNumbering(title string) string {
	t := strings.TrimSpace(title)
	i := 0
	dotted := false
	for i < len(t) && (t[i] >= '0' && t[i] <= '9' || t[i] == '.') {
		if t[i] == '.' {
			dotted = true
		}
		i++
	}
	if i == 0 || i == len(t) {
		return t
	}
	switch {
	case t[i] == ')':
		i++
	case t[i] == ' ' && dotted:
	default:
		return t
	}
	return strings.TrimSpace(t[i:])
}

// Flatten renders the forest as indented, title-only text, two spaces per
// level. The tailored-prompt agent receives the outline in this form.
func Flatten(tree []types.OutlineNode) string {
	var b strings.Builder
	Walk(tree, func(n types.OutlineNode) {
		b.WriteString(strings.Repeat("  ", n.Level))
		b.WriteString(n.Title)
		b.WriteByte('\n')
	})
	return b.String()
}

// Validate checks the structural invariants of a finalized forest: ids are
// unique and derived from sibling positions, levels follow the parent chain,
// and every status is known.
func Validate(tree []types.OutlineNode) error {
	seen := make(map[string]bool)
	return validate(tree, "", 0, seen)
}

func validate(nodes []types.OutlineNode, parentID string, level int, seen map[string]bool) error {
	for i, n := range nodes {
		want := strconv.Itoa(i + 1)
		if parentID != "" {
			want = parentID + "." + want
		}
		if n.ID != want {
			return fmt.Errorf("node %q: id does not match its position (want %q)", n.ID, want)
		}
		if seen[n.ID] {
			return fmt.Errorf("duplicate node id %q", n.ID)
		}
		seen[n.ID] = true
		if n.Level != level {
			return fmt.Errorf("node %q: level %d, want %d", n.ID, n.Level, level)
		}
		if !n.Status.Valid() {
			return fmt.Errorf("node %q: invalid status %q", n.ID, n.Status)
		}
		if err := validate(n.Children, n.ID, level+1, seen); err != nil {
			return err
		}
	}
	return nil
}
