// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package outline

import (
	"strings"

	"github.com/pdiddy/docflow/pkg/types"
)

// ParseMarkdown converts a hyphen-and-indentation outline into a forest with
// metadata attached and hierarchical numbers injected into the titles. It is
// the offline counterpart of the Parse agent and follows the same output
// contract.
//
// List items start with "-", "*" or "+". A tab counts as four columns. An
// item nests under the closest preceding item with a smaller indentation.
// Lines that are not list items are ignored, except Markdown headings
// ("#", "##", ...), which open a new top-level or nested item by depth.
func ParseMarkdown(text string) []types.OutlineNode {
	type pnode struct {
		title    string
		indent   int
		children []*pnode
	}

	root := &pnode{indent: headingIndent - 1}
	stack := []*pnode{root}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimRight(raw, " \t\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		indent, rest := measureIndent(line)
		title, ok := listItem(rest)
		if !ok {
			depth, heading, isHeading := headingItem(rest)
			if !isHeading {
				continue
			}
			// Headings sit above any list indentation and nest by depth.
			title = heading
			indent = headingIndent + depth
		}
		if title == "" {
			continue
		}

		for len(stack) > 1 && stack[len(stack)-1].indent >= indent {
			stack = stack[:len(stack)-1]
		}
		parent := stack[len(stack)-1]
		n := &pnode{title: title, indent: indent}
		parent.children = append(parent.children, n)
		stack = append(stack, n)
	}

	var convert func(nodes []*pnode) []types.OutlineNode
	convert = func(nodes []*pnode) []types.OutlineNode {
		if len(nodes) == 0 {
			return nil
		}
		out := make([]types.OutlineNode, len(nodes))
		for i, n := range nodes {
			out[i] = types.OutlineNode{Title: n.title, Children: convert(n.children)}
		}
		return out
	}

	return NumberTitles(AttachMetadata(convert(root.children)))
}

// headingIndent places headings before every list indentation so list items
// that follow a heading nest beneath it.
const headingIndent = -10

// measureIndent returns the indentation width of line and the remainder.
func measureIndent(line string) (int, string) {
	width := 0
	for i, r := range line {
		switch r {
		case ' ':
			width++
		case '\t':
			width += 4
		default:
			return width, line[i:]
		}
	}
	return width, ""
}

// listItem reports whether s is a Markdown list item and returns its text
// with emphasis markers removed.
func listItem(s string) (string, bool) {
	if len(s) < 2 {
		return "", false
	}
	switch s[0] {
	case '-', '*', '+':
	default:
		return "", false
	}
	if s[1] != ' ' && s[1] != '\t' {
		return "", false
	}
	return cleanTitle(s[2:]), true
}

// headingItem reports whether s is an ATX heading and returns its depth
// (0 for "#") and text.
func headingItem(s string) (int, string, bool) {
	hashes := 0
	for hashes < len(s) && s[hashes] == '#' {
		hashes++
	}
	if hashes == 0 || hashes > 6 || hashes == len(s) || s[hashes] != ' ' {
		return 0, "", false
	}
	return hashes - 1, cleanTitle(s[hashes+1:]), true
}

// cleanTitle strips emphasis markers and surrounding whitespace.
func cleanTitle(s string) string {
	s = strings.ReplaceAll(s, "**", "")
	s = strings.ReplaceAll(s, "__", "")
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "*_"))
}

// RenderMarkdown renders a forest as a hyphen-and-indentation outline, two
// spaces per level. Parsing the result with ParseMarkdown yields the same
// shape.
func RenderMarkdown(tree []types.OutlineNode) string {
	var b strings.Builder
	Walk(tree, func(n types.OutlineNode) {
		b.WriteString(strings.Repeat("  ", n.Level))
		b.WriteString("- ")
		b.WriteString(n.Title)
		b.WriteByte('\n')
	})
	return b.String()
}
