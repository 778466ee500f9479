// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package outline

import (
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/docflow/pkg/types"
)

// maxHeadingDepth is the deepest ATX heading Markdown supports.
const maxHeadingDepth = 6

// Export renders every completed section with non-blank content as Markdown,
// in document order. A section's heading depth is its level plus one. An
// incomplete section is left out, but its children are still visited, so a
// completed sub-section appears even when its parent does not. Exporting
// the same tree and contents twice yields identical bytes.
func Export(tree []types.OutlineNode, contents map[string]types.SectionContent) string {
	var sections []string
	Walk(tree, func(n types.OutlineNode) {
		if n.Status != types.StatusCompleted {
			return
		}
		c := contents[n.ID]
		if !c.HasContent() {
			return
		}
		depth := n.Level + 1
		if depth > maxHeadingDepth {
			depth = maxHeadingDepth
		}
		sections = append(sections, fmt.Sprintf("%s %s\n\n%s",
			strings.Repeat("#", depth), n.Title, strings.TrimSpace(c.Content)))
	})
	if len(sections) == 0 {
		return ""
	}
	return strings.Join(sections, "\n\n") + "\n"
}

// outlineFile is the on-disk YAML layout for an outline.
type outlineFile struct {
	Sections []types.OutlineNode `yaml:"sections"`
}

// LoadYAML reads an outline from a YAML file. Nodes without ids are treated
// as a fresh outline and receive metadata; nodes with ids must satisfy
// Validate.
func LoadYAML(path string) ([]types.OutlineNode, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading outline: %w", err)
	}
	var f outlineFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing outline: %w", err)
	}
	if len(f.Sections) == 0 {
		return nil, fmt.Errorf("outline %s has no sections", path)
	}
	if f.Sections[0].ID == "" {
		return AttachMetadata(f.Sections), nil
	}
	if err := Validate(f.Sections); err != nil {
		return nil, fmt.Errorf("validating outline: %w", err)
	}
	return f.Sections, nil
}

// SaveYAML writes an outline to a YAML file.
func SaveYAML(path string, tree []types.OutlineNode) error {
	data, err := yaml.Marshal(outlineFile{Sections: tree})
	if err != nil {
		return fmt.Errorf("marshaling outline: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
