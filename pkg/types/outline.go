// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the data model shared by the docflow packages:
// outline nodes, per-section content, flows, projects, and configuration.
package types

// SectionStatus tracks a section's progress through the writing workflow.
// Transitions only move forward: outline, then writing, then completed.
type SectionStatus string

const (
	StatusOutline   SectionStatus = "outline"
	StatusWriting   SectionStatus = "writing"
	StatusCompleted SectionStatus = "completed"
)

// rank orders statuses so callers can check forward progress.
func (s SectionStatus) rank() int {
	switch s {
	case StatusWriting:
		return 1
	case StatusCompleted:
		return 2
	default:
		return 0
	}
}

// Before reports whether s comes strictly before other in the lifecycle.
func (s SectionStatus) Before(other SectionStatus) bool {
	return s.rank() < other.rank()
}

// Valid reports whether s is one of the known statuses.
func (s SectionStatus) Valid() bool {
	switch s {
	case StatusOutline, StatusWriting, StatusCompleted:
		return true
	}
	return false
}

// OutlineNode is one heading in a document outline.
type OutlineNode struct {
	// ID is the hierarchical path of the node ("1", "2.1", "2.1.3"). It is
	// assigned when the outline is finalized and never reused.
	ID string `json:"id" yaml:"id"`

	// Title is the heading text.
	Title string `json:"title" yaml:"title"`

	// Level is the depth of the node; top-level nodes are 0.
	Level int `json:"level" yaml:"level"`

	// Status is the node's lifecycle position.
	Status SectionStatus `json:"status" yaml:"status"`

	// Children are the sub-sections in document order.
	Children []OutlineNode `json:"children,omitempty" yaml:"children,omitempty"`
}
