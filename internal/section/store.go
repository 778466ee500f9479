// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package section holds per-section content keyed by outline node id.
//
// Store is a copy-on-write value: every update returns a new Store and
// leaves the receiver untouched, so a snapshot handed to the context
// assembler never changes underneath it. Reading a section that has never
// been visited returns the empty default rather than an error.
package section

import (
	"maps"
	"slices"

	"github.com/pdiddy/docflow/pkg/types"
)

// Store maps section ids to their content.
type Store struct {
	entries map[string]types.SectionContent
}

// NewStore wraps an existing map. The map is copied so later changes by the
// caller do not leak into the store.
func NewStore(entries map[string]types.SectionContent) Store {
	return Store{entries: maps.Clone(entries)}
}

// Get returns the content for id, or the empty default when the section has
// not been visited.
func (s Store) Get(id string) types.SectionContent {
	if c, ok := s.entries[id]; ok {
		return c
	}
	return Empty()
}

// Has reports whether id has a stored entry.
func (s Store) Has(id string) bool {
	_, ok := s.entries[id]
	return ok
}

// Len returns the number of stored entries.
func (s Store) Len() int {
	return len(s.entries)
}

// Map returns a copy of the underlying entries.
func (s Store) Map() map[string]types.SectionContent {
	if s.entries == nil {
		return map[string]types.SectionContent{}
	}
	return maps.Clone(s.entries)
}

// Empty returns the default content of a section visited for the first time.
func Empty() types.SectionContent {
	return types.SectionContent{
		Messages:        []types.Message{},
		ContextIDs:      []string{},
		SessionFiles:    []types.File{},
		ResearchResults: []types.ResearchResult{},
	}
}

// Ensure returns a store in which id has an entry, creating the default
// entry when it is missing.
func (s Store) Ensure(id string) Store {
	if s.Has(id) {
		return s
	}
	return s.put(id, Empty())
}

// Update applies fn to the content of id and returns the new store.
func (s Store) Update(id string, fn func(types.SectionContent) types.SectionContent) Store {
	return s.put(id, fn(s.Get(id)))
}

// SetContent replaces the draft text of a section.
func (s Store) SetContent(id, content string) Store {
	return s.Update(id, func(c types.SectionContent) types.SectionContent {
		c.Content = content
		return c
	})
}

// AppendMessages appends messages to a section's conversation.
func (s Store) AppendMessages(id string, msgs ...types.Message) Store {
	return s.Update(id, func(c types.SectionContent) types.SectionContent {
		c.Messages = append(slices.Clip(c.Messages), msgs...)
		return c
	})
}

// SetContextIDs replaces the cross-reference selection of a section. The
// section's own id, blanks, and duplicates are dropped.
func (s Store) SetContextIDs(id string, refs []string) Store {
	return s.Update(id, func(c types.SectionContent) types.SectionContent {
		c.ContextIDs = cleanRefs(id, refs)
		return c
	})
}

// ToggleContext adds or removes refID from a section's cross-references.
// A section can never reference itself; such a request leaves the store
// unchanged.
func (s Store) ToggleContext(id, refID string, included bool) Store {
	if refID == id || refID == "" {
		return s
	}
	return s.Update(id, func(c types.SectionContent) types.SectionContent {
		refs := slices.DeleteFunc(slices.Clone(c.ContextIDs), func(r string) bool { return r == refID })
		if included {
			refs = append(refs, refID)
		}
		c.ContextIDs = cleanRefs(id, refs)
		return c
	})
}

// SetSessionFiles replaces a section's session uploads.
func (s Store) SetSessionFiles(id string, files []types.File) Store {
	return s.Update(id, func(c types.SectionContent) types.SectionContent {
		c.SessionFiles = slices.Clone(files)
		if c.SessionFiles == nil {
			c.SessionFiles = []types.File{}
		}
		return c
	})
}

// SetResearch replaces a section's research results, keeping at most
// types.MaxResearchResults in their original order.
func (s Store) SetResearch(id string, results []types.ResearchResult) Store {
	if len(results) > types.MaxResearchResults {
		results = results[:types.MaxResearchResults]
	}
	return s.Update(id, func(c types.SectionContent) types.SectionContent {
		c.ResearchResults = slices.Clone(results)
		if c.ResearchResults == nil {
			c.ResearchResults = []types.ResearchResult{}
		}
		return c
	})
}

// SetSystemPrompt caches the tailored Writer persona of a section.
func (s Store) SetSystemPrompt(id, prompt string) Store {
	return s.Update(id, func(c types.SectionContent) types.SectionContent {
		c.SystemPrompt = prompt
		return c
	})
}

// InvalidateSystemPrompt clears the cached persona so it is recomputed on
// the next visit.
func (s Store) InvalidateSystemPrompt(id string) Store {
	return s.SetSystemPrompt(id, "")
}

// ClearSessionFiles drops every section's session uploads. Persisted
// snapshots are taken from the result.
func (s Store) ClearSessionFiles() Store {
	out := make(map[string]types.SectionContent, len(s.entries))
	for id, c := range s.entries {
		c.SessionFiles = []types.File{}
		out[id] = c
	}
	return Store{entries: out}
}

func (s Store) put(id string, c types.SectionContent) Store {
	out := make(map[string]types.SectionContent, len(s.entries)+1)
	maps.Copy(out, s.entries)
	out[id] = c
	return Store{entries: out}
}

func cleanRefs(self string, refs []string) []string {
	out := make([]string, 0, len(refs))
	seen := make(map[string]bool, len(refs))
	for _, r := range refs {
		if r == "" || r == self || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}
