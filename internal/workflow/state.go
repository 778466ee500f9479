// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package workflow drives a docflow project through its outline and
// writing lifecycle.
//
// State is an immutable value. Reduce applies one Command and returns the
// next State; it performs no I/O. Engine is the single writer around
// Reduce: it snapshots the state, runs agent calls without holding its
// lock, and applies each result with an Apply command keyed by flow and
// section id, so a result lands on the current state rather than on the
// snapshot it was computed from.
package workflow

import (
	"errors"
	"maps"

	"github.com/pdiddy/docflow/internal/outline"
	"github.com/pdiddy/docflow/internal/section"
	"github.com/pdiddy/docflow/pkg/types"
)

var (
	// ErrNoFlow reports a command that needs an active flow when none is.
	ErrNoFlow = errors.New("no active flow")

	// ErrNoOutline reports a section command issued before finalize.
	ErrNoOutline = errors.New("outline has not been finalized")

	// ErrNoSection reports an unknown or unselected section.
	ErrNoSection = errors.New("no such section")

	// ErrBusy reports an invocation for a target that is already thinking.
	ErrBusy = errors.New("agent is busy")
)

// Target identifies what an agent invocation works on. Outliner and parser
// targets leave SectionID empty.
type Target struct {
	Kind      types.AgentKind
	FlowID    string
	SectionID string
}

// State is the whole workflow state.
type State struct {
	Project types.Project

	// ActiveFlow is the id of the flow commands apply to.
	ActiveFlow string

	// Selected is the id of the selected section in the active flow.
	Selected string

	// Agents holds the status of every target that has been invoked.
	// Targets that are absent are idle.
	Agents map[Target]types.AgentStatus
}

// NewState returns the state for a project. The first flow becomes active
// when activeFlow does not name one.
func NewState(p types.Project, activeFlow string) State {
	s := State{Project: p, ActiveFlow: activeFlow}
	if p.FlowIndex(activeFlow) < 0 {
		s.ActiveFlow = ""
		if len(p.Flows) > 0 {
			s.ActiveFlow = p.Flows[0].ID
		}
	}
	return s
}

// Flow returns the flow with id.
func (s State) Flow(id string) (types.Flow, bool) {
	i := s.Project.FlowIndex(id)
	if i < 0 {
		return types.Flow{}, false
	}
	return s.Project.Flows[i], true
}

// Active returns the active flow or ErrNoFlow.
func (s State) Active() (types.Flow, error) {
	f, ok := s.Flow(s.ActiveFlow)
	if !ok {
		return types.Flow{}, ErrNoFlow
	}
	return f, nil
}

// AgentStatus returns the status of t; unknown targets are idle.
func (s State) AgentStatus(t Target) types.AgentStatus {
	if st, ok := s.Agents[t]; ok {
		return st
	}
	return types.AgentIdle
}

// Sections returns the content store of a flow.
func Sections(f types.Flow) section.Store {
	return section.NewStore(f.Contents)
}

// Node returns the outline node id in flow f, checking the outline exists.
func Node(f types.Flow, id string) (types.OutlineNode, error) {
	if !f.Finalized() {
		return types.OutlineNode{}, ErrNoOutline
	}
	n, ok := outline.Find(f.Outline, id)
	if !ok {
		return types.OutlineNode{}, ErrNoSection
	}
	return n, nil
}

// withAgent returns s with t set to status.
func (s State) withAgent(t Target, status types.AgentStatus) State {
	agents := maps.Clone(s.Agents)
	if agents == nil {
		agents = make(map[Target]types.AgentStatus)
	}
	agents[t] = status
	s.Agents = agents
	return s
}

// withFlow returns s with flow id replaced by fn's result. Other flows keep
// their values.
func (s State) withFlow(id string, fn func(types.Flow) (types.Flow, error)) (State, error) {
	i := s.Project.FlowIndex(id)
	if i < 0 {
		return s, ErrNoFlow
	}
	f, err := fn(s.Project.Flows[i])
	if err != nil {
		return s, err
	}
	flows := make([]types.Flow, len(s.Project.Flows))
	copy(flows, s.Project.Flows)
	flows[i] = f
	s.Project.Flows = flows
	return s, nil
}

// withSections applies fn to the content store of section sectionID in flow
// flowID. The section must exist in the finalized outline.
func (s State) withSections(flowID, sectionID string, fn func(section.Store) section.Store) (State, error) {
	return s.withFlow(flowID, func(f types.Flow) (types.Flow, error) {
		if _, err := Node(f, sectionID); err != nil {
			return f, err
		}
		f.Contents = fn(Sections(f)).Map()
		return f, nil
	})
}
