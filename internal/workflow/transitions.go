// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"fmt"

	"k8s.io/klog/v2"

	"github.com/pdiddy/docflow/pkg/types"
)

// transition is one allowed edge of a lifecycle.
type transition[S comparable] struct {
	From S
	To   S
}

// machine validates transitions against an explicit table.
type machine[S ~string] struct {
	name    string
	allowed map[transition[S]]bool
}

func newMachine[S ~string](name string, edges ...transition[S]) machine[S] {
	m := machine[S]{name: name, allowed: make(map[transition[S]]bool, len(edges))}
	for _, e := range edges {
		m.allowed[e] = true
	}
	return m
}

// CanTransition reports whether from -> to is in the table. Staying in the
// same state is never a transition.
func (m machine[S]) CanTransition(from, to S) bool {
	if from == to {
		return false
	}
	return m.allowed[transition[S]{From: from, To: to}]
}

// Validate returns an *InvalidTransitionError when from -> to is not allowed.
func (m machine[S]) Validate(from, to S) error {
	if !m.CanTransition(from, to) {
		klog.V(4).Infof("%s transition rejected: %s -> %s", m.name, from, to)
		return &InvalidTransitionError{Machine: m.name, From: string(from), To: string(to)}
	}
	return nil
}

// SectionLifecycle is the section lifecycle: outline -> writing -> completed,
// forward only. A section whose content arrived outside the Writer (an
// imported outline) may be committed straight from outline.
var SectionLifecycle = newMachine[types.SectionStatus]("section",
	transition[types.SectionStatus]{types.StatusOutline, types.StatusWriting},
	transition[types.SectionStatus]{types.StatusWriting, types.StatusCompleted},
	transition[types.SectionStatus]{types.StatusOutline, types.StatusCompleted},
)

// AgentLifecycle is the agent lifecycle: idle -> thinking -> idle or error. Error
// accepts the next invocation like idle.
var AgentLifecycle = newMachine[types.AgentStatus]("agent",
	transition[types.AgentStatus]{types.AgentIdle, types.AgentThinking},
	transition[types.AgentStatus]{types.AgentThinking, types.AgentIdle},
	transition[types.AgentStatus]{types.AgentThinking, types.AgentError},
	transition[types.AgentStatus]{types.AgentError, types.AgentThinking},
)

// InvalidTransitionError reports a lifecycle edge that is not in the table.
type InvalidTransitionError struct {
	Machine string
	From    string
	To      string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s state transition: %s -> %s", e.Machine, e.From, e.To)
}
