// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Role identifies the speaker of a model turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one message sent to the model.
type Turn struct {
	Role Role   `json:"role" yaml:"role"`
	Text string `json:"text" yaml:"text"`
}

// Citation is a grounding source returned alongside a model response.
type Citation struct {
	Title string `json:"title" yaml:"title"`
	URL   string `json:"url" yaml:"url"`
}

// AgentKind names an agent invocation kind. At most one invocation of a
// kind is in flight per target.
type AgentKind string

const (
	AgentOutliner   AgentKind = "outliner"
	AgentParser     AgentKind = "parser"
	AgentWriter     AgentKind = "writer"
	AgentResearcher AgentKind = "researcher"
	AgentTailor     AgentKind = "tailor"
)

// AgentStatus is the lifecycle of one agent target.
type AgentStatus string

const (
	AgentIdle     AgentStatus = "idle"
	AgentThinking AgentStatus = "thinking"
	AgentError    AgentStatus = "error"
)
