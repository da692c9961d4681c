package events

// AgentHealthChangedPayload is the payload for agent.health_changed
// events, published by the Patrol Loop (C9) whenever Classify returns a
// different Status than last tick.
type AgentHealthChangedPayload struct {
	Type      string `json:"type"` // always EventTypeAgentHealthChanged
	AgentID   string `json:"agent_id"`
	IssueID   string `json:"issue_id,omitempty"`
	From      string `json:"from"`
	To        string `json:"to"`
	Timestamp string `json:"timestamp"` // RFC3339Nano
}

// AgentLifecyclePayload covers spawn/kill events for a worker agent.
type AgentLifecyclePayload struct {
	Type      string `json:"type"` // EventTypeAgentSpawned or EventTypeAgentKilled
	AgentID   string `json:"agent_id"`
	IssueID   string `json:"issue_id,omitempty"`
	Timestamp string `json:"timestamp"`
}

// AgentHandoffPayload is published when the Worker Agent Supervisor (C7)
// records a model handoff.
type AgentHandoffPayload struct {
	Type      string `json:"type"` // always EventTypeAgentHandoff
	AgentID   string `json:"agent_id"`
	ToModel   string `json:"to_model"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

// PendingQuestionPayload is published when the Pending-Question Broker
// (C11) observes a new unanswered question in an agent's transcript.
type PendingQuestionPayload struct {
	Type      string `json:"type"` // always EventTypePendingQuestion
	AgentID   string `json:"agent_id"`
	ToolID    string `json:"tool_id"`
	Prompt    string `json:"prompt"`
	Timestamp string `json:"timestamp"`
}

// PipelineStatusChangedPayload is published by the Pipeline Controller
// (C6) on every review/test/merge status transition.
type PipelineStatusChangedPayload struct {
	Type        string `json:"type"` // always EventTypePipelineStatusChange
	IssueID     string `json:"issue_id"`
	Stage       string `json:"stage"` // "review", "test", or "merge"
	Status      string `json:"status"`
	Notes       string `json:"notes,omitempty"`
	ReadyMerge  bool   `json:"ready_for_merge"`
	Timestamp   string `json:"timestamp"`
}

// SpecialistActivityPayload is published by the Specialist Registry (C5)
// whenever a specialist wakes with a task or enqueues one for later.
type SpecialistActivityPayload struct {
	Type      string `json:"type"` // EventTypeSpecialistWoke or EventTypeSpecialistQueued
	Name      string `json:"name"`
	IssueID   string `json:"issue_id,omitempty"`
	Priority  string `json:"priority,omitempty"`
	Timestamp string `json:"timestamp"`
}
