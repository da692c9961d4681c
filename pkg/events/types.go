// Package events delivers real-time domain events — agent health
// transitions, pipeline status changes, specialist queue activity, and
// pending-question sightings — to WebSocket subscribers.
//
// The engine is a single process backed by flat files, not a database, so
// there is no cross-pod NOTIFY/LISTEN fan-out to do: Publisher broadcasts
// directly in-process and keeps a small ring buffer per channel so a
// client that reconnects moments later can catch up without a REST
// reload. The subscribe/unsubscribe/catchup wire protocol below is kept
// from the teacher's design — only the event source changed.
package events

// Event types.
const (
	EventTypeAgentHealthChanged   = "agent.health_changed"
	EventTypeAgentSpawned         = "agent.spawned"
	EventTypeAgentKilled          = "agent.killed"
	EventTypeAgentHandoff         = "agent.handoff"
	EventTypePendingQuestion      = "agent.pending_question"
	EventTypePipelineStatusChange = "pipeline.status_changed"
	EventTypeSpecialistWoke       = "specialist.woke"
	EventTypeSpecialistQueued     = "specialist.queued"
)

// FleetChannel is the channel every connection is implicitly interested in
// for a top-level dashboard view: every agent's health transitions and
// every pipeline's status transitions.
const FleetChannel = "fleet"

// AgentChannel returns the per-agent channel name for fine-grained
// subscriptions (an operator viewing a single agent's detail pane).
func AgentChannel(agentID string) string { return "agent:" + agentID }

// PipelineChannel returns the per-issue channel name for pipeline status
// events.
func PipelineChannel(issueID string) string { return "pipeline:" + issueID }

// ClientMessage is the JSON structure for client → server WebSocket
// messages (spec.md §6 does not mandate a wire format for the dashboard
// feed; this mirrors the teacher's subscribe/unsubscribe/catchup/ping
// protocol since nothing in the domain calls for a different one).
type ClientMessage struct {
	Action      string `json:"action"`                  // "subscribe", "unsubscribe", "catchup", "ping"
	Channel     string `json:"channel,omitempty"`       // e.g. "agent:agent-pan-100"
	LastEventID *int   `json:"last_event_id,omitempty"` // for catchup
}
