package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Publisher publishes domain events for WebSocket delivery. Each public
// method accepts a specific typed payload struct from payloads.go,
// marshals it, and hands it to the ConnectionManager for ring-buffered
// catchup storage plus immediate broadcast to current subscribers.
type Publisher struct {
	manager *ConnectionManager
}

// NewPublisher constructs a Publisher over an existing ConnectionManager.
func NewPublisher(manager *ConnectionManager) *Publisher {
	return &Publisher{manager: manager}
}

func now() string { return time.Now().UTC().Format(time.RFC3339Nano) }

func (p *Publisher) publish(channel string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	p.manager.Publish(channel, data)
	return nil
}

// PublishAgentHealthChanged fans out to both the per-agent channel and the
// fleet-wide dashboard channel.
func (p *Publisher) PublishAgentHealthChanged(agentID, issueID, from, to string) error {
	payload := AgentHealthChangedPayload{
		Type: EventTypeAgentHealthChanged, AgentID: agentID, IssueID: issueID,
		From: from, To: to, Timestamp: now(),
	}
	if err := p.publish(AgentChannel(agentID), payload); err != nil {
		return err
	}
	return p.publish(FleetChannel, payload)
}

// PublishAgentSpawned announces a new worker agent.
func (p *Publisher) PublishAgentSpawned(agentID, issueID string) error {
	payload := AgentLifecyclePayload{Type: EventTypeAgentSpawned, AgentID: agentID, IssueID: issueID, Timestamp: now()}
	return p.publish(FleetChannel, payload)
}

// PublishAgentKilled announces a worker agent's termination.
func (p *Publisher) PublishAgentKilled(agentID, issueID string) error {
	payload := AgentLifecyclePayload{Type: EventTypeAgentKilled, AgentID: agentID, IssueID: issueID, Timestamp: now()}
	return p.publish(FleetChannel, payload)
}

// PublishAgentHandoff announces a model handoff.
func (p *Publisher) PublishAgentHandoff(agentID, toModel, reason string) error {
	payload := AgentHandoffPayload{Type: EventTypeAgentHandoff, AgentID: agentID, ToModel: toModel, Reason: reason, Timestamp: now()}
	return p.publish(AgentChannel(agentID), payload)
}

// PublishPendingQuestion announces a newly observed unanswered question.
func (p *Publisher) PublishPendingQuestion(agentID, toolID, prompt string) error {
	payload := PendingQuestionPayload{Type: EventTypePendingQuestion, AgentID: agentID, ToolID: toolID, Prompt: prompt, Timestamp: now()}
	return p.publish(AgentChannel(agentID), payload)
}

// PublishPipelineStatusChanged announces a review/test/merge transition.
func (p *Publisher) PublishPipelineStatusChanged(issueID, stage, status, notes string, readyForMerge bool) error {
	payload := PipelineStatusChangedPayload{
		Type: EventTypePipelineStatusChange, IssueID: issueID, Stage: stage,
		Status: status, Notes: notes, ReadyMerge: readyForMerge, Timestamp: now(),
	}
	if err := p.publish(PipelineChannel(issueID), payload); err != nil {
		return err
	}
	return p.publish(FleetChannel, payload)
}

// PublishSpecialistWoke announces a specialist waking with a task.
func (p *Publisher) PublishSpecialistWoke(name, issueID, priority string) error {
	payload := SpecialistActivityPayload{Type: EventTypeSpecialistWoke, Name: name, IssueID: issueID, Priority: priority, Timestamp: now()}
	return p.publish(FleetChannel, payload)
}

// PublishSpecialistQueued announces a work item being enqueued because the
// specialist was busy.
func (p *Publisher) PublishSpecialistQueued(name, issueID, priority string) error {
	payload := SpecialistActivityPayload{Type: EventTypeSpecialistQueued, Name: name, IssueID: issueID, Priority: priority, Timestamp: now()}
	return p.publish(FleetChannel, payload)
}
