package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAgentChannel(t *testing.T) {
	tests := []struct {
		name    string
		agentID string
		want    string
	}{
		{name: "formats agent channel correctly", agentID: "agent-pan-100", want: "agent:agent-pan-100"},
		{name: "handles empty string", agentID: "", want: "agent:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AgentChannel(tt.agentID))
		})
	}
}

func TestPipelineChannel(t *testing.T) {
	tests := []struct {
		name    string
		issueID string
		want    string
	}{
		{name: "formats pipeline channel correctly", issueID: "PAN-100", want: "pipeline:PAN-100"},
		{name: "handles empty string", issueID: "", want: "pipeline:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PipelineChannel(tt.issueID))
		})
	}
}

func TestEventTypeConstants(t *testing.T) {
	types := []string{
		EventTypeAgentHealthChanged,
		EventTypeAgentSpawned,
		EventTypeAgentKilled,
		EventTypeAgentHandoff,
		EventTypePendingQuestion,
		EventTypePipelineStatusChange,
		EventTypeSpecialistWoke,
		EventTypeSpecialistQueued,
	}

	seen := make(map[string]bool)
	for _, typ := range types {
		assert.NotEmpty(t, typ, "event type should not be empty")
		assert.False(t, seen[typ], "duplicate event type: %s", typ)
		seen[typ] = true
	}
}

func TestFleetChannelConstant(t *testing.T) {
	assert.Equal(t, "fleet", FleetChannel)
}
