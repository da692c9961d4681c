package api

// SpawnAgentRequest is the HTTP request body for POST /agents.
type SpawnAgentRequest struct {
	IssueID     string `json:"issueId"`
	ProjectID   string `json:"projectId,omitempty"`
	Workspace   string `json:"workspace,omitempty"`
	RuntimeKind string `json:"runtimeKind,omitempty"`
	Model       string `json:"model,omitempty"`
}

// MessageRequest is the body for POST /agents/:id/message.
type MessageRequest struct {
	Message string `json:"message"`
}

// PokeRequest is the body for POST /agents/:id/poke.
type PokeRequest struct {
	Message string `json:"message,omitempty"`
}

// ResumeRequest is the body for POST /agents/:id/resume.
type ResumeRequest struct {
	Message string `json:"message,omitempty"`
}

// SuspendRequest is the body for POST /agents/:id/suspend.
type SuspendRequest struct {
	SessionID string `json:"sessionId,omitempty"`
}

// HandoffRequest is the body for POST /agents/:id/handoff.
type HandoffRequest struct {
	ToModel string `json:"toModel"`
	Reason  string `json:"reason,omitempty"`
}

// AnswerQuestionRequest is the body for POST /agents/:id/answer-question.
type AnswerQuestionRequest struct {
	Answers []string `json:"answers"`
}

// HeartbeatRequest is the body posted by the worker-side hook sink,
// POST /agents/:id/heartbeat (spec.md §6 hook contract).
type HeartbeatRequest struct {
	State     string `json:"state"`
	Tool      string `json:"tool,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// QueueItemRequest is the body for POST /specialists/:name/queue.
type QueueItemRequest struct {
	Kind         string `json:"kind,omitempty"`
	Priority     string `json:"priority,omitempty"`
	Source       string `json:"source,omitempty"`
	IssueID      string `json:"issueId"`
	Workspace    string `json:"workspace"`
	Branch       string `json:"branch,omitempty"`
	CustomPrompt string `json:"customPrompt,omitempty"`
}

// ReorderQueueRequest is the body for PUT /specialists/:name/queue/reorder.
type ReorderQueueRequest struct {
	IDs []string `json:"ids"`
}

// SpecialistDoneRequest is the body for POST /specialists/done, the
// completion-report endpoint a specialist session calls on finishing work.
type SpecialistDoneRequest struct {
	Specialist string `json:"specialist"`
	IssueID    string `json:"issueId"`
	Status     string `json:"status"`
	Notes      string `json:"notes,omitempty"`
}

// StartReviewRequest is the body for POST /workspaces/:issueId/review.
type StartReviewRequest struct {
	Workspace string `json:"workspace"`
	Branch    string `json:"branch,omitempty"`
}

// ApproveRequest is the body for POST /workspaces/:issueId/approve.
type ApproveRequest struct {
	Workspace string `json:"workspace"`
	Branch    string `json:"branch,omitempty"`
}
