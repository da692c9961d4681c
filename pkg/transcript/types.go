package transcript

import "time"

// entryLine is the on-disk shape of a single JSONL transcript line. Real
// transcripts are produced by the upstream agent process and are append-only;
// this struct is deliberately permissive since the engine only ever reads,
// never writes, these files (spec.md §4.3: "never mutates transcripts").
type entryLine struct {
	Type      string    `json:"type"` // "assistant", "user", "system"
	Timestamp time.Time `json:"timestamp"`
	Message   *message  `json:"message,omitempty"`
}

type message struct {
	Model   string         `json:"model,omitempty"`
	Content []contentBlock `json:"content,omitempty"`
	Usage   *usage         `json:"usage,omitempty"`
}

type contentBlock struct {
	Type      string `json:"type"` // "text", "tool_use", "tool_result"
	ID        string `json:"id,omitempty"`         // tool_use id
	ToolUseID string `json:"tool_use_id,omitempty"` // tool_result's matching id
	Name      string `json:"name,omitempty"`        // tool_use name
	Input     any    `json:"input,omitempty"`
}

type usage struct {
	InputTokens         int `json:"input_tokens"`
	OutputTokens        int `json:"output_tokens"`
	CacheReadTokens     int `json:"cache_read_input_tokens"`
	CacheCreationTokens int `json:"cache_creation_input_tokens"`
}

// Usage is the aggregated token accounting returned by CollectUsage,
// summed across every transcript file in a workspace (spec.md §4.3).
type Usage struct {
	InputTokens  int
	OutputTokens int
	CacheRead    int
	CacheWrite   int
	Model        string // first observed non-empty model identifier
}

// QuestionOption is one structured multi-choice answer.
type QuestionOption struct {
	Label       string `json:"label"`
	Description string `json:"description"`
}

// Question is one "question-for-user" payload embedded in a tool-use input.
type Question struct {
	Prompt      string           `json:"prompt"`
	Options     []QuestionOption `json:"options"`
	MultiSelect bool             `json:"multiSelect"`
}

// PendingQuestion is a tool-use named "question-for-user" that has not yet
// acquired a matching tool-result (spec.md §4.3, §5.8).
type PendingQuestion struct {
	ToolID    string
	Timestamp time.Time
	Questions []Question
}

const questionToolName = "question-for-user"
