// Package journal is the Operation Journal (C10, spec.md §4.10): a
// durable record of in-flight multi-step operations (approve, close,
// containerize, start, review, merge) used for restart recovery and to
// let the UI display "in-flight" badges.
package journal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
)

// Status is an Operation's lifecycle state.
type Status string

const (
	StatusRunning Status = "running"
	StatusFailed  Status = "failed"
)

// Operation is one journal entry.
type Operation struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"` // "approve", "close", "containerize", "start", "review", "merge"
	IssueID   string    `json:"issueId"`
	StartedAt time.Time `json:"startedAt"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
}

// Journal persists a map of operation id → Operation to a single file
// (spec.md §6: "~/.panopticon/pending-operations.json").
type Journal struct {
	path string
	mu   sync.Mutex
}

// New constructs a Journal backed by path.
func New(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &Journal{path: path}, nil
}

func (j *Journal) loadLocked() (map[string]Operation, error) {
	data, err := os.ReadFile(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Operation{}, nil
		}
		return nil, err
	}
	var m map[string]Operation
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]Operation{}, nil
	}
	return m, nil
}

func (j *Journal) persistLocked(m map[string]Operation) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(j.path, data, 0o644)
}

// Start records a new running Operation and returns its id.
func (j *Journal) Start(opType, issueID string) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	m, err := j.loadLocked()
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	m[id] = Operation{ID: id, Type: opType, IssueID: issueID, StartedAt: time.Now(), Status: StatusRunning}
	if err := j.persistLocked(m); err != nil {
		return "", err
	}
	return id, nil
}

// Succeed removes a successfully completed operation (spec.md: "On
// success: remove").
func (j *Journal) Succeed(id string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	m, err := j.loadLocked()
	if err != nil {
		return err
	}
	delete(m, id)
	return j.persistLocked(m)
}

// Fail retains the operation marked failed with the given error text
// (spec.md: "On failure: retain with failed and error").
func (j *Journal) Fail(id string, failureErr error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	m, err := j.loadLocked()
	if err != nil {
		return err
	}
	op, ok := m[id]
	if !ok {
		return nil
	}
	op.Status = StatusFailed
	if failureErr != nil {
		op.Error = failureErr.Error()
	}
	m[id] = op
	return j.persistLocked(m)
}

// List returns every journaled operation.
func (j *Journal) List() ([]Operation, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	m, err := j.loadLocked()
	if err != nil {
		return nil, err
	}
	out := make([]Operation, 0, len(m))
	for _, op := range m {
		out = append(out, op)
	}
	return out, nil
}

// RecoverStale rewrites any "running" operation older than maxAge to
// "failed" with "Operation timed out" — restart recovery per spec.md
// §4.10 and the patrol loop's step 5.
func (j *Journal) RecoverStale(maxAge time.Duration) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	m, err := j.loadLocked()
	if err != nil {
		return 0, err
	}
	now := time.Now()
	recovered := 0
	for id, op := range m {
		if op.Status == StatusRunning && now.Sub(op.StartedAt) > maxAge {
			op.Status = StatusFailed
			op.Error = "Operation timed out"
			m[id] = op
			recovered++
		}
	}
	if recovered > 0 {
		if err := j.persistLocked(m); err != nil {
			return 0, err
		}
	}
	return recovered, nil
}
