package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/renameio/v2"
)

// Store persists the issueId → ReviewStatus map in a single file
// (spec.md §6: "~/.panopticon/review-status.json"), written atomically on
// every mutation. Per-issue mutations are serialized by an in-process
// mutex; spec.md §8 notes cross-issue updates may interleave, which this
// single coarse lock also happens to prevent — acceptable given the
// engine's scale (a handful of specialists, not a high-throughput queue).
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a Store backed by path, creating its parent directory.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &Store{path: path}, nil
}

func (s *Store) loadAllLocked() (map[string]ReviewStatus, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]ReviewStatus{}, nil
		}
		return nil, err
	}
	var m map[string]ReviewStatus
	if err := json.Unmarshal(data, &m); err != nil {
		// A corrupted file degrades to empty; the engine reconciles issue
		// state from scratch rather than refusing to start.
		return map[string]ReviewStatus{}, nil
	}
	return m, nil
}

func (s *Store) persistLocked(m map[string]ReviewStatus) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(s.path, data, 0o644)
}

// Get returns issueID's current ReviewStatus, or its zero-value pending
// record if the issue has never started a review.
func (s *Store) Get(issueID string) (ReviewStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.loadAllLocked()
	if err != nil {
		return ReviewStatus{}, err
	}
	if rs, ok := m[issueID]; ok {
		return rs, nil
	}
	return newReviewStatus(issueID), nil
}

// List returns every issue's ReviewStatus.
func (s *Store) List() (map[string]ReviewStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadAllLocked()
}

// Mutate performs a read-modify-write on issueID's record.
func (s *Store) Mutate(issueID string, fn func(*ReviewStatus)) (ReviewStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.loadAllLocked()
	if err != nil {
		return ReviewStatus{}, err
	}
	rs, ok := m[issueID]
	if !ok {
		rs = newReviewStatus(issueID)
	}
	fn(&rs)
	rs.UpdatedAt = time.Now()
	m[issueID] = rs
	if err := s.persistLocked(m); err != nil {
		return ReviewStatus{}, err
	}
	return rs, nil
}
