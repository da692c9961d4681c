package pipeline

import (
	"sync"

	"github.com/sony/gobreaker"
)

// breakers maintains one gobreaker.CircuitBreaker per issue, the
// alternate-library expression of invariant I5's "autoRequeueCount<3"
// bound: every auto-requeue attempt is an Execute call returning a
// sentinel failure, so three consecutive auto-requeues trip the breaker
// open and a fourth attempt is refused by gobreaker itself rather than by
// hand-rolled counting.
type breakers struct {
	mu  sync.Mutex
	max uint32
	set map[string]*gobreaker.CircuitBreaker
}

func newBreakers(max int) *breakers {
	if max <= 0 {
		max = 3
	}
	return &breakers{max: uint32(max), set: map[string]*gobreaker.CircuitBreaker{}}
}

func (b *breakers) forIssue(issueID string) *gobreaker.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.set[issueID]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "auto-requeue:" + issueID,
		MaxRequests: 1,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= b.max
		},
	})
	b.set[issueID] = cb
	return cb
}

// reset replaces issueID's breaker with a fresh one, implementing I4's
// "human-initiated review start resets autoRequeueCount to 0".
func (b *breakers) reset(issueID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.set, issueID)
}

// gobreakerFailure is the sentinel error fed to Execute on every test
// failure so gobreaker's consecutive-failure counter advances.
type gobreakerFailure struct{}

func (gobreakerFailure) Error() string { return "auto-requeue attempt failed" }

var errAutoRequeueFailure = gobreakerFailure{}

// tryRequeue reports whether issueID may still auto-requeue. If the
// breaker has tripped (three prior consecutive failures already
// recorded), it refuses without touching state — I5's permanent halt.
// Half-open counts as tripped too, so gobreaker's open-state timeout never
// lets another requeue through; only reset clears the halt.
// Otherwise it records this attempt as a failure, which may itself trip
// the breaker for the *next* call, and allows this one to proceed.
func (b *breakers) tryRequeue(issueID string) bool {
	cb := b.forIssue(issueID)
	if cb.State() != gobreaker.StateClosed {
		return false
	}
	_, _ = cb.Execute(func() (any, error) { return nil, errAutoRequeueFailure })
	return true
}

// consecutiveFailures reports the breaker's live in-process failure count
// for observability. gobreaker clears this count when the breaker trips,
// so ReviewStatus.AutoRequeueCount is counted separately by the controller.
func (b *breakers) consecutiveFailures(issueID string) int {
	cb := b.forIssue(issueID)
	return int(cb.Counts().ConsecutiveFailures)
}
