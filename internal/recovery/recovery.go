// Package recovery bounds and tracks auto-recovery attempts: per-task and
// per-Epic retry counters, and the parsed verdict an agent returns from a
// recovery prompt.
package recovery

import (
	"encoding/json"
	"sync"

	"github.com/larkspur-dev/taskctl/internal/acs"
	"github.com/larkspur-dev/taskctl/internal/domain"
)

// Tracker counts recovery attempts per task and per Epic, each capped
// independently.
type Tracker struct {
	maxPerTask int
	maxPerEpic int

	mu         sync.Mutex
	taskCounts map[string]int
	epicCounts map[string]int
}

// NewTracker creates a Tracker with the given per-task and per-Epic caps.
func NewTracker(maxPerTask, maxPerEpic int) *Tracker {
	return &Tracker{
		maxPerTask: maxPerTask,
		maxPerEpic: maxPerEpic,
		taskCounts: make(map[string]int),
		epicCounts: make(map[string]int),
	}
}

// Allow reports whether another recovery attempt is permitted for
// taskID (optionally scoped to epicID), and if so increments both
// counters.
func (t *Tracker) Allow(taskID, epicID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.taskCounts[taskID] >= t.maxPerTask {
		return false
	}
	if epicID != "" && t.epicCounts[epicID] >= t.maxPerEpic {
		return false
	}

	t.taskCounts[taskID]++
	if epicID != "" {
		t.epicCounts[epicID]++
	}
	return true
}

// Reset clears the per-task counter once a task eventually succeeds.
func (t *Tracker) Reset(taskID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.taskCounts, taskID)
}

// ParseVerdict extracts the recovery verdict JSON from an agent's
// recovery-prompt output, using the same bracket-balancing contract
// scan the runner uses for the terminal task contract.
func ParseVerdict(stdout string) (*domain.RecoveryVerdict, bool) {
	raw, ok := acs.FindLastBalancedObject(stdout)
	if !ok {
		return nil, false
	}
	var v domain.RecoveryVerdict
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, false
	}
	if v.Status != "fixed" && v.Status != "unfixable" {
		return nil, false
	}
	return &v, true
}

// Fixed reports whether a parsed verdict says the underlying problem was
// fixed and the original task should be re-enqueued for a fresh attempt.
func Fixed(v *domain.RecoveryVerdict) bool {
	return v != nil && v.Status == "fixed"
}
