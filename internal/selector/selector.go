// Package selector picks the next task to run from a board snapshot. It
// holds no state of its own; every function is a pure transform over the
// task slice the board client returns.
package selector

import (
	"math"
	"sort"

	"github.com/larkspur-dev/taskctl/internal/domain"
)

// Ordering controls how otherwise-tied tasks are ranked.
type Ordering string

const (
	OrderAlphabetical             Ordering = "alphabetical"
	OrderPriorityThenAlphabetical Ordering = "priority_then_alphabetical"
)

// normalizePriority maps a priority to a sortable rank; an unset priority
// sorts after every explicit one.
func normalizePriority(p domain.Priority) int {
	switch p {
	case domain.PriorityP0:
		return 0
	case domain.PriorityP1:
		return 1
	case domain.PriorityP2:
		return 2
	case domain.PriorityP3:
		return 3
	default:
		return math.MaxInt32
	}
}

func sortTasks(tasks []*domain.Task, ordering Ordering) []*domain.Task {
	out := make([]*domain.Task, len(tasks))
	copy(out, tasks)
	sort.SliceStable(out, func(i, j int) bool {
		if ordering == OrderPriorityThenAlphabetical {
			pi, pj := normalizePriority(out[i].Priority), normalizePriority(out[j].Priority)
			if pi != pj {
				return pi < pj
			}
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// IsEpic reports whether t is an Epic, by type or by inference from children.
func IsEpic(t *domain.Task, all []*domain.Task) bool {
	return domain.IsEpic(t, all)
}

// topLevelStandalone returns tasks with no parent that are not Epics.
func topLevelStandalone(all []*domain.Task) []*domain.Task {
	var out []*domain.Task
	for _, t := range all {
		if t.ParentID != "" {
			continue
		}
		if IsEpic(t, all) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// PickNextTask returns the next standalone, non-Epic task to run: the first
// InProgress task by ordering, else the first NotStarted task, else nil.
// Epic children are never considered here.
func PickNextTask(all []*domain.Task, ordering Ordering) *domain.Task {
	candidates := sortTasks(topLevelStandalone(all), ordering)

	for _, t := range candidates {
		if t.Status == domain.StatusInProgress {
			return t
		}
	}
	for _, t := range candidates {
		if t.Status == domain.StatusNotStarted {
			return t
		}
	}
	return nil
}

func epics(all []*domain.Task) []*domain.Task {
	var out []*domain.Task
	for _, t := range all {
		if t.ParentID == "" && IsEpic(t, all) {
			out = append(out, t)
		}
	}
	return out
}

// PickNextEpic enforces strictly sequential Epic execution: if an Epic is
// already InProgress it is returned outright (only one Epic runs at a
// time); otherwise Epics are walked in order, Done ones skipped, and the
// first NotStarted one is returned. A non-Done, non-NotStarted Epic (e.g.
// Blocked) stops the walk and yields nil rather than leapfrogging to a
// later Epic.
func PickNextEpic(all []*domain.Task, ordering Ordering) *domain.Task {
	candidates := sortTasks(epics(all), ordering)

	for _, e := range candidates {
		if e.Status == domain.StatusInProgress {
			return e
		}
	}
	for _, e := range candidates {
		if e.Status == domain.StatusDone {
			continue
		}
		if e.Status == domain.StatusNotStarted {
			return e
		}
		return nil
	}
	return nil
}

// PickNextEpicChild applies PickNextTask's rule restricted to the children
// of epicID.
func PickNextEpicChild(all []*domain.Task, epicID string, ordering Ordering) *domain.Task {
	var children []*domain.Task
	for _, t := range all {
		if t.ParentID == epicID {
			children = append(children, t)
		}
	}
	sorted := sortTasks(children, ordering)

	for _, t := range sorted {
		if t.Status == domain.StatusInProgress {
			return t
		}
	}
	for _, t := range sorted {
		if t.Status == domain.StatusNotStarted {
			return t
		}
	}
	return nil
}

// HasIncompleteEpic reports whether any Epic in all is not Done.
func HasIncompleteEpic(all []*domain.Task) bool {
	for _, e := range epics(all) {
		if e.Status != domain.StatusDone {
			return true
		}
	}
	return false
}

// AllEpicChildrenAreDone reports whether every child of epic is Done. An
// Epic with zero children is never considered complete here — closing an
// empty Epic is the orchestrator's call, not the selector's.
func AllEpicChildrenAreDone(epic *domain.Task, all []*domain.Task) (allDone bool, children []*domain.Task) {
	for _, t := range all {
		if t.ParentID == epic.ID {
			children = append(children, t)
		}
	}
	if len(children) == 0 {
		return false, children
	}
	for _, c := range children {
		if c.Status != domain.StatusDone {
			return false, children
		}
	}
	return true, children
}
