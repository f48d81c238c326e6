// Package domain holds the plain data types shared by the board, selector,
// runner, and orchestrator packages.
package domain

// Status is the lifecycle state of a task. Values are exact strings,
// spacing and capitalization preserved, as they appear in frontmatter.
type Status string

const (
	StatusNotStarted Status = "Not Started"
	StatusInProgress Status = "In Progress"
	StatusDone       Status = "Done"
)

// Priority is the task priority. The zero value means no priority was set.
type Priority string

const (
	PriorityP0   Priority = "P0"
	PriorityP1   Priority = "P1"
	PriorityP2   Priority = "P2"
	PriorityP3   Priority = "P3"
	PriorityNone Priority = ""
)

// rank returns the sort rank of a priority, lower sorts first.
// Unknown or absent priorities sort last.
func (p Priority) rank() int {
	switch p {
	case PriorityP0:
		return 0
	case PriorityP1:
		return 1
	case PriorityP2:
		return 2
	case PriorityP3:
		return 3
	default:
		return 1 << 30
	}
}

// TypeEpic is the one type value the board treats specially: a task whose
// type is TypeEpic (or that has children) is an Epic.
const TypeEpic = "Epic"

// RunStatus is the lifecycle state of an ExecutionRecord.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunDone    RunStatus = "done"
	RunFailed  RunStatus = "failed"
)

// ContractStatus is the status field reported by the agent's terminal JSON.
type ContractStatus string

const (
	ContractDone    ContractStatus = "done"
	ContractBlocked ContractStatus = "blocked"
)
