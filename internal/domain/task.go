package domain

// Task is a unit of work enumerated from the board. Standalone tasks and
// Epics live at depth 1; Epic children live at depth 2 under their Epic's
// directory. ID is "slug" for a standalone task or Epic, "epic/slug" for an
// Epic child.
type Task struct {
	ID       string
	Name     string
	Priority Priority
	Type     string
	Status   Status
	ParentID string // empty for standalone tasks and Epics

	// Model is an optional per-task override of the agent model.
	Model string

	// AcTotal and AcDone are computed from the body's checkbox lines; they
	// are not stored in frontmatter.
	AcTotal int
	AcDone  int

	// FilePath is the absolute path to the backing markdown file. It is
	// not part of the task's metadata and is never serialized.
	FilePath string
}

// IsEpic reports whether t should be treated as an Epic: either its type
// says so, or some other task in all names t as its parent. A task with
// children is an Epic even when its type field was left blank.
func IsEpic(t *Task, all []*Task) bool {
	if t.Type == TypeEpic {
		return true
	}
	for _, other := range all {
		if other.ParentID == t.ID {
			return true
		}
	}
	return false
}

// Less orders two tasks by id using a plain byte-wise string comparison,
// matching the board's filename-derived ordering.
func (t *Task) Less(other *Task) bool {
	return t.ID < other.ID
}
