// Package runstore persists ExecutionRecords as a single JSON document on
// disk, keyed by task id. Writes are atomic via a temp-file-then-rename,
// the same durability pattern the teacher's sqlite-backed taskstore used
// a transactional commit for — here there is one JSON document instead of
// a database, per the run store's explicit on-disk-JSON requirement.
package runstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/larkspur-dev/taskctl/internal/domain"
)

// document is the on-disk shape of the store.
type document struct {
	Tasks map[string]*domain.ExecutionRecord `json:"tasks"`
}

// Store is a JSON-file-backed execution record store.
type Store struct {
	path string
	mu   sync.Mutex
	doc  document
}

// Open loads path if it exists, or starts with an empty document.
func Open(path string) (*Store, error) {
	s := &Store{path: path, doc: document{Tasks: make(map[string]*domain.ExecutionRecord)}}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.doc); err != nil {
		return nil, err
	}
	if s.doc.Tasks == nil {
		s.doc.Tasks = make(map[string]*domain.ExecutionRecord)
	}
	return s, nil
}

func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// MarkStarted records a task's start under executionID, preserving an
// existing startedAt if one is already on file (so a crash-recovery re-mark
// doesn't reset the clock).
func (s *Store) MarkStarted(taskID, executionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.doc.Tasks[taskID]
	if !exists || rec.StartedAt == nil {
		now := time.Now()
		s.doc.Tasks[taskID] = &domain.ExecutionRecord{
			TaskID:      taskID,
			ExecutionID: executionID,
			Status:      domain.RunRunning,
			StartedAt:   &now,
		}
	} else {
		rec.ExecutionID = executionID
	}
	return s.save()
}

// MarkDone records a successful completion and its result blob.
func (s *Store) MarkDone(taskID string, result *domain.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.doc.Tasks[taskID]
	if rec == nil {
		rec = &domain.ExecutionRecord{TaskID: taskID}
		s.doc.Tasks[taskID] = rec
	}
	now := time.Now()
	rec.Status = domain.RunDone
	rec.CompletedAt = &now
	rec.Result = result
	if rec.StartedAt != nil {
		rec.DurationMs = now.Sub(*rec.StartedAt).Milliseconds()
	}
	return s.save()
}

// MarkFailed records a failed completion and its error message.
func (s *Store) MarkFailed(taskID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.doc.Tasks[taskID]
	if rec == nil {
		rec = &domain.ExecutionRecord{TaskID: taskID}
		s.doc.Tasks[taskID] = rec
	}
	now := time.Now()
	rec.Status = domain.RunFailed
	rec.FailedAt = &now
	rec.Error = message
	if rec.StartedAt != nil {
		rec.DurationMs = now.Sub(*rec.StartedAt).Milliseconds()
	}
	return s.save()
}

// Get returns the stored record for a task, or nil if none exists.
func (s *Store) Get(taskID string) *domain.ExecutionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Tasks[taskID]
}

// All returns every stored execution record, unordered. The dashboard sorts
// them by start time for its recent-run-history panel.
func (s *Store) All() []*domain.ExecutionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.ExecutionRecord, 0, len(s.doc.Tasks))
	for _, rec := range s.doc.Tasks {
		out = append(out, rec)
	}
	return out
}

// GetEpicSummary aggregates the execution records of an Epic's children
// into the summary note appended when the Epic closes.
func (s *Store) GetEpicSummary(childIDs []string) domain.EpicSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	var summary domain.EpicSummary
	for _, id := range childIDs {
		rec := s.doc.Tasks[id]
		if rec == nil {
			continue
		}
		summary.Rows = append(summary.Rows, domain.EpicSummaryRow{
			TaskID:     id,
			Status:     rec.Status,
			DurationMs: rec.DurationMs,
		})
		summary.TotalDurationMs += rec.DurationMs
		if rec.StartedAt != nil {
			if summary.Earliest == nil || rec.StartedAt.Before(*summary.Earliest) {
				summary.Earliest = rec.StartedAt
			}
		}
		if rec.CompletedAt != nil {
			if summary.Latest == nil || rec.CompletedAt.After(*summary.Latest) {
				summary.Latest = rec.CompletedAt
			}
		}
	}
	return summary
}
