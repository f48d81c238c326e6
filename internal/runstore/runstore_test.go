package runstore

import (
	"path/filepath"
	"testing"

	"github.com/larkspur-dev/taskctl/internal/domain"
)

func TestMarkStarted_PreservesExistingStartTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.json")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.MarkStarted("t1", "exec-1"); err != nil {
		t.Fatal(err)
	}
	first := s.Get("t1").StartedAt

	if err := s.MarkStarted("t1", "exec-1"); err != nil {
		t.Fatal(err)
	}
	second := s.Get("t1").StartedAt

	if !first.Equal(*second) {
		t.Errorf("startedAt changed on re-mark: %v -> %v", first, second)
	}
}

func TestMarkDone_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.json")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.MarkStarted("t1", "exec-1"); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkDone("t1", &domain.Result{Summary: "ok"}); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	rec := reopened.Get("t1")
	if rec == nil || rec.Status != domain.RunDone || rec.Result.Summary != "ok" {
		t.Fatalf("record = %+v", rec)
	}
}

func TestMarkFailed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.json")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.MarkFailed("t1", "boom"); err != nil {
		t.Fatal(err)
	}
	rec := s.Get("t1")
	if rec == nil || rec.Status != domain.RunFailed || rec.Error != "boom" {
		t.Fatalf("record = %+v", rec)
	}
}

func TestGetEpicSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.json")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	s.MarkStarted("e/a", "x")
	s.MarkDone("e/a", &domain.Result{Summary: "a done"})
	s.MarkStarted("e/b", "y")
	s.MarkFailed("e/b", "oops")

	summary := s.GetEpicSummary([]string{"e/a", "e/b"})
	if len(summary.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(summary.Rows))
	}
}

func TestOpen_MissingFileIsEmpty(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != nil {
		t.Fatal(err)
	}
	if s.Get("anything") != nil {
		t.Error("expected nil for missing task")
	}
}
