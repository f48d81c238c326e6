package recovery

import "testing"

func TestTracker_CapsPerTask(t *testing.T) {
	tr := NewTracker(2, 100)
	if !tr.Allow("t1", "") {
		t.Fatal("first attempt should be allowed")
	}
	if !tr.Allow("t1", "") {
		t.Fatal("second attempt should be allowed")
	}
	if tr.Allow("t1", "") {
		t.Fatal("third attempt should be denied")
	}
}

func TestTracker_CapsPerEpic(t *testing.T) {
	tr := NewTracker(100, 2)
	if !tr.Allow("e/a", "e") {
		t.Fatal("first attempt should be allowed")
	}
	if !tr.Allow("e/b", "e") {
		t.Fatal("second attempt should be allowed")
	}
	if tr.Allow("e/c", "e") {
		t.Fatal("third attempt against the same epic should be denied")
	}
}

func TestTracker_ResetClearsTaskCounter(t *testing.T) {
	tr := NewTracker(1, 100)
	tr.Allow("t1", "")
	tr.Reset("t1")
	if !tr.Allow("t1", "") {
		t.Fatal("attempt should be allowed again after reset")
	}
}

func TestParseVerdict_Fixed(t *testing.T) {
	stdout := `some diagnostic output {"status":"fixed","summary":"added missing import","files_changed":["a.go"]}`
	v, ok := ParseVerdict(stdout)
	if !ok {
		t.Fatal("expected a verdict")
	}
	if !Fixed(v) {
		t.Error("expected Fixed(v) to be true")
	}
}

func TestParseVerdict_Unfixable(t *testing.T) {
	stdout := `{"status":"unfixable","root_cause":"missing credentials"}`
	v, ok := ParseVerdict(stdout)
	if !ok {
		t.Fatal("expected a verdict")
	}
	if Fixed(v) {
		t.Error("expected Fixed(v) to be false")
	}
}

func TestParseVerdict_NoMatch(t *testing.T) {
	if _, ok := ParseVerdict("no json at all here"); ok {
		t.Error("expected no verdict")
	}
}

func TestParseVerdict_WrongStatusVocabularyRejected(t *testing.T) {
	if _, ok := ParseVerdict(`{"status":"done","summary":"not a recovery verdict"}`); ok {
		t.Error("expected task-contract status values to be rejected by the recovery parser")
	}
}
