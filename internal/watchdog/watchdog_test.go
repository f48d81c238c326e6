package watchdog

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestWatchdog_WarningsEscalateToCancel(t *testing.T) {
	var warnings int32
	var cancelled int32

	w := New(10*time.Millisecond, 3, 5, 10, func(taskID string, elapsed time.Duration, n int) {
		atomic.AddInt32(&warnings, 1)
	})

	w.Start("t1", func() {
		atomic.StoreInt32(&cancelled, 1)
	})

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt32(&cancelled) == 0 {
		select {
		case <-deadline:
			t.Fatal("expected cancellation after max warnings")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if atomic.LoadInt32(&warnings) < 3 {
		t.Errorf("warnings = %d, want >= 3", warnings)
	}
}

func TestWatchdog_StopPreventsFurtherWarnings(t *testing.T) {
	var warnings int32
	w := New(10*time.Millisecond, 100, 5, 10, func(taskID string, elapsed time.Duration, n int) {
		atomic.AddInt32(&warnings, 1)
	})

	w.Start("t1", func() {})
	time.Sleep(30 * time.Millisecond)
	w.Stop("t1")

	countAfterStop := atomic.LoadInt32(&warnings)
	time.Sleep(50 * time.Millisecond)
	if atomic.LoadInt32(&warnings) != countAfterStop {
		t.Error("warnings kept firing after Stop")
	}
}

func TestWatchdog_ZeroIntervalDisablesTicking(t *testing.T) {
	var warnings int32
	w := New(0, 3, 5, 10, func(taskID string, elapsed time.Duration, n int) {
		atomic.AddInt32(&warnings, 1)
	})

	w.Start("t1", func() {})
	time.Sleep(30 * time.Millisecond)
	w.Stop("t1")

	if atomic.LoadInt32(&warnings) != 0 {
		t.Errorf("warnings = %d, want 0 with a zero interval", warnings)
	}
}

func TestRecordFailure_SameTaskThreshold(t *testing.T) {
	w := New(time.Second, 100, 2, 100, nil)

	if w.RecordFailure("t1") {
		t.Fatal("should not halt on first failure")
	}
	if !w.RecordFailure("t1") {
		t.Fatal("should halt once same-task threshold reached")
	}
}

func TestRecordFailure_GlobalThreshold(t *testing.T) {
	w := New(time.Second, 100, 100, 2, nil)

	if w.RecordFailure("a") {
		t.Fatal("should not halt yet")
	}
	if !w.RecordFailure("b") {
		t.Fatal("should halt once global threshold reached across distinct tasks")
	}
}

func TestRecordSuccess_ClearsCounters(t *testing.T) {
	w := New(time.Second, 100, 2, 100, nil)
	w.RecordFailure("t1")
	w.RecordSuccess("t1")
	if w.RecordFailure("t1") {
		t.Fatal("counter should have reset after success")
	}
}
