// Package orchestrator is the reconciliation state machine: it debounces
// triggers, picks the next unit of work via internal/selector, drives one
// internal/runner invocation per task, and folds the result back into the
// board and run store. Grounded on the teacher's plan-watcher debounce
// (internal/observer/planwatcher.go) and its scheduler loop shape, rebuilt
// around a single in-flight task instead of a dependency-graph batch.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/larkspur-dev/taskctl/internal/acs"
	"github.com/larkspur-dev/taskctl/internal/board"
	"github.com/larkspur-dev/taskctl/internal/domain"
	"github.com/larkspur-dev/taskctl/internal/hallucination"
	"github.com/larkspur-dev/taskctl/internal/notify"
	"github.com/larkspur-dev/taskctl/internal/recovery"
	"github.com/larkspur-dev/taskctl/internal/runner"
	"github.com/larkspur-dev/taskctl/internal/runstore"
	"github.com/larkspur-dev/taskctl/internal/selector"
	"github.com/larkspur-dev/taskctl/internal/watchdog"
)

// Mode selects what Schedule's next reconciliation should pursue.
type Mode string

const (
	ModeNormal Mode = "normal"
	ModeTask   Mode = "task"
	ModeEpic   Mode = "epic"
)

// Options configures an Orchestrator's policy knobs. Timeouts and retry
// caps are the caller's concern (typically sourced from internal/config);
// the orchestrator itself holds no config-file awareness.
type Options struct {
	Ordering            selector.Ordering
	MaxTasksPerRun       int
	DebounceInterval     time.Duration
	AgentBinaryPath      string
	AgentWorkdir         string
	AgentFullAccess      bool
	AgentModel           string
	AgentOAuthToken      string
	AgentTimeout         time.Duration
	AgentGracePeriod     time.Duration
	PromptOptions        acs.PromptOptions
	WatchdogInterval     time.Duration
	WatchdogMaxWarnings  int
	MaxConsecutiveSame   int
	GlobalMaxConsecutive int
	RecoveryMaxPerTask   int
	RecoveryMaxPerEpic   int
	AutoResetOnBlocked   bool

	// ReviewTasks and ReviewEpics gate the optional stronger-model review
	// pass independently: a completed task is only re-run through
	// acs.Loader.BuildReviewPrompt when ReviewTasks is set and the task didn't
	// already run on ReviewModel; a closing Epic is only reviewed via
	// acs.Loader.BuildEpicReviewPrompt when ReviewEpics is set. ReviewModel is the
	// "strong" model both passes run against.
	ReviewTasks bool
	ReviewEpics bool
	ReviewModel string

	// HaltFilePath, if set, makes halt/resume durable across process
	// restarts: halt() creates the file, resume deletes it, New reads it
	// to seed the initial halted state, and Schedule clears a halted state
	// once the file is gone. Each `taskctl` invocation is its
	// own process, so an in-memory-only flag would make `taskctl resume`
	// a no-op against a separately running `taskctl watch`.
	HaltFilePath string
}

// Orchestrator owns the single cooperative reconciliation loop.
type Orchestrator struct {
	board    *board.Client
	loader   *acs.Loader
	store    *runstore.Store
	watchdog *watchdog.Watchdog
	recover  *recovery.Tracker
	notifier notify.Notifier
	opts     Options

	mu            sync.Mutex
	running       bool
	halted        bool
	pending       bool
	pendingReasons []string
	pendingMode    Mode

	currentTaskID string

	// claudeCompletedTaskIds guards against a narrow crash window: the
	// agent reported done but the process died before the Done status
	// write landed. Keyed by task id, valued by when the agent finished.
	claudeCompletedTaskIds map[string]time.Time
}

// New constructs an Orchestrator. notifier may be nil (equivalent to
// notify.NoopNotifier{}).
func New(b *board.Client, loader *acs.Loader, store *runstore.Store, notifier notify.Notifier, opts Options) *Orchestrator {
	if notifier == nil {
		notifier = notify.NoopNotifier{}
	}
	o := &Orchestrator{
		board:                  b,
		loader:                 loader,
		store:                  store,
		notifier:               notifier,
		opts:                   opts,
		claudeCompletedTaskIds: make(map[string]time.Time),
		recover:                recovery.NewTracker(opts.RecoveryMaxPerTask, opts.RecoveryMaxPerEpic),
	}
	o.watchdog = watchdog.New(opts.WatchdogInterval, opts.WatchdogMaxWarnings, opts.MaxConsecutiveSame, opts.GlobalMaxConsecutive, func(taskID string, elapsed time.Duration, n int) {
		log.Printf("watchdog: task %s has been running %s (warning %d)", taskID, elapsed, n)
	})
	if opts.HaltFilePath != "" {
		if _, err := os.Stat(opts.HaltFilePath); err == nil {
			o.halted = true
		}
	}
	return o
}

// State is a snapshot of the orchestrator for status reporting.
type State struct {
	Active        bool
	Halted        bool
	CurrentTaskID string
	QueuedReasons []string
}

// IsRunning reports the orchestrator's current state.
func (o *Orchestrator) IsRunning() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return State{
		Active:        o.running,
		Halted:        o.halted,
		CurrentTaskID: o.currentTaskID,
		QueuedReasons: append([]string(nil), o.pendingReasons...),
	}
}

// Resume clears a halted state and reports whether halt was actually set.
func (o *Orchestrator) Resume() bool {
	o.mu.Lock()
	wasHalted := o.halted
	o.halted = false
	o.mu.Unlock()
	if o.opts.HaltFilePath != "" {
		if err := os.Remove(o.opts.HaltFilePath); err != nil && !os.IsNotExist(err) {
			log.Printf("orchestrator: clearing halt file: %v", err)
		}
	}
	return wasHalted
}

// Schedule enqueues a reconciliation. If a run is already active, the
// trigger is coalesced into the next loop via the pending flag; otherwise
// a debounce timer is started before the loop actually runs.
func (o *Orchestrator) Schedule(ctx context.Context, reason string, mode Mode) {
	o.mu.Lock()
	if o.halted && o.opts.HaltFilePath != "" {
		if _, err := os.Stat(o.opts.HaltFilePath); os.IsNotExist(err) {
			o.halted = false
		}
	}
	if o.halted {
		log.Printf("orchestrator: halted, ignoring schedule(%s)", reason)
		o.mu.Unlock()
		return
	}
	o.pendingReasons = append(o.pendingReasons, reason)
	o.pendingMode = mode
	if o.pending {
		o.mu.Unlock()
		return
	}
	o.pending = true
	o.mu.Unlock()

	debounce := o.opts.DebounceInterval
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	go func() {
		timer := time.NewTimer(debounce)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		o.runQueued(ctx)
	}()
}

// runQueued is single-flight: a second concurrent call returns immediately.
func (o *Orchestrator) runQueued(ctx context.Context) {
	o.mu.Lock()
	if o.running || !o.pending {
		o.mu.Unlock()
		return
	}
	o.running = true
	mode := o.pendingMode
	o.pending = false
	o.pendingReasons = nil
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.running = false
		o.currentTaskID = ""
		again := o.pending
		o.mu.Unlock()
		// A trigger that arrived mid-run is picked up by the next loop.
		if again && ctx.Err() == nil {
			go o.runQueued(ctx)
		}
	}()

	if mode == ModeEpic {
		o.reconcileEpic(ctx)
		return
	}
	o.reconcile(ctx)
}

// ReconcileOnce runs a single normal-mode reconciliation synchronously,
// bypassing the debounce timer. It is what the one-shot `taskctl run` calls
// directly (`taskctl task <id>` uses ReconcileTaskOnce); `Schedule` remains
// the entry point for the continuous `taskctl watch` loop.
func (o *Orchestrator) ReconcileOnce(ctx context.Context) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return
	}
	o.running = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.running = false
		o.currentTaskID = ""
		o.mu.Unlock()
	}()
	o.reconcile(ctx)
}

// ReconcileEpicOnce is ReconcileOnce's Epic-mode counterpart, used by
// `taskctl epic`.
func (o *Orchestrator) ReconcileEpicOnce(ctx context.Context) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return
	}
	o.running = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.running = false
		o.currentTaskID = ""
		o.mu.Unlock()
	}()
	o.reconcileEpic(ctx)
}

// ReconcileTaskOnce drives exactly the named task, ignoring the selector's
// ordering. Used by `taskctl task <id>`.
func (o *Orchestrator) ReconcileTaskOnce(ctx context.Context, taskID string) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return fmt.Errorf("orchestrator: a reconciliation is already in progress")
	}
	o.running = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.running = false
		o.currentTaskID = ""
		o.mu.Unlock()
	}()

	tasks, err := o.board.ListTasks()
	if err != nil {
		return err
	}
	var target *domain.Task
	var epicID string
	for _, t := range tasks {
		if t.ID == taskID {
			target = t
			epicID = t.ParentID
			break
		}
	}
	if target == nil {
		return fmt.Errorf("orchestrator: no task with id %q", taskID)
	}
	o.runOneTask(ctx, target, epicID)
	return nil
}

func (o *Orchestrator) isHalted() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.halted
}

func (o *Orchestrator) halt(reason string) {
	o.mu.Lock()
	o.halted = true
	o.mu.Unlock()
	if o.opts.HaltFilePath != "" {
		if err := os.WriteFile(o.opts.HaltFilePath, []byte(reason+"\n"), 0644); err != nil {
			log.Printf("orchestrator: writing halt file: %v", err)
		}
	}
	o.notifier.Send(notify.Notification{Title: "orchestrator halted", Message: reason, Type: notify.NotifyError})
	log.Printf("orchestrator: halted: %s", reason)
}

// reconcile runs normal mode: standalone tasks, deferring to Epic mode
// first if any Epic remains incomplete.
func (o *Orchestrator) reconcile(ctx context.Context) {
	tasks, err := o.board.ListTasks()
	if err != nil {
		log.Printf("orchestrator: listing tasks: %v", err)
		return
	}

	if selector.HasIncompleteEpic(tasks) {
		o.reconcileEpic(ctx)
		return
	}

	for i := 0; i < o.maxTasksPerRun(); i++ {
		if o.isHalted() {
			return
		}
		tasks, err = o.board.ListTasks()
		if err != nil {
			log.Printf("orchestrator: listing tasks: %v", err)
			return
		}

		task := selector.PickNextTask(tasks, o.ordering())
		if task == nil {
			break
		}
		if !o.runOneTask(ctx, task, "") {
			break
		}
	}

	o.closeFinishedEpics()
}

// reconcileEpic picks the next Epic under the strictly sequential policy,
// initializes its children's statuses on first entry, then drives each
// child with the same execution discipline as normal mode.
func (o *Orchestrator) reconcileEpic(ctx context.Context) {
	tasks, err := o.board.ListTasks()
	if err != nil {
		log.Printf("orchestrator: listing tasks: %v", err)
		return
	}

	epic := selector.PickNextEpic(tasks, o.ordering())
	if epic == nil {
		return
	}

	if epic.Status == domain.StatusNotStarted {
		o.startEpic(epic, tasks)
	}

	for i := 0; i < o.maxTasksPerRun(); i++ {
		if o.isHalted() {
			return
		}
		tasks, err = o.board.ListTasks()
		if err != nil {
			log.Printf("orchestrator: listing tasks: %v", err)
			return
		}
		child := selector.PickNextEpicChild(tasks, epic.ID, o.ordering())
		if child == nil {
			break
		}
		if !o.runOneTask(ctx, child, epic.ID) {
			break
		}
	}

	o.closeFinishedEpics()
}

// startEpic moves the Epic to InProgress and seeds its first child as
// InProgress, leaving the rest NotStarted (they already default to that).
func (o *Orchestrator) startEpic(epic *domain.Task, all []*domain.Task) {
	if err := o.board.UpdateTaskStatus(epic.ID, domain.StatusInProgress); err != nil {
		log.Printf("orchestrator: starting epic %s: %v", epic.ID, err)
		return
	}
	first := selector.PickNextEpicChild(all, epic.ID, o.ordering())
	if first != nil && first.Status == domain.StatusNotStarted {
		if err := o.board.UpdateTaskStatus(first.ID, domain.StatusInProgress); err != nil {
			log.Printf("orchestrator: starting first child %s: %v", first.ID, err)
		}
	}
}

// closeFinishedEpics scans for Epics whose children are all Done and
// closes them, appending an aggregated summary.
func (o *Orchestrator) closeFinishedEpics() {
	tasks, err := o.board.ListTasks()
	if err != nil {
		return
	}
	for _, t := range tasks {
		if !selector.IsEpic(t, tasks) || t.ParentID != "" || t.Status == domain.StatusDone {
			continue
		}
		allDone, children := selector.AllEpicChildrenAreDone(t, tasks)
		if !allDone {
			continue
		}
		if o.opts.ReviewEpics && o.opts.ReviewModel != "" {
			if !o.runEpicReview(t, children) {
				o.notifier.Send(notify.Notification{Title: "epic review blocked", Message: fmt.Sprintf("epic %s did not pass review", t.ID), TaskID: t.ID, Type: notify.NotifyError})
				continue
			}
		}
		var ids []string
		for _, c := range children {
			ids = append(ids, c.ID)
		}
		summary := o.store.GetEpicSummary(ids)
		if err := o.board.AppendMarkdown(t.ID, formatEpicSummary(summary)); err != nil {
			log.Printf("orchestrator: appending epic summary for %s: %v", t.ID, err)
		}
		if err := o.board.UpdateTaskStatus(t.ID, domain.StatusDone); err != nil {
			log.Printf("orchestrator: closing epic %s: %v", t.ID, err)
		}
	}
}

func formatEpicSummary(s domain.EpicSummary) string {
	var b strings.Builder
	b.WriteString("## Execution summary\n\n")
	for _, row := range s.Rows {
		fmt.Fprintf(&b, "- %s: %s (%dms)\n", row.TaskID, row.Status, row.DurationMs)
	}
	fmt.Fprintf(&b, "\nTotal duration: %dms\n", s.TotalDurationMs)
	return b.String()
}

// runOneTask drives exactly one task through start -> execute -> close.
// It returns false when the caller's loop should stop (halt, or a failure
// that should not be immediately followed by another pick).
func (o *Orchestrator) runOneTask(ctx context.Context, task *domain.Task, epicID string) bool {
	o.mu.Lock()
	o.currentTaskID = task.ID
	o.mu.Unlock()

	if _, wasCompleted := o.claudeCompletedTaskIds[task.ID]; wasCompleted {
		if err := o.board.UpdateTaskStatus(task.ID, domain.StatusDone); err != nil {
			log.Printf("orchestrator: retrying status write for %s: %v", task.ID, err)
			return false
		}
		delete(o.claudeCompletedTaskIds, task.ID)
		return true
	}

	if task.Status == domain.StatusNotStarted {
		if err := o.board.UpdateTaskStatus(task.ID, domain.StatusInProgress); err != nil {
			log.Printf("orchestrator: starting %s: %v", task.ID, err)
			return false
		}
	}

	executionID := uuid.NewString()
	if err := o.store.MarkStarted(task.ID, executionID); err != nil {
		log.Printf("orchestrator: marking %s started: %v", task.ID, err)
	}

	body, err := o.board.GetTaskMarkdown(task.ID)
	if err != nil {
		log.Printf("orchestrator: reading %s: %v", task.ID, err)
		return false
	}
	criteria := acs.ParseAcs(body)

	prompt, err := o.loader.BuildTaskPrompt(task, body, criteria, o.opts.PromptOptions)
	if err != nil {
		log.Printf("orchestrator: building prompt for %s: %v", task.ID, err)
		return false
	}

	headBefore := hallucination.CaptureHead(o.opts.AgentWorkdir)

	taskCtx, cancel := context.WithCancel(ctx)
	o.watchdog.Start(task.ID, cancel)
	outcome, err := o.invokeRunner(taskCtx, task, prompt)
	o.watchdog.Stop(task.ID)
	cancel()
	if err != nil {
		log.Printf("orchestrator: running %s: %v", task.ID, err)
		return o.handleFailure(task, epicID, fmt.Sprintf("runner error: %v", err), nil)
	}

	if detectRateLimit(outcome.Stderr) {
		o.halt("agent reported a rate limit")
		return false
	}

	if outcome.Status != domain.RunDone || outcome.Contract == nil {
		return o.handleFailure(task, epicID, blockedMessage(outcome), outcome)
	}

	check := hallucination.Check(o.opts.AgentWorkdir, headBefore, outcome.Contract.Files)
	if check.Suspicious() {
		retryPrompt := buildHallucinationRetryPrompt(prompt, outcome.Contract)
		retryOutcome, err := o.invokeRunner(ctx, task, retryPrompt)
		if err != nil || retryOutcome.Status != domain.RunDone || retryOutcome.Contract == nil {
			return o.handleFailure(task, epicID, "hallucination: retry produced no contract", retryOutcome)
		}
		retryCheck := hallucination.Check(o.opts.AgentWorkdir, headBefore, retryOutcome.Contract.Files)
		if retryCheck.Suspicious() {
			return o.handleFailure(task, epicID, "hallucination: no git changes or declared files after retry", retryOutcome)
		}
		outcome = retryOutcome
	}

	if o.shouldReviewTask(task) && !o.runTaskReview(ctx, task, outcome, criteria) {
		return o.handleFailure(task, epicID, "review: reviewer did not confirm completion", outcome)
	}

	return o.finishTask(task, outcome)
}

// shouldReviewTask reports whether a reported-done task should be
// delegated to the stronger review model: review must be enabled and
// configured, and the task mustn't have already run on the review model
// itself (reviewing a model against itself buys nothing).
func (o *Orchestrator) shouldReviewTask(task *domain.Task) bool {
	if !o.opts.ReviewTasks || o.opts.ReviewModel == "" {
		return false
	}
	return taskModelOverride(task, o.opts.AgentModel) != o.opts.ReviewModel
}

// runTaskReview re-invokes the runner with the review prompt against the
// review model and reports whether the verdict itself was "done".
func (o *Orchestrator) runTaskReview(ctx context.Context, task *domain.Task, outcome *runner.Outcome, criteria []acs.AC) bool {
	prompt, err := o.loader.BuildReviewPrompt(task, outcome.Contract, criteria)
	if err != nil {
		log.Printf("orchestrator: building review prompt for %s: %v", task.ID, err)
		return false
	}
	reviewOutcome, err := runner.Run(ctx, runner.Options{
		BinaryPath:  o.opts.AgentBinaryPath,
		Workdir:     o.opts.AgentWorkdir,
		FullAccess:  o.opts.AgentFullAccess,
		Model:       o.opts.ReviewModel,
		OAuthToken:  o.opts.AgentOAuthToken,
		Timeout:     o.opts.AgentTimeout,
		GracePeriod: o.opts.AgentGracePeriod,
		Task:        task,
		Prompt:      prompt,
	})
	if err != nil {
		log.Printf("orchestrator: review run for %s: %v", task.ID, err)
		return false
	}
	return reviewOutcome.Status == domain.RunDone && reviewOutcome.Contract != nil
}

// runEpicReview delegates a just-closed Epic, as a whole, to the review
// model and reports whether the verdict was "done".
func (o *Orchestrator) runEpicReview(epic *domain.Task, children []*domain.Task) bool {
	reviewChildren := make([]acs.EpicReviewChild, 0, len(children))
	for _, c := range children {
		reviewChildren = append(reviewChildren, acs.EpicReviewChild{TaskID: c.ID, Status: c.Status})
	}
	prompt, err := o.loader.BuildEpicReviewPrompt(epic, reviewChildren)
	if err != nil {
		log.Printf("orchestrator: building epic review prompt for %s: %v", epic.ID, err)
		return false
	}
	outcome, err := runner.Run(context.Background(), runner.Options{
		BinaryPath:  o.opts.AgentBinaryPath,
		Workdir:     o.opts.AgentWorkdir,
		FullAccess:  o.opts.AgentFullAccess,
		Model:       o.opts.ReviewModel,
		OAuthToken:  o.opts.AgentOAuthToken,
		Timeout:     o.opts.AgentTimeout,
		GracePeriod: o.opts.AgentGracePeriod,
		Task:        epic,
		Prompt:      prompt,
	})
	if err != nil {
		log.Printf("orchestrator: epic review run for %s: %v", epic.ID, err)
		return false
	}
	return outcome.Status == domain.RunDone && outcome.Contract != nil
}

func (o *Orchestrator) invokeRunner(ctx context.Context, task *domain.Task, prompt string) (*runner.Outcome, error) {
	return runner.Run(ctx, runner.Options{
		BinaryPath:  o.opts.AgentBinaryPath,
		Workdir:     o.opts.AgentWorkdir,
		FullAccess:  o.opts.AgentFullAccess,
		Model:       taskModelOverride(task, o.opts.AgentModel),
		OAuthToken:  o.opts.AgentOAuthToken,
		Timeout:     o.opts.AgentTimeout,
		GracePeriod: o.opts.AgentGracePeriod,
		Task:        task,
		Prompt:      prompt,
		OnMarker: func(m acs.Marker) {
			o.applyMarker(task.ID, m)
		},
	})
}

func taskModelOverride(task *domain.Task, fallback string) string {
	if task.Model != "" {
		return task.Model
	}
	return fallback
}

func (o *Orchestrator) applyMarker(taskID string, m acs.Marker) {
	switch m.Kind {
	case acs.MarkerIndexed:
		if err := o.board.UpdateCheckboxesByIndex(taskID, []int{m.N}); err != nil {
			log.Printf("orchestrator: checking AC %d on %s: %v", m.N, taskID, err)
		}
	case acs.MarkerByText:
		if err := o.board.UpdateCheckboxesByText(taskID, []string{m.Text}); err != nil {
			log.Printf("orchestrator: checking AC %q on %s: %v", m.Text, taskID, err)
		}
	}
}

func (o *Orchestrator) finishTask(task *domain.Task, outcome *runner.Outcome) bool {
	if err := o.board.AppendMarkdown(task.ID, formatCompletionNote(outcome.Contract)); err != nil {
		log.Printf("orchestrator: appending completion note for %s: %v", task.ID, err)
	}
	if err := o.board.UpdateTaskStatus(task.ID, domain.StatusDone); err != nil {
		o.claudeCompletedTaskIds[task.ID] = time.Now()
		log.Printf("orchestrator: writing Done for %s failed, will retry next reconcile: %v", task.ID, err)
	}
	if err := o.store.MarkDone(task.ID, &domain.Result{
		Summary: outcome.Contract.Summary,
		Notes:   outcome.Contract.Notes,
		Files:   outcome.Contract.Files,
		Tests:   outcome.Contract.Tests,
	}); err != nil {
		log.Printf("orchestrator: recording done for %s: %v", task.ID, err)
	}
	o.watchdog.RecordSuccess(task.ID)
	o.recover.Reset(task.ID)
	o.notifier.Send(notify.Notification{Title: "task done", Message: outcome.Contract.Summary, TaskID: task.ID, Type: notify.NotifySuccess})
	return true
}

func formatCompletionNote(c *domain.Contract) string {
	var b strings.Builder
	b.WriteString("## Completion\n\n")
	if c.Summary != "" {
		fmt.Fprintf(&b, "%s\n\n", c.Summary)
	}
	if c.Notes != "" {
		fmt.Fprintf(&b, "%s\n\n", c.Notes)
	}
	if len(c.Files) > 0 {
		b.WriteString("Files touched:\n")
		for _, f := range c.Files {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	return b.String()
}

// handleFailure records a failure, consults auto-recovery, and reports
// whether the caller's loop should continue to the next task. outcome is
// the runner result that produced the failure, if any, and is threaded
// into the recovery prompt's output-tail and file-existence checks; it
// may be nil (e.g. a runner error that never produced an Outcome).
func (o *Orchestrator) handleFailure(task *domain.Task, epicID, message string, outcome *runner.Outcome) bool {
	if err := o.store.MarkFailed(task.ID, message); err != nil {
		log.Printf("orchestrator: recording failure for %s: %v", task.ID, err)
	}
	if o.recover.Allow(task.ID, epicID) {
		if recovered := o.attemptRecovery(task, message, outcome); recovered {
			return true
		}
	}
	if o.opts.AutoResetOnBlocked {
		if err := o.board.UpdateTaskStatus(task.ID, domain.StatusNotStarted); err != nil {
			log.Printf("orchestrator: resetting %s: %v", task.ID, err)
		}
	}
	if o.watchdog.RecordFailure(task.ID) {
		o.halt(fmt.Sprintf("consecutive failure threshold reached at task %s", task.ID))
		return false
	}
	o.notifier.Send(notify.Notification{Title: "task failed", Message: message, TaskID: task.ID, Type: notify.NotifyError})
	return false
}

// attemptRecovery builds a diagnostic prompt, re-invokes the runner, and
// re-enqueues the original task for a fresh attempt when the verdict says
// the underlying problem was fixed. failedOutcome is the run that produced
// errMessage, if any; its stdout tail and declared files are folded into
// the recovery prompt so the diagnostic pass sees what the original agent
// actually printed and claimed to touch, not just the bare error string.
func (o *Orchestrator) attemptRecovery(task *domain.Task, errMessage string, failedOutcome *runner.Outcome) bool {
	body, err := o.board.GetTaskMarkdown(task.ID)
	if err != nil {
		return false
	}
	criteria := acs.ParseAcs(body)

	var stdout string
	var declaredFiles []string
	if failedOutcome != nil {
		stdout = failedOutcome.Stdout
		if failedOutcome.Contract != nil {
			declaredFiles = failedOutcome.Contract.Files
		}
	}

	prompt, err := o.loader.BuildRecoveryPrompt(task, errMessage, stdout, criteria, declaredFiles, o.opts.AgentWorkdir)
	if err != nil {
		return false
	}

	recoveryOutcome, err := runner.Run(context.Background(), runner.Options{
		BinaryPath: o.opts.AgentBinaryPath,
		Workdir:    o.opts.AgentWorkdir,
		FullAccess: o.opts.AgentFullAccess,
		Model:      o.opts.AgentModel,
		Timeout:    o.opts.AgentTimeout,
		Task:       task,
		Prompt:     prompt,
	})
	if err != nil {
		return false
	}

	verdict, ok := recovery.ParseVerdict(recoveryOutcome.Stdout)
	if !ok || !recovery.Fixed(verdict) {
		return false
	}

	if task.Status != domain.StatusNotStarted {
		if err := o.board.UpdateTaskStatus(task.ID, domain.StatusNotStarted); err != nil {
			log.Printf("orchestrator: re-enqueuing %s after recovery: %v", task.ID, err)
			return false
		}
	}
	return true
}

func blockedMessage(outcome *runner.Outcome) string {
	if outcome.Contract != nil && outcome.Contract.Notes != "" {
		return outcome.Contract.Notes
	}
	if outcome.ExitErr != nil {
		return outcome.ExitErr.Error()
	}
	return "agent produced no terminal contract"
}

func buildHallucinationRetryPrompt(original string, contract *domain.Contract) string {
	var b strings.Builder
	b.WriteString(original)
	b.WriteString("\n\n---\n\nYour previous attempt reported completion with this contract:\n\n")
	fmt.Fprintf(&b, "%+v\n\n", contract)
	b.WriteString("No git changes or declared files were found on disk. Please make the actual changes described, then emit the terminal contract again.\n")
	return b.String()
}

var rateLimitPhrases = []string{
	"hit your limit",
	"rate limit",
	"quota exceeded",
}

func detectRateLimit(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range rateLimitPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func (o *Orchestrator) ordering() selector.Ordering {
	if o.opts.Ordering == "" {
		return selector.OrderPriorityThenAlphabetical
	}
	return o.opts.Ordering
}

func (o *Orchestrator) maxTasksPerRun() int {
	if o.opts.MaxTasksPerRun <= 0 {
		return 10
	}
	return o.opts.MaxTasksPerRun
}
