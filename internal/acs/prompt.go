package acs

import (
	"os"
	"strings"

	"github.com/larkspur-dev/taskctl/internal/domain"
)

// PromptOptions gates the option-dependent stanzas appended to a task
// prompt.
type PromptOptions struct {
	RequireTestsCreated bool
	RequireTestRun      bool
	RequireCommit       bool
	ExtraSuffix         string
}

type taskPromptData struct {
	Task         *domain.Task
	Body         string
	AcTable      string
	RequireTests bool
	RequireTestRun bool
	RequireCommit bool
	Extra        string
}

// BuildTaskPrompt renders the primary prompt sent to the agent for a
// standalone task or Epic child: metadata, full body, AC reference table,
// and option-gated stanzas.
func (l *Loader) BuildTaskPrompt(task *domain.Task, body string, acs []AC, opts PromptOptions) (string, error) {
	t, err := l.Load("task")
	if err != nil {
		return "", err
	}
	var b strings.Builder
	err = t.Execute(&b, taskPromptData{
		Task:           task,
		Body:           body,
		AcTable:        FormatAcsForPrompt(acs),
		RequireTests:   opts.RequireTestsCreated,
		RequireTestRun: opts.RequireTestRun,
		RequireCommit:  opts.RequireCommit,
		Extra:          opts.ExtraSuffix,
	})
	return b.String(), err
}

// ErrorCategory classifies a failed execution for the recovery prompt.
type ErrorCategory string

const (
	CategoryMissingModule ErrorCategory = "missing module"
	CategorySyntax        ErrorCategory = "syntax error"
	CategoryTimeout       ErrorCategory = "timeout"
	CategoryPermission    ErrorCategory = "permission"
	CategoryDependency    ErrorCategory = "dependency"
	CategoryGeneric       ErrorCategory = "generic"
)

// CategorizeError guesses an ErrorCategory from the error message and last
// output tail, using simple substring matches against common failure
// wording.
func CategorizeError(message, outputTail string) ErrorCategory {
	text := strings.ToLower(message + "\n" + outputTail)
	switch {
	case strings.Contains(text, "timed out") || strings.Contains(text, "timeout") || strings.Contains(text, "deadline exceeded"):
		return CategoryTimeout
	case strings.Contains(text, "permission denied") || strings.Contains(text, "eacces"):
		return CategoryPermission
	case strings.Contains(text, "cannot find module") || strings.Contains(text, "module not found") || strings.Contains(text, "no such file"):
		return CategoryMissingModule
	case strings.Contains(text, "syntax error") || strings.Contains(text, "unexpected token"):
		return CategorySyntax
	case strings.Contains(text, "dependency") || strings.Contains(text, "unresolved import"):
		return CategoryDependency
	default:
		return CategoryGeneric
	}
}

// FileCheck is one "expected file X, exists?" comparison line in a recovery
// prompt.
type FileCheck struct {
	Path   string
	Exists bool
}

// CheckFiles stats each declared path relative to workdir and reports
// whether it exists.
func CheckFiles(workdir string, paths []string) []FileCheck {
	checks := make([]FileCheck, 0, len(paths))
	for _, p := range paths {
		full := p
		if workdir != "" && !strings.HasPrefix(p, "/") {
			full = workdir + "/" + p
		}
		_, err := os.Stat(full)
		checks = append(checks, FileCheck{Path: p, Exists: err == nil})
	}
	return checks
}

const recoveryTailBytes = 3000

// TailBytes returns the last n bytes of s, without splitting a rune in a
// way that would fail UTF-8 validity for the common case of ASCII logs.
func TailBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

type recoveryPromptData struct {
	Task       *domain.Task
	Category   ErrorCategory
	Error      string
	OutputTail string
	AcTable    string
	FileChecks []FileCheck
}

// BuildRecoveryPrompt renders the diagnostic prompt re-invoked after a
// failure: error category, output tail, AC table, and file-existence
// comparisons.
func (l *Loader) BuildRecoveryPrompt(task *domain.Task, errMessage, stdout string, acs []AC, declaredFiles []string, workdir string) (string, error) {
	t, err := l.Load("recovery")
	if err != nil {
		return "", err
	}
	tail := TailBytes(stdout, recoveryTailBytes)
	data := recoveryPromptData{
		Task:       task,
		Category:   CategorizeError(errMessage, tail),
		Error:      errMessage,
		OutputTail: tail,
		AcTable:    FormatAcsForPrompt(acs),
		FileChecks: CheckFiles(workdir, declaredFiles),
	}
	var b strings.Builder
	err = t.Execute(&b, data)
	return b.String(), err
}

type reviewPromptData struct {
	Task     *domain.Task
	Contract *domain.Contract
	AcTable  string
}

// BuildReviewPrompt renders the prompt delegating a completed task to a
// stronger review model.
func (l *Loader) BuildReviewPrompt(task *domain.Task, contract *domain.Contract, acs []AC) (string, error) {
	t, err := l.Load("review")
	if err != nil {
		return "", err
	}
	var b strings.Builder
	err = t.Execute(&b, reviewPromptData{Task: task, Contract: contract, AcTable: FormatAcsForPrompt(acs)})
	return b.String(), err
}

// EpicReviewChild is one child's contribution to an Epic review prompt.
type EpicReviewChild struct {
	TaskID string
	Status domain.Status
}

type epicReviewPromptData struct {
	Epic     *domain.Task
	Children []EpicReviewChild
}

// BuildEpicReviewPrompt renders the prompt delegating a just-closed Epic, as
// a whole, to a stronger review model.
func (l *Loader) BuildEpicReviewPrompt(epic *domain.Task, children []EpicReviewChild) (string, error) {
	t, err := l.Load("epic_review")
	if err != nil {
		return "", err
	}
	var b strings.Builder
	err = t.Execute(&b, epicReviewPromptData{Epic: epic, Children: children})
	return b.String(), err
}
