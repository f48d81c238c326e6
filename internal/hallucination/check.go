// Package hallucination checks whether a "done" agent contract actually
// corresponds to real work: either the working tree changed (including
// HEAD having moved, e.g. a commit) or at least one file the agent
// declared having touched exists on disk. Grounded on the teacher's git
// exec patterns in internal/executor/worktree.go, repurposed from
// worktree lifecycle management to a single read-only git status check.
package hallucination

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Result reports what the check observed.
type Result struct {
	GitChanged bool
	FilesExist bool
}

// Suspicious reports whether neither signal held: the agent claimed
// "done" but nothing on disk or in git backs that up.
func (r Result) Suspicious() bool {
	return !r.GitChanged && !r.FilesExist
}

// Check runs the hallucination check for a task's work directory against
// the HEAD commit captured before the agent ran, and the list of files
// the agent's contract declared.
func Check(workdir, headBefore string, declaredFiles []string) Result {
	return Result{
		GitChanged: gitDirty(workdir) || headMoved(workdir, headBefore),
		FilesExist: anyFileExists(workdir, declaredFiles),
	}
}

// CaptureHead returns the current HEAD commit hash, or empty string if
// workdir is not a git repository or the command fails.
func CaptureHead(workdir string) string {
	cmd := exec.Command("git", "rev-parse", "HEAD")
	cmd.Dir = workdir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func headMoved(workdir, before string) bool {
	if before == "" {
		return false
	}
	return CaptureHead(workdir) != before
}

func gitDirty(workdir string) bool {
	cmd := exec.Command("git", "status", "--porcelain")
	cmd.Dir = workdir
	out, err := cmd.Output()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) != ""
}

func anyFileExists(workdir string, declared []string) bool {
	for _, f := range declared {
		if f == "" {
			continue
		}
		path := f
		if !filepath.IsAbs(path) {
			path = filepath.Join(workdir, f)
		}
		if _, err := os.Stat(path); err == nil {
			return true
		}
	}
	return false
}
