package hallucination

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %s: %v", args, out, err)
		}
	}
	run("init")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
	if err := os.WriteFile(filepath.Join(dir, "seed.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	run("add", ".")
	run("commit", "-m", "seed")
	return dir
}

func TestCheck_NoChangesIsSuspicious(t *testing.T) {
	dir := initRepo(t)
	head := CaptureHead(dir)

	result := Check(dir, head, []string{"nonexistent.ts"})
	if !result.Suspicious() {
		t.Errorf("expected suspicious result, got %+v", result)
	}
}

func TestCheck_DirtyWorkingTreeIsNotSuspicious(t *testing.T) {
	dir := initRepo(t)
	head := CaptureHead(dir)

	if err := os.WriteFile(filepath.Join(dir, "new.txt"), []byte("y"), 0644); err != nil {
		t.Fatal(err)
	}

	result := Check(dir, head, nil)
	if result.Suspicious() {
		t.Error("expected not suspicious once the tree is dirty")
	}
	if !result.GitChanged {
		t.Error("expected GitChanged=true")
	}
}

func TestCheck_DeclaredFileExistsIsNotSuspicious(t *testing.T) {
	dir := initRepo(t)
	head := CaptureHead(dir)

	result := Check(dir, head, []string{"seed.txt"})
	if result.Suspicious() {
		t.Error("expected not suspicious when a declared file exists")
	}
	if !result.FilesExist {
		t.Error("expected FilesExist=true")
	}
}

func TestCheck_HeadMovedIsNotSuspicious(t *testing.T) {
	dir := initRepo(t)
	head := CaptureHead(dir)

	if err := os.WriteFile(filepath.Join(dir, "new.txt"), []byte("y"), 0644); err != nil {
		t.Fatal(err)
	}
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Run()
	}
	run("add", ".")
	run("commit", "-m", "more work")

	result := Check(dir, head, nil)
	if result.Suspicious() {
		t.Error("expected not suspicious once HEAD has moved")
	}
}
