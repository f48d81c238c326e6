package board

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/larkspur-dev/taskctl/internal/domain"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestListTasks_Standalone(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "t1-login.md"), "---\nname: Login\npriority: P1\ntype: UserStory\nstatus: Not Started\n---\n\n- [ ] AC one\n- [x] AC two\n")

	c := New(dir)
	tasks, err := c.ListTasks()
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 {
		t.Fatalf("got %d tasks, want 1", len(tasks))
	}
	task := tasks[0]
	if task.ID != "t1-login" || task.ParentID != "" {
		t.Errorf("task = %+v", task)
	}
	if task.AcTotal != 2 || task.AcDone != 1 {
		t.Errorf("AcTotal/AcDone = %d/%d, want 2/1", task.AcTotal, task.AcDone)
	}
}

func TestListTasks_EpicWithChildren(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "E01-Auth", "epic.md"), "---\nname: Auth epic\ntype: Epic\nstatus: Not Started\n---\n\nEpic body\n")
	writeFile(t, filepath.Join(dir, "E01-Auth", "s1-login.md"), "---\nname: Login\nstatus: Not Started\n---\n\n- [ ] AC\n")
	writeFile(t, filepath.Join(dir, "E01-Auth", "s2-logout.md"), "---\nname: Logout\nstatus: Not Started\n---\n\nbody\n")

	c := New(dir)
	tasks, err := c.ListTasks()
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 3 {
		t.Fatalf("got %d tasks, want 3", len(tasks))
	}

	var epic *domain.Task
	var children []*domain.Task
	for _, tk := range tasks {
		if tk.ID == "E01-Auth" {
			epic = tk
		} else {
			children = append(children, tk)
		}
	}
	if epic == nil || epic.Type != domain.TypeEpic {
		t.Fatalf("epic not parsed correctly: %+v", epic)
	}
	if len(children) != 2 {
		t.Fatalf("got %d children, want 2", len(children))
	}
	for _, ch := range children {
		if ch.ParentID != "E01-Auth" {
			t.Errorf("child %s ParentID = %q, want E01-Auth", ch.ID, ch.ParentID)
		}
	}
}

func TestListTasks_MissingRoot(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "does-not-exist"))
	tasks, err := c.ListTasks()
	if err != nil {
		t.Fatalf("missing root should not error, got %v", err)
	}
	if tasks != nil {
		t.Errorf("expected no tasks, got %v", tasks)
	}
}

func TestUpdateTaskStatus(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "t1.md"), "---\nname: T1\nstatus: Not Started\n---\nbody\n")
	c := New(dir)
	if _, err := c.ListTasks(); err != nil {
		t.Fatal(err)
	}

	if err := c.UpdateTaskStatus("t1", domain.StatusInProgress); err != nil {
		t.Fatal(err)
	}

	tasks, err := c.ListTasks()
	if err != nil {
		t.Fatal(err)
	}
	if tasks[0].Status != domain.StatusInProgress {
		t.Errorf("status = %q, want %q", tasks[0].Status, domain.StatusInProgress)
	}
}

func TestUpdateCheckboxesByText(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "t1.md"), "---\nname: T1\nstatus: Not Started\n---\n\n- [ ] First one\n- [ ] Second one\n")
	c := New(dir)
	if err := c.UpdateCheckboxesByText("t1", []string{"Second one"}); err != nil {
		t.Fatal(err)
	}
	content, err := c.GetTaskMarkdown("t1")
	if err != nil {
		t.Fatal(err)
	}
	if !containsCheckedLine(content, "Second one") {
		t.Errorf("expected 'Second one' to be checked, got:\n%s", content)
	}
	if containsCheckedLine(content, "First one") {
		t.Error("'First one' should remain unchecked")
	}
}

func TestUpdateCheckboxesByText_MissingTextIsSafe(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "t1.md"), "---\nname: T1\n---\n\n- [ ] Only one\n")
	c := New(dir)
	if err := c.UpdateCheckboxesByText("t1", []string{"Not present"}); err != nil {
		t.Fatalf("missing text should be safe, got %v", err)
	}
}

func TestUpdateCheckboxesByIndex(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "t1.md"), "---\nname: T1\n---\n\n- [ ] One\n- [ ] Two\n- [ ] Three\n")
	c := New(dir)
	if err := c.UpdateCheckboxesByIndex("t1", []int{1, 3}); err != nil {
		t.Fatal(err)
	}
	content, _ := c.GetTaskMarkdown("t1")
	if !containsCheckedLine(content, "One") || !containsCheckedLine(content, "Three") {
		t.Errorf("expected One and Three checked, got:\n%s", content)
	}
	if containsCheckedLine(content, "Two") {
		t.Error("Two should remain unchecked")
	}
}

func TestAppendMarkdown(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "t1.md"), "---\nname: T1\n---\nbody\n")
	c := New(dir)
	if err := c.AppendMarkdown("t1", "## Summary\nAll done."); err != nil {
		t.Fatal(err)
	}
	content, _ := c.GetTaskMarkdown("t1")
	if !containsAll(content, "## Summary", "All done.") {
		t.Errorf("append missing, got:\n%s", content)
	}
}

func TestCreateTask_Collision(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)
	fields := CreateFields{Name: "New task", Type: "Chore"}
	if _, err := c.CreateTask(fields, "body", CreateOptions{FileName: "dup"}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.CreateTask(fields, "body", CreateOptions{FileName: "dup"}); err != ErrCollision {
		t.Errorf("expected ErrCollision, got %v", err)
	}
}

func TestDeleteTask(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "t1.md"), "---\nname: T1\n---\nbody\n")
	c := New(dir)
	if err := c.DeleteTask("t1", DeleteOptions{}); err != nil {
		t.Fatal(err)
	}
	tasks, _ := c.ListTasks()
	if len(tasks) != 0 {
		t.Errorf("expected task to be deleted, got %v", tasks)
	}
}

func containsCheckedLine(content, text string) bool {
	return containsAll(content, "[x] "+text) || containsAll(content, "[X] "+text)
}

func containsAll(content string, substrs ...string) bool {
	for _, s := range substrs {
		if !stringsContains(content, s) {
			return false
		}
	}
	return true
}

func stringsContains(s, substr string) bool {
	return len(s) >= len(substr) && (func() bool {
		for i := 0; i+len(substr) <= len(s); i++ {
			if s[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	})()
}
