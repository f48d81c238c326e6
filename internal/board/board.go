// Package board enumerates and mutates tasks stored as markdown files under
// a root directory. It never moves a file between directories: status lives
// entirely in frontmatter.
package board

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/larkspur-dev/taskctl/internal/acs"
	"github.com/larkspur-dev/taskctl/internal/domain"
	"github.com/larkspur-dev/taskctl/internal/frontmatter"
)

const epicFileName = "epic.md"

// ErrTaskNotFound is returned when an operation names an id not present on
// the board.
var ErrTaskNotFound = errors.New("board: task not found")

// ErrCollision is returned by CreateTask when the requested id or path
// already exists.
var ErrCollision = errors.New("board: task already exists")

// Client enumerates and mutates tasks under Root. A listing is cached until
// the next mutating call.
type Client struct {
	Root string

	mu     sync.RWMutex
	cache  map[string]*domain.Task
	cached bool
}

// New creates a board Client rooted at root, made absolute so that task
// file paths are absolute.
func New(root string) *Client {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Client{Root: root}
}

// ListTasks enumerates the board with a depth-2 directory scan. Top-level
// .md files are standalone tasks. Top-level directories yield an Epic task
// from their epic.md plus one child task per other .md file inside. A
// missing root yields an empty list, not an error.
func (c *Client) ListTasks() ([]*domain.Task, error) {
	c.mu.RLock()
	if c.cached {
		tasks := make([]*domain.Task, 0, len(c.cache))
		for _, t := range c.cache {
			tasks = append(tasks, t)
		}
		c.mu.RUnlock()
		sortTasks(tasks)
		return tasks, nil
	}
	c.mu.RUnlock()

	entries, err := os.ReadDir(c.Root)
	if err != nil {
		if os.IsNotExist(err) {
			c.setCache(map[string]*domain.Task{})
			return nil, nil
		}
		return nil, fmt.Errorf("board: listing %s: %w", c.Root, err)
	}

	index := make(map[string]*domain.Task)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			if err := c.scanEpicDir(filepath.Join(c.Root, name), name, index); err != nil {
				return nil, err
			}
			continue
		}
		if !strings.HasSuffix(name, ".md") {
			continue
		}
		id := strings.TrimSuffix(name, ".md")
		task, err := parseTaskFile(filepath.Join(c.Root, name), id, "")
		if err != nil {
			continue // parse error: ignored for selection, per spec §7
		}
		index[id] = task
	}

	c.setCache(index)

	tasks := make([]*domain.Task, 0, len(index))
	for _, t := range index {
		tasks = append(tasks, t)
	}
	sortTasks(tasks)
	return tasks, nil
}

func (c *Client) scanEpicDir(dir, dirName string, index map[string]*domain.Task) error {
	epicPath := filepath.Join(dir, epicFileName)
	epicTask, err := parseTaskFile(epicPath, dirName, "")
	if err != nil {
		if os.IsNotExist(err) {
			return nil // directory without epic.md is not a board entry
		}
		return nil // parse error: ignored for selection
	}
	epicTask.Type = domain.TypeEpic
	index[dirName] = epicTask

	children, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("board: listing %s: %w", dir, err)
	}
	for _, entry := range children {
		name := entry.Name()
		if entry.IsDir() || name == epicFileName || !strings.HasSuffix(name, ".md") {
			continue
		}
		slug := strings.TrimSuffix(name, ".md")
		id := dirName + "/" + slug
		child, err := parseTaskFile(filepath.Join(dir, name), id, dirName)
		if err != nil {
			continue
		}
		index[id] = child
	}
	return nil
}

func sortTasks(tasks []*domain.Task) {
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
}

func (c *Client) setCache(index map[string]*domain.Task) {
	c.mu.Lock()
	c.cache = index
	c.cached = true
	c.mu.Unlock()
}

// invalidate drops the cached listing; the next ListTasks re-scans disk.
func (c *Client) invalidate() {
	c.mu.Lock()
	c.cached = false
	c.cache = nil
	c.mu.Unlock()
}

// parseTaskFile reads path once and computes both metadata and AC counts in
// a single pass over the body, per DESIGN.md's resolution of the source's
// double-parse question.
func parseTaskFile(path, id, parentID string) (*domain.Task, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc := frontmatter.Parse(string(content))

	name, _ := doc.Get("name")
	typ, _ := doc.Get("type")
	status, _ := doc.Get("status")
	model, _ := doc.Get("model")
	priority, _ := doc.Get("priority")

	if name == "" {
		return nil, fmt.Errorf("board: %s: missing required field %q", path, "name")
	}

	criteria := acs.ParseAcs(doc.Body)
	done := 0
	for _, a := range criteria {
		if a.Checked {
			done++
		}
	}

	task := &domain.Task{
		ID:       id,
		Name:     name,
		Priority: domain.Priority(priority),
		Type:     typ,
		Status:   statusOrDefault(status),
		ParentID: parentID,
		Model:    model,
		AcTotal:  len(criteria),
		AcDone:   done,
		FilePath: path,
	}
	return task, nil
}

func statusOrDefault(s string) domain.Status {
	if s == "" {
		return domain.StatusNotStarted
	}
	return domain.Status(s)
}

func (c *Client) resolvePath(id string) (string, error) {
	if tasks, err := c.ListTasks(); err != nil {
		return "", err
	} else {
		for _, t := range tasks {
			if t.ID == id {
				return t.FilePath, nil
			}
		}
	}
	return "", ErrTaskNotFound
}

// GetTaskMarkdown returns the raw file contents for id.
func (c *Client) GetTaskMarkdown(id string) (string, error) {
	path, err := c.resolvePath(id)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// UpdateTaskStatus rewrites id's file with status set, invalidating the
// cache.
func (c *Client) UpdateTaskStatus(id string, status domain.Status) error {
	path, err := c.resolvePath(id)
	if err != nil {
		return err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	updated := frontmatter.UpdateField(string(content), "status", string(status))
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		return err
	}
	c.invalidate()
	return nil
}

var checkboxLineRegexCache = make(map[string]*regexp.Regexp)

func checkboxTextRegex(text string) *regexp.Regexp {
	if re, ok := checkboxLineRegexCache[text]; ok {
		return re
	}
	re := regexp.MustCompile(`(?m)^(\s*-\s*\[)( )(\]\s*` + regexp.QuoteMeta(text) + `\s*)$`)
	checkboxLineRegexCache[text] = re
	return re
}

// UpdateCheckboxesByText flips the first matching unchecked line to checked
// for each text in texts. A text with no matching unchecked line is
// silently skipped.
func (c *Client) UpdateCheckboxesByText(id string, texts []string) error {
	path, err := c.resolvePath(id)
	if err != nil {
		return err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	updated := string(content)
	for _, text := range texts {
		re := checkboxTextRegex(text)
		loc := re.FindStringSubmatchIndex(updated)
		if loc == nil {
			continue
		}
		// Only flip if currently unchecked.
		markerStart, markerEnd := loc[4], loc[5]
		if strings.EqualFold(strings.TrimSpace(updated[markerStart:markerEnd]), "x") {
			continue
		}
		updated = updated[:markerStart] + "x" + updated[markerEnd:]
	}
	if updated == string(content) {
		return nil
	}
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		return err
	}
	c.invalidate()
	return nil
}

var anyCheckboxRegex = regexp.MustCompile(`(?m)^(\s*-\s*\[)( |x|X)(\].*)$`)

// UpdateCheckboxesByIndex flips the n-th checkbox line (1-based, over all
// checkbox lines in document order) to checked, for each n in indices. Only
// currently-unchecked lines are altered.
func (c *Client) UpdateCheckboxesByIndex(id string, indices []int) error {
	path, err := c.resolvePath(id)
	if err != nil {
		return err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	want := make(map[int]bool, len(indices))
	for _, n := range indices {
		want[n] = true
	}

	n := 0
	result := anyCheckboxRegex.ReplaceAllStringFunc(string(content), func(line string) string {
		n++
		if !want[n] {
			return line
		}
		m := anyCheckboxRegex.FindStringSubmatch(line)
		if strings.EqualFold(m[2], "x") {
			return line
		}
		return m[1] + "x" + m[3]
	})

	if err := os.WriteFile(path, []byte(result), 0644); err != nil {
		return err
	}
	c.invalidate()
	return nil
}

// AppendMarkdown appends a "---" separated markdown block at EOF.
func (c *Client) AppendMarkdown(id, md string) error {
	path, err := c.resolvePath(id)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteString("\n\n---\n\n" + md + "\n"); err != nil {
		return err
	}
	c.invalidate()
	return nil
}

// CreateFields are the frontmatter fields for a new task.
type CreateFields struct {
	Name     string
	Priority domain.Priority
	Type     string
	Status   domain.Status
	Model    string
}

// CreateOptions places a new task: under an existing Epic (EpicID), and
// optionally with an explicit filename/slug.
type CreateOptions struct {
	EpicID   string
	FileName string
}

// CreateTask writes a new task file. If Type is Epic and no EpicID is given
// a new Epic folder is created with epic.md inside; otherwise a single
// top-level or child file is written. Colliding ids fail with ErrCollision.
func (c *Client) CreateTask(fields CreateFields, body string, opts CreateOptions) (*domain.Task, error) {
	if fields.Status == "" {
		fields.Status = domain.StatusNotStarted
	}

	doc := frontmatter.Document{Values: map[string]string{}}
	doc.Set("name", fields.Name)
	doc.Set("priority", string(fields.Priority))
	doc.Set("type", fields.Type)
	doc.Set("status", string(fields.Status))
	doc.Set("model", fields.Model)
	content := frontmatter.Serialize(frontmatter.Document{Keys: doc.Keys, Values: doc.Values, Body: body})

	var path, id string
	switch {
	case fields.Type == domain.TypeEpic && opts.EpicID == "":
		slug := opts.FileName
		if slug == "" {
			return nil, fmt.Errorf("board: creating Epic requires a folder name")
		}
		dir := filepath.Join(c.Root, slug)
		if _, err := os.Stat(dir); err == nil {
			return nil, ErrCollision
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
		path = filepath.Join(dir, epicFileName)
		id = slug
	case opts.EpicID != "":
		slug := opts.FileName
		if slug == "" {
			return nil, fmt.Errorf("board: creating an Epic child requires a file name")
		}
		path = filepath.Join(c.Root, opts.EpicID, slug+".md")
		id = opts.EpicID + "/" + slug
	default:
		slug := opts.FileName
		if slug == "" {
			return nil, fmt.Errorf("board: creating a task requires a file name")
		}
		path = filepath.Join(c.Root, slug+".md")
		id = slug
	}

	if _, err := os.Stat(path); err == nil {
		return nil, ErrCollision
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return nil, err
	}
	c.invalidate()

	return parseTaskFile(path, id, opts.EpicID)
}

// DeleteOptions controls Epic-folder deletion semantics.
type DeleteOptions struct {
	DeleteEpicFolder bool
}

// DeleteTask removes id's file. For an Epic, DeleteEpicFolder additionally
// removes the whole folder recursively.
func (c *Client) DeleteTask(id string, opts DeleteOptions) error {
	path, err := c.resolvePath(id)
	if err != nil {
		return err
	}
	if filepath.Base(path) == epicFileName && opts.DeleteEpicFolder {
		if err := os.RemoveAll(filepath.Dir(path)); err != nil {
			return err
		}
		c.invalidate()
		return nil
	}
	if err := os.Remove(path); err != nil {
		return err
	}
	c.invalidate()
	return nil
}

// ListEpicFolders returns the directory names under Root that contain an
// epic.md, for the external task generator.
func (c *Client) ListEpicFolders() ([]string, error) {
	entries, err := os.ReadDir(c.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var folders []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(c.Root, e.Name(), epicFileName)); err == nil {
			folders = append(folders, e.Name())
		}
	}
	sort.Strings(folders)
	return folders, nil
}

var numberSuffix = regexp.MustCompile(`(\d+)$`)

// GetNextNumbers returns, per numeric-suffixed Epic folder prefix (e.g.
// "E" in "E01", "E02"), the next unused number — a utility for the external
// task generator.
func (c *Client) GetNextNumbers() (map[string]int, error) {
	folders, err := c.ListEpicFolders()
	if err != nil {
		return nil, err
	}
	next := make(map[string]int)
	for _, name := range folders {
		m := numberSuffix.FindStringSubmatchIndex(name)
		if m == nil {
			continue
		}
		prefix := name[:m[2]]
		n, err := strconv.Atoi(name[m[2]:m[3]])
		if err != nil {
			continue
		}
		if n+1 > next[prefix] {
			next[prefix] = n + 1
		}
	}
	return next, nil
}
