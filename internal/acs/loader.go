package acs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"
)

// TemplateMeta describes a named prompt template. It is the one place this
// package reaches for YAML: the fenced header on each .tmpl file, not the
// task frontmatter (which stays on the scalar-only codec).
type TemplateMeta struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Loader loads and caches the named prompt templates, checking override
// directories before falling back to the embedded defaults.
type Loader struct {
	overrideDirs []string

	mu    sync.RWMutex
	cache map[string]*template.Template
	meta  map[string]TemplateMeta
}

// NewLoader creates a Loader that checks overrideDirs (in order) before the
// embedded templates.
func NewLoader(overrideDirs ...string) *Loader {
	return &Loader{
		overrideDirs: overrideDirs,
		cache:        make(map[string]*template.Template),
		meta:         make(map[string]TemplateMeta),
	}
}

var defaultLoader = NewLoader()

// Default returns the package-level Loader with no override directories.
func Default() *Loader { return defaultLoader }

func (l *Loader) loadRaw(name string) (string, error) {
	filename := name + ".tmpl"
	for _, dir := range l.overrideDirs {
		data, err := os.ReadFile(filepath.Join(dir, filename))
		if err == nil {
			return string(data), nil
		}
	}
	data, err := embeddedFS.ReadFile("templates/" + filename)
	if err != nil {
		return "", fmt.Errorf("loading template %q: %w", name, err)
	}
	return string(data), nil
}

func parseTemplateFrontmatter(raw string) (TemplateMeta, string) {
	const fence = "---\n"
	if !strings.HasPrefix(raw, fence) {
		return TemplateMeta{}, raw
	}
	rest := raw[len(fence):]
	end := strings.Index(rest, "\n"+fence[:3])
	if end < 0 {
		return TemplateMeta{}, raw
	}
	header := rest[:end]
	body := strings.TrimPrefix(rest[end+4:], "\n")

	var meta TemplateMeta
	_ = yaml.Unmarshal([]byte(header), &meta)
	return meta, body
}

// Load returns the compiled template named name, parsing and caching it on
// first use.
func (l *Loader) Load(name string) (*template.Template, error) {
	l.mu.RLock()
	if t, ok := l.cache[name]; ok {
		l.mu.RUnlock()
		return t, nil
	}
	l.mu.RUnlock()

	raw, err := l.loadRaw(name)
	if err != nil {
		return nil, err
	}
	meta, body := parseTemplateFrontmatter(raw)

	t, err := template.New(name).Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parsing template %q: %w", name, err)
	}

	l.mu.Lock()
	l.cache[name] = t
	l.meta[name] = meta
	l.mu.Unlock()

	return t, nil
}

// ClearCache drops all compiled templates, forcing the next Load to
// re-read from disk or the embedded default.
func (l *Loader) ClearCache() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[string]*template.Template)
	l.meta = make(map[string]TemplateMeta)
}
