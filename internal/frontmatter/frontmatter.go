// Package frontmatter parses and rewrites the small leading metadata block
// of a task file. It deliberately does not support full YAML: values are
// scalar strings only, optionally single- or double-quoted. Lines without a
// colon are ignored rather than rejected, so a stray comment in the block
// does not blow up parsing.
package frontmatter

import (
	"strings"
)

const fence = "---"

// Document is a parsed frontmatter block plus the body that followed it.
// Keys preserves insertion order so that serializing back out reproduces
// the original field order for untouched documents.
type Document struct {
	Keys   []string
	Values map[string]string
	Body   string
}

// Get returns the value for key and whether it was present.
func (d *Document) Get(key string) (string, bool) {
	v, ok := d.Values[key]
	return v, ok
}

// Set overwrites key's value, or appends it to Keys if it is new.
func (d *Document) Set(key, value string) {
	if _, ok := d.Values[key]; !ok {
		d.Keys = append(d.Keys, key)
	}
	if d.Values == nil {
		d.Values = make(map[string]string)
	}
	d.Values[key] = value
}

// Parse splits content into a frontmatter Document and body. Content with
// no leading "---" fence yields an empty Document and the content unchanged
// as Body.
func Parse(content string) Document {
	if !strings.HasPrefix(content, fence) {
		return Document{Values: map[string]string{}, Body: content}
	}

	// content starts with the opening fence; find the line terminator after
	// it, then the closing fence line.
	rest := content[len(fence):]
	if idx := strings.IndexByte(rest, '\n'); idx >= 0 {
		rest = rest[idx+1:]
	} else {
		// "---" with nothing after it and no closing fence: no body either.
		return Document{Values: map[string]string{}, Body: ""}
	}

	closeIdx := strings.Index(rest, "\n"+fence)
	var block, body string
	if closeIdx < 0 {
		// No closing fence found; treat the entire remainder as the block
		// with no body, rather than erroring.
		block = rest
		body = ""
	} else {
		block = rest[:closeIdx]
		after := rest[closeIdx+1+len(fence):]
		body = strings.TrimPrefix(after, "\n")
		// One blank separator line after the closing fence belongs to the
		// format, not the body; Serialize writes it back.
		body = strings.TrimPrefix(body, "\n")
	}

	doc := Document{Values: make(map[string]string)}
	for _, line := range strings.Split(block, "\n") {
		key, value, ok := parseLine(line)
		if !ok {
			continue
		}
		doc.Set(key, value)
	}
	doc.Body = body
	return doc
}

// parseLine parses one "key: value" line, unquoting value if it is wrapped
// in matching single or double quotes. Lines with no colon are skipped.
func parseLine(line string) (key, value string, ok bool) {
	colon := strings.IndexByte(line, ':')
	if colon < 0 {
		return "", "", false
	}
	key = strings.TrimSpace(line[:colon])
	if key == "" {
		return "", "", false
	}
	value = strings.TrimSpace(line[colon+1:])
	value = unquote(value)
	return key, value, true
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// Serialize rebuilds a fenced frontmatter block (keys with an empty value
// are omitted) followed by the body. A Document with no keys at all
// serializes to just the body, with no empty fence.
func Serialize(doc Document) string {
	if len(doc.Keys) == 0 {
		return doc.Body
	}

	var b strings.Builder
	b.WriteString(fence)
	b.WriteByte('\n')
	wrote := false
	for _, key := range doc.Keys {
		value, ok := doc.Values[key]
		if !ok || value == "" {
			continue
		}
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(quoteIfNeeded(value))
		b.WriteByte('\n')
		wrote = true
	}
	if !wrote {
		return doc.Body
	}
	b.WriteString(fence)
	b.WriteByte('\n')
	if doc.Body != "" {
		b.WriteByte('\n')
		b.WriteString(doc.Body)
	}
	return b.String()
}

// quoteIfNeeded wraps value in double quotes if it contains a colon, a '#',
// or leading/trailing whitespace that would otherwise be ambiguous on re-parse.
func quoteIfNeeded(value string) string {
	if value == "" {
		return value
	}
	needsQuote := strings.ContainsAny(value, ":#") || value != strings.TrimSpace(value)
	if !needsQuote {
		return value
	}
	return `"` + strings.ReplaceAll(value, `"`, `\"`) + `"`
}

// UpdateField parses content, sets key to value (inserting it if new), and
// serializes the result. It never touches the body.
func UpdateField(content, key, value string) string {
	doc := Parse(content)
	doc.Set(key, value)
	return Serialize(doc)
}
