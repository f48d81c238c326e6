// Package acs extracts acceptance criteria from a task body, builds the
// prompts sent to the agent, and detects the agent's dual-format response:
// incremental "AC complete" markers and the terminal JSON contract.
package acs

import (
	"regexp"
	"strconv"
	"strings"
)

var checkboxLine = regexp.MustCompile(`^\s*-\s*\[([ xX])\]\s+(.+)$`)

// AC is one acceptance criterion: a checkbox line in document order.
type AC struct {
	Index   int // 1-based, position in the body
	Text    string
	Checked bool
}

// ParseAcs scans body for checkbox lines and numbers them in order of
// appearance. Numbering is positional: callers must not reorder lines
// between parses if they want index stability.
func ParseAcs(body string) []AC {
	var acs []AC
	n := 0
	for _, line := range strings.Split(body, "\n") {
		m := checkboxLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		n++
		acs = append(acs, AC{
			Index:   n,
			Text:    strings.TrimSpace(m[2]),
			Checked: strings.EqualFold(m[1], "x"),
		})
	}
	return acs
}

// FormatAcsForPrompt renders the AC reference table appended to the agent
// prompt, listing every criterion by number with a [pending] or [done] label.
func FormatAcsForPrompt(acs []AC) string {
	if len(acs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Acceptance criteria:\n")
	for _, ac := range acs {
		status := "pending"
		if ac.Checked {
			status = "done"
		}
		b.WriteString("AC-")
		b.WriteString(strconv.Itoa(ac.Index))
		b.WriteString(" [")
		b.WriteString(status)
		b.WriteString("] ")
		b.WriteString(ac.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

// Pending returns the subset of acs that are not yet checked.
func Pending(acs []AC) []AC {
	var out []AC
	for _, ac := range acs {
		if !ac.Checked {
			out = append(out, ac)
		}
	}
	return out
}
