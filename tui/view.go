package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/larkspur-dev/taskctl/internal/domain"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214"))

	haltedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("160")).
			Padding(0, 1)

	inProgressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	doneStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("35"))
	failedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	dimmedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	footerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(" taskctl dashboard "))
	b.WriteString("\n\n")

	if m.halted {
		b.WriteString(haltedStyle.Render(" HALTED "))
		b.WriteString("\n\n")
	}

	if m.loadErr != nil {
		b.WriteString(failedStyle.Render(fmt.Sprintf("error reading board: %v", m.loadErr)))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(sectionStyle.Render("board"))
	b.WriteString("\n")
	b.WriteString(m.renderTasks())
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render("recent runs"))
	b.WriteString("\n")
	b.WriteString(m.renderHistory())
	b.WriteString("\n")

	b.WriteString(footerStyle.Render("q quit · r refresh"))
	b.WriteString("\n")

	return b.String()
}

func (m model) renderTasks() string {
	if len(m.tasks) == 0 {
		return dimmedStyle.Render("  no tasks\n")
	}
	var b strings.Builder
	for _, t := range m.tasks {
		indent := "  "
		if t.ParentID != "" {
			indent = "    "
		}
		line := fmt.Sprintf("%s%-24s %-10s %s", indent, t.ID, t.Status, statusLabel(t))
		switch t.Status {
		case domain.StatusInProgress:
			b.WriteString(inProgressStyle.Render(line))
		case domain.StatusDone:
			b.WriteString(doneStyle.Render(line))
		default:
			b.WriteString(line)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func statusLabel(t *domain.Task) string {
	if t.AcTotal == 0 {
		return t.Name
	}
	return fmt.Sprintf("%s (%d/%d ACs)", t.Name, t.AcDone, t.AcTotal)
}

func (m model) renderHistory() string {
	if len(m.records) == 0 {
		return dimmedStyle.Render("  no runs recorded yet\n")
	}
	var b strings.Builder
	limit := 10
	for i, rec := range m.records {
		if i >= limit {
			b.WriteString(dimmedStyle.Render(fmt.Sprintf("  … %d more\n", len(m.records)-limit)))
			break
		}
		line := fmt.Sprintf("  %-24s %-10s %dms", rec.TaskID, rec.Status, rec.DurationMs)
		switch rec.Status {
		case domain.RunDone:
			b.WriteString(doneStyle.Render(line))
		case domain.RunFailed:
			b.WriteString(failedStyle.Render(line))
		default:
			b.WriteString(inProgressStyle.Render(line))
		}
		b.WriteString("\n")
	}
	return b.String()
}
