// Package tui implements the status dashboard: a read-only bubbletea view
// over the board and run store, refreshed on a tick. It carries none of the
// worktree, PR, build-pool, or two-way-sync panels the original dashboard
// had — this domain has no equivalent concepts.
package tui

import (
	"os"
	"sort"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/larkspur-dev/taskctl/internal/board"
	"github.com/larkspur-dev/taskctl/internal/domain"
	"github.com/larkspur-dev/taskctl/internal/runstore"
)

// Run starts the dashboard and blocks until the user quits.
func Run(b *board.Client, store *runstore.Store, haltFilePath string) error {
	m := newModel(b, store, haltFilePath)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

type model struct {
	board        *board.Client
	store        *runstore.Store
	haltFilePath string

	tasks   []*domain.Task
	records []*domain.ExecutionRecord
	halted  bool
	loadErr error

	width, height int
}

func newModel(b *board.Client, store *runstore.Store, haltFilePath string) model {
	m := model{board: b, store: store, haltFilePath: haltFilePath}
	m.refresh()
	return m
}

func (m *model) refresh() {
	tasks, err := m.board.ListTasks()
	if err != nil {
		m.loadErr = err
		return
	}
	m.loadErr = nil
	m.tasks = tasks
	m.records = m.store.All()
	sort.Slice(m.records, func(i, j int) bool {
		ti, tj := m.records[i].StartedAt, m.records[j].StartedAt
		if ti == nil || tj == nil {
			return false
		}
		return ti.After(*tj)
	})

	if m.haltFilePath != "" {
		_, err := os.Stat(m.haltFilePath)
		m.halted = err == nil
	}
}

func (m model) Init() tea.Cmd {
	return tickCmd()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			m.refresh()
			return m, nil
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tickMsg:
		m.refresh()
		return m, tickCmd()
	}
	return m, nil
}
