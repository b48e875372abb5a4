package tui

import (
	"time"

	"calltrace/internal/session"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// MsgTick is the periodic idle tick. It never changes state.
type MsgTick time.Time

// MsgTraceChanged indicates the trace file changed on disk.
type MsgTraceChanged struct{}

func (m AppModel) tickCmd() tea.Cmd {
	return tea.Tick(m.tick, func(t time.Time) tea.Msg { return MsgTick(t) })
}

// waitForChange blocks on the watcher channel and reports the next change.
func (m AppModel) waitForChange() tea.Cmd {
	if m.change == nil {
		return nil
	}
	ch := m.change
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return MsgTraceChanged{}
	}
}

// Init starts the tick and, if configured, the change listener.
func (m AppModel) Init() tea.Cmd {
	return tea.Batch(m.tickCmd(), m.waitForChange())
}

// Update handles events.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.WindowSize = msg
		return m, nil

	case MsgTick:
		return m, m.tickCmd()

	case MsgTraceChanged:
		if m.follow {
			m.setStatus(m.Ctrl.Reload())
		} else {
			m.Ctrl.MarkStale()
		}
		return m, m.waitForChange()

	case tea.KeyMsg:
		for _, ev := range m.Keys.Resolve(m.Ctrl.Mode(), msg) {
			err := m.Ctrl.Dispatch(ev)
			if ev.Action == session.Quit || ev.Action == session.Reload {
				m.setStatus(err)
			}
			if err != nil {
				m.logger.Warn("action failed", zap.Stringer("action", ev.Action), zap.Error(err))
			}
		}
		if !m.Ctrl.Running() {
			return m, tea.Quit
		}
		return m, nil
	}

	return m, nil
}

func (m *AppModel) setStatus(err error) {
	if err != nil {
		m.Status = err.Error()
		return
	}
	m.Status = ""
}
