package tui

import (
	"time"

	"calltrace/internal/session"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// DefaultTick is the event loop's idle tick interval.
const DefaultTick = 250 * time.Millisecond

// Options configures the terminal UI.
type Options struct {
	Tick   time.Duration
	Follow bool            // Reload automatically when the trace changes
	Change <-chan struct{} // Trace file change notifications; may be nil
	Logger *zap.Logger
}

// AppModel holds the TUI state. All session state lives in the controller;
// the model only adds what is needed to draw it.
type AppModel struct {
	// Data
	Ctrl *session.Controller

	// UI State
	WindowSize tea.WindowSizeMsg
	Status     string // Last I/O error, cleared by the next successful action

	// Components
	Keys        KeyMap
	Help        help.Model
	SearchInput textinput.Model
	TraceView   viewport.Model

	tick   time.Duration
	follow bool
	change <-chan struct{}
	logger *zap.Logger
}

// InitialModel returns the initial state.
func InitialModel(ctrl *session.Controller, opts Options) AppModel {
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	ti := textinput.New()
	ti.Prompt = " "
	ti.Placeholder = "regex..."
	ti.CharLimit = 0

	return AppModel{
		Ctrl:        ctrl,
		Keys:        DefaultKeyMap(),
		Help:        help.New(),
		SearchInput: ti,
		TraceView:   viewport.New(80, 20),
		WindowSize:  tea.WindowSizeMsg{Width: 80, Height: 24},
		tick:        opts.Tick,
		follow:      opts.Follow,
		change:      opts.Change,
		logger:      opts.Logger,
	}
}
