package tui

import (
	"calltrace/internal/session"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// KeyMap binds keys to session actions.
type KeyMap struct {
	Quit      key.Binding
	QuitAny   key.Binding // Quits from every mode, including Searching
	ForceQuit key.Binding
	Reload    key.Binding

	Editor key.Binding
	Search key.Binding

	Up       key.Binding
	Down     key.Binding
	UpFast   key.Binding
	DownFast key.Binding
	Top      key.Binding
	Bottom   key.Binding

	Toggle key.Binding
	Clear  key.Binding

	Confirm    key.Binding
	Cancel     key.Binding
	DeleteChar key.Binding
}

// DefaultKeyMap returns the standard bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit:      key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		QuitAny:   key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
		ForceQuit: key.NewBinding(key.WithKeys("ctrl+\\"), key.WithHelp("ctrl+\\", "quit without saving")),
		Reload:    key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "reload")),

		Editor: key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "visibility editor")),
		Search: key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),

		Up:       key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
		Down:     key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
		UpFast:   key.NewBinding(key.WithKeys("ctrl+u", "pgup"), key.WithHelp("ctrl+u", "up fast")),
		DownFast: key.NewBinding(key.WithKeys("ctrl+d", "pgdown"), key.WithHelp("ctrl+d", "down fast")),
		Top:      key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "top")),
		Bottom:   key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "bottom")),

		Toggle: key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "change visibility")),
		Clear:  key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "clear search")),

		Confirm:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "finish searching")),
		Cancel:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		DeleteChar: key.NewBinding(key.WithKeys("backspace", "ctrl+h"), key.WithHelp("bs", "delete")),
	}
}

// Resolve maps a key press to session events for the given mode. Pasted
// text produces one InsertRune event per rune.
func (k KeyMap) Resolve(mode session.Mode, msg tea.KeyMsg) []session.Event {
	one := func(a session.Action) []session.Event {
		return []session.Event{{Action: a}}
	}

	switch {
	case key.Matches(msg, k.ForceQuit):
		return one(session.ForceQuit)
	case key.Matches(msg, k.QuitAny):
		return one(session.Quit)
	case key.Matches(msg, k.Reload):
		return one(session.Reload)
	}

	if mode == session.Searching {
		switch {
		case key.Matches(msg, k.Confirm):
			return one(session.ConfirmSearch)
		case key.Matches(msg, k.Cancel):
			return one(session.CancelSearch)
		case key.Matches(msg, k.DeleteChar):
			return one(session.DeleteRune)
		case key.Matches(msg, k.Clear):
			return one(session.ClearSearch)
		}
		if (msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace) && !msg.Alt {
			events := make([]session.Event, 0, len(msg.Runes))
			for _, r := range msg.Runes {
				events = append(events, session.Event{Action: session.InsertRune, Rune: r})
			}
			return events
		}
		return nil
	}

	switch {
	case key.Matches(msg, k.Quit):
		return one(session.Quit)
	case key.Matches(msg, k.Up):
		return one(session.Up)
	case key.Matches(msg, k.Down):
		return one(session.Down)
	case key.Matches(msg, k.UpFast):
		return one(session.UpFast)
	case key.Matches(msg, k.DownFast):
		return one(session.DownFast)
	case key.Matches(msg, k.Top):
		return one(session.Top)
	case key.Matches(msg, k.Bottom):
		return one(session.Bottom)
	}

	switch mode {
	case session.Viewing:
		if key.Matches(msg, k.Editor) {
			return one(session.OpenEditor)
		}
	case session.EditingVisibility:
		switch {
		case key.Matches(msg, k.Editor):
			return one(session.CloseEditor)
		case key.Matches(msg, k.Search):
			return one(session.StartSearch)
		case key.Matches(msg, k.Toggle):
			return one(session.Toggle)
		case key.Matches(msg, k.Clear):
			return one(session.ClearSearch)
		}
	}
	return nil
}

// modeHelp adapts a KeyMap to help.KeyMap for one mode.
type modeHelp struct {
	keys KeyMap
	mode session.Mode
}

func (h modeHelp) ShortHelp() []key.Binding {
	k := h.keys
	switch h.mode {
	case session.Viewing:
		return []key.Binding{k.Quit, k.Reload, k.Editor, k.Up, k.Down, k.UpFast, k.DownFast, k.Top, k.Bottom}
	case session.EditingVisibility:
		return []key.Binding{k.Quit, k.Reload, withHelp(k.Editor, "close editor"), k.Search,
			k.Up, k.Down, k.UpFast, k.DownFast, k.Top, k.Bottom, k.Toggle, k.Clear}
	default:
		return []key.Binding{k.QuitAny, k.Reload, k.Confirm, k.Cancel, k.DeleteChar, k.Clear}
	}
}

func (h modeHelp) FullHelp() [][]key.Binding {
	return [][]key.Binding{h.ShortHelp(), {h.keys.QuitAny, h.keys.ForceQuit}}
}

func withHelp(b key.Binding, desc string) key.Binding {
	b.SetHelp(b.Help().Key, desc)
	return b
}
