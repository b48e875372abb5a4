package session

// Mode is the controller's interaction mode.
type Mode int

const (
	Viewing Mode = iota
	EditingVisibility
	Searching
)

func (m Mode) String() string {
	switch m {
	case Viewing:
		return "view"
	case EditingVisibility:
		return "edit"
	case Searching:
		return "search"
	default:
		return "unknown"
	}
}

// Action is one abstract session control. Key bindings map onto these in the
// presentation layer.
type Action int

const (
	ActionNone Action = iota

	// Global actions, handled in every mode.
	Quit
	ForceQuit
	Reload

	// Mode changes.
	OpenEditor
	CloseEditor
	StartSearch
	ConfirmSearch
	CancelSearch

	// Navigation: scrolls the trace in Viewing, moves the selection in
	// EditingVisibility.
	Up
	Down
	UpFast
	DownFast
	Top
	Bottom

	Toggle
	ClearSearch
	InsertRune
	DeleteRune
)

var actionNames = map[Action]string{
	ActionNone:    "none",
	Quit:          "quit",
	ForceQuit:     "force-quit",
	Reload:        "reload",
	OpenEditor:    "open-editor",
	CloseEditor:   "close-editor",
	StartSearch:   "start-search",
	ConfirmSearch: "confirm-search",
	CancelSearch:  "cancel-search",
	Up:            "up",
	Down:          "down",
	UpFast:        "up-fast",
	DownFast:      "down-fast",
	Top:           "top",
	Bottom:        "bottom",
	Toggle:        "toggle",
	ClearSearch:   "clear-search",
	InsertRune:    "insert-rune",
	DeleteRune:    "delete-rune",
}

func (a Action) String() string {
	if s, ok := actionNames[a]; ok {
		return s
	}
	return "unknown"
}

// Event is one input to the controller. Rune is only used by InsertRune.
type Event struct {
	Action Action
	Rune   rune
}

// transitions is the complete mode graph. Viewing and Searching are never
// adjacent.
var transitions = map[Mode]map[Action]Mode{
	Viewing: {
		OpenEditor: EditingVisibility,
	},
	EditingVisibility: {
		CloseEditor: Viewing,
		StartSearch: Searching,
	},
	Searching: {
		ConfirmSearch: EditingVisibility,
		CancelSearch:  EditingVisibility,
	},
}

// handled lists the non-transition actions each mode accepts. Anything else
// is ignored in that mode.
var handled = map[Mode]map[Action]bool{
	Viewing: {
		Up: true, Down: true, UpFast: true, DownFast: true, Top: true, Bottom: true,
	},
	EditingVisibility: {
		Up: true, Down: true, UpFast: true, DownFast: true, Top: true, Bottom: true,
		Toggle: true, ClearSearch: true,
	},
	Searching: {
		InsertRune: true, DeleteRune: true, ClearSearch: true,
	},
}

// Next returns the mode reached from m by a, and whether a is a mode
// transition at all.
func Next(m Mode, a Action) (Mode, bool) {
	next, ok := transitions[m][a]
	return next, ok
}

// Accepts reports whether a does anything in mode m.
func Accepts(m Mode, a Action) bool {
	switch a {
	case Quit, ForceQuit, Reload:
		return true
	}
	if _, ok := transitions[m][a]; ok {
		return true
	}
	return handled[m][a]
}
