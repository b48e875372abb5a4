package trace

import (
	"strings"

	"calltrace/internal/model"
)

// Visibility maps a function name to whether its subtree is shown.
// Names that are absent are shown.
type Visibility map[string]bool

// shown reports whether name is visible, defaulting to true.
func (v Visibility) shown(name string) bool {
	visible, ok := v[name]
	return !ok || visible
}

// LineKind distinguishes the two kinds of rendered line.
type LineKind int

const (
	FunctionLabel LineKind = iota
	ValueLabel
)

func (k LineKind) String() string {
	if k == ValueLabel {
		return "value"
	}
	return "func"
}

// RenderLine is one line of filtered, depth-annotated output.
type RenderLine struct {
	Depth    int      `json:"depth"`
	Kind     LineKind `json:"kind"`
	Text     string   `json:"text"`
	Location Location `json:"location"`
}

// String renders the line with one depth guide per nesting level.
func (l RenderLine) String() string {
	return strings.Repeat(model.GlyphDepth, l.Depth) + l.Text
}

// filterState is the single-pass filter: a depth counter and the depth of
// the last visible call entered while displaying. Display resumes when an
// exit unwinds to that depth. While display is false every record is
// dropped, so a hidden function hides its whole dynamic subtree regardless
// of the flags of the functions it calls.
type filterState struct {
	vis          Visibility
	depth        int
	display      bool
	displayDepth int
}

func newFilterState(vis Visibility) filterState {
	return filterState{vis: vis, display: true}
}

// step advances the filter by one line and reports whether the line is
// emitted, with the depth to draw it at.
func (s *filterState) step(rec Record) (emit bool, depth int) {
	switch rec.Kind {
	case KindEnter:
		if !s.vis.shown(rec.Name) {
			s.display = false
		} else if s.display {
			s.displayDepth = s.depth
		}
		emit, depth = s.display, s.depth
		s.depth++
	case KindExit:
		// An exit without a matching enter leaves depth at 0.
		if s.depth == 0 {
			return false, 0
		}
		s.depth--
		if s.depth == s.displayDepth {
			s.display = true
		}
	case KindValue:
		emit, depth = s.display, s.depth
	}
	return emit, depth
}

// Filter returns the lines of text that are displayed under vis.
func Filter(text string, vis Visibility) []RenderLine {
	var out []RenderLine
	s := newFilterState(vis)
	Lines(text, func(line string) {
		rec := ParseLine(line)
		emit, depth := s.step(rec)
		if !emit {
			return
		}
		rl := RenderLine{Depth: depth, Location: rec.Location}
		if rec.Kind == KindEnter {
			rl.Kind, rl.Text = FunctionLabel, rec.Name
		} else {
			rl.Kind, rl.Text = ValueLabel, rec.Text
		}
		out = append(out, rl)
	})
	return out
}

// CountVisible runs the same pass as Filter and returns how many lines it
// would emit.
func CountVisible(text string, vis Visibility) int {
	n := 0
	s := newFilterState(vis)
	Lines(text, func(line string) {
		if emit, _ := s.step(ParseLine(line)); emit {
			n++
		}
	})
	return n
}
