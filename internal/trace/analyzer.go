package trace

import (
	"sort"
)

// FunctionCalls is the number of times a function was entered.
type FunctionCalls struct {
	Name  string `json:"name"`
	Calls int    `json:"calls"`
}

// Summary describes the shape of a trace independent of visibility.
type Summary struct {
	Lines      int             `json:"lines"`
	Enters     int             `json:"enters"`
	Exits      int             `json:"exits"`
	Values     int             `json:"values"`
	MaxDepth   int             `json:"max_depth"`
	StrayExits int             `json:"stray_exits"` // Exits seen at depth 0
	Unclosed   int             `json:"unclosed"`    // Depth left over at end of trace
	Functions  []FunctionCalls `json:"functions"`   // Most called first, then by name
}

// Balanced reports whether every enter was matched by an exit.
func (s Summary) Balanced() bool {
	return s.StrayExits == 0 && s.Unclosed == 0
}

// Summarize scans text once and returns its Summary.
func Summarize(text string) Summary {
	var s Summary
	calls := make(map[string]int)
	depth := 0

	Lines(text, func(line string) {
		s.Lines++
		rec := ParseLine(line)
		switch rec.Kind {
		case KindEnter:
			s.Enters++
			calls[rec.Name]++
			depth++
			if depth > s.MaxDepth {
				s.MaxDepth = depth
			}
		case KindExit:
			s.Exits++
			if depth == 0 {
				s.StrayExits++
				return
			}
			depth--
		case KindValue:
			s.Values++
		}
	})
	s.Unclosed = depth

	s.Functions = make([]FunctionCalls, 0, len(calls))
	for name, n := range calls {
		s.Functions = append(s.Functions, FunctionCalls{Name: name, Calls: n})
	}
	sort.Slice(s.Functions, func(i, j int) bool {
		a, b := s.Functions[i], s.Functions[j]
		if a.Calls != b.Calls {
			return a.Calls > b.Calls
		}
		return a.Name < b.Name
	})
	return s
}
