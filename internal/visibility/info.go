// Package visibility owns the per-function visibility flags: the ordered
// entry set, its reconciliation against a freshly read trace, and its TOML
// persistence.
package visibility

import (
	"slices"
	"strings"

	"calltrace/internal/trace"
)

// Entry is the visibility flag of one function.
type Entry struct {
	FuncName   string `toml:"func_name" json:"func_name"`
	Visibility bool   `toml:"visibility" json:"visibility"`
}

// Info is the set of entries, at most one per function name. After
// Reconcile the entries are sorted by FuncName so the persisted file only
// changes when membership or flags change.
type Info struct {
	Entries []Entry `toml:"entries" json:"entries"`
}

// Matcher selects entries by function name. *regexp.Regexp satisfies it.
type Matcher interface {
	MatchString(s string) bool
}

type matchAll struct{}

func (matchAll) MatchString(string) bool { return true }

// MatchAll is a Matcher that selects every entry.
var MatchAll Matcher = matchAll{}

func orAll(m Matcher) Matcher {
	if m == nil {
		return MatchAll
	}
	return m
}

// Reconcile returns the entries for exactly the functions entered in text.
// Known functions keep their flag from old, new functions are visible, and
// functions no longer in the trace are dropped. The result is sorted, and
// reconciling it again against the same text returns an equal Info.
func Reconcile(old *Info, text string) *Info {
	known := make(map[string]bool)
	if old != nil {
		for _, e := range old.Entries {
			known[e.FuncName] = e.Visibility
		}
	}

	seen := make(map[string]struct{})
	out := &Info{}
	for _, name := range trace.FunctionNames(text) {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		visible, ok := known[name]
		if !ok {
			visible = true
		}
		out.Entries = append(out.Entries, Entry{FuncName: name, Visibility: visible})
	}
	out.sort()
	return out
}

func (i *Info) sort() {
	slices.SortFunc(i.Entries, func(a, b Entry) int {
		return strings.Compare(a.FuncName, b.FuncName)
	})
}

// Len returns the number of entries.
func (i *Info) Len() int { return len(i.Entries) }

// Map returns the flags keyed by function name, as consumed by trace.Filter.
func (i *Info) Map() trace.Visibility {
	vis := make(trace.Visibility, len(i.Entries))
	for _, e := range i.Entries {
		vis[e.FuncName] = e.Visibility
	}
	return vis
}

// Filtered returns the entries whose name matches m, in order. A nil m
// matches everything.
func (i *Info) Filtered(m Matcher) []Entry {
	m = orAll(m)
	var out []Entry
	for _, e := range i.Entries {
		if m.MatchString(e.FuncName) {
			out = append(out, e)
		}
	}
	return out
}

// CountMatching returns len(i.Filtered(m)) without building the slice.
func (i *Info) CountMatching(m Matcher) int {
	m = orAll(m)
	n := 0
	for _, e := range i.Entries {
		if m.MatchString(e.FuncName) {
			n++
		}
	}
	return n
}

// Toggle flips the flag of the index-th entry (0-based) among those matching
// m. It reports whether an entry was toggled; an out-of-range index is a
// no-op.
func (i *Info) Toggle(m Matcher, index int) bool {
	if index < 0 {
		return false
	}
	m = orAll(m)
	n := 0
	for k := range i.Entries {
		if !m.MatchString(i.Entries[k].FuncName) {
			continue
		}
		if n == index {
			i.Entries[k].Visibility = !i.Entries[k].Visibility
			return true
		}
		n++
	}
	return false
}

// Lookup returns the flag of name and whether it has an entry.
func (i *Info) Lookup(name string) (visible, ok bool) {
	idx, found := slices.BinarySearchFunc(i.Entries, name, func(e Entry, name string) int {
		return strings.Compare(e.FuncName, name)
	})
	if found {
		return i.Entries[idx].Visibility, true
	}
	// Entries loaded from a hand-edited file may not be sorted yet.
	for _, e := range i.Entries {
		if e.FuncName == name {
			return e.Visibility, true
		}
	}
	return false, false
}

// Equal reports whether both sets hold the same entries, ignoring order.
func (i *Info) Equal(other *Info) bool {
	if i.Len() != other.Len() {
		return false
	}
	a := slices.Clone(i.Entries)
	b := slices.Clone(other.Entries)
	cmp := func(x, y Entry) int { return strings.Compare(x.FuncName, y.FuncName) }
	slices.SortFunc(a, cmp)
	slices.SortFunc(b, cmp)
	return slices.Equal(a, b)
}

// Clone returns a deep copy of i.
func (i *Info) Clone() *Info {
	return &Info{Entries: slices.Clone(i.Entries)}
}
