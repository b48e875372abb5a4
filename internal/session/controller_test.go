package session

import (
	"fmt"
	"strings"
	"testing"

	"calltrace/internal/model"
	"calltrace/internal/visibility"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSource struct {
	text string
	err  error
}

func (f *fakeSource) Read() (string, error) { return f.text, f.err }

type fakeStore struct {
	loaded *visibility.Info
	saved  []*visibility.Info
	err    error
}

func (f *fakeStore) Load() (*visibility.Info, error) {
	if f.loaded == nil {
		return &visibility.Info{}, nil
	}
	return f.loaded, nil
}

func (f *fakeStore) Save(info *visibility.Info) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, info.Clone())
	return nil
}

// flat returns a trace of n sibling calls f00, f01, ... each with one value.
func flat(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "[DEBUG:func_enter(a.rs:1)] f%02d\n", i)
		fmt.Fprintf(&b, "[DEBUG:value(a.rs:2)] i = %d\n", i)
		fmt.Fprintf(&b, "[DEBUG:func_exit(a.rs:3)] f%02d\n", i)
	}
	return b.String()
}

func newTestController(t *testing.T, text string) (*Controller, *fakeSource, *fakeStore) {
	t.Helper()
	src := &fakeSource{text: text}
	store := &fakeStore{}
	c, err := Open(src, store, Options{})
	require.NoError(t, err)
	return c, src, store
}

func send(t *testing.T, c *Controller, actions ...Action) {
	t.Helper()
	for _, a := range actions {
		require.NoError(t, c.Dispatch(Event{Action: a}))
	}
}

func typeString(t *testing.T, c *Controller, s string) {
	t.Helper()
	for _, r := range s {
		require.NoError(t, c.Dispatch(Event{Action: InsertRune, Rune: r}))
	}
}

func TestModeTransitions(t *testing.T) {
	c, _, _ := newTestController(t, flat(3))
	require.Equal(t, Viewing, c.Mode())

	// Viewing cannot reach Searching directly.
	send(t, c, StartSearch)
	require.Equal(t, Viewing, c.Mode())

	send(t, c, OpenEditor)
	require.Equal(t, EditingVisibility, c.Mode())
	send(t, c, StartSearch)
	require.Equal(t, Searching, c.Mode())

	// Searching cannot reach Viewing directly.
	send(t, c, CloseEditor)
	require.Equal(t, Searching, c.Mode())

	send(t, c, ConfirmSearch)
	require.Equal(t, EditingVisibility, c.Mode())
	send(t, c, StartSearch, CancelSearch)
	require.Equal(t, EditingVisibility, c.Mode())
	send(t, c, CloseEditor)
	require.Equal(t, Viewing, c.Mode())
}

func TestTransitionTableHasNoViewingSearchingEdge(t *testing.T) {
	for a := ActionNone; a <= DeleteRune; a++ {
		if next, ok := Next(Viewing, a); ok {
			require.NotEqual(t, Searching, next, "action %s", a)
		}
		if next, ok := Next(Searching, a); ok {
			require.NotEqual(t, Viewing, next, "action %s", a)
		}
	}
}

func TestViewingScrollClamps(t *testing.T) {
	c, _, _ := newTestController(t, flat(10)) // 20 visible lines
	require.Equal(t, 20, c.VisibleLineCount())

	send(t, c, Up)
	require.Equal(t, 0, c.Scroll())
	send(t, c, Down, Down)
	require.Equal(t, 2, c.Scroll())
	send(t, c, DownFast)
	require.Equal(t, 19, c.Scroll())
	send(t, c, Down)
	require.Equal(t, 19, c.Scroll())
	send(t, c, UpFast)
	require.Equal(t, 0, c.Scroll())
	send(t, c, Bottom)
	require.Equal(t, 19, c.Scroll())
	send(t, c, Top)
	require.Equal(t, 0, c.Scroll())
}

func TestViewingEmptyTrace(t *testing.T) {
	c, _, _ := newTestController(t, "")
	send(t, c, Down, DownFast, Bottom)
	require.Equal(t, 0, c.Scroll())
	require.Empty(t, c.RenderLines())
}

func TestEditingSelectionClamps(t *testing.T) {
	c, _, _ := newTestController(t, flat(25))
	send(t, c, OpenEditor)
	require.Equal(t, 25, c.FilteredCount())

	send(t, c, Up)
	require.Equal(t, 0, c.Selected())
	send(t, c, DownFast)
	require.Equal(t, 20, c.Selected())
	send(t, c, DownFast)
	require.Equal(t, 24, c.Selected())
	send(t, c, Down)
	require.Equal(t, 24, c.Selected())
	send(t, c, Top)
	require.Equal(t, 0, c.Selected())
	send(t, c, Bottom)
	require.Equal(t, 24, c.Selected())

	// Navigation in Editing does not scroll the trace.
	require.Equal(t, 0, c.Scroll())
}

func TestToggleHidesSubtree(t *testing.T) {
	c, _, _ := newTestController(t, flat(3))
	send(t, c, OpenEditor, Down, Toggle)

	require.Equal(t, []visibility.Entry{
		{FuncName: "f00", Visibility: true},
		{FuncName: "f01", Visibility: false},
		{FuncName: "f02", Visibility: true},
	}, c.FilteredEntries())

	lines := c.RenderLines()
	require.Len(t, lines, 4)
	require.Equal(t, "f00", lines[0].Text)
	require.Equal(t, "f02", lines[2].Text)

	send(t, c, Toggle)
	require.Len(t, c.RenderLines(), 6)
}

func TestToggleClampsScroll(t *testing.T) {
	c, _, _ := newTestController(t, flat(3))
	send(t, c, Bottom)
	require.Equal(t, 5, c.Scroll())

	send(t, c, OpenEditor, Bottom, Toggle, CloseEditor)
	require.Equal(t, 3, c.Scroll())
}

func TestToggleOnEmptyFilteredList(t *testing.T) {
	c, _, _ := newTestController(t, flat(3))
	send(t, c, OpenEditor, StartSearch)
	typeString(t, c, "nomatch")
	send(t, c, ConfirmSearch)

	require.Zero(t, c.FilteredCount())
	send(t, c, DownFast, Down, Bottom)
	require.Equal(t, 0, c.Selected())

	before := c.Visibility()
	send(t, c, Toggle)
	require.Equal(t, before.Entries, c.Visibility().Entries)
}

func TestSearchFiltersAndResetsSelection(t *testing.T) {
	c, _, _ := newTestController(t, flat(25))
	send(t, c, OpenEditor, Down, Down, Down)
	require.Equal(t, 3, c.Selected())

	// Entering search keeps the selection.
	send(t, c, StartSearch)
	require.Equal(t, 3, c.Selected())

	// Any pattern change resets it, even if the selected row still matches.
	typeString(t, c, "f")
	require.Equal(t, 0, c.Selected())
	require.Equal(t, 25, c.FilteredCount())

	send(t, c, ConfirmSearch, Down)
	require.Equal(t, 1, c.Selected())
	send(t, c, StartSearch)
	typeString(t, c, "0")
	require.Equal(t, 0, c.Selected())
	require.Equal(t, "f0", c.Pattern())
	require.Equal(t, 10, c.FilteredCount())

	send(t, c, ConfirmSearch, Down, Toggle)
	require.False(t, c.FilteredEntries()[1].Visibility)
	require.Equal(t, "f01", c.FilteredEntries()[1].FuncName)
}

func TestSearchCancelKeepsPattern(t *testing.T) {
	c, _, _ := newTestController(t, flat(3))
	send(t, c, OpenEditor, StartSearch)
	typeString(t, c, "f0[12]")
	send(t, c, CancelSearch)

	require.Equal(t, EditingVisibility, c.Mode())
	require.Equal(t, "f0[12]", c.Pattern())
	require.Equal(t, 2, c.FilteredCount())

	// Re-entering search resumes the same pattern.
	send(t, c, StartSearch, DeleteRune, DeleteRune)
	require.Equal(t, "f0[1", c.Pattern())

	send(t, c, ClearSearch)
	require.Equal(t, "", c.Pattern())
	require.Equal(t, 3, c.FilteredCount())
	require.Equal(t, Searching, c.Mode())
}

func TestClearSearchFromEditor(t *testing.T) {
	c, _, _ := newTestController(t, flat(3))
	send(t, c, OpenEditor, StartSearch)
	typeString(t, c, "f02")
	send(t, c, ConfirmSearch)
	require.Equal(t, 1, c.FilteredCount())

	send(t, c, ClearSearch)
	require.Equal(t, EditingVisibility, c.Mode())
	require.Equal(t, 3, c.FilteredCount())
}

func TestDeleteOnEmptyPatternExitsSearch(t *testing.T) {
	c, _, _ := newTestController(t, flat(3))
	send(t, c, OpenEditor, StartSearch)
	typeString(t, c, "ab")
	send(t, c, DeleteRune, DeleteRune)
	require.Equal(t, Searching, c.Mode())
	require.Equal(t, "", c.Pattern())

	send(t, c, DeleteRune)
	require.Equal(t, EditingVisibility, c.Mode())
}

func TestDeleteRuneIsRuneAware(t *testing.T) {
	c, _, _ := newTestController(t, flat(1))
	send(t, c, OpenEditor, StartSearch)
	typeString(t, c, "fé")
	send(t, c, DeleteRune)
	require.Equal(t, "f", c.Pattern())
}

func TestInvalidPatternKeepsPreviousMatcher(t *testing.T) {
	c, _, _ := newTestController(t, flat(12))
	send(t, c, OpenEditor, StartSearch)
	typeString(t, c, "f1")
	require.NoError(t, c.PatternError())
	require.Equal(t, 2, c.FilteredCount())

	typeString(t, c, "(")
	require.Error(t, c.PatternError())
	require.True(t, errors.Is(c.PatternError(), model.ErrPattern))
	require.Equal(t, "f1(", c.Pattern())
	require.Equal(t, 2, c.FilteredCount(), "previous matcher stays in effect")

	// Typing continues and the error sticks until the pattern is valid.
	typeString(t, c, "[")
	require.Error(t, c.PatternError())
	typeString(t, c, "01])")
	require.NoError(t, c.PatternError())
	require.Equal(t, 2, c.FilteredCount())

	send(t, c, DeleteRune)
	require.Error(t, c.PatternError())
	send(t, c, ConfirmSearch)
	require.Equal(t, EditingVisibility, c.Mode())
}

func TestReload(t *testing.T) {
	c, src, _ := newTestController(t, flat(3))
	send(t, c, OpenEditor, Toggle) // hide f00
	c.MarkStale()

	src.text = flat(2) + "[DEBUG:func_enter(a.rs:1)] extra\n[DEBUG:func_exit(a.rs:2)] extra\n"
	send(t, c, Down, Down, Reload)

	require.False(t, c.Stale())
	require.Equal(t, EditingVisibility, c.Mode(), "reload keeps the mode")
	require.Equal(t, []visibility.Entry{
		{FuncName: "extra", Visibility: true},
		{FuncName: "f00", Visibility: false},
		{FuncName: "f01", Visibility: true},
	}, c.FilteredEntries())
	require.Equal(t, 2, c.Selected())

	src.text = flat(1)
	send(t, c, Reload)
	require.Equal(t, 0, c.Selected(), "selection is clamped to the new list")
}

func TestReloadFailureKeepsState(t *testing.T) {
	c, src, _ := newTestController(t, flat(3))
	src.err = errors.Mark(errors.New("disk gone"), model.ErrIO)

	err := c.Dispatch(Event{Action: Reload})
	require.True(t, errors.Is(err, model.ErrIO))
	require.True(t, c.Running())
	require.Equal(t, 3, c.Visibility().Len())
	require.Len(t, c.RenderLines(), 6)
}

func TestQuitFlushesOnce(t *testing.T) {
	c, _, store := newTestController(t, flat(2))
	send(t, c, OpenEditor, Toggle)

	send(t, c, Quit)
	require.False(t, c.Running())
	require.Len(t, store.saved, 1)
	require.Equal(t, []visibility.Entry{
		{FuncName: "f00", Visibility: false},
		{FuncName: "f01", Visibility: true},
	}, store.saved[0].Entries)

	// Events after quitting are ignored.
	send(t, c, Quit, Toggle)
	require.Len(t, store.saved, 1)
}

func TestTogglesDoNotSave(t *testing.T) {
	c, _, store := newTestController(t, flat(2))
	send(t, c, OpenEditor, Toggle, Down, Toggle, Toggle)
	require.Empty(t, store.saved)
	require.True(t, c.Running())
}

func TestQuitSaveFailureIsRetryable(t *testing.T) {
	c, _, store := newTestController(t, flat(2))
	store.err = errors.Mark(errors.New("read-only fs"), model.ErrIO)

	err := c.Dispatch(Event{Action: Quit})
	require.True(t, errors.Is(err, model.ErrIO))
	require.True(t, c.Running())

	store.err = nil
	send(t, c, Quit)
	require.False(t, c.Running())
	require.Len(t, store.saved, 1)
}

func TestForceQuitDoesNotSave(t *testing.T) {
	c, _, store := newTestController(t, flat(2))
	send(t, c, ForceQuit)
	require.False(t, c.Running())
	require.Empty(t, store.saved)
}

func TestOpenReconcilesLoadedSet(t *testing.T) {
	src := &fakeSource{text: flat(2)}
	store := &fakeStore{loaded: &visibility.Info{Entries: []visibility.Entry{
		{FuncName: "stale", Visibility: false},
		{FuncName: "f01", Visibility: false},
	}}}
	c, err := Open(src, store, Options{})
	require.NoError(t, err)
	require.Equal(t, []visibility.Entry{
		{FuncName: "f00", Visibility: true},
		{FuncName: "f01", Visibility: false},
	}, c.Visibility().Entries)
}

func TestOpenPropagatesErrors(t *testing.T) {
	_, err := Open(&fakeSource{err: errors.Mark(errors.New("nope"), model.ErrIO)}, &fakeStore{}, Options{})
	require.True(t, errors.Is(err, model.ErrIO))
}

func TestFastStepOption(t *testing.T) {
	c, err := Open(&fakeSource{text: flat(10)}, &fakeStore{}, Options{FastStep: 3})
	require.NoError(t, err)
	send(t, c, DownFast, DownFast)
	require.Equal(t, 6, c.Scroll())
}

func TestToggleLogsNewFlag(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	c, err := Open(&fakeSource{text: flat(3)}, &fakeStore{}, Options{Logger: zap.New(core)})
	require.NoError(t, err)

	send(t, c, OpenEditor, Down, Toggle)
	toggled := logs.FilterMessage("visibility toggled").All()
	require.Len(t, toggled, 1)
	require.Equal(t, "f01", toggled[0].ContextMap()["function"])
	require.Equal(t, false, toggled[0].ContextMap()["visible"])

	// An empty filtered list toggles nothing and logs nothing.
	send(t, c, StartSearch)
	typeString(t, c, "nomatch")
	send(t, c, ConfirmSearch, Toggle)
	require.Len(t, logs.FilterMessage("visibility toggled").All(), 1)
}

func TestVisibilityReturnsCopy(t *testing.T) {
	c, _, _ := newTestController(t, flat(2))
	v := c.Visibility()
	v.Entries[0].Visibility = false

	visible, ok := c.Visibility().Lookup("f00")
	require.True(t, ok)
	require.True(t, visible)
	require.Equal(t, 4, c.VisibleLineCount())
}
