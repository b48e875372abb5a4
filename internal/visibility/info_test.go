package visibility

import (
	"regexp"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func traceOf(names ...string) string {
	var b strings.Builder
	for _, n := range names {
		b.WriteString("[DEBUG:func_enter(src/lib.rs:1)] " + n + "\n")
		b.WriteString("[DEBUG:value(src/lib.rs:2)] x = 1\n")
		b.WriteString("[DEBUG:func_exit(src/lib.rs:3)] " + n + "\n")
	}
	return b.String()
}

func info(entries ...Entry) *Info { return &Info{Entries: entries} }

func TestReconcilePreservesKnownFlags(t *testing.T) {
	old := info(Entry{"f", false}, Entry{"g", true})
	got := Reconcile(old, traceOf("g", "f", "f"))
	require.Equal(t, []Entry{{"f", false}, {"g", true}}, got.Entries)
}

func TestReconcileDefaultsNewNamesToVisible(t *testing.T) {
	got := Reconcile(info(Entry{"f", false}), traceOf("f", "new"))
	require.Equal(t, []Entry{{"f", false}, {"new", true}}, got.Entries)

	got = Reconcile(nil, traceOf("b", "a"))
	require.Equal(t, []Entry{{"a", true}, {"b", true}}, got.Entries)
}

func TestReconcileDropsStaleNames(t *testing.T) {
	got := Reconcile(info(Entry{"gone", false}, Entry{"kept", false}), traceOf("kept"))
	require.Equal(t, []Entry{{"kept", false}}, got.Entries)

	got = Reconcile(info(Entry{"gone", false}), "")
	require.Empty(t, got.Entries)
}

func TestReconcileIsIdempotentAndSorted(t *testing.T) {
	text := traceOf("zeta", "Alpha", "beta", "alpha", "beta", "App::new", "_x")
	old := info(Entry{"beta", false}, Entry{"omega", false}, Entry{"Alpha", false})

	once := Reconcile(old, text)
	twice := Reconcile(once, text)
	require.Equal(t, once.Entries, twice.Entries)

	names := make([]string, 0, once.Len())
	for _, e := range once.Entries {
		names = append(names, e.FuncName)
	}
	require.True(t, sort.StringsAreSorted(names), "not sorted: %v", names)
	require.Equal(t, []string{"Alpha", "App::new", "_x", "alpha", "beta", "zeta"}, names)
}

func TestReconcileDoesNotMutateOld(t *testing.T) {
	old := info(Entry{"b", false}, Entry{"a", true})
	_ = Reconcile(old, traceOf("a"))
	require.Equal(t, []Entry{{"b", false}, {"a", true}}, old.Entries)
}

func TestToggle(t *testing.T) {
	i := info(Entry{"App::new", true}, Entry{"App::run", true}, Entry{"main", true})
	re := regexp.MustCompile("App")

	require.True(t, i.Toggle(re, 1))
	require.Equal(t, []Entry{{"App::new", true}, {"App::run", false}, {"main", true}}, i.Entries)

	require.True(t, i.Toggle(nil, 2))
	require.Equal(t, Entry{"main", false}, i.Entries[2])

	// Out of range is a no-op.
	before := i.Clone()
	require.False(t, i.Toggle(re, 2))
	require.False(t, i.Toggle(re, -1))
	require.False(t, i.Toggle(regexp.MustCompile("nothing"), 0))
	require.Equal(t, before.Entries, i.Entries)
}

func TestFilteredAndCount(t *testing.T) {
	i := info(Entry{"a", true}, Entry{"ab", false}, Entry{"b", true})

	require.Equal(t, i.Entries, i.Filtered(nil))
	require.Equal(t, 3, i.CountMatching(MatchAll))

	re := regexp.MustCompile("^a")
	require.Equal(t, []Entry{{"a", true}, {"ab", false}}, i.Filtered(re))
	require.Equal(t, 2, i.CountMatching(re))

	empty := regexp.MustCompile("")
	require.Equal(t, 3, i.CountMatching(empty))
}

func TestMapAndLookup(t *testing.T) {
	i := info(Entry{"a", true}, Entry{"b", false})
	vis := i.Map()
	require.Len(t, vis, 2)
	require.False(t, vis["b"])

	v, ok := i.Lookup("b")
	require.True(t, ok)
	require.False(t, v)
	_, ok = i.Lookup("c")
	require.False(t, ok)

	unsorted := info(Entry{"z", false}, Entry{"a", true})
	v, ok = unsorted.Lookup("z")
	require.True(t, ok)
	require.False(t, v)
}

func TestEqualIgnoresOrder(t *testing.T) {
	a := info(Entry{"a", true}, Entry{"b", false})
	b := info(Entry{"b", false}, Entry{"a", true})
	require.True(t, a.Equal(b))
	b.Entries[0].Visibility = true
	require.False(t, a.Equal(b))
	require.False(t, a.Equal(info()))
}
