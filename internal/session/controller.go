// Package session holds the interaction state of a viewing session and
// applies session controls to it: scrolling the filtered trace, editing the
// visibility set and searching it.
//
// A Controller is driven by a single event loop and is not safe for
// concurrent use.
package session

import (
	"regexp"

	"calltrace/internal/model"
	"calltrace/internal/trace"
	"calltrace/internal/visibility"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// DefaultFastStep is how far UpFast and DownFast move.
const DefaultFastStep = 20

// TraceReader re-reads the trace text in full.
type TraceReader interface {
	Read() (string, error)
}

// Store loads and flushes the visibility set.
type Store interface {
	Load() (*visibility.Info, error)
	Save(info *visibility.Info) error
}

// Options configures a Controller.
type Options struct {
	FastStep int
	Logger   *zap.Logger
}

// Controller is the session state machine.
type Controller struct {
	source   TraceReader
	store    Store
	logger   *zap.Logger
	fastStep int

	mode    Mode
	running bool
	stale   bool

	text    string
	summary trace.Summary
	info    *visibility.Info
	vis     trace.Visibility

	scroll   int
	selected int

	pattern    string
	matcher    *regexp.Regexp
	patternErr error
}

// Open reads the trace, loads the visibility set and reconciles the two.
// Any error here is fatal to the session: the initial state cannot be
// established.
func Open(source TraceReader, store Store, opts Options) (*Controller, error) {
	text, err := source.Read()
	if err != nil {
		return nil, err
	}
	info, err := store.Load()
	if err != nil {
		return nil, err
	}
	return New(text, info, source, store, opts), nil
}

// New returns a Controller over text, reconciling info against it.
func New(text string, info *visibility.Info, source TraceReader, store Store, opts Options) *Controller {
	if opts.FastStep <= 0 {
		opts.FastStep = DefaultFastStep
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	c := &Controller{
		source:   source,
		store:    store,
		logger:   opts.Logger,
		fastStep: opts.FastStep,
		mode:     Viewing,
		running:  true,
		matcher:  regexp.MustCompile(""),
	}
	c.setTrace(text, visibility.Reconcile(info, text))
	return c
}

func (c *Controller) setTrace(text string, info *visibility.Info) {
	c.text = text
	c.summary = trace.Summarize(text)
	c.info = info
	c.vis = info.Map()
	c.clampScroll()
	c.clampSelection()
	c.logger.Debug("trace loaded",
		zap.Int("lines", c.summary.Lines),
		zap.Int("functions", info.Len()),
		zap.Bool("balanced", c.summary.Balanced()))
}

// Dispatch applies one event. Only file I/O failures from Reload and Quit
// are returned; the session stays usable after either.
func (c *Controller) Dispatch(ev Event) error {
	if !c.running {
		return nil
	}

	switch ev.Action {
	case Quit:
		return c.quit()
	case ForceQuit:
		c.logger.Info("quitting without saving visibility")
		c.running = false
		return nil
	case Reload:
		return c.Reload()
	}

	if next, ok := Next(c.mode, ev.Action); ok {
		c.logger.Debug("mode change",
			zap.Stringer("from", c.mode), zap.Stringer("to", next), zap.Stringer("action", ev.Action))
		c.mode = next
		return nil
	}
	if !Accepts(c.mode, ev.Action) {
		return nil
	}

	switch c.mode {
	case Viewing:
		c.scrollBy(c.step(ev.Action))
	case EditingVisibility:
		switch ev.Action {
		case Toggle:
			c.toggle()
		case ClearSearch:
			c.setPattern("")
		default:
			c.selectBy(c.step(ev.Action))
		}
	case Searching:
		switch ev.Action {
		case InsertRune:
			c.setPattern(c.pattern + string(ev.Rune))
		case DeleteRune:
			if c.pattern == "" {
				c.mode = EditingVisibility
				return nil
			}
			r := []rune(c.pattern)
			c.setPattern(string(r[:len(r)-1]))
		case ClearSearch:
			c.setPattern("")
		}
	}
	return nil
}

// step converts a navigation action into a signed offset. Top and Bottom use
// offsets large enough to reach either end after clamping.
func (c *Controller) step(a Action) int {
	const far = int(^uint(0) >> 2)
	switch a {
	case Up:
		return -1
	case Down:
		return 1
	case UpFast:
		return -c.fastStep
	case DownFast:
		return c.fastStep
	case Top:
		return -far
	case Bottom:
		return far
	}
	return 0
}

func clamp(v, n int) int {
	if v > n-1 {
		v = n - 1
	}
	if v < 0 {
		v = 0
	}
	return v
}

func (c *Controller) scrollBy(delta int) {
	c.scroll = clamp(c.scroll+delta, c.VisibleLineCount())
}

func (c *Controller) clampScroll() { c.scrollBy(0) }

func (c *Controller) selectBy(delta int) {
	c.selected = clamp(c.selected+delta, c.FilteredCount())
}

func (c *Controller) clampSelection() { c.selectBy(0) }

func (c *Controller) toggle() {
	entries := c.info.Filtered(c.matcher)
	if !c.info.Toggle(c.matcher, c.selected) {
		return
	}
	name := entries[c.selected].FuncName
	visible, _ := c.info.Lookup(name)
	c.logger.Debug("visibility toggled", zap.String("function", name), zap.Bool("visible", visible))
	c.vis = c.info.Map()
	c.clampScroll()
}

// setPattern replaces the search pattern and resets the selection. An
// invalid pattern leaves the previous matcher in effect and records a
// pattern error until a later pattern compiles.
func (c *Controller) setPattern(p string) {
	c.pattern = p
	c.selected = 0
	re, err := regexp.Compile(p)
	if err != nil {
		c.patternErr = errors.Mark(errors.Wrapf(err, "invalid search pattern %q", p), model.ErrPattern)
		return
	}
	c.matcher = re
	c.patternErr = nil
}

// Reload re-reads the trace and reconciles the in-memory visibility set
// against it. On failure the previous trace and set are kept.
func (c *Controller) Reload() error {
	text, err := c.source.Read()
	if err != nil {
		c.logger.Warn("reload failed", zap.Error(err))
		return err
	}
	c.setTrace(text, visibility.Reconcile(c.info, text))
	c.stale = false
	c.logger.Info("trace reloaded", zap.Int("lines", c.summary.Lines))
	return nil
}

func (c *Controller) quit() error {
	if err := c.store.Save(c.info); err != nil {
		c.logger.Warn("failed to save visibility on quit", zap.Error(err))
		return err
	}
	c.running = false
	return nil
}

// MarkStale records that the trace changed on disk since it was read.
func (c *Controller) MarkStale() { c.stale = true }

// Stale reports whether the trace changed on disk since the last load.
func (c *Controller) Stale() bool { return c.stale }

// Running reports whether the session is still active.
func (c *Controller) Running() bool { return c.running }

// Mode returns the current mode.
func (c *Controller) Mode() Mode { return c.mode }

// Scroll returns the index of the first trace line shown.
func (c *Controller) Scroll() int { return c.scroll }

// Selected returns the selection index within FilteredEntries.
func (c *Controller) Selected() int { return c.selected }

// Pattern returns the search pattern as typed.
func (c *Controller) Pattern() string { return c.pattern }

// PatternError returns the error of the last pattern that failed to
// compile, or nil if the current pattern is valid.
func (c *Controller) PatternError() error { return c.patternErr }

// Text returns the current trace text.
func (c *Controller) Text() string { return c.text }

// Summary returns the shape of the current trace.
func (c *Controller) Summary() trace.Summary { return c.summary }

// Visibility returns a copy of the current visibility set.
func (c *Controller) Visibility() *visibility.Info { return c.info.Clone() }

// RenderLines filters the trace under the current visibility set.
func (c *Controller) RenderLines() []trace.RenderLine {
	return trace.Filter(c.text, c.vis)
}

// VisibleLineCount returns len(RenderLines()) without building the lines.
func (c *Controller) VisibleLineCount() int {
	return trace.CountVisible(c.text, c.vis)
}

// FilteredEntries returns the visibility entries matching the search.
func (c *Controller) FilteredEntries() []visibility.Entry {
	return c.info.Filtered(c.matcher)
}

// FilteredCount returns len(FilteredEntries()).
func (c *Controller) FilteredCount() int {
	return c.info.CountMatching(c.matcher)
}
