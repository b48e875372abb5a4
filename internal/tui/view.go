package tui

import (
	"fmt"
	"strings"

	"calltrace/internal/model"
	"calltrace/internal/session"
	"calltrace/internal/trace"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))

	guideStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("81")) // Sky Blue/Cyan

	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	hiddenStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	normalStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("208")) // Orange

	borderColor = lipgloss.Color("63")
	activeColor = lipgloss.Color("205")
)

func (m AppModel) View() string {
	width := m.WindowSize.Width
	height := m.WindowSize.Height

	// Subtracting 4 for the horizontal borders of both panes
	netWidth := width - 4
	if netWidth < 20 {
		netWidth = 20
	}

	h := m.Help
	h.Width = width
	helpView := h.View(modeHelp{keys: m.Keys, mode: m.Ctrl.Mode()})
	statusView := m.statusLine(width)

	// Total box height (including borders) after help and status lines
	boxHeight := height - lipgloss.Height(helpView) - 1
	if boxHeight < 4 {
		boxHeight = 4
	}
	interiorHeight := boxHeight - 2

	mode := m.Ctrl.Mode()
	leftWidth := netWidth
	rightWidth := 0
	if mode != session.Viewing {
		rightWidth = netWidth / 3
		if rightWidth < 20 {
			rightWidth = 20
		}
		leftWidth = netWidth - rightWidth
	}

	leftBorder := borderColor
	if mode == session.Viewing {
		leftBorder = activeColor
	}
	left := lipgloss.NewStyle().
		Width(leftWidth).
		Height(interiorHeight).
		Border(lipgloss.NormalBorder()).
		BorderForeground(leftBorder).
		Render(m.traceView(leftWidth, interiorHeight))

	body := left
	if mode != session.Viewing {
		right := lipgloss.NewStyle().
			Width(rightWidth).
			Height(interiorHeight).
			Border(lipgloss.NormalBorder()).
			BorderForeground(activeColor).
			Render(m.editorView(rightWidth, interiorHeight))
		body = lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	}

	return lipgloss.JoinVertical(lipgloss.Left, helpView, body, statusView)
}

// traceView draws the filtered trace starting at the controller's scroll
// offset. The content is padded so the last line can reach the top.
func (m AppModel) traceView(width, height int) string {
	lines := m.Ctrl.RenderLines()
	rendered := make([]string, 0, len(lines)+height)
	for _, l := range lines {
		rendered = append(rendered, renderTraceLine(l, width))
	}
	for i := 0; i < height-1; i++ {
		rendered = append(rendered, "")
	}

	vp := m.TraceView
	vp.Width = width
	vp.Height = height
	vp.SetContent(strings.Join(rendered, "\n"))
	vp.SetYOffset(m.Ctrl.Scroll())
	return vp.View()
}

func renderTraceLine(l trace.RenderLine, width int) string {
	guides := strings.Repeat(model.GlyphDepth, l.Depth)
	text := truncate(l.Text, width-ansi.StringWidth(guides))
	if l.Kind == trace.ValueLabel {
		return guideStyle.Render(guides) + valueStyle.Render(text)
	}
	return guideStyle.Render(guides) + normalStyle.Render(text)
}

// editorView draws the search box and the windowed list of entries that
// match the current pattern.
func (m AppModel) editorView(width, height int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Visibility"))
	b.WriteString("\n")

	ti := m.SearchInput
	ti.Width = width - 4
	ti.SetValue(m.Ctrl.Pattern())
	if m.Ctrl.Mode() == session.Searching {
		ti.Focus()
	} else {
		ti.Blur()
	}
	b.WriteString("/" + ti.View())
	b.WriteString("\n")

	header := 2
	if err := m.Ctrl.PatternError(); err != nil {
		b.WriteString(errorStyle.Render(truncate(err.Error(), width)))
		b.WriteString("\n")
		header++
	}

	entries := m.Ctrl.FilteredEntries()
	selected := m.Ctrl.Selected()

	// Windowing Logic, keeping the selection centered where possible
	visibleItems := height - header
	if visibleItems < 1 {
		visibleItems = 1
	}
	startIdx := 0
	endIdx := len(entries)
	if len(entries) > visibleItems {
		if selected >= visibleItems/2 {
			startIdx = selected - visibleItems/2
		}
		if startIdx+visibleItems > len(entries) {
			startIdx = len(entries) - visibleItems
		}
		endIdx = startIdx + visibleItems
	}

	for i := startIdx; i < endIdx; i++ {
		e := entries[i]
		glyph, style := model.GlyphVisible, normalStyle
		if !e.Visibility {
			glyph, style = model.GlyphHidden, hiddenStyle
		}
		marker := "   "
		if i == selected && m.Ctrl.Mode() == session.EditingVisibility {
			marker = model.GlyphSelected
			style = selectedStyle
		}
		line := truncate(fmt.Sprintf("%s%s %s", marker, glyph, e.FuncName), width)
		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}
	if len(entries) == 0 {
		b.WriteString(hiddenStyle.Render("  no matching functions"))
	}

	return strings.TrimSuffix(b.String(), "\n")
}

func (m AppModel) statusLine(width int) string {
	s := m.Ctrl.Summary()
	parts := []string{m.Ctrl.Mode().String()}
	if m.Ctrl.Stale() {
		parts = append(parts, model.GlyphStale+" trace changed, ctrl+r to reload")
	}
	parts = append(parts, fmt.Sprintf("%d/%d lines", m.Ctrl.VisibleLineCount(), s.Lines))
	if !s.Balanced() {
		parts = append(parts, fmt.Sprintf("unbalanced (%d stray, %d unclosed)", s.StrayExits, s.Unclosed))
	}
	line := statusStyle.Render(strings.Join(parts, "  "))
	if m.Status != "" {
		room := width - lipgloss.Width(line) - 2
		line += "  " + errorStyle.Render(truncate(m.Status, room))
	}
	return line
}

// truncate shortens s to at most width terminal cells, ending in "...".
func truncate(s string, width int) string {
	if width > 3 && ansi.StringWidth(s) > width {
		return ansi.Truncate(s, width, "...")
	}
	return s
}
