package trace

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// reportTopFunctions is how many functions the report's call table lists.
const reportTopFunctions = 10

// GenerateReport renders filtered lines as plain text followed by a summary
// of the whole trace. Verbose reports append each line's source location and
// list every function instead of the most called ones.
func GenerateReport(lines []RenderLine, s Summary, verbose bool) string {
	var b strings.Builder

	for _, l := range lines {
		b.WriteString(l.String())
		if verbose && l.Location.File != "" {
			fmt.Fprintf(&b, "  (%s:%d)", l.Location.File, l.Location.Line)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n=== Summary ===\n")
	fmt.Fprintf(&b, "Lines:     %d (%d shown)\n", s.Lines, len(lines))
	fmt.Fprintf(&b, "Calls:     %d\n", s.Enters)
	fmt.Fprintf(&b, "Values:    %d\n", s.Values)
	fmt.Fprintf(&b, "Max depth: %d\n", s.MaxDepth)
	if !s.Balanced() {
		fmt.Fprintf(&b, "Warning:   unbalanced trace (%d exits without a call, %d calls never returned)\n",
			s.StrayExits, s.Unclosed)
	}

	funcs := s.Functions
	if !verbose && len(funcs) > reportTopFunctions {
		funcs = funcs[:reportTopFunctions]
	}
	if len(funcs) > 0 {
		b.WriteString("\nMost called:\n")
		tbl := tablewriter.NewWriter(&b)
		tbl.SetHeader([]string{"Calls", "Function"})
		for _, f := range funcs {
			tbl.Append([]string{strconv.Itoa(f.Calls), f.Name})
		}
		tbl.Render()
		if hidden := len(s.Functions) - len(funcs); hidden > 0 {
			fmt.Fprintf(&b, "  ... %d more\n", hidden)
		}
	}
	return b.String()
}
