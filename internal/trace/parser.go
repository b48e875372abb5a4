package trace

import (
	"strconv"
	"strings"
)

// Line prefixes written by the instrumentation.
const (
	PrefixEnter = "[DEBUG:func_enter"
	PrefixExit  = "[DEBUG:func_exit"
	PrefixValue = "[DEBUG:value"

	// valueSep ends the prefix of every record: "[DEBUG:value(<file>:<line>)] ".
	valueSep = ")] "
)

// Kind identifies the shape of a trace line.
type Kind int

const (
	KindOther Kind = iota // Not a trace record; ignored
	KindEnter
	KindExit
	KindValue
)

func (k Kind) String() string {
	switch k {
	case KindEnter:
		return "enter"
	case KindExit:
		return "exit"
	case KindValue:
		return "value"
	default:
		return "other"
	}
}

// Location is the instrumented source position a record was emitted from.
type Location struct {
	File string `json:"file,omitempty"`
	Line int    `json:"line,omitempty"`
}

// Record is one parsed line of trace text.
type Record struct {
	Kind     Kind
	Name     string // Function name for KindEnter and KindExit
	Text     string // Display text for KindValue
	Location Location
}

// ParseLine classifies a single line of trace text.
func ParseLine(line string) Record {
	switch {
	case strings.HasPrefix(line, PrefixEnter):
		return Record{Kind: KindEnter, Name: lastField(line), Location: parseLocation(line, PrefixEnter)}
	case strings.HasPrefix(line, PrefixExit):
		return Record{Kind: KindExit, Name: lastField(line), Location: parseLocation(line, PrefixExit)}
	case strings.HasPrefix(line, PrefixValue):
		return Record{Kind: KindValue, Text: valueText(line), Location: parseLocation(line, PrefixValue)}
	}
	return Record{Kind: KindOther}
}

// Lines calls fn for every line of text, without allocating a slice of lines.
// A trailing "\r" is dropped so CRLF traces parse like LF ones.
func Lines(text string, fn func(line string)) {
	for len(text) > 0 {
		var line string
		if i := strings.IndexByte(text, '\n'); i >= 0 {
			line, text = text[:i], text[i+1:]
		} else {
			line, text = text, ""
		}
		fn(strings.TrimSuffix(line, "\r"))
	}
}

// FunctionNames returns the name of every enter record in order of
// appearance. Duplicates are kept.
func FunctionNames(text string) []string {
	var names []string
	Lines(text, func(line string) {
		if strings.HasPrefix(line, PrefixEnter) {
			names = append(names, lastField(line))
		}
	})
	return names
}

// lastField returns the last whitespace-delimited token of line. The prefix
// itself is a token, so a record without a name yields the prefix.
func lastField(line string) string {
	line = strings.TrimRight(line, " \t")
	if i := strings.LastIndexAny(line, " \t"); i >= 0 {
		return line[i+1:]
	}
	return line
}

// valueText strips everything up to and including the first ")] ".
func valueText(line string) string {
	if i := strings.Index(line, valueSep); i >= 0 {
		return line[i+len(valueSep):]
	}
	return line
}

// parseLocation extracts "<file>:<line>" from "<prefix>(<file>:<line>)]".
func parseLocation(line, prefix string) Location {
	rest := line[len(prefix):]
	if !strings.HasPrefix(rest, "(") {
		return Location{}
	}
	end := strings.Index(rest, ")]")
	if end < 0 {
		return Location{}
	}
	inner := rest[1:end]
	colon := strings.LastIndexByte(inner, ':')
	if colon < 0 {
		return Location{File: inner}
	}
	n, err := strconv.Atoi(inner[colon+1:])
	if err != nil {
		return Location{File: inner}
	}
	return Location{File: inner[:colon], Line: n}
}
