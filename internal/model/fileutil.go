package model

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// SourceLine is one line of an instrumented source file.
type SourceLine struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
	Target bool   `json:"target"` // The line named by the trace record
}

// LineContext holds the lines surrounding a trace record's source location.
type LineContext struct {
	File     string       `json:"file"`
	Line     int          `json:"line"`
	Lines    []SourceLine `json:"lines"`
	ErrorMsg string       `json:"error,omitempty"` // Set if the file couldn't be read
}

// GetLineContext reads filePath and returns the target line with up to
// radius lines on either side. Failures are reported through ErrorMsg so the
// caller can still render something useful.
func GetLineContext(filePath string, lineNumber, radius int) LineContext {
	result := LineContext{
		File: filePath,
		Line: lineNumber,
	}

	// Expand tilde in file path
	if strings.HasPrefix(filePath, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			filePath = strings.Replace(filePath, "~", home, 1)
		}
	}

	file, err := os.Open(filePath)
	if err != nil {
		result.ErrorMsg = fmt.Sprintf("Could not read file: %v", err)
		return result
	}
	defer file.Close()

	first := lineNumber - radius
	last := lineNumber + radius

	scanner := bufio.NewScanner(file)
	current := 0
	for scanner.Scan() {
		current++
		if current < first {
			continue
		}
		if current > last {
			break
		}
		result.Lines = append(result.Lines, SourceLine{
			Number: current,
			Text:   scanner.Text(),
			Target: current == lineNumber,
		})
	}

	if err := scanner.Err(); err != nil {
		result.ErrorMsg = fmt.Sprintf("Error reading file: %v", err)
		return result
	}

	// current stops short only after passing the target, so this catches
	// targets beyond the end of the file.
	if lineNumber < 1 || lineNumber > current {
		result.ErrorMsg = fmt.Sprintf("Line %d out of range (file has %d lines)", lineNumber, current)
		result.Lines = nil
	}

	return result
}
