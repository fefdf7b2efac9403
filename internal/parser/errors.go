package parser

import (
	"fmt"
	"strings"
)

// FormatError reports malformed annotation syntax: a bad header line,
// invalid parameter YAML, or a missing or duplicated main separator.
type FormatError struct {
	Path    string
	LineNo  int
	Message string
	Err     error
}

func (e *FormatError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return locate(e.Path, e.LineNo, msg)
}

func (e *FormatError) Unwrap() error { return e.Err }

// ValidationError reports a structural problem with the file as a whole:
// no target, more than one target, or an unknown category.
type ValidationError struct {
	Path    string
	LineNo  int
	Message string
}

func (e *ValidationError) Error() string {
	return locate(e.Path, e.LineNo, e.Message)
}

// ParsingError wraps any failure to compile a single annotation block and
// identifies the block it came from.
type ParsingError struct {
	Path     string
	LineNo   int
	Line     string // raw header text, e.g. "invariant.sum: totals"
	Category string
	Name     string
	Err      error
}

func (e *ParsingError) Error() string {
	return locate(e.Path, e.LineNo, fmt.Sprintf("error processing metadata block '@%s': %v", e.Line, e.Err))
}

func (e *ParsingError) Unwrap() error { return e.Err }

func locate(path string, line int, msg string) string {
	var b strings.Builder
	if path != "" {
		b.WriteString(path)
		if line > 0 {
			fmt.Fprintf(&b, ":%d", line)
		}
		b.WriteString(": ")
	} else if line > 0 {
		fmt.Fprintf(&b, "line %d: ", line)
	}
	b.WriteString(msg)
	return b.String()
}
