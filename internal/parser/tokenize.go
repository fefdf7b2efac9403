package parser

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// mainPattern matches the "-- @main" separator between header and query.
	mainPattern = regexp.MustCompile(`--\s*@main\b`)

	// blockPattern matches the start of an annotation block.
	blockPattern = regexp.MustCompile(`(?m)^[ \t]*--[ \t]*@`)
)

// RawBlock is one annotation block as it appears in the file header.
type RawBlock struct {
	// Lines[0] is the header text after "-- @"; the remaining lines keep
	// their comment markers.
	Lines []string
	// LineNo is the 1-based file line of the "-- @" marker.
	LineNo int
}

// Header returns the header text of the block.
func (b RawBlock) Header() string {
	if len(b.Lines) == 0 {
		return ""
	}
	return b.Lines[0]
}

// Tokenize splits raw into annotation blocks and the trimmed main query.
func Tokenize(raw string) ([]RawBlock, string, error) {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")

	seps := mainPattern.FindAllStringIndex(raw, -1)
	switch {
	case len(seps) == 0:
		return nil, "", &FormatError{Message: "SQL file must contain a '-- @main' separator"}
	case len(seps) > 1:
		return nil, "", &FormatError{
			LineNo:  lineOf(raw, seps[1][0]),
			Message: "SQL file must contain exactly one '-- @main' separator, found " + strconv.Itoa(len(seps)),
		}
	}

	header := raw[:seps[0][0]]
	query := strings.TrimSpace(raw[seps[0][1]:])

	starts := blockPattern.FindAllStringIndex(header, -1)

	preamble := header
	if len(starts) > 0 {
		preamble = header[:starts[0][0]]
	}
	if line, ok := firstNonComment(preamble); ok {
		return nil, "", &FormatError{
			LineNo:  line,
			Message: "unexpected text before the first annotation; header lines must be SQL comments",
		}
	}

	blocks := make([]RawBlock, 0, len(starts))
	for i, loc := range starts {
		end := len(header)
		if i+1 < len(starts) {
			end = starts[i+1][0]
		}
		body := strings.TrimRight(header[loc[1]:end], " \t\n")
		if strings.TrimSpace(body) == "" {
			continue
		}
		lines := strings.Split(body, "\n")
		lines[0] = strings.TrimSpace(lines[0])
		blocks = append(blocks, RawBlock{
			Lines:  lines,
			LineNo: lineOf(raw, loc[0]),
		})
	}

	return blocks, query, nil
}

// firstNonComment returns the line (1-based) of the first non-blank line of
// text that is not a SQL comment.
func firstNonComment(text string) (int, bool) {
	for i, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		return i + 1, true
	}
	return 0, false
}

func lineOf(text string, offset int) int {
	// The pattern may match leading whitespace; point at the marker itself.
	for offset < len(text) && (text[offset] == ' ' || text[offset] == '\t') {
		offset++
	}
	return strings.Count(text[:offset], "\n") + 1
}
