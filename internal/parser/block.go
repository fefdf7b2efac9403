package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/leapstack-labs/etlite/pkg/core"
	"github.com/leapstack-labs/etlite/pkg/funcs"
)

var (
	// headerPattern matches "category.name" with an optional ": description".
	headerPattern = regexp.MustCompile(`^(\w+)\.(\w+)\s*(?::\s*(.*))?$`)

	// commentPattern matches the comment marker of a header line.
	commentPattern = regexp.MustCompile(`^\s*--\s?`)
)

// queryMarker starts an embedded SQL fragment inside a block.
const queryMarker = "query: |"

// CompileBlock compiles one annotation block for engine, resolving its
// implementation in reg (funcs.Default when nil).
func CompileBlock(rb RawBlock, engine string, reg *funcs.Registry) (*core.Block, error) {
	c := &compiler{reg: reg}
	return c.compile(rb, engine)
}

type compiler struct {
	path string
	reg  *funcs.Registry
}

func (c *compiler) registry() *funcs.Registry {
	if c.reg == nil {
		return funcs.Default
	}
	return c.reg
}

// compile wraps every failure in a ParsingError carrying the file location;
// the wrapped errors are left unlocated.
func (c *compiler) compile(rb RawBlock, engine string) (*core.Block, error) {
	header := rb.Header()
	block, err := c.compileBlock(rb, engine)
	if err != nil {
		pe := &ParsingError{
			Path:   c.path,
			LineNo: rb.LineNo,
			Line:   header,
			Err:    err,
		}
		if m := headerPattern.FindStringSubmatch(header); m != nil {
			pe.Category, pe.Name = m[1], m[2]
		}
		return nil, pe
	}
	return block, nil
}

func (c *compiler) compileBlock(rb RawBlock, engine string) (*core.Block, error) {
	header := rb.Header()
	m := headerPattern.FindStringSubmatch(header)
	if m == nil {
		return nil, &FormatError{
			Message: fmt.Sprintf("invalid metadata block format %q, expected <category>.<name>[: <description>]", header),
		}
	}
	category, name, description := core.Category(m[1]), m[2], strings.TrimSpace(m[3])
	if !category.Valid() {
		return nil, &ValidationError{
			LineNo:  rb.LineNo,
			Message: fmt.Sprintf("unknown metadata category: %s", category),
		}
	}

	paramLines, sqlLines, hasSQL, err := splitBody(rb.Lines[1:])
	if err != nil {
		return nil, &FormatError{Message: err.Error()}
	}

	params, err := decodeParams(Dedent(strings.Join(paramLines, "\n")))
	if err != nil {
		return nil, &FormatError{
			Message: fmt.Sprintf("invalid YAML in %s.%s block", category, name),
			Err:     err,
		}
	}

	if hasSQL {
		params = params.With("query", core.String(Dedent(strings.Join(sqlLines, "\n"))))
	}

	block := &core.Block{
		Category:    category,
		Kind:        name,
		Params:      params,
		Description: description,
		Line:        header,
		LineNo:      rb.LineNo,
	}

	if category == core.CategoryMeta && name == "engine" {
		if params.StringOr("type", "") == "" {
			block.Params = params.With("type", core.String(engine))
		}
		return block, nil
	}

	impl, err := c.registry().Resolve(category, name, engine)
	if err != nil {
		return nil, err
	}
	block.Impl = impl
	return block, nil
}

// splitBody strips comment markers from the parameter lines of a block and
// separates the embedded SQL fragment introduced by "query: |".
func splitBody(lines []string) (params []string, sql []string, hasSQL bool, err error) {
	baseIndent := -1
	for i, line := range lines {
		if hasSQL {
			sql = append(sql, stripComment(line))
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !strings.HasPrefix(strings.TrimSpace(line), "--") {
			return nil, nil, false, fmt.Errorf("line %d of block is not a SQL comment: %q", i+2, strings.TrimSpace(line))
		}
		text := stripComment(line)
		if strings.TrimSpace(text) == "" {
			continue
		}
		indent := indentOf(text)
		if baseIndent < 0 {
			baseIndent = indent
		}
		if strings.TrimSpace(text) == queryMarker && indent <= baseIndent {
			hasSQL = true
			continue
		}
		params = append(params, text)
	}
	return params, sql, hasSQL, nil
}

func stripComment(line string) string {
	line = strings.TrimRight(line, " \t\r")
	if !strings.HasPrefix(strings.TrimSpace(line), "--") {
		return line
	}
	return commentPattern.ReplaceAllString(line, "")
}

// Dedent removes the common leading whitespace of the non-blank lines of
// text and trims leading and trailing blank lines. Text whose minimum
// indentation is already zero is only trimmed.
func Dedent(text string) string {
	lines := strings.Split(text, "\n")
	minIndent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if n := indentOf(line); minIndent < 0 || n < minIndent {
			minIndent = n
		}
	}
	if minIndent < 0 {
		return ""
	}
	for i, line := range lines {
		if len(line) >= minIndent {
			lines[i] = line[minIndent:]
		} else {
			lines[i] = strings.TrimLeft(line, " \t")
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func indentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}
