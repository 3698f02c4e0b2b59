package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leaperl/pkg/syntax"
)

// position is a cursor given on the command line as FILE:LINE:COL
// (one-based) or as FILE with an explicit byte offset.
type position struct {
	Path   string
	Line   int
	Column int
	Offset int // -1 until resolved
}

// parsePosition parses FILE:LINE:COL. With offset >= 0 the argument is a
// plain path and offset is used as is.
func parsePosition(arg string, offset int) (position, error) {
	if offset >= 0 {
		return position{Path: arg, Offset: offset}, nil
	}
	rest, colStr, ok := cutLast(arg)
	if !ok {
		return position{}, fmt.Errorf("invalid position %q: expected FILE:LINE:COL or --offset", arg)
	}
	path, lineStr, ok := cutLast(rest)
	if !ok {
		return position{}, fmt.Errorf("invalid position %q: expected FILE:LINE:COL or --offset", arg)
	}
	line, err := strconv.Atoi(lineStr)
	if err != nil || line < 1 {
		return position{}, fmt.Errorf("invalid line in %q", arg)
	}
	col, err := strconv.Atoi(colStr)
	if err != nil || col < 1 {
		return position{}, fmt.Errorf("invalid column in %q", arg)
	}
	return position{Path: path, Line: line, Column: col, Offset: -1}, nil
}

func cutLast(s string) (before, after string, ok bool) {
	i := strings.LastIndexByte(s, ':')
	if i <= 0 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}

// resolve fills in Offset from Line and Column, or Line and Column from
// Offset.
func (p *position) resolve(lines *syntax.LineIndex) {
	if p.Offset < 0 {
		p.Offset = lines.Offset(p.Line-1, p.Column-1)
		return
	}
	line, col := lines.LineCol(p.Offset)
	p.Line, p.Column = line+1, col+1
}
