package token

import "strings"

// Comment represents a % comment with position.
type Comment struct {
	Text string // includes the leading % characters
	Span Span
}

// Level returns the number of leading % characters.
func (c *Comment) Level() int {
	return len(c.Text) - len(strings.TrimLeft(c.Text, "%"))
}

// IsDoc reports whether the comment uses the %% or %%% convention.
func (c *Comment) IsDoc() bool {
	return c.Level() >= 2
}
