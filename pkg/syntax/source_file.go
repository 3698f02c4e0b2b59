package syntax

import (
	"sort"

	"github.com/leapstack-labs/leaperl/pkg/token"
)

// SourceFile is the result of parsing one file.
type SourceFile struct {
	Text     string
	Root     *Node
	Tokens   []token.Token // ends with EOF
	Comments []*token.Comment
	Errors   []error
	Lines    *LineIndex
}

func newSourceFile(src string, root *Node, toks []token.Token, comments []*token.Comment, errs []error) *SourceFile {
	return &SourceFile{
		Text:     src,
		Root:     root,
		Tokens:   toks,
		Comments: comments,
		Errors:   errs,
		Lines:    NewLineIndex(src),
	}
}

// Forms returns the top-level forms in source order.
func (f *SourceFile) Forms() []*Node {
	return f.Root.Children
}

// HasErrors reports whether lexing or parsing reported anything.
func (f *SourceFile) HasErrors() bool {
	return len(f.Errors) > 0
}

// tokenCount excludes the trailing EOF.
func (f *SourceFile) tokenCount() int {
	return len(f.Tokens) - 1
}

// TokensTouching returns the indices of the tokens whose range includes
// offset, either inside or at one of its ends. At most two are returned.
func (f *SourceFile) TokensTouching(offset int) []int {
	n := f.tokenCount()
	// First token ending at or after offset.
	i := sort.Search(n, func(i int) bool { return f.Tokens[i].End.Offset >= offset })
	var out []int
	for ; i < n && len(out) < 2; i++ {
		t := f.Tokens[i]
		if t.Pos.Offset > offset {
			break
		}
		out = append(out, i)
	}
	return out
}

// LeftBiasedToken returns the token ending at or containing offset. When
// offset sits in whitespace the preceding token is returned and inTrivia is
// true. ok is false when no token precedes offset.
func (f *SourceFile) LeftBiasedToken(offset int) (idx int, inTrivia bool, ok bool) {
	touching := f.TokensTouching(offset)
	if len(touching) > 0 {
		first := f.Tokens[touching[0]]
		if first.Pos.Offset < offset || first.End.Offset == offset {
			return touching[0], false, true
		}
	}
	n := f.tokenCount()
	i := sort.Search(n, func(i int) bool { return f.Tokens[i].Pos.Offset >= offset })
	if i == 0 {
		return 0, false, false
	}
	return i - 1, true, true
}

// PrevToken returns the index of the token before idx, or -1.
func (f *SourceFile) PrevToken(idx int) int {
	if idx <= 0 {
		return -1
	}
	return idx - 1
}

// TokenOwner returns the innermost node whose token range contains idx.
func (f *SourceFile) TokenOwner(idx int) *Node {
	cur := f.Root
	for {
		next := childCovering(cur, idx)
		if next == nil {
			return cur
		}
		cur = next
	}
}

func childCovering(n *Node, idx int) *Node {
	for _, c := range n.Children {
		if c.FirstTok <= idx && idx < c.EndTok {
			return c
		}
	}
	return nil
}

// AncestorsAtOffset returns the nodes around offset, innermost first. Each
// token touching offset contributes its owner and the owner's ancestors;
// the chains are merged by span length. Without a touching token the
// deepest node strictly containing offset is used.
func (f *SourceFile) AncestorsAtOffset(offset int) []*Node {
	touching := f.TokensTouching(offset)
	if len(touching) == 0 {
		return f.deepestContaining(offset).Ancestors()
	}
	seen := map[*Node]bool{}
	var out []*Node
	for _, idx := range touching {
		for _, n := range f.TokenOwner(idx).Ancestors() {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Span.Len() < out[j].Span.Len()
	})
	return out
}

func (f *SourceFile) deepestContaining(offset int) *Node {
	cur := f.Root
	for {
		var next *Node
		for _, c := range cur.Children {
			if c.Span.Start.Offset < offset && offset < c.Span.End.Offset {
				next = c
				break
			}
		}
		if next == nil {
			return cur
		}
		cur = next
	}
}

// FindNodeAt returns the innermost node of kind k around offset.
func (f *SourceFile) FindNodeAt(offset int, k NodeKind) *Node {
	for _, n := range f.AncestorsAtOffset(offset) {
		if n.Kind == k {
			return n
		}
	}
	return nil
}

// TopForm returns the form containing n, or nil for the root.
func TopForm(n *Node) *Node {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Parent != nil && cur.Parent.Kind == KindSourceFile {
			return cur
		}
	}
	return nil
}

// PrevSiblingToken returns the index of the token directly before n that
// belongs to n's parent rather than to another child, or -1.
func (f *SourceFile) PrevSiblingToken(n *Node) int {
	if n.Parent == nil || n.FirstTok == 0 {
		return -1
	}
	idx := n.FirstTok - 1
	if idx < n.Parent.FirstTok {
		return -1
	}
	if childCovering(n.Parent, idx) != nil {
		return -1
	}
	return idx
}

// ---------- Line Index ----------

// LineIndex converts between byte offsets and zero-based line/column pairs.
type LineIndex struct {
	lines []int
	size  int
}

// NewLineIndex calculates byte offsets for each line start.
func NewLineIndex(content string) *LineIndex {
	offsets := []int{0} // First line starts at offset 0

	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			offsets = append(offsets, i+1)
		}
	}

	return &LineIndex{lines: offsets, size: len(content)}
}

// Offset converts a zero-based line and column to a byte offset, clamped
// to the content.
func (l *LineIndex) Offset(line, col int) int {
	if l == nil || len(l.lines) == 0 {
		return 0
	}
	if line >= len(l.lines) {
		return l.size
	}
	offset := l.lines[line] + col
	if offset > l.size {
		return l.size
	}
	return offset
}

// LineCol converts a byte offset to a zero-based line and column.
func (l *LineIndex) LineCol(offset int) (line, col int) {
	if l == nil || len(l.lines) == 0 {
		return 0, 0
	}
	line = sort.Search(len(l.lines), func(i int) bool { return l.lines[i] > offset }) - 1
	if line < 0 {
		line = 0
	}
	return line, offset - l.lines[line]
}

// LineCount returns the number of lines.
func (l *LineIndex) LineCount() int {
	return len(l.lines)
}
