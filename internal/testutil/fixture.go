package testutil

import (
	"strings"
	"testing"
)

// CursorMarker marks the cursor position in fixture text.
const CursorMarker = "~"

// DefaultPath is the file name of a fixture without file markers.
const DefaultPath = "test.erl"

// FixtureFile is one file of a fixture.
type FixtureFile struct {
	Path string
	Text string
}

// Fixture is parsed test source. Files are separated by lines of the form
// "//- path". At most one CursorMarker may appear; it is removed from the
// text and recorded.
type Fixture struct {
	Files []FixtureFile
	// CursorFile is the index into Files holding the cursor, or -1.
	CursorFile   int
	CursorOffset int
}

// ParseFixture splits text into files and extracts the cursor.
func ParseFixture(t testing.TB, text string) *Fixture {
	t.Helper()
	f := &Fixture{CursorFile: -1}

	var cur *FixtureFile
	var sb strings.Builder
	flush := func() {
		if cur != nil {
			cur.Text = sb.String()
			f.Files = append(f.Files, *cur)
		}
		sb.Reset()
	}

	text = strings.TrimPrefix(text, "\n")
	if !strings.HasPrefix(text, "//- ") {
		cur = &FixtureFile{Path: DefaultPath}
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		if path, ok := strings.CutPrefix(line, "//- "); ok {
			flush()
			cur = &FixtureFile{Path: strings.TrimSpace(path)}
			continue
		}
		if i := strings.Index(line, CursorMarker); i >= 0 {
			if f.CursorFile >= 0 {
				t.Fatalf("fixture has more than one cursor marker")
			}
			f.CursorFile = len(f.Files)
			f.CursorOffset = sb.Len() + i
			line = line[:i] + line[i+len(CursorMarker):]
		}
		sb.WriteString(line)
	}
	flush()
	return f
}

// Map returns the files keyed by path.
func (f *Fixture) Map() map[string]string {
	out := make(map[string]string, len(f.Files))
	for _, file := range f.Files {
		out[file.Path] = file.Text
	}
	return out
}

// Cursor returns the path and offset of the cursor. It fails the test if
// the fixture has none.
func (f *Fixture) Cursor(t testing.TB) (string, int) {
	t.Helper()
	if f.CursorFile < 0 {
		t.Fatalf("fixture has no cursor marker")
	}
	return f.Files[f.CursorFile].Path, f.CursorOffset
}
