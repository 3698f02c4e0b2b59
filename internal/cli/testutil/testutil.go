// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/leaperl/internal/testutil"
)

// DefaultProject is a small rebar-style project: one module with a local
// header, one module calling it, and a header under include/.
const DefaultProject = `
//- src/shop.erl
-module(shop).
-export([total/1, add/2]).
-include("shop.hrl").
-include("money.hrl").

-type amount() :: integer().

-spec total([#item{}]) -> amount().
total(Items) -> lists:sum([price(I) || I <- Items]).

add(Item, Items) -> [Item | Items].

price(#item{price = P}) -> ?CENTS(P).
//- src/shop.hrl
-record(item, {name, price = 0}).
//- src/cart.erl
-module(cart).
-export([checkout/1]).

checkout(Items) -> shop:total(Items).
//- include/money.hrl
-define(CENTS(X), X * 100).
`

// SetupTestProject creates a temporary project from fixture text, files
// separated by "//- path" lines, and returns its root.
func SetupTestProject(t *testing.T, fixture string) string {
	t.Helper()

	tmpDir := t.TempDir()
	fx := testutil.ParseFixture(t, fixture)
	for _, f := range fx.Files {
		WriteFile(t, filepath.Join(tmpDir, f.Path), f.Text)
	}
	return tmpDir
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertContains checks that the string contains the expected substring.
func AssertContains(t *testing.T, s, expected string) {
	t.Helper()
	if !strings.Contains(s, expected) {
		t.Errorf("string %q does not contain expected %q", s, expected)
	}
}

// AssertNotContains checks that the string does not contain the substring.
func AssertNotContains(t *testing.T, s, unexpected string) {
	t.Helper()
	if strings.Contains(s, unexpected) {
		t.Errorf("string %q unexpectedly contains %q", s, unexpected)
	}
}

// LineCol returns the 1-based line and column of the first occurrence of
// needle in the file at path, offset by delta bytes.
func LineCol(t *testing.T, path, needle string, delta int) (int, int) {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	idx := strings.Index(string(content), needle)
	if idx < 0 {
		t.Fatalf("%q not found in %s", needle, path)
	}
	idx += delta
	before := string(content[:idx])
	line := strings.Count(before, "\n") + 1
	col := idx - strings.LastIndex(before, "\n")
	return line, col
}
