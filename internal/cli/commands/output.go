package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leaperl/internal/config"
)

// report is the result of a command. Every report renders as text;
// tabular reports also fill a table.
type report interface {
	writeText(w io.Writer) error
}

type tabular interface {
	fillTable(t table.Writer)
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// resolveMode turns "auto" into table on a terminal and text otherwise.
func resolveMode(mode string, w io.Writer) string {
	if mode == "" || mode == "auto" {
		if isTerminal(w) {
			return "table"
		}
		return "text"
	}
	return mode
}

// render writes r to w in mode. Reports that are not tabular fall back to
// text in table mode.
func render(w io.Writer, mode string, r report) error {
	switch resolveMode(mode, w) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case "table":
		if tr, ok := r.(tabular); ok {
			t := table.NewWriter()
			t.SetOutputMirror(w)
			t.SetStyle(table.StyleLight)
			tr.fillTable(t)
			t.Render()
			return nil
		}
		return r.writeText(w)
	case "text":
		return r.writeText(w)
	}
	return fmt.Errorf("unknown output mode %q", mode)
}

// outputMode returns the configured output mode.
func outputMode(cfg *config.Config) string {
	if cfg.Output == "" {
		return config.DefaultOutput
	}
	return cfg.Output
}
