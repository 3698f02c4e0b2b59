package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaperl/internal/config"
	"github.com/leapstack-labs/leaperl/internal/db"
	"github.com/leapstack-labs/leaperl/internal/hir"
	"github.com/leapstack-labs/leaperl/pkg/syntax"
)

type defEntry struct {
	Kind   string   `json:"kind" yaml:"kind"`
	Name   string   `json:"name" yaml:"name"`
	File   string   `json:"file" yaml:"file"`
	Line   int      `json:"line" yaml:"line"`
	Flags  []string `json:"flags,omitempty" yaml:"flags,omitempty"`
	Params []string `json:"params,omitempty" yaml:"params,omitempty"`
}

type defMapReport struct {
	File             string     `json:"file" yaml:"file"`
	Module           string     `json:"module" yaml:"module"`
	ExportAll        bool       `json:"export_all" yaml:"export_all"`
	ModuleDeprecated bool       `json:"module_deprecated" yaml:"module_deprecated"`
	Included         []string   `json:"included" yaml:"included"`
	Definitions      []defEntry `json:"definitions" yaml:"definitions"`
}

func (r *defMapReport) writeText(w io.Writer) error {
	_, _ = fmt.Fprintf(w, "module %s (%s)\n", r.Module, r.File)
	if r.ExportAll {
		_, _ = fmt.Fprintln(w, "  export_all")
	}
	if r.ModuleDeprecated {
		_, _ = fmt.Fprintln(w, "  deprecated")
	}
	for _, inc := range r.Included {
		_, _ = fmt.Fprintf(w, "  include %s\n", inc)
	}
	for _, d := range r.Definitions {
		line := fmt.Sprintf("  %-8s %s", d.Kind, d.Name)
		if len(d.Params) > 0 {
			line += "(" + strings.Join(d.Params, ", ") + ")"
		}
		if len(d.Flags) > 0 {
			line += " [" + strings.Join(d.Flags, ", ") + "]"
		}
		_, _ = fmt.Fprintf(w, "%s  %s:%d\n", line, d.File, d.Line)
	}
	return nil
}

func (r *defMapReport) fillTable(t table.Writer) {
	t.SetTitle(fmt.Sprintf("module %s", r.Module))
	t.AppendHeader(table.Row{"Kind", "Name", "Params", "Flags", "Location"})
	for _, d := range r.Definitions {
		t.AppendRow(table.Row{
			d.Kind, d.Name,
			strings.Join(d.Params, ", "),
			strings.Join(d.Flags, ", "),
			fmt.Sprintf("%s:%d", d.File, d.Line),
		})
	}
}

// NewDefMapCommand creates the defmap command.
func NewDefMapCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "defmap <file>",
		Short: "List the definitions visible in a file",
		Long: `List the functions, records, types, callbacks and macros visible in a
file, including those merged from included headers, with export and
deprecation status.`,
		Example: `  leaperl defmap src/my_mod.erl
  leaperl defmap src/my_mod.erl -o yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDefMap(cmd, args[0])
		},
	}
	return cmd
}

func runDefMap(cmd *cobra.Command, path string) error {
	ctx := cmd.Context()
	p, err := loadProject(ctx, path)
	if err != nil {
		return err
	}
	file, err := p.file(path)
	if err != nil {
		return err
	}
	snap := p.db.Snapshot()
	dm, err := snap.DefMap(ctx, file)
	if err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), outputMode(config.FromContext(ctx)), buildDefMapReport(p, snap, dm))
}

func buildDefMapReport(p *project, snap *db.Snapshot, dm *hir.DefMap) *defMapReport {
	r := &defMapReport{
		File:             p.rel(snap.Path(dm.File)),
		Module:           dm.Module,
		ExportAll:        dm.ExportAll,
		ModuleDeprecated: dm.ModuleDeprecated(),
		Included:         []string{},
		Definitions:      []defEntry{},
	}
	for _, f := range dm.IncludedFiles() {
		r.Included = append(r.Included, p.rel(snap.Path(f)))
	}
	entry := func(kind, name string, file hir.FileID, n *syntax.Node) defEntry {
		e := defEntry{Kind: kind, Name: name, File: p.rel(snap.Path(file))}
		if n != nil {
			e.Line = n.Span.Start.Line
		}
		return e
	}

	for _, fn := range dm.Functions() {
		e := entry("function", fn.Name.String(), fn.File, fn.Node)
		e.Params = fn.ParamNames
		if fn.Exported {
			e.Flags = append(e.Flags, "exported")
		}
		if fn.Deprecated {
			e.Flags = append(e.Flags, "deprecated")
		}
		r.Definitions = append(r.Definitions, e)
	}
	for _, rec := range dm.Records() {
		e := entry("record", "#"+rec.Name, rec.File, rec.Node)
		e.Params = rec.Fields
		r.Definitions = append(r.Definitions, e)
	}
	for _, ty := range dm.Types() {
		e := entry("type", ty.Name.String(), ty.File, ty.Node)
		e.Params = ty.Params
		if ty.Exported {
			e.Flags = append(e.Flags, "exported")
		}
		if ty.Opaque {
			e.Flags = append(e.Flags, "opaque")
		}
		r.Definitions = append(r.Definitions, e)
	}
	for _, cb := range dm.Callbacks() {
		e := entry("callback", cb.Name.String(), cb.File, cb.Node)
		if cb.Optional {
			e.Flags = append(e.Flags, "optional")
		}
		r.Definitions = append(r.Definitions, e)
	}
	for _, d := range dm.Defines() {
		e := entry("define", "?"+d.Key().String(), d.File, d.Node)
		e.Params = d.Params
		r.Definitions = append(r.Definitions, e)
	}
	return r
}
