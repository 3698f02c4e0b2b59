package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaperl/internal/config"
	"github.com/leapstack-labs/leaperl/internal/hir"
	"github.com/leapstack-labs/leaperl/pkg/syntax"
)

type diagnostic struct {
	Line    int    `json:"line" yaml:"line"`
	Column  int    `json:"column" yaml:"column"`
	Message string `json:"message" yaml:"message"`
}

type formSummary struct {
	Kind string `json:"kind" yaml:"kind"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	Line int    `json:"line" yaml:"line"`
}

type parseReport struct {
	File   string        `json:"file" yaml:"file"`
	Forms  []formSummary `json:"forms" yaml:"forms"`
	Errors []diagnostic  `json:"errors" yaml:"errors"`
	Tree   string        `json:"tree,omitempty" yaml:"tree,omitempty"`
}

func (r *parseReport) writeText(w io.Writer) error {
	_, _ = fmt.Fprintf(w, "%s: %d forms, %d errors\n", r.File, len(r.Forms), len(r.Errors))
	for _, d := range r.Errors {
		_, _ = fmt.Fprintf(w, "  %d:%d: %s\n", d.Line, d.Column, d.Message)
	}
	if r.Tree != "" {
		_, _ = fmt.Fprintln(w)
		_, _ = io.WriteString(w, r.Tree)
	}
	return nil
}

func (r *parseReport) fillTable(t table.Writer) {
	t.SetTitle(r.File)
	t.AppendHeader(table.Row{"Line", "Kind", "Name"})
	for _, f := range r.Forms {
		t.AppendRow(table.Row{f.Line, f.Kind, f.Name})
	}
	for _, d := range r.Errors {
		t.AppendFooter(table.Row{fmt.Sprintf("%d:%d", d.Line, d.Column), "error", d.Message})
	}
}

// NewParseCommand creates the parse command.
func NewParseCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a file and report its forms and syntax errors",
		Long: `Parse an Erlang source file with error recovery.

Lists the top-level forms the parser found and every syntax error.
With --tree the concrete syntax tree is printed as well.`,
		Example: `  # Summarise a module
  leaperl parse src/my_mod.erl

  # Dump the syntax tree
  leaperl parse src/my_mod.erl --tree`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, _ := cmd.Flags().GetBool("tree")
			return runParse(cmd, args[0], tree)
		},
	}
	cmd.Flags().Bool("tree", false, "Print the concrete syntax tree")
	return cmd
}

func runParse(cmd *cobra.Command, path string, tree bool) error {
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
	sf, err := snap.Parse(ctx, file)
	if err != nil {
		return err
	}
	fl, err := snap.FormList(ctx, file)
	if err != nil {
		return err
	}

	r := &parseReport{
		File:   p.rel(snap.Path(file)),
		Forms:  summariseForms(fl),
		Errors: diagnostics(sf.Errors),
	}
	if tree {
		var sb strings.Builder
		dumpTree(&sb, sf.Root, 0)
		r.Tree = sb.String()
	}
	return render(cmd.OutOrStdout(), outputMode(config.FromContext(ctx)), r)
}

func diagnostics(errs []error) []diagnostic {
	out := make([]diagnostic, 0, len(errs))
	for _, err := range errs {
		var pe *syntax.ParseError
		var le *syntax.LexError
		switch {
		case errors.As(err, &pe):
			out = append(out, diagnostic{Line: pe.Pos.Line, Column: pe.Pos.Column, Message: pe.Message})
		case errors.As(err, &le):
			out = append(out, diagnostic{Line: le.Pos.Line, Column: le.Pos.Column, Message: le.Message})
		default:
			out = append(out, diagnostic{Message: err.Error()})
		}
	}
	return out
}

func summariseForms(fl *hir.FormList) []formSummary {
	out := make([]formSummary, 0, len(fl.Forms()))
	for _, idx := range fl.Forms() {
		n := fl.Node(idx)
		s := formSummary{Kind: idx.Kind.String(), Line: n.Span.Start.Line}
		switch idx.Kind {
		case hir.FormModuleAttribute:
			s.Name = fl.ModuleAttr.Name
		case hir.FormFunction:
			s.Name = fl.Functions[idx.Index].Name.String()
		case hir.FormTypeAlias:
			s.Name = fl.TypeAliases[idx.Index].Name.String()
		case hir.FormSpec:
			s.Name = fl.Specs[idx.Index].Name.String()
		case hir.FormCallback:
			s.Name = fl.Callbacks[idx.Index].Name.String()
		case hir.FormRecord:
			s.Name = "#" + fl.Records[idx.Index].Name
		case hir.FormAttribute:
			s.Name = fl.Attributes[idx.Index].Name
		case hir.FormDefine:
			s.Name = "?" + fl.Defines[idx.Index].Key().String()
		case hir.FormInclude:
			s.Name = fl.Includes[idx.Index].Path
		case hir.FormImport:
			s.Name = fl.Imports[idx.Index].Module
		case hir.FormBehaviour:
			s.Name = fl.Behaviours[idx.Index].Name
		case hir.FormPpDirective:
			s.Name = fl.PpDirectives[idx.Index].Name
		}
		out = append(out, s)
	}
	return out
}

// dumpTree writes one line per node, indented by depth.
func dumpTree(w io.Writer, n *syntax.Node, depth int) {
	if n == nil {
		return
	}
	_, _ = fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth), n)
	for _, c := range n.Children {
		dumpTree(w, c, depth+1)
	}
}
