package commands

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaperl/internal/config"
	"github.com/leapstack-labs/leaperl/internal/defs"
)

type symbolTarget struct {
	Kind   string `json:"kind" yaml:"kind"`
	Name   string `json:"name" yaml:"name"`
	File   string `json:"file" yaml:"file"`
	Line   int    `json:"line,omitempty" yaml:"line,omitempty"`
	Column int    `json:"column,omitempty" yaml:"column,omitempty"`
	Local  bool   `json:"local" yaml:"local"`
}

type classifyReport struct {
	Position   string         `json:"position" yaml:"position"`
	Found      bool           `json:"found" yaml:"found"`
	Class      string         `json:"class,omitempty" yaml:"class,omitempty"`
	Definition bool           `json:"definition" yaml:"definition"`
	Reference  string         `json:"reference,omitempty" yaml:"reference,omitempty"`
	Targets    []symbolTarget `json:"targets" yaml:"targets"`
}

func (r *classifyReport) writeText(w io.Writer) error {
	if !r.Found {
		_, _ = fmt.Fprintf(w, "%s: no symbol\n", r.Position)
		return nil
	}
	_, _ = fmt.Fprintf(w, "%s: %s\n", r.Position, r.Class)
	for _, t := range r.Targets {
		if t.Line > 0 {
			_, _ = fmt.Fprintf(w, "  %s %s at %s:%d:%d\n", t.Kind, t.Name, t.File, t.Line, t.Column)
		} else {
			_, _ = fmt.Fprintf(w, "  %s %s in %s\n", t.Kind, t.Name, t.File)
		}
	}
	return nil
}

func (r *classifyReport) fillTable(t table.Writer) {
	t.SetTitle(r.Position)
	t.AppendHeader(table.Row{"Kind", "Name", "Location", "Local"})
	for _, tg := range r.Targets {
		loc := tg.File
		if tg.Line > 0 {
			loc = fmt.Sprintf("%s:%d:%d", tg.File, tg.Line, tg.Column)
		}
		t.AppendRow(table.Row{tg.Kind, tg.Name, loc, tg.Local})
	}
	if r.Found {
		t.AppendFooter(table.Row{"", r.Class})
	} else {
		t.AppendFooter(table.Row{"", "no symbol"})
	}
}

// NewClassifyCommand creates the classify command.
func NewClassifyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify <file:line:col>",
		Short: "Classify the symbol at a position",
		Long: `Decide whether the token at a position is the definition of a symbol
or a reference to one, and resolve references to their definitions.

Positions are one-based FILE:LINE:COL, or FILE with --offset.`,
		Example: `  # What does the atom at line 12, column 5 refer to?
  leaperl classify src/my_mod.erl:12:5

  # Use a byte offset instead
  leaperl classify src/my_mod.erl --offset 240 -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			offset, _ := cmd.Flags().GetInt("offset")
			return runClassify(cmd, args[0], offset)
		},
	}
	cmd.Flags().Int("offset", -1, "Byte offset into the file instead of line and column")
	return cmd
}

func runClassify(cmd *cobra.Command, arg string, offset int) error {
	ctx := cmd.Context()
	pos, err := parsePosition(arg, offset)
	if err != nil {
		return err
	}
	p, err := loadProject(ctx, pos.Path)
	if err != nil {
		return err
	}
	file, err := p.file(pos.Path)
	if err != nil {
		return err
	}
	snap := p.db.Snapshot()
	sf, err := snap.Parse(ctx, file)
	if err != nil {
		return err
	}
	pos.resolve(sf.Lines)

	cls, ok, err := defs.Classify(ctx, snap, file, pos.Offset)
	if err != nil {
		return err
	}
	r := &classifyReport{
		Position: fmt.Sprintf("%s:%d:%d", p.rel(snap.Path(file)), pos.Line, pos.Column),
		Found:    ok,
		Targets:  []symbolTarget{},
	}
	if ok {
		r.Class = cls.String()
		r.Definition = cls.IsDefinition()
		if !r.Definition {
			r.Reference = cls.Type.String()
		}
		for d := range cls.All() {
			t := symbolTarget{
				Kind:  d.Kind(),
				Name:  d.Name(),
				File:  p.rel(snap.Path(d.File())),
				Local: d.IsLocal(),
			}
			if rng := d.Range(); rng.Start.Line > 0 {
				t.Line, t.Column = rng.Start.Line, rng.Start.Column
			}
			r.Targets = append(r.Targets, t)
		}
	}
	return render(cmd.OutOrStdout(), outputMode(config.FromContext(ctx)), r)
}
