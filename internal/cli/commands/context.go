package commands

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaperl/internal/completion"
	"github.com/leapstack-labs/leaperl/internal/config"
)

type contextReport struct {
	Position string `json:"position" yaml:"position"`
	Context  string `json:"context" yaml:"context"`
}

func (r *contextReport) writeText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%s: %s\n", r.Position, r.Context)
	return err
}

func (r *contextReport) fillTable(t table.Writer) {
	t.AppendHeader(table.Row{"Position", "Context"})
	t.AppendRow(table.Row{r.Position, r.Context})
}

// NewContextCommand creates the context command.
func NewContextCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context <file:line:col>",
		Short: "Show the completion context at a position",
		Long: `Classify the syntactic context of a cursor for completion: an
expression, a type, an -export or -export_type list, or other.`,
		Example: `  leaperl context src/my_mod.erl:7:12`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			offset, _ := cmd.Flags().GetInt("offset")
			return runContext(cmd, args[0], offset)
		},
	}
	cmd.Flags().Int("offset", -1, "Byte offset into the file instead of line and column")
	return cmd
}

func runContext(cmd *cobra.Command, arg string, offset int) error {
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

	r := &contextReport{
		Position: fmt.Sprintf("%s:%d:%d", p.rel(snap.Path(file)), pos.Line, pos.Column),
		Context:  completion.New(sf, pos.Offset).String(),
	}
	return render(cmd.OutOrStdout(), outputMode(config.FromContext(ctx)), r)
}
