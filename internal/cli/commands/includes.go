package commands

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaperl/internal/config"
	"github.com/leapstack-labs/leaperl/internal/dag"
	"github.com/leapstack-labs/leaperl/internal/db"
)

type includeNode struct {
	Path       string   `json:"path" yaml:"path"`
	Includes   []string `json:"includes,omitempty" yaml:"includes,omitempty"`
	IncludedBy []string `json:"included_by,omitempty" yaml:"included_by,omitempty"`
}

type includeLevel struct {
	Level int           `json:"level" yaml:"level"`
	Files []includeNode `json:"files" yaml:"files"`
}

type includesReport struct {
	Levels     []includeLevel `json:"levels" yaml:"levels"`
	Cycle      []string       `json:"cycle,omitempty" yaml:"cycle,omitempty"`
	Unresolved []string       `json:"unresolved,omitempty" yaml:"unresolved,omitempty"`
	TotalFiles int            `json:"total_files" yaml:"total_files"`
	TotalEdges int            `json:"total_edges" yaml:"total_edges"`
}

func (r *includesReport) writeText(w io.Writer) error {
	if len(r.Cycle) > 0 {
		_, _ = fmt.Fprintf(w, "include cycle: %s\n\n", strings.Join(r.Cycle, " -> "))
	}
	for _, lvl := range r.Levels {
		_, _ = fmt.Fprintf(w, "Level %d:\n", lvl.Level)
		for _, n := range lvl.Files {
			_, _ = fmt.Fprintf(w, "  %s\n", n.Path)
			if len(n.Includes) > 0 {
				_, _ = fmt.Fprintf(w, "    includes: %s\n", strings.Join(n.Includes, ", "))
			}
			if len(n.IncludedBy) > 0 {
				_, _ = fmt.Fprintf(w, "    included by: %s\n", strings.Join(n.IncludedBy, ", "))
			}
		}
		_, _ = fmt.Fprintln(w)
	}
	for _, u := range r.Unresolved {
		_, _ = fmt.Fprintf(w, "unresolved: %s\n", u)
	}
	_, _ = fmt.Fprintf(w, "Total: %d files, %d includes\n", r.TotalFiles, r.TotalEdges)
	return nil
}

func (r *includesReport) fillTable(t table.Writer) {
	t.AppendHeader(table.Row{"Level", "File", "Includes", "Included By"})
	for _, lvl := range r.Levels {
		for _, n := range lvl.Files {
			t.AppendRow(table.Row{lvl.Level, n.Path, strings.Join(n.Includes, ", "), strings.Join(n.IncludedBy, ", ")})
		}
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d files", r.TotalFiles), fmt.Sprintf("%d includes", r.TotalEdges)})
}

// NewIncludesCommand creates the includes command.
func NewIncludesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "includes",
		Short: "Show the include graph of the project",
		Long: `Display which files include which headers, grouped by level.

Level 0 holds files that include nothing; every other file sits one
level above the deepest header it includes. Includes that resolve to
no file are listed separately.`,
		Example: `  # Show the include graph
  leaperl includes

  # Output as JSON
  leaperl includes --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIncludes(cmd)
		},
	}
	return cmd
}

func runIncludes(cmd *cobra.Command) error {
	ctx := cmd.Context()
	p, err := loadProject(ctx)
	if err != nil {
		return err
	}
	g, unresolved, err := includeGraph(ctx, p, p.db.Snapshot())
	if err != nil {
		return err
	}

	r := &includesReport{
		Levels:     []includeLevel{},
		Unresolved: unresolved,
		TotalFiles: g.NodeCount(),
		TotalEdges: g.EdgeCount(),
	}
	if cyclic, path := g.HasCycle(); cyclic {
		r.Cycle = path
	}
	for i, level := range includeLevels(g) {
		lvl := includeLevel{Level: i}
		for _, path := range level {
			lvl.Files = append(lvl.Files, includeNode{
				Path:       path,
				Includes:   g.Parents(path),
				IncludedBy: g.Children(path),
			})
		}
		r.Levels = append(r.Levels, lvl)
	}
	return render(cmd.OutOrStdout(), outputMode(config.FromContext(ctx)), r)
}

// includeGraph builds the direct include graph of every file in snap,
// keyed by project-relative path. Includes that resolve to nothing are
// returned as "file: path".
func includeGraph(ctx context.Context, p *project, snap *db.Snapshot) (*dag.Graph[string], []string, error) {
	g := dag.NewGraph[string]()
	var unresolved []string
	for _, file := range snap.Files() {
		g.AddNode(p.rel(snap.Path(file)))
	}
	for _, file := range snap.Files() {
		fl, err := snap.FormList(ctx, file)
		if err != nil {
			return nil, nil, err
		}
		from := p.rel(snap.Path(file))
		for _, inc := range fl.Includes {
			h, ok := snap.ResolveInclude(file, inc)
			if !ok {
				unresolved = append(unresolved, fmt.Sprintf("%s: %s", from, inc.Path))
				continue
			}
			if h == file {
				continue
			}
			if err := g.AddEdge(p.rel(snap.Path(h)), from); err != nil {
				return nil, nil, err
			}
		}
	}
	return g, unresolved, nil
}

// includeLevels groups nodes so that every node sits one level above its
// deepest dependency. A cyclic graph comes back as a single level.
func includeLevels(g *dag.Graph[string]) [][]string {
	order, err := g.TopologicalSort()
	if err != nil {
		return [][]string{g.Nodes()}
	}
	depth := make(map[string]int, len(order))
	var levels [][]string
	for _, id := range order {
		d := 0
		for _, parent := range g.Parents(id) {
			d = max(d, depth[parent]+1)
		}
		depth[id] = d
		for len(levels) <= d {
			levels = append(levels, nil)
		}
		levels[d] = append(levels[d], id)
	}
	for _, level := range levels {
		slices.Sort(level)
	}
	return levels
}
