package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/leapstack-labs/leaperl/internal/config"
	"github.com/leapstack-labs/leaperl/pkg/token"
)

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run a project health check",
		Long: `Analyze the project for problems that degrade semantic analysis.

The doctor command loads every source file and reports:
- Project summary (modules, headers, include graph)
- Health checks grouped by category (Config, Includes, Modules, Syntax)
- Health score (0-100)
- Actionable recommendations`,
		Example: `  # Run health check
  leaperl doctor

  # Output as JSON
  leaperl doctor --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd)
		},
	}
	return cmd
}

// DoctorOutput is the report of the doctor command.
type DoctorOutput struct {
	Summary         ProjectSummary `json:"summary" yaml:"summary"`
	HealthChecks    []HealthCheck  `json:"health_checks" yaml:"health_checks"`
	Score           int            `json:"score" yaml:"score"`
	Recommendations []string       `json:"recommendations" yaml:"recommendations"`
	IssueCount      int            `json:"issue_count" yaml:"issue_count"`
}

// ProjectSummary contains project-level statistics.
type ProjectSummary struct {
	Modules      int `json:"modules" yaml:"modules"`
	Headers      int `json:"headers" yaml:"headers"`
	IncludeDepth int `json:"include_depth" yaml:"include_depth"`
	IncludeEdges int `json:"include_edges" yaml:"include_edges"`
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	RuleID     string   `json:"rule_id" yaml:"rule_id"`
	Name       string   `json:"name" yaml:"name"`
	Group      string   `json:"group" yaml:"group"`
	Status     string   `json:"status" yaml:"status"` // "pass", "warn", "error"
	IssueCount int      `json:"issue_count" yaml:"issue_count"`
	Details    []string `json:"details,omitempty" yaml:"details,omitempty"`
}

type healthRule struct {
	id, name, group string
	severity        string // status when the rule finds issues
	recommendation  string
}

var healthRules = []healthRule{
	{"CF01", "Configured directories exist", "config", "warn",
		"Remove or fix include_dirs and lib_dirs entries that do not exist"},
	{"IN01", "Every include resolves", "includes", "error",
		"Add the directories holding missing headers to include_dirs or lib_dirs"},
	{"IN02", "No include cycles", "includes", "error",
		"Break include cycles; guard headers with -ifndef"},
	{"MO01", "Every module has a -module attribute", "modules", "warn",
		"Add a -module attribute to every .erl file"},
	{"MO02", "Module names match file names", "modules", "warn",
		"Rename modules or files so that -module(name) lives in name.erl"},
	{"MO03", "Module names are unique", "modules", "error",
		"Remove duplicate modules; only one of them is used for remote calls"},
	{"SY01", "Files parse without errors", "syntax", "error",
		"Fix syntax errors; forms after an error may be lowered partially"},
	{"SY02", "Atoms use composed Unicode (NFC)", "syntax", "warn",
		"Write atoms in composed form; a decomposed spelling is a different atom that looks the same"},
}

func runDoctor(cmd *cobra.Command) error {
	ctx := cmd.Context()
	p, err := loadProject(ctx)
	if err != nil {
		return err
	}
	out, err := diagnoseProject(ctx, p)
	if err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), outputMode(config.FromContext(ctx)), out)
}

// diagnoseProject runs every health rule over p.
func diagnoseProject(ctx context.Context, p *project) (*DoctorOutput, error) {
	snap := p.db.Snapshot()
	if err := snap.Prewarm(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to lower project: %w", err)
	}

	issues := map[string][]string{}
	summary := ProjectSummary{}

	for _, dir := range append(append([]string{}, p.cfg.IncludeDirs...), p.cfg.LibDirs...) {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			issues["CF01"] = append(issues["CF01"], p.rel(dir))
		}
	}

	g, unresolved, err := includeGraph(ctx, p, snap)
	if err != nil {
		return nil, err
	}
	issues["IN01"] = unresolved
	if cyclic, path := g.HasCycle(); cyclic {
		issues["IN02"] = append(issues["IN02"], strings.Join(path, " -> "))
	}
	summary.IncludeDepth = len(includeLevels(g))
	summary.IncludeEdges = g.EdgeCount()

	owners := map[string][]string{}
	for _, file := range snap.Files() {
		path := p.rel(snap.Path(file))
		sf, err := snap.Parse(ctx, file)
		if err != nil {
			return nil, err
		}
		if n := len(sf.Errors); n > 0 {
			issues["SY01"] = append(issues["SY01"], fmt.Sprintf("%s: %d errors", path, n))
		}
		issues["SY02"] = append(issues["SY02"], decomposedAtoms(path, sf.Tokens)...)
		if filepath.Ext(path) != ".erl" {
			summary.Headers++
			continue
		}
		summary.Modules++
		fl, err := snap.FormList(ctx, file)
		if err != nil {
			return nil, err
		}
		base := strings.TrimSuffix(filepath.Base(path), ".erl")
		name := fl.ModuleName()
		switch {
		case name == "":
			issues["MO01"] = append(issues["MO01"], path)
			name = base
		case name != base:
			issues["MO02"] = append(issues["MO02"], fmt.Sprintf("%s: module %s", path, name))
		}
		owners[name] = append(owners[name], path)
	}
	for name, paths := range owners {
		if len(paths) > 1 {
			issues["MO03"] = append(issues["MO03"], fmt.Sprintf("%s: %s", name, strings.Join(paths, ", ")))
		}
	}

	out := &DoctorOutput{Summary: summary, Recommendations: []string{}}
	for _, rule := range healthRules {
		details := issues[rule.id]
		sort.Strings(details)
		check := HealthCheck{
			RuleID:     rule.id,
			Name:       rule.name,
			Group:      rule.group,
			Status:     "pass",
			IssueCount: len(details),
			Details:    details,
		}
		if len(details) > 0 {
			check.Status = rule.severity
			out.Recommendations = append(out.Recommendations, rule.recommendation)
		}
		out.IssueCount += len(details)
		out.HealthChecks = append(out.HealthChecks, check)
	}

	// Sort health checks by group then by rule ID
	sort.Slice(out.HealthChecks, func(i, j int) bool {
		if out.HealthChecks[i].Group != out.HealthChecks[j].Group {
			return out.HealthChecks[i].Group < out.HealthChecks[j].Group
		}
		return out.HealthChecks[i].RuleID < out.HealthChecks[j].RuleID
	})

	// Limit to top 5 recommendations
	if len(out.Recommendations) > 5 {
		out.Recommendations = out.Recommendations[:5]
	}
	out.Score = calculateHealthScore(out.HealthChecks, summary.Modules)
	return out, nil
}

// decomposedAtoms lists atoms whose text is not in NFC. Such an atom is
// distinct from its composed twin even though both print alike.
func decomposedAtoms(path string, toks []token.Token) []string {
	var out []string
	seen := map[string]bool{}
	for _, tok := range toks {
		if tok.Type != token.ATOM || seen[tok.Value] || norm.NFC.IsNormalString(tok.Value) {
			continue
		}
		seen[tok.Value] = true
		out = append(out, fmt.Sprintf("%s:%d: %s", path, tok.Pos.Line, tok.Literal))
	}
	return out
}

// calculateHealthScore computes a health score from 0-100. Errors cost
// twice as much as warnings, and each issue costs less in larger projects.
func calculateHealthScore(checks []HealthCheck, moduleCount int) int {
	score := 100.0

	basePenalty := 5.0
	if moduleCount > 10 {
		basePenalty = 3.0
	}
	if moduleCount > 50 {
		basePenalty = 2.0
	}
	if moduleCount > 100 {
		basePenalty = 1.0
	}

	for _, check := range checks {
		switch check.Status {
		case "error":
			score -= float64(check.IssueCount) * basePenalty * 2
		case "warn":
			score -= float64(check.IssueCount) * basePenalty
		}
	}

	return int(min(max(score, 0), 100))
}

func (out *DoctorOutput) writeText(w io.Writer) error {
	_, _ = fmt.Fprintln(w, "leaperl Project Health Report")
	_, _ = fmt.Fprintln(w, strings.Repeat("=", 55))
	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintln(w, "Project Summary")
	_, _ = fmt.Fprintf(w, "   Modules: %d | Headers: %d\n", out.Summary.Modules, out.Summary.Headers)
	_, _ = fmt.Fprintf(w, "   Include Depth: %d levels | Includes: %d\n", out.Summary.IncludeDepth, out.Summary.IncludeEdges)
	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintln(w, "Health Checks")
	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			_, _ = fmt.Fprintln(w, "   "+titleCaser.String(currentGroup))
			_, _ = fmt.Fprintln(w, "   "+strings.Repeat("-", 40))
		}

		icon := "✓"
		switch check.Status {
		case "warn":
			icon = "!"
		case "error":
			icon = "✗"
		}
		status := fmt.Sprintf("%s %s: %s", icon, check.RuleID, check.Name)
		if check.IssueCount > 0 {
			status += fmt.Sprintf(" (%d issues)", check.IssueCount)
		}
		_, _ = fmt.Fprintln(w, "   "+status)

		// Show first 3 details for issues
		for i, detail := range check.Details {
			if i >= 3 {
				_, _ = fmt.Fprintf(w, "       ... and %d more\n", len(check.Details)-3)
				break
			}
			_, _ = fmt.Fprintln(w, "       - "+detail)
		}
	}
	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintln(w, strings.Repeat("=", 55))
	_, _ = fmt.Fprintf(w, "   Health Score: %d/100\n", out.Score)

	if len(out.Recommendations) > 0 {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, "Recommendations")
		for i, rec := range out.Recommendations {
			_, _ = fmt.Fprintf(w, "   %d. %s\n", i+1, rec)
		}
	}
	return nil
}

func (out *DoctorOutput) fillTable(t table.Writer) {
	t.SetTitle(fmt.Sprintf("Health Score %d/100", out.Score))
	t.AppendHeader(table.Row{"Group", "Rule", "Check", "Status", "Issues"})
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		t.AppendRow(table.Row{titleCaser.String(check.Group), check.RuleID, check.Name, strings.ToUpper(check.Status), check.IssueCount})
	}
	t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d modules, %d headers", out.Summary.Modules, out.Summary.Headers), "", out.IssueCount})
}
