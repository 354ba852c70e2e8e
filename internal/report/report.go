// Package report renders model results for the CLI.
//
// Four formats are supported: text (diagnostic lines and lipgloss tables),
// json, yaml, and markdown rendered through glamour.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"household/internal/household"
	"household/internal/model"
	"household/internal/scenario"
	"household/internal/solver"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Format is an output format.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates a format name. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatYAML, FormatMarkdown:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown output format %q (valid: text, json, yaml, markdown)", s)
	}
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// Writer renders results to an io.Writer in one format.
type Writer struct {
	out    io.Writer
	format Format
	logger *zap.Logger
}

// NewWriter creates a Writer. A nil logger disables logging.
func NewWriter(out io.Writer, format Format, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{out: out, format: format, logger: logger}
}

// AllocationReport is a single solve.
type AllocationReport struct {
	Method     string           `yaml:"method" json:"method"`
	Allocation model.Allocation `yaml:"allocation" json:"allocation"`
	Utility    float64          `yaml:"utility" json:"utility"`
}

// Allocation renders a discrete solve.
func (w *Writer) Allocation(method string, a model.Allocation, utility float64) error {
	rep := AllocationReport{Method: method, Allocation: a, Utility: utility}
	switch w.format {
	case FormatText:
		_, err := fmt.Fprintf(w.out, "%s\n%s\nutility = %.6f\n",
			titleStyle.Render(method+" solution"), a.String(), utility)
		return err
	case FormatMarkdown:
		var b strings.Builder
		fmt.Fprintf(&b, "# %s solution\n\n", method)
		writeAllocationTable(&b, a)
		fmt.Fprintf(&b, "\nUtility: `%.6f`\n", utility)
		return w.markdown(b.String())
	default:
		return w.encode(rep)
	}
}

// Continuous renders a continuous solve with its convergence details.
func (w *Writer) Continuous(res solver.Result) error {
	switch w.format {
	case FormatText:
		_, err := fmt.Fprintf(w.out, "%s\n%s\nutility = %.6f\nstatus = %s (rounds %d, iterations %d, evaluations %d)\n",
			titleStyle.Render("continuous solution"), res.Allocation.String(), res.Utility,
			res.Status, res.Rounds, res.Iterations, res.Evaluations)
		return err
	case FormatMarkdown:
		var b strings.Builder
		b.WriteString("# continuous solution\n\n")
		writeAllocationTable(&b, res.Allocation)
		fmt.Fprintf(&b, "\nUtility: `%.6f`\n\nStatus: **%s** after %d barrier rounds, %d iterations, %d evaluations\n",
			res.Utility, res.Status, res.Rounds, res.Iterations, res.Evaluations)
		return w.markdown(b.String())
	default:
		return w.encode(res)
	}
}

// Sweep renders the per-wage records of a sweep.
func (w *Writer) Sweep(s *household.Sweep) error {
	switch w.format {
	case FormatText:
		_, err := fmt.Fprintf(w.out, "%s\n%s\n",
			titleStyle.Render(fmt.Sprintf("wage sweep (%s, run %s)", s.Method, s.RunID)),
			sweepTable(s.Records))
		return err
	case FormatMarkdown:
		var b strings.Builder
		fmt.Fprintf(&b, "# Wage sweep\n\nMethod `%s`, run `%s`\n\n", s.Method, s.RunID)
		writeSweepTable(&b, s.Records)
		return w.markdown(b.String())
	default:
		return w.encode(s)
	}
}

// RegressionReport is a sweep with its fitted coefficients.
type RegressionReport struct {
	Sweep        *household.Sweep       `yaml:"sweep" json:"sweep"`
	Coefficients household.Coefficients `yaml:"coefficients" json:"coefficients"`
	Gap0         float64                `yaml:"gap0" json:"gap0"`
	Gap1         float64                `yaml:"gap1" json:"gap1"`
}

// Regression renders a sweep followed by the regression coefficients.
func (w *Writer) Regression(s *household.Sweep, c household.Coefficients) error {
	switch w.format {
	case FormatText:
		_, err := fmt.Fprintf(w.out, "%s\n%s\n%s\nbeta0 = %.4f (target %.4f, gap %+.4f)\nbeta1 = %.4f (target %.4f, gap %+.4f)\nr^2 = %.4f, n = %d\n",
			titleStyle.Render(fmt.Sprintf("wage sweep (%s, run %s)", s.Method, s.RunID)),
			sweepTable(s.Records),
			titleStyle.Render("regression log(HF/HM) ~ log(wF/wM)"),
			c.Beta0, c.Beta0Target, c.Gap0(),
			c.Beta1, c.Beta1Target, c.Gap1(),
			c.RSquared, c.N)
		return err
	case FormatMarkdown:
		var b strings.Builder
		fmt.Fprintf(&b, "# Regression\n\nMethod `%s`, run `%s`\n\n", s.Method, s.RunID)
		writeSweepTable(&b, s.Records)
		b.WriteString("\n| coefficient | estimate | target | gap |\n|---|---|---|---|\n")
		fmt.Fprintf(&b, "| beta0 | %.4f | %.4f | %+.4f |\n", c.Beta0, c.Beta0Target, c.Gap0())
		fmt.Fprintf(&b, "| beta1 | %.4f | %.4f | %+.4f |\n", c.Beta1, c.Beta1Target, c.Gap1())
		fmt.Fprintf(&b, "\nR²: `%.4f` over %d points\n", c.RSquared, c.N)
		return w.markdown(b.String())
	default:
		return w.encode(RegressionReport{Sweep: s, Coefficients: c, Gap0: c.Gap0(), Gap1: c.Gap1()})
	}
}

// Scenarios renders the results of a scenario battery.
func (w *Writer) Scenarios(results []scenario.Result) error {
	switch w.format {
	case FormatText:
		t := table.New().
			Border(lipgloss.NormalBorder()).
			StyleFunc(tableStyle).
			Headers("scenario", "ok", "beta0", "beta1", "r^2", "ms", "error")
		for _, r := range results {
			t.Row(r.ScenarioID, fmt.Sprintf("%t", r.Success),
				fmt.Sprintf("%.4f", r.Beta0), fmt.Sprintf("%.4f", r.Beta1),
				fmt.Sprintf("%.4f", r.RSquared), fmt.Sprintf("%d", r.DurationMs), r.Error)
		}
		_, err := fmt.Fprintf(w.out, "%s\n%s\n", titleStyle.Render("scenario battery"), t.String())
		return err
	case FormatMarkdown:
		var b strings.Builder
		b.WriteString("# Scenario battery\n\n| scenario | ok | beta0 | beta1 | error |\n|---|---|---|---|---|\n")
		for _, r := range results {
			fmt.Fprintf(&b, "| %s | %t | %.4f | %.4f | %s |\n", r.ScenarioID, r.Success, r.Beta0, r.Beta1, r.Error)
		}
		return w.markdown(b.String())
	default:
		return w.encode(results)
	}
}

func (w *Writer) encode(v interface{}) error {
	switch w.format {
	case FormatJSON:
		enc := json.NewEncoder(w.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", w.format)
	}
}

func (w *Writer) markdown(md string) error {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStylePath("notty"),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	out, err := renderer.Render(md)
	if err != nil {
		w.logger.Warn("Markdown render failed, writing raw markdown", zap.Error(err))
		out = md
	}
	_, err = io.WriteString(w.out, out)
	return err
}

func tableStyle(row, col int) lipgloss.Style {
	if row == table.HeaderRow {
		return headerStyle
	}
	return cellStyle
}

func sweepTable(records []model.SweepRecord) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(tableStyle).
		Headers("i", "wF", "LM", "HM", "LF", "HF", "log(HF/HM)", "log(wF/wM)")
	for _, r := range records {
		t.Row(fmt.Sprintf("%d", r.Index),
			fmt.Sprintf("%.4f", r.WF),
			fmt.Sprintf("%.4f", r.LM),
			fmt.Sprintf("%.4f", r.HM),
			fmt.Sprintf("%.4f", r.LF),
			fmt.Sprintf("%.4f", r.HF),
			fmt.Sprintf("%.4f", r.LogHFHM),
			fmt.Sprintf("%.4f", r.LogWFWM))
	}
	return t.String()
}

func writeSweepTable(b *strings.Builder, records []model.SweepRecord) {
	b.WriteString("| i | wF | LM | HM | LF | HF | log(HF/HM) |\n|---|---|---|---|---|---|---|\n")
	for _, r := range records {
		fmt.Fprintf(b, "| %d | %.4f | %.4f | %.4f | %.4f | %.4f | %.4f |\n",
			r.Index, r.WF, r.LM, r.HM, r.LF, r.HF, r.LogHFHM)
	}
}

func writeAllocationTable(b *strings.Builder, a model.Allocation) {
	b.WriteString("| LM | HM | LF | HF |\n|---|---|---|---|\n")
	fmt.Fprintf(b, "| %.4f | %.4f | %.4f | %.4f |\n", a.LM, a.HM, a.LF, a.HF)
}
