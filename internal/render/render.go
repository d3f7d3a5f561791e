// Package render draws a panel state for the terminal and as a PnL chart.
package render

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/newthinker/dispersion/internal/core"
	"github.com/newthinker/dispersion/internal/panel"
	"github.com/newthinker/dispersion/internal/request"
	"github.com/newthinker/dispersion/internal/result"
	"github.com/newthinker/dispersion/internal/runconfig"
)

// Title heads every rendering of the panel.
const Title = "Dispersion Options Strategy Backtester"

// Button labels, matching the web form.
const (
	RunLabel     = "Run Backtest"
	RunningLabel = "Running Backtest..."
)

// Styles holds the lipgloss styles used by Panel.
type Styles struct {
	Title   lipgloss.Style
	Heading lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Notice  lipgloss.Style
	Muted   lipgloss.Style
	Box     lipgloss.Style
}

// DefaultStyles returns the terminal color scheme.
func DefaultStyles() Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4")),
		Heading: lipgloss.NewStyle().Bold(true).Underline(true),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		Value:   lipgloss.NewStyle().Bold(true),
		Notice:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F")).Bold(true),
		Muted:   lipgloss.NewStyle().Faint(true),
		Box:     lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
	}
}

// PlainStyles renders without decoration.
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{Title: plain, Heading: plain, Label: plain, Value: plain, Notice: plain, Muted: plain, Box: plain}
}

// Panel writes the full panel: parameters, weights, and results when a
// run has completed.
func Panel(w io.Writer, s panel.State, st Styles) error {
	sections := []string{
		st.Title.Render(Title),
		"",
		lipgloss.JoinHorizontal(lipgloss.Top,
			st.Box.Render(form(s, st)),
			"  ",
			st.Box.Render(weightsTable(s.View, st)),
		),
	}

	if s.Notice != "" {
		sections = append(sections, "", st.Notice.Render(s.Notice))
	}
	if s.View.HasResult {
		sections = append(sections, "", results(s, st))
	}

	if _, err := io.WriteString(w, lipgloss.JoinVertical(lipgloss.Left, sections...)+"\n"); err != nil {
		return core.WrapError(core.ErrRenderFailed, err)
	}
	return nil
}

func form(s panel.State, st Styles) string {
	rows := [][2]string{
		{"Start Date:", s.Config.Start},
		{"End Date:", s.Config.End},
	}
	switch s.Mode {
	case request.ModeWeighted:
		rows = append(rows,
			[2]string{"Total Notional ($):", s.Config.Raw(runconfig.FieldTotalNotional)},
			[2]string{"Vega Hedge (%):", s.Config.Raw(runconfig.FieldVegaHedge)},
		)
	case request.ModeSymbols:
		rows = append(rows,
			[2]string{"Symbols:", s.Config.Symbols},
			[2]string{"Vega Hedge (%):", s.Config.Raw(runconfig.FieldVegaHedge)},
		)
	case request.ModeSymbolsMinimal:
		rows = append(rows, [2]string{"Symbols:", s.Config.Symbols})
	}

	var b strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&b, "%s %s\n", st.Label.Render(r[0]), st.Value.Render(r[1]))
	}

	button := "[ " + RunLabel + " ]"
	if s.InFlight {
		button = st.Muted.Render("[ " + RunningLabel + " ]")
	}
	b.WriteString("\n" + button)
	return b.String()
}

func weightsTable(v result.View, st Styles) string {
	var buf bytes.Buffer
	buf.WriteString(st.Heading.Render("Selected Stocks & Weights") + "\n")

	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Symbol\tWeight\t")
	net := 0.0
	for _, row := range v.Weights {
		fmt.Fprintf(tw, "%s\t%s\t\n", row.Ticker, row.Display)
		if row.Numeric {
			net += row.Weight
		}
	}
	fmt.Fprintf(tw, "Net\t%s\t\n", result.FormatPercent(net))
	tw.Flush()

	source := "default allocation"
	if v.WeightsSource == result.SourceServer {
		source = "returned by service"
	}
	buf.WriteString(st.Muted.Render(source))
	return buf.String()
}

func results(s panel.State, st Styles) string {
	v := s.View
	var b strings.Builder
	b.WriteString(st.Heading.Render("Results:") + "\n")
	fmt.Fprintf(&b, "%s %s\n", st.Label.Render("Final PnL:"), st.Value.Render(v.FinalPnL))
	if s.Mode.UsesSymbols() {
		fmt.Fprintf(&b, "%s %s\n", st.Label.Render("Index Vol:"), st.Value.Render(v.IndexVol))
		fmt.Fprintf(&b, "%s %s\n", st.Label.Render("Dispersion:"), st.Value.Render(v.Dispersion))
	}

	if len(v.ComponentVols) > 0 {
		b.WriteString("\n" + st.Heading.Render("Component Vols") + "\n")
		tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		for _, row := range v.ComponentVols {
			fmt.Fprintf(tw, "%s\t%s\n", row.Label, row.Display)
		}
		tw.Flush()
	}

	b.WriteString("\n" + st.Heading.Render("Daily PnLs") + "\n")
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Date\tPnL")
	if v.HasPnL {
		for _, row := range v.PnL {
			fmt.Fprintf(tw, "%s\t%s\n", row.Date, row.PnL)
		}
	} else {
		fmt.Fprintln(tw, result.NoPnLData)
	}
	tw.Flush()

	return strings.TrimRight(b.String(), "\n")
}
