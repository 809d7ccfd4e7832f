package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/straja-ai/adaware/internal/engine"
	"github.com/straja-ai/adaware/internal/verdict"
)

var (
	colorSafe     = lipgloss.Color("#2CD7C7")
	colorModerate = lipgloss.Color("#F4D03F")
	colorHigh     = lipgloss.Color("#E74C3C")
	colorMuted    = lipgloss.Color("#6C7A89")

	headingStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorMuted).Padding(0, 1)
)

func labelColor(l verdict.Label) lipgloss.Color {
	switch l {
	case verdict.HighRisk:
		return colorHigh
	case verdict.ModerateRisk:
		return colorModerate
	case verdict.Safe, verdict.LowRisk:
		return colorSafe
	}
	return colorMuted
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// renderReport is the human view of a result printed by analyze on a
// terminal.
func renderReport(res *engine.Result) string {
	v := res.Verdict
	ex := res.Explanation

	badge := lipgloss.NewStyle().Bold(true).Foreground(labelColor(v.Label)).Render(string(v.Label))
	var b strings.Builder
	fmt.Fprintf(&b, "%s  risk %.2f  legitimacy %.0f/100\n", badge, v.RiskScore, v.Legitimacy)
	if ex.Takeaway != "" {
		fmt.Fprintf(&b, "%s\n", ex.Takeaway)
	}

	if len(ex.Bullets) > 0 {
		b.WriteString("\n" + headingStyle.Render("Why") + "\n")
		for _, line := range ex.Bullets {
			fmt.Fprintf(&b, "  - %s\n", line)
		}
	}
	if len(res.Rules) > 0 {
		b.WriteString("\n" + headingStyle.Render("Rules") + "\n")
		for _, t := range res.Rules {
			fmt.Fprintf(&b, "  %s [%s] %s\n", t.RuleID, t.Severity, t.Description)
		}
	}
	if len(res.Evidence) > 0 {
		b.WriteString("\n" + headingStyle.Render("Evidence") + "\n")
		for _, s := range res.Evidence {
			fmt.Fprintf(&b, "  %q %s\n", s.Text, mutedStyle.Render(string(s.Kind)))
		}
	}

	fmt.Fprintf(&b, "\nWorth it: %s. %s\n", ex.WorthIt, ex.WorthReason)
	if len(ex.Alternatives) > 0 {
		fmt.Fprintf(&b, "Alternatives: %s\n", strings.Join(ex.Alternatives, ", "))
	}
	b.WriteString(mutedStyle.Render(fmt.Sprintf("analysis %s, opinion %s", res.ID, res.OpinionStatus)))

	return boxStyle.Render(b.String())
}
