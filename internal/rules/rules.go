package rules

import (
	"strings"

	"github.com/straja-ai/adaware/internal/lexicon"
)

// Severity tiers a rule trigger.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank orders severities; unknown values rank below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	default:
		return 0
	}
}

// Trigger is one fired policy rule.
type Trigger struct {
	RuleID      string   `json:"rule_id"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
}

const (
	categoryHealth      = "health-claim"
	categoryFinancial   = "financial-promise"
	categoryScam        = "scam-keyword"
	categoryTestimonial = "testimonial"
	categoryUrgency     = "urgency"
)

type rule struct {
	ID          string
	Category    string
	Description string
	Severity    Severity
	match       func(lower string) bool
}

// Engine evaluates the rule table against ad text.
type Engine struct {
	rules []rule
}

// New builds the rule table over the given vocabulary.
func New(set *lexicon.Set) *Engine {
	if set == nil {
		set = lexicon.Default()
	}
	return &Engine{rules: ruleDefs(set)}
}

var defaultEngine = New(lexicon.Default())

// Evaluate runs the default rule table.
func Evaluate(text string) []Trigger {
	return defaultEngine.Evaluate(text)
}

// Evaluate returns every rule that fires, in table order. Empty text fires nothing.
func (e *Engine) Evaluate(text string) []Trigger {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" || e == nil {
		return nil
	}
	var out []Trigger
	for _, r := range e.rules {
		if !r.match(lower) {
			continue
		}
		out = append(out, Trigger{
			RuleID:      r.ID,
			Category:    r.Category,
			Description: r.Description,
			Severity:    r.Severity,
		})
	}
	return out
}

// IDs lists rule identifiers in table order.
func (e *Engine) IDs() []string {
	out := make([]string, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, r.ID)
	}
	return out
}

func ruleDefs(set *lexicon.Set) []rule {
	return []rule{
		{
			ID: "H1", Category: categoryHealth, Severity: SeverityHigh,
			Description: "Guaranteed cure/remedy claim detected",
			match: func(t string) bool {
				return lexicon.ContainsAny(t, set.HealthCures) && lexicon.ContainsAny(t, set.HealthPromise)
			},
		},
		{
			ID: "F1", Category: categoryFinancial, Severity: SeverityHigh,
			Description: "Unrealistic financial promise",
			match:       func(t string) bool { return lexicon.ContainsAny(t, set.FinancialHype) },
		},
		{
			ID: "S1", Category: categoryScam, Severity: SeverityHigh,
			Description: "Scam-style keyword detected",
			match:       func(t string) bool { return lexicon.ContainsAny(t, set.Scam) },
		},
		{
			ID: "B1", Category: categoryTestimonial, Severity: SeverityMedium,
			Description: "Before/After comparison usage",
			match: func(t string) bool {
				return strings.Contains(t, "before") && strings.Contains(t, "after")
			},
		},
		{
			ID: "C1", Category: categoryUrgency, Severity: SeverityMedium,
			Description: "High urgency / FOMO tactics",
			match:       func(t string) bool { return lexicon.ContainsAny(t, set.Urgency) },
		},
	}
}

// MaxSeverity returns the highest severity among triggers, or "".
func MaxSeverity(triggers []Trigger) Severity {
	var best Severity
	for _, t := range triggers {
		if t.Severity.Rank() > best.Rank() {
			best = t.Severity
		}
	}
	return best
}
