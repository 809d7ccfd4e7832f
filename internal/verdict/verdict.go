package verdict

import (
	"github.com/straja-ai/adaware/internal/fusion"
	"github.com/straja-ai/adaware/internal/risk"
	"github.com/straja-ai/adaware/internal/rules"
	"github.com/straja-ai/adaware/internal/scoring"
)

// Label is the user-facing final classification.
type Label string

const (
	Safe         Label = "SAFE"
	LowRisk      Label = "LOW_RISK"
	ModerateRisk Label = "MODERATE_RISK"
	HighRisk     Label = "HIGH_RISK"
)

func (l Label) rank() int {
	switch l {
	case Safe:
		return 0
	case LowRisk:
		return 1
	case ModerateRisk:
		return 2
	case HighRisk:
		return 3
	default:
		return -1
	}
}

// Level maps the label onto the coarse risk tier.
func (l Label) Level() risk.Level {
	switch l {
	case HighRisk:
		return risk.High
	case ModerateRisk:
		return risk.Medium
	default:
		return risk.Low
	}
}

const (
	scoreSafe     = 0.1
	scoreModerate = 0.5
	scoreHigh     = 0.9
	scoreEscalate = 0.6
)

// Escalation records a rule lifting the label.
type Escalation struct {
	RuleID   string         `json:"rule_id"`
	Severity rules.Severity `json:"severity"`
	From     Label          `json:"from"`
	To       Label          `json:"to"`
}

// Verdict is the final decision over a profile.
type Verdict struct {
	Label       Label        `json:"final_label"`
	RiskScore   float64      `json:"risk_score"`
	RiskLevel   risk.Level   `json:"risk_level"`
	Legitimacy  float64      `json:"legitimacy"`
	Advisories  []string     `json:"advisories,omitempty"`
	Source      string       `json:"source"` // threshold | rule
	Escalations []Escalation `json:"escalations,omitempty"`
}

// Builder applies legitimacy thresholds and rule escalation.
type Builder struct {
	th scoring.Thresholds
}

// NewBuilder binds a builder to thresholds.
func NewBuilder(th scoring.Thresholds) *Builder {
	return &Builder{th: th.WithDefaults()}
}

var defaultBuilder = NewBuilder(scoring.DefaultThresholds())

// Build uses the default thresholds.
func Build(p fusion.RiskProfile, triggers []rules.Trigger, advisories []string) Verdict {
	return defaultBuilder.Build(p, triggers, advisories)
}

// Build derives the final label from the fused credibility. Rule triggers
// can only raise the label and the score.
func (b *Builder) Build(p fusion.RiskProfile, triggers []rules.Trigger, advisories []string) Verdict {
	legit := p.CredibilityFinal
	v := Verdict{Legitimacy: legit, Advisories: advisories, Source: "threshold"}

	switch {
	case legit >= b.th.SafeLegitimacy:
		v.Label, v.RiskScore = Safe, scoreSafe
		if len(advisories) > 0 {
			v.Label = LowRisk
		}
	case legit >= b.th.ModerateLegitimacy:
		v.Label, v.RiskScore = ModerateRisk, scoreModerate
	default:
		v.Label, v.RiskScore = HighRisk, scoreHigh
	}

	for _, t := range triggers {
		from := v.Label
		switch t.Severity {
		case rules.SeverityHigh:
			v.raise(HighRisk, scoreHigh)
		case rules.SeverityMedium:
			if v.Label == Safe || v.Label == LowRisk {
				v.raise(ModerateRisk, scoreEscalate)
			}
		}
		if v.Label != from {
			v.Source = "rule"
			v.Escalations = append(v.Escalations, Escalation{RuleID: t.RuleID, Severity: t.Severity, From: from, To: v.Label})
		}
	}

	v.RiskLevel = p.RiskLevelFinal
	if v.Label.Level().Rank() > v.RiskLevel.Rank() {
		v.RiskLevel = v.Label.Level()
	}
	return v
}

func (v *Verdict) raise(to Label, floor float64) {
	if to.rank() > v.Label.rank() {
		v.Label = to
	}
	if v.RiskScore < floor {
		v.RiskScore = floor
	}
}
