package fusion

import (
	"strings"

	"github.com/straja-ai/adaware/internal/opinion"
	"github.com/straja-ai/adaware/internal/risk"
	"github.com/straja-ai/adaware/internal/scoring"
)

// Provenance sources.
const (
	SourceOpinion  = "opinion"
	SourceClassic  = "classic"
	SourceBlend    = "blend"
	SourceInferred = "inferred"
	SourceDefault  = "default"
)

// Classic is the deterministic verdict before any opinion is applied.
type Classic struct {
	Label       string
	Credibility *float64
	RiskLevel   risk.Level // inferred level; derived when empty
	RiskSignals []string
	Reasons     []string
}

// Provenance records which layer produced each final value.
type Provenance struct {
	Label       string `json:"label"`
	Credibility string `json:"credibility"`
	RiskLevel   string `json:"risk_level"`
}

// RiskProfile is the merged verdict. It is never mutated after Merge returns.
type RiskProfile struct {
	LabelClassic string `json:"label_classic"`
	LabelOpinion string `json:"label_opinion,omitempty"`
	LabelFinal   string `json:"label_final"`

	CredibilityClassic *float64 `json:"credibility_classic,omitempty"`
	CredibilityOpinion *float64 `json:"credibility_opinion,omitempty"`
	CredibilityFinal   float64  `json:"credibility_final"`

	RiskLevelOpinion  risk.Level `json:"risk_level_opinion,omitempty"`
	RiskLevelInferred risk.Level `json:"risk_level_inferred"`
	RiskLevelFinal    risk.Level `json:"risk_level_final"`

	RiskSignals []string   `json:"risk_signals"`
	Reasons     []string   `json:"reasons"`
	Provenance  Provenance `json:"provenance"`
}

// Merger applies opinion precedence with configurable weights.
type Merger struct {
	th scoring.Thresholds
}

// NewMerger binds a merger to thresholds.
func NewMerger(th scoring.Thresholds) *Merger {
	return &Merger{th: th.WithDefaults()}
}

var defaultMerger = NewMerger(scoring.DefaultThresholds())

// Merge combines classic and opinion with the default weights.
func Merge(classic Classic, op *opinion.Overlay) RiskProfile {
	return defaultMerger.Merge(classic, op)
}

// Merge builds a RiskProfile. The opinion label, level and signals take
// precedence; credibility is blended rather than replaced.
func (m *Merger) Merge(classic Classic, op *opinion.Overlay) RiskProfile {
	p := RiskProfile{}

	p.LabelClassic = strings.TrimSpace(classic.Label)
	if op != nil {
		p.LabelOpinion = strings.TrimSpace(op.Label)
	}
	switch {
	case p.LabelOpinion != "":
		p.LabelFinal, p.Provenance.Label = p.LabelOpinion, SourceOpinion
	case p.LabelClassic != "":
		p.LabelFinal, p.Provenance.Label = p.LabelClassic, SourceClassic
	default:
		p.LabelFinal, p.Provenance.Label = risk.LabelUnknown, SourceDefault
	}

	if classic.Credibility != nil {
		v := scoring.Round2(*classic.Credibility)
		p.CredibilityClassic = &v
	}
	if op != nil && op.Credibility != nil {
		v := scoring.Round2(*op.Credibility)
		p.CredibilityOpinion = &v
	}
	switch {
	case p.CredibilityClassic != nil && p.CredibilityOpinion != nil:
		w := m.th.OpinionWeight
		p.CredibilityFinal = scoring.Round2(w*(*p.CredibilityOpinion) + (1-w)*(*p.CredibilityClassic))
		p.Provenance.Credibility = SourceBlend
	case p.CredibilityOpinion != nil:
		p.CredibilityFinal, p.Provenance.Credibility = *p.CredibilityOpinion, SourceOpinion
	case p.CredibilityClassic != nil:
		p.CredibilityFinal, p.Provenance.Credibility = *p.CredibilityClassic, SourceClassic
	default:
		p.CredibilityFinal, p.Provenance.Credibility = 0, SourceDefault
	}

	p.RiskLevelInferred = classic.RiskLevel
	if p.RiskLevelInferred == "" {
		// without a classic score infer from the neutral base
		cred := 50.0
		if p.CredibilityClassic != nil {
			cred = *p.CredibilityClassic
		}
		p.RiskLevelInferred = m.th.InferRiskLevel(p.LabelClassic, cred)
	}
	if op != nil {
		if lvl, ok := risk.ParseLevel(string(op.RiskLevel)); ok {
			p.RiskLevelOpinion = lvl
		}
	}
	if p.RiskLevelOpinion != "" {
		p.RiskLevelFinal, p.Provenance.RiskLevel = p.RiskLevelOpinion, SourceOpinion
	} else {
		p.RiskLevelFinal, p.Provenance.RiskLevel = p.RiskLevelInferred, SourceInferred
	}

	var extra []string
	if op != nil {
		extra = op.RiskSignalsExtra
	}
	p.RiskSignals = DedupeSignals(append(append([]string(nil), classic.RiskSignals...), extra...))
	p.Reasons = mergeReasons(classic.Reasons, p.RiskSignals)
	return p
}

// Remerge rebuilds the profile from its own classic and opinion layers with
// an optional newer opinion overlaid field by field. Remerge(nil) returns an
// equal profile.
func (m *Merger) Remerge(p RiskProfile, op *opinion.Overlay) RiskProfile {
	classic := Classic{
		Label:       p.LabelClassic,
		Credibility: p.CredibilityClassic,
		RiskLevel:   p.RiskLevelInferred,
		RiskSignals: p.RiskSignals,
		Reasons:     p.Reasons,
	}
	prev := &opinion.Overlay{
		Label:       p.LabelOpinion,
		Credibility: p.CredibilityOpinion,
		RiskLevel:   p.RiskLevelOpinion,
	}
	if op != nil {
		if strings.TrimSpace(op.Label) != "" {
			prev.Label = op.Label
		}
		if op.Credibility != nil {
			prev.Credibility = op.Credibility
		}
		if op.RiskLevel != "" {
			prev.RiskLevel = op.RiskLevel
		}
		prev.RiskSignalsExtra = op.RiskSignalsExtra
	}
	return m.Merge(classic, prev)
}

// Remerge uses the default weights.
func (p RiskProfile) Remerge(op *opinion.Overlay) RiskProfile {
	return defaultMerger.Remerge(p, op)
}

// DedupeSignals trims entries and drops empties and repeats, keeping the
// first occurrence. Case is preserved and significant.
func DedupeSignals(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// mergeReasons keeps reasons in order without repeats, then appends every
// signal not already present.
func mergeReasons(reasons, signals []string) []string {
	out := DedupeSignals(reasons)
	present := make(map[string]struct{}, len(out))
	for _, r := range out {
		present[r] = struct{}{}
	}
	for _, s := range signals {
		if _, ok := present[s]; ok {
			continue
		}
		present[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
