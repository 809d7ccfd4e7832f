package engine

import (
	"maps"
	"slices"
	"time"

	"github.com/straja-ai/adaware/internal/evidence"
	"github.com/straja-ai/adaware/internal/explain"
	"github.com/straja-ai/adaware/internal/fusion"
	"github.com/straja-ai/adaware/internal/opinion"
	"github.com/straja-ai/adaware/internal/risk"
	"github.com/straja-ai/adaware/internal/rules"
	"github.com/straja-ai/adaware/internal/scoring"
	"github.com/straja-ai/adaware/internal/signals"
	"github.com/straja-ai/adaware/internal/verdict"
)

// Opinion outcomes recorded on every result.
const (
	OpinionDisabled  = "disabled"
	OpinionSkipped   = "skipped"
	OpinionOK        = "ok"
	OpinionTimeout   = "timeout"
	OpinionError     = "error"
	OpinionMalformed = "malformed"
)

// Classic holds the deterministic scores computed before any opinion.
type Classic struct {
	Label          string              `json:"label"`
	Probability    float64             `json:"probability"`
	Confidence     float64             `json:"confidence"`
	Legitimacy     float64             `json:"legitimacy"`
	RiskLevel      risk.Level          `json:"risk_level"`
	DomainTrust    scoring.DomainTrust `json:"domain_trust"`
	Authenticity   string              `json:"authenticity"`
	URLTrust       string              `json:"url_trust"`
	OCRQuality     float64             `json:"ocr_quality"`
	Subcategories  []string            `json:"subcategories,omitempty"`
	HealthAdvisory []string            `json:"health_advisories,omitempty"`
}

// Result is the full outcome of one evaluation.
type Result struct {
	ID            string                    `json:"analysis_id"`
	Fingerprint   string                    `json:"fingerprint"`
	Timestamp     time.Time                 `json:"timestamp"`
	Cached        bool                      `json:"cached"`
	Text          string                    `json:"text"`
	NLP           signals.NLPFacts          `json:"nlp"`
	Catalog       *signals.CatalogMatch     `json:"catalog,omitempty"`
	Domain        *signals.DomainReputation `json:"domain,omitempty"`
	Classic       Classic                   `json:"classic"`
	Rules         []rules.Trigger           `json:"rule_triggers"`
	Evidence      []evidence.Span           `json:"evidence_spans"`
	Opinion       *opinion.Overlay          `json:"opinion,omitempty"`
	OpinionStatus string                    `json:"opinion_status"`
	Profile       fusion.RiskProfile        `json:"risk_profile"`
	Consistency   fusion.ConsistencyView    `json:"fusion_consistency"`
	Verdict       verdict.Verdict           `json:"verdict"`
	Explanation   explain.Explanation       `json:"explanation"`
	ProductInfo   map[string]string         `json:"product_info"`
}

// cloneResult copies every slice and map a caller could mutate so cached values
// stay isolated.
func cloneResult(r Result) Result {
	out := r
	out.NLP.Entities = slices.Clone(r.NLP.Entities)
	out.NLP.StrongPhrases = slices.Clone(r.NLP.StrongPhrases)
	if r.Catalog != nil {
		c := *r.Catalog
		c.Names = slices.Clone(c.Names)
		c.HealthAdvisories = slices.Clone(c.HealthAdvisories)
		out.Catalog = &c
	}
	if r.Domain != nil {
		d := *r.Domain
		d.Flags = slices.Clone(d.Flags)
		out.Domain = &d
	}
	out.Classic.Subcategories = slices.Clone(r.Classic.Subcategories)
	out.Classic.HealthAdvisory = slices.Clone(r.Classic.HealthAdvisory)
	out.Rules = slices.Clone(r.Rules)
	out.Evidence = slices.Clone(r.Evidence)
	if r.Opinion != nil {
		o := *r.Opinion
		o.RiskSignalsExtra = slices.Clone(o.RiskSignalsExtra)
		o.EvidenceSpans = slices.Clone(o.EvidenceSpans)
		o.SubLabels = slices.Clone(o.SubLabels)
		o.ProductInfo = maps.Clone(o.ProductInfo)
		o.Bullets = slices.Clone(o.Bullets)
		o.Issues = slices.Clone(o.Issues)
		out.Opinion = &o
	}
	out.Profile.RiskSignals = slices.Clone(r.Profile.RiskSignals)
	out.Profile.Reasons = slices.Clone(r.Profile.Reasons)
	out.Verdict.Advisories = slices.Clone(r.Verdict.Advisories)
	out.Verdict.Escalations = slices.Clone(r.Verdict.Escalations)
	e := &out.Explanation
	e.Highlights = slices.Clone(e.Highlights)
	e.Alternatives = slices.Clone(e.Alternatives)
	e.Bullets = slices.Clone(e.Bullets)
	e.Reasons = slices.Clone(e.Reasons)
	e.RiskSignals = slices.Clone(e.RiskSignals)
	out.ProductInfo = maps.Clone(r.ProductInfo)
	return out
}
