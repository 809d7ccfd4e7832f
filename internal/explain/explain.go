package explain

import (
	"fmt"
	"strings"

	"github.com/straja-ai/adaware/internal/fusion"
	"github.com/straja-ai/adaware/internal/lexicon"
	"github.com/straja-ai/adaware/internal/opinion"
	"github.com/straja-ai/adaware/internal/signals"
	"github.com/straja-ai/adaware/internal/verdict"
)

// Worth is the purchase recommendation.
type Worth string

const (
	WorthYes   Worth = "yes"
	WorthMaybe Worth = "maybe"
	WorthNo    Worth = "no"
)

const maxAlternatives = 3

// Explanation is the UI-facing narrative skeleton. Every field is always set.
type Explanation struct {
	Label        string   `json:"label"`
	RiskLevel    string   `json:"risk_level"`
	Credibility  float64  `json:"credibility"`
	Sentiment    string   `json:"sentiment"`
	Highlights   []string `json:"highlights"`
	Entities     string   `json:"entities"`
	Brand        string   `json:"brand_name"`
	Product      string   `json:"product_name"`
	Consistency  string   `json:"consistency"`
	WorthIt      Worth    `json:"worth_it"`
	WorthReason  string   `json:"worth_reason"`
	Alternatives []string `json:"alternatives"`
	Narrative    string   `json:"explanation_text"`
	Bullets      []string `json:"bullets"`
	Takeaway     string   `json:"short_takeaway"`
	Reasons      []string `json:"reasons"`
	RiskSignals  []string `json:"risk_signals"`
}

// Composer builds explanations against a vocabulary.
type Composer struct {
	set *lexicon.Set
}

// NewComposer binds a composer to set; nil uses the default vocabulary.
func NewComposer(set *lexicon.Set) *Composer {
	if set == nil {
		set = lexicon.Default()
	}
	return &Composer{set: set}
}

var defaultComposer = NewComposer(nil)

// Compose uses the default vocabulary.
func Compose(p fusion.RiskProfile, v verdict.Verdict, b signals.Bundle, c fusion.ConsistencyView, op *opinion.Overlay) Explanation {
	return defaultComposer.Compose(p, v, b, c, op)
}

// Compose orders the narrative as sentiment, strong phrases, entity mentions,
// consistency, worth-it and alternatives. Opinion bullets and takeaway win
// over the generated ones when present. Inputs are never modified.
func (c *Composer) Compose(p fusion.RiskProfile, v verdict.Verdict, b signals.Bundle, cv fusion.ConsistencyView, op *opinion.Overlay) Explanation {
	nlp := b.NLPOrEmpty()
	e := Explanation{
		Label:       string(v.Label),
		RiskLevel:   string(v.RiskLevel),
		Credibility: p.CredibilityFinal,
		Reasons:     append([]string{}, p.Reasons...),
		RiskSignals: append([]string{}, p.RiskSignals...),
	}
	if e.RiskLevel == "" {
		e.RiskLevel = "unknown"
	}
	if e.Label == "" {
		e.Label = "unknown"
	}

	e.Sentiment = sentimentLine(nlp.Sentiment)
	e.Highlights = c.highlights(nlp, b.NormalizedText())
	e.Brand, e.Product = mentions(nlp, b)
	e.Entities = entityLine(e.Brand, e.Product)
	e.Consistency = consistencyLine(cv)
	e.WorthIt, e.WorthReason = worthIt(v.Label)
	e.Alternatives = alternatives(e.Brand, v.Label)

	parts := []string{e.Sentiment}
	if len(e.Highlights) > 0 {
		parts = append(parts, "It includes marketing trigger phrases such as: "+strings.Join(e.Highlights, ", ")+".")
	} else {
		parts = append(parts, "No strong marketing trigger phrases were found.")
	}
	parts = append(parts, e.Entities, e.Consistency, e.WorthReason)
	if op != nil && strings.TrimSpace(op.Summary) != "" {
		parts = append(parts, strings.TrimSpace(op.Summary))
	}
	e.Narrative = strings.Join(parts, " ")

	e.Takeaway = fmt.Sprintf("This ad is labeled %s with a %s overall risk level.", e.Label, e.RiskLevel)
	e.Bullets = append([]string{}, e.Reasons...)
	if op != nil {
		if len(op.Bullets) > 0 {
			e.Bullets = append([]string{}, op.Bullets...)
		}
		if t := strings.TrimSpace(op.Takeaway); t != "" {
			e.Takeaway = t
		}
	}
	return e
}

func sentimentLine(s signals.Sentiment) string {
	switch strings.ToUpper(s.Label) {
	case "POSITIVE":
		return "The text uses overall positive or promotional sentiment."
	case "NEGATIVE":
		return "The text contains negative or fear-based sentiment, which may be used to pressure the user."
	default:
		return "The sentiment appears relatively neutral overall."
	}
}

func (c *Composer) highlights(nlp signals.NLPFacts, text string) []string {
	if len(nlp.StrongPhrases) > 0 {
		return lexicon.Normalize(nlp.StrongPhrases)
	}
	out := lexicon.Matches(strings.ToLower(text), c.set.StrongSell)
	if out == nil {
		out = []string{}
	}
	return out
}

func mentions(nlp signals.NLPFacts, b signals.Bundle) (brand, product string) {
	if bs := nlp.EntitiesOf("BRAND"); len(bs) > 0 {
		brand = bs[0]
	} else if b.Vision != nil {
		brand = strings.TrimSpace(b.Vision.Brand)
	}
	if brand == "" {
		brand = b.Catalog.PrimaryName()
	}
	if ps := nlp.EntitiesOf("PRODUCT"); len(ps) > 0 {
		product = ps[0]
	} else if b.Vision != nil {
		product = strings.TrimSpace(b.Vision.ProductName)
	}
	return brand, product
}

func entityLine(brand, product string) string {
	switch {
	case brand != "" && product != "":
		return fmt.Sprintf("The ad seems related to the brand %s and promotes %s.", brand, product)
	case brand != "":
		return fmt.Sprintf("The ad seems related to the brand %s.", brand)
	case product != "":
		return fmt.Sprintf("It appears to promote a product or service named %s.", product)
	default:
		return "No specific brand or product could be identified."
	}
}

func consistencyLine(cv fusion.ConsistencyView) string {
	switch cv.Overall {
	case fusion.Consistent:
		return "The image and the text are consistent with each other."
	case fusion.PartiallyConsistent:
		return "The image only partly matches the written claims."
	case fusion.Inconsistent:
		return "What you see in the image may not match the written claims."
	default:
		return "Image-text consistency could not be assessed."
	}
}

func worthIt(l verdict.Label) (Worth, string) {
	switch l {
	case verdict.HighRisk:
		return WorthNo, "Classified as potentially misleading or risky; proceed with caution."
	case verdict.ModerateRisk:
		return WorthMaybe, "Some warning signs were found; double-check brand, price and claims."
	case verdict.LowRisk:
		return WorthMaybe, "Looks legitimate but carries advisories worth reading before buying."
	case verdict.Safe:
		return WorthYes, "No strong red flags, but always review details before purchasing."
	default:
		return WorthMaybe, "Not enough information; review details before purchasing."
	}
}

func alternatives(brand string, l verdict.Label) []string {
	var out []string
	if brand != "" {
		out = append(out, fmt.Sprintf("Compare the same product on the official %s website.", brand))
	}
	if l == verdict.HighRisk {
		out = append(out, "Do not share payment or personal details through this ad.")
	}
	out = append(out,
		"Check price and reviews on a trusted marketplace.",
		"Look for independent reviews or user feedback before buying.",
	)
	if len(out) > maxAlternatives {
		out = out[:maxAlternatives]
	}
	return out
}
