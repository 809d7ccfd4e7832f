package scoring

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/straja-ai/adaware/internal/risk"
	"github.com/straja-ai/adaware/internal/rules"
	"github.com/straja-ai/adaware/internal/signals"
)

// RiskSignals lists heuristic red flags using the default thresholds.
func RiskSignals(label string, credibility float64, strongPhrases []string, text string) []string {
	return DefaultThresholds().RiskSignals(label, credibility, strongPhrases, text)
}

// RiskSignals lists heuristic red flags from label, trust score and text.
func (t Thresholds) RiskSignals(label string, credibility float64, strongPhrases []string, text string) []string {
	t = t.WithDefaults()
	lower := strings.ToLower(text)
	var out []string

	switch n := len(strongPhrases); {
	case n >= t.ManyStrongPhrases:
		out = append(out, "Contains many urgency / strong-sell phrases.")
	case n >= t.SeveralStrongPhrases:
		out = append(out, "Contains several urgency / strong-sell phrases.")
	}

	for _, m := range percentOffRe.FindAllStringSubmatch(lower, -1) {
		pct, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if pct >= t.LargeDiscountPercent {
			out = append(out, fmt.Sprintf("Unusually large discount mentioned (%d%% off).", pct))
		}
	}

	if strings.Contains(lower, "free") &&
		(strings.Contains(lower, "gift") || strings.Contains(lower, "reward") || strings.Contains(lower, "bonus")) {
		out = append(out, "Mentions 'free' together with gifts/rewards (check details carefully).")
	}
	if strings.Contains(lower, "no risk") || strings.Contains(lower, "guaranteed returns") {
		out = append(out, "Promises 'no risk' or guaranteed returns (potential red flag).")
	}
	if label == risk.LabelScamLike {
		out = append(out, "Overall pattern of text looks similar to scam-style messages.")
	}
	if credibility < t.LowTrustSignal {
		out = append(out, "Low overall trust score from combined signals.")
	}
	return out
}

// TrustReasons builds the classic reasons list: sentiment, strong phrases,
// brand/product mentions, authenticity, then rule descriptions.
func TrustReasons(nlp signals.NLPFacts, authenticity string, triggers []rules.Trigger) []string {
	var out []string
	switch strings.ToUpper(nlp.Sentiment.Label) {
	case "POSITIVE":
		out = append(out, "Text has mostly positive/persuasive language.")
	case "NEGATIVE":
		out = append(out, "Text contains negative or fear-oriented wording.")
	}
	if math.Abs(nlp.Sentiment.Score) > 0.4 {
		label := strings.ToUpper(nlp.Sentiment.Label)
		if label == "" {
			label = "NEUTRAL"
		}
		out = append(out, fmt.Sprintf("Sentiment intensity is relatively strong (%s).", label))
	}
	if len(nlp.StrongPhrases) > 0 {
		out = append(out, "Detected strong marketing or urgency phrases in the text.")
	}
	if b := nlp.EntitiesOf("BRAND"); len(b) > 0 {
		out = append(out, fmt.Sprintf("Detected brand-like entity: %s.", b[0]))
	}
	if p := nlp.EntitiesOf("PRODUCT"); len(p) > 0 {
		out = append(out, fmt.Sprintf("Detected product-like entity: %s.", p[0]))
	}
	switch authenticity {
	case "high":
		out = append(out, "Overall signals suggest the ad is relatively consistent.")
	case "low":
		out = append(out, "Signals suggest possible inconsistency or aggressive persuasion.")
	}
	for _, tr := range triggers {
		out = append(out, fmt.Sprintf("%s (%s severity).", tr.Description, tr.Severity))
	}
	return out
}

// Authenticity grades how well confidence and image-text similarity agree.
func Authenticity(confidence float64, similarity *float64) string {
	sim := 0.0
	if similarity != nil {
		sim = *similarity
	}
	avg := (confidence + sim) / 2
	switch {
	case avg >= 0.75:
		return "high"
	case avg >= 0.4:
		return "medium"
	case avg > 0:
		return "low"
	default:
		return "unknown"
	}
}

// URLTrust is a shallow hint from link shorteners and marketplace names.
func URLTrust(text string) string {
	t := strings.ToLower(text)
	switch {
	case strings.TrimSpace(t) == "":
		return "unknown"
	case strings.Contains(t, "bit.ly") || strings.Contains(t, "tinyurl.com") || strings.Contains(t, "freegift"):
		return "low"
	case strings.Contains(t, "official") || strings.Contains(t, "amazon") ||
		strings.Contains(t, "flipkart") || strings.Contains(t, "myntra"):
		return "medium"
	default:
		return "unknown"
	}
}

// Subcategories merges evidence tags with rule categories, sorted and distinct.
func Subcategories(evidenceTags []string, triggers []rules.Trigger) []string {
	set := map[string]struct{}{}
	for _, t := range evidenceTags {
		if t = strings.TrimSpace(t); t != "" {
			set[t] = struct{}{}
		}
	}
	for _, tr := range triggers {
		if tr.Category != "" {
			set[tr.Category] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
