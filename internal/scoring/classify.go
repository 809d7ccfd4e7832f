package scoring

import (
	"regexp"
	"strings"

	"github.com/straja-ai/adaware/internal/lexicon"
	"github.com/straja-ai/adaware/internal/risk"
	"github.com/straja-ai/adaware/internal/signals"
)

var percentOffRe = regexp.MustCompile(`\b(\d{2,})\s*% off\b`)

// Classifier assigns the classic scam-focused label from keyword tables.
type Classifier struct {
	set *lexicon.Set
}

// NewClassifier binds a classifier to a vocabulary.
func NewClassifier(set *lexicon.Set) *Classifier {
	if set == nil {
		set = lexicon.Default()
	}
	return &Classifier{set: set}
}

// PredictLabel classifies with the default vocabulary.
func PredictLabel(text string) (string, float64) {
	return NewClassifier(nil).PredictLabel(text)
}

// PredictLabel returns the classic label and its probability. Health terms
// never make an ad look like a scam.
func (c *Classifier) PredictLabel(text string) (string, float64) {
	if strings.TrimSpace(text) == "" {
		return risk.LabelGeneric, 0.3
	}
	t := strings.ToLower(text)

	if lexicon.ContainsAny(t, c.set.Scam) {
		return risk.LabelScamLike, 0.85
	}

	triggers := 0
	if strings.Contains(t, "100% free") || strings.Contains(t, "free money") {
		triggers++
	}
	if percentOffRe.MatchString(t) &&
		(strings.Contains(t, "90%") || strings.Contains(t, "95%") || strings.Contains(t, "100%")) {
		triggers++
	}
	if triggers >= 2 {
		return risk.LabelRiskyPromo, 0.75
	}

	if lexicon.ContainsAny(t, c.set.Promo) {
		return risk.LabelPromotion, 0.7
	}
	return risk.LabelGeneric, 0.5
}

// Advisory names.
const (
	AdvisoryHighCaffeine = "High Caffeine Content"
	AdvisoryEnergyDrink  = "Health Advisory: Energy Drink"
	AdvisorySupplement   = "Dietary Supplement Warning"
	AdvisoryFinancial    = "Financial Risk Advisory"
)

// HealthAdvisories merges catalog advisories with those implied by the text,
// deduplicated, catalog first.
func HealthAdvisories(text string, match *signals.CatalogMatch) []string {
	var out []string
	if match != nil {
		out = append(out, match.HealthAdvisories...)
	}
	out = append(out, textAdvisories(text)...)
	return dedupeTrimmed(out)
}

func textAdvisories(text string) []string {
	t := strings.ToLower(text)
	if strings.TrimSpace(t) == "" {
		return nil
	}
	var out []string
	if strings.Contains(t, "caffeine") || strings.Contains(t, "energy") {
		if strings.Contains(t, "high caffeine") {
			out = append(out, AdvisoryHighCaffeine)
		} else if strings.Contains(t, "energy drink") {
			out = append(out, AdvisoryEnergyDrink)
		}
	}
	if strings.Contains(t, "supplement") || strings.Contains(t, "diet") || strings.Contains(t, "weight loss") {
		out = append(out, AdvisorySupplement)
	}
	if strings.Contains(t, "crypto") || strings.Contains(t, "bitcoin") {
		out = append(out, AdvisoryFinancial)
	}
	return out
}

func dedupeTrimmed(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
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
