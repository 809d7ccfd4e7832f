package explain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/straja-ai/adaware/internal/fusion"
	"github.com/straja-ai/adaware/internal/opinion"
	"github.com/straja-ai/adaware/internal/risk"
	"github.com/straja-ai/adaware/internal/signals"
	"github.com/straja-ai/adaware/internal/verdict"
)

func TestComposeEmptyInputsFillsEveryField(t *testing.T) {
	e := Compose(fusion.RiskProfile{}, verdict.Verdict{}, signals.Bundle{}, fusion.ConsistencyView{}, nil)

	assert.Equal(t, "unknown", e.Label)
	assert.Equal(t, "unknown", e.RiskLevel)
	assert.NotEmpty(t, e.Sentiment)
	assert.NotNil(t, e.Highlights)
	assert.NotEmpty(t, e.Entities)
	assert.NotEmpty(t, e.Consistency)
	assert.Equal(t, WorthMaybe, e.WorthIt)
	assert.NotEmpty(t, e.WorthReason)
	assert.NotEmpty(t, e.Alternatives)
	assert.NotEmpty(t, e.Narrative)
	assert.NotNil(t, e.Bullets)
	assert.Equal(t, "This ad is labeled unknown with a unknown overall risk level.", e.Takeaway)
}

func TestComposeOrdering(t *testing.T) {
	b := signals.Bundle{
		Text: "Nike Air sale! Limited time offer",
		NLP: &signals.NLPFacts{
			Sentiment:     signals.Sentiment{Label: "POSITIVE", Score: 0.6},
			StrongPhrases: []string{"limited time", "Limited Time "},
			Entities:      []signals.Entity{{Text: "Nike", Type: "BRAND"}, {Text: "Air", Type: "PRODUCT"}},
		},
	}
	v := verdict.Verdict{Label: verdict.ModerateRisk, RiskLevel: risk.Medium}
	cv := fusion.ConsistencyView{Overall: fusion.Consistent}
	e := Compose(fusion.RiskProfile{CredibilityFinal: 60, Reasons: []string{"r1"}}, v, b, cv, nil)

	assert.Equal(t, []string{"limited time"}, e.Highlights)
	assert.Equal(t, "Nike", e.Brand)
	assert.Equal(t, "Air", e.Product)

	order := []string{e.Sentiment, "limited time", e.Entities, e.Consistency, e.WorthReason}
	pos := -1
	for _, part := range order {
		i := strings.Index(e.Narrative, part)
		require.GreaterOrEqual(t, i, 0, part)
		assert.Greater(t, i, pos, part)
		pos = i
	}
	assert.Equal(t, []string{"r1"}, e.Bullets)
	assert.Equal(t, "This ad is labeled MODERATE_RISK with a medium overall risk level.", e.Takeaway)
}

func TestWorthIt(t *testing.T) {
	cases := map[verdict.Label]Worth{
		verdict.HighRisk:     WorthNo,
		verdict.ModerateRisk: WorthMaybe,
		verdict.LowRisk:      WorthMaybe,
		verdict.Safe:         WorthYes,
	}
	for label, want := range cases {
		e := Compose(fusion.RiskProfile{}, verdict.Verdict{Label: label}, signals.Bundle{}, fusion.ConsistencyView{}, nil)
		assert.Equal(t, want, e.WorthIt, label)
	}
}

func TestAlternativesCapped(t *testing.T) {
	b := signals.Bundle{Vision: &signals.VisionFacts{Brand: "Acme"}}
	e := Compose(fusion.RiskProfile{}, verdict.Verdict{Label: verdict.HighRisk}, b, fusion.ConsistencyView{}, nil)
	require.Len(t, e.Alternatives, 3)
	assert.Contains(t, e.Alternatives[0], "Acme")
}

func TestOpinionOverridesBulletsAndTakeaway(t *testing.T) {
	op := &opinion.Overlay{Bullets: []string{"b1", "b2"}, Takeaway: " Skip it. ", Summary: "Looks fake."}
	p := fusion.RiskProfile{Reasons: []string{"r1"}}
	e := Compose(p, verdict.Verdict{Label: verdict.HighRisk}, signals.Bundle{}, fusion.ConsistencyView{}, op)

	assert.Equal(t, []string{"b1", "b2"}, e.Bullets)
	assert.Equal(t, "Skip it.", e.Takeaway)
	assert.Contains(t, e.Narrative, "Looks fake.")

	e.Bullets[0] = "mutated"
	e.Reasons[0] = "mutated"
	assert.Equal(t, "b1", op.Bullets[0])
	assert.Equal(t, "r1", p.Reasons[0])
}

func TestHighlightsFallBackToText(t *testing.T) {
	b := signals.Bundle{Text: "BUY NOW and get a free gift"}
	e := Compose(fusion.RiskProfile{}, verdict.Verdict{}, b, fusion.ConsistencyView{}, nil)
	assert.Contains(t, e.Highlights, "buy now")
}
