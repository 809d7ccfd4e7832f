package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/straja-ai/adaware/internal/lexicon"
)

func ids(triggers []Trigger) []string {
	out := make([]string, 0, len(triggers))
	for _, t := range triggers {
		out = append(out, t.RuleID)
	}
	return out
}

func TestEvaluateRules(t *testing.T) {
	cases := []struct {
		name string
		text string
		want []string
	}{
		{name: "empty", text: "", want: []string{}},
		{name: "plain", text: "Fresh coffee beans roasted daily", want: []string{}},
		{name: "health cure", text: "A natural REMEDY, 100% effective", want: []string{"H1"}},
		{name: "cure without promise", text: "no cure for boredom", want: []string{}},
		{name: "financial", text: "Double your money in a week", want: []string{"F1", "S1"}},
		{name: "testimonial", text: "See the before and after photos", want: []string{"B1"}},
		{name: "urgency", text: "Only today: act now", want: []string{"C1"}},
		{
			name: "scam scenario",
			text: "WIN CASH NOW! 100% guaranteed returns, buy now!",
			want: []string{"F1", "S1"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ids(Evaluate(tc.text))
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEvaluateSeverities(t *testing.T) {
	got := Evaluate("Guaranteed cure! Limited time, see before and after.")
	require.Len(t, got, 3)
	assert.Equal(t, SeverityHigh, got[0].Severity)
	assert.Equal(t, "Guaranteed cure/remedy claim detected", got[0].Description)
	assert.Equal(t, SeverityHigh, MaxSeverity(got))
	assert.Equal(t, Severity(""), MaxSeverity(nil))
}

func TestEvaluateOrderIndependentOfCase(t *testing.T) {
	a := Evaluate("ACT NOW before it is gone, after that never")
	b := Evaluate("act now before it is gone, after that never")
	assert.Equal(t, a, b)
}

func TestCustomVocabulary(t *testing.T) {
	e := New(lexicon.New(lexicon.Extras{Scam: []string{"miracle coin"}}))
	assert.Equal(t, []string{"S1"}, ids(e.Evaluate("Buy the Miracle Coin")))
	assert.Equal(t, []string{"H1", "F1", "S1", "B1", "C1"}, e.IDs())
}
