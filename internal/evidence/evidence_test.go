package evidence

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocateAllOccurrences(t *testing.T) {
	text := "SALE! Big Sale today, sale ends soon"
	spans := Locate(text, []string{"sale"}, KindRiskyPhrase, "")
	require.Len(t, spans, 3)
	for _, s := range spans {
		assert.Equal(t, CategoryUrgency, s.Category)
		assert.Equal(t, "Contains phrase 'sale'", s.Reason)
		assert.Equal(t, strings.ToLower(text[s.Start:s.End]), "sale")
		assert.Equal(t, text[s.Start:s.End], s.Text)
	}
	assert.Equal(t, "SALE", spans[0].Text)
	assert.Equal(t, "Sale", spans[1].Text)
}

func TestLocateDefaults(t *testing.T) {
	assert.Nil(t, Locate("", []string{"sale"}, KindRiskyPhrase, ""))
	assert.Nil(t, Locate("   ", []string{"sale"}, KindRiskyPhrase, ""))

	spans := Locate("detox now", []string{"detox"}, KindAdvisoryPhrase, "")
	require.Len(t, spans, 1)
	assert.Equal(t, "other", spans[0].Category)
}

func TestLocateNonOverlapping(t *testing.T) {
	spans := Locate("aaaa", []string{"aa"}, KindOther, "x")
	require.Len(t, spans, 2)
	assert.Equal(t, 0, spans[0].Start)
	assert.Equal(t, 2, spans[1].Start)
}

func TestLocateUnalignedText(t *testing.T) {
	// "İ" lowers to a longer byte sequence so offsets cannot be trusted
	spans := Locate("İ WIN CASH", []string{"win cash"}, KindRiskyPhrase, "")
	require.Len(t, spans, 1)
	assert.Equal(t, -1, spans[0].Start)
	assert.Equal(t, -1, spans[0].End)
	assert.Equal(t, "win cash", spans[0].Text)

	// "ẞ" shrinks and "Ⱥ" grows, so the total length matches but offsets drift
	shifted := "ẞ sale Ⱥ"
	spans = Locate(shifted, []string{"sale"}, KindRiskyPhrase, "")
	require.Len(t, spans, 1)
	assert.Equal(t, -1, spans[0].Start)
	assert.Equal(t, -1, spans[0].End)
	assert.Equal(t, "sale", spans[0].Text)

	anchored := Anchor(shifted, Span{Kind: KindRiskyPhrase, Text: "sale"})
	assert.False(t, anchored.Located())
	assert.Equal(t, "sale", anchored.Text)

	// case changes that keep widths still locate
	spans = Locate("Ünique SALE", []string{"sale"}, KindRiskyPhrase, "")
	require.Len(t, spans, 1)
	assert.Equal(t, "SALE", spans[0].Text)
	assert.Equal(t, "Ünique SALE"[spans[0].Start:spans[0].End], spans[0].Text)
}

func TestExtract(t *testing.T) {
	text := "Flash sale on our Detox supplement. Win cash! Flash SALE"
	spans, subcats := Extract(text)
	assert.Equal(t, []string{CategoryHealthClaim, CategoryUrgency}, subcats)

	var texts []string
	for _, s := range spans {
		texts = append(texts, strings.ToLower(s.Text))
		if s.Located() {
			assert.Equal(t, strings.ToLower(text[s.Start:s.End]), strings.ToLower(s.Text))
		}
	}
	// "sale" only appears inside "flash sale" and is dropped
	assert.NotContains(t, texts, "sale")
	assert.Contains(t, texts, "flash sale")
	assert.Contains(t, texts, "win cash")
	assert.Contains(t, texts, "detox")
	assert.Contains(t, texts, "supplement")

	count := 0
	for _, tx := range texts {
		if tx == "flash sale" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestExtractEmpty(t *testing.T) {
	spans, subcats := Extract("")
	assert.Empty(t, spans)
	assert.Empty(t, subcats)
}

func TestDedupeKeepsFirst(t *testing.T) {
	in := []Span{
		{Kind: KindRiskyPhrase, Text: "Buy Now", Start: 0, End: 7},
		{Kind: KindRiskyPhrase, Text: "buy now ", Start: 20, End: 27},
		{Kind: KindAdvisoryPhrase, Text: "buy now", Start: 0, End: 7},
		{Kind: KindOther, Text: "x", Start: -1, End: -1},
	}
	out := Dedupe(in)
	require.Len(t, out, 3)
	assert.Equal(t, 0, out[0].Start)
	assert.Equal(t, KindAdvisoryPhrase, out[1].Kind)
	assert.Nil(t, Dedupe(nil))
}

func TestAnchor(t *testing.T) {
	text := "Get Rich Quick with us"
	s := Anchor(text, Span{Kind: "RISKY_PHRASE", Text: " get rich quick ", Start: 99, End: 120})
	assert.Equal(t, KindRiskyPhrase, s.Kind)
	assert.Equal(t, 0, s.Start)
	assert.Equal(t, 14, s.End)
	assert.Equal(t, "Get Rich Quick", s.Text)
	assert.Equal(t, "Contains phrase 'get rich quick'", s.Reason)

	missing := Anchor(text, Span{Kind: "weird", Text: "lottery"})
	assert.Equal(t, KindOther, missing.Kind)
	assert.Equal(t, -1, missing.Start)
	assert.Equal(t, -1, missing.End)
}
