package lexicon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDedupesAndLowers(t *testing.T) {
	got := Normalize([]string{" Win Cash", "win cash", "", "LOTTERY", "  "})
	assert.Equal(t, []string{"win cash", "lottery"}, got)
	assert.Nil(t, Normalize(nil))
}

func TestNewMergesExtras(t *testing.T) {
	s := New(Extras{Scam: []string{"Miracle Coin", "lottery"}, Brands: []string{"Acme"}})
	assert.Contains(t, s.Scam, "miracle coin")
	assert.Contains(t, s.KnownBrands, "acme")

	count := 0
	for _, w := range s.Scam {
		if w == "lottery" {
			count++
		}
	}
	assert.Equal(t, 1, count)

	// extras never leak into the shared default
	assert.NotContains(t, Default().Scam, "miracle coin")
}

func TestMatches(t *testing.T) {
	lower := "flash sale: buy now!"
	require.True(t, ContainsAny(lower, Default().Promo))
	assert.Equal(t, []string{"sale", "buy now", "flash sale"}, Matches(lower, Default().Promo))
	assert.False(t, ContainsAny(lower, nil))
}
