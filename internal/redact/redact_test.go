package redact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringRedaction(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		disallow []string
		require  []string
	}{
		{
			name:     "bearer header",
			input:    "Authorization: Bearer client-secret-123",
			disallow: []string{"client-secret-123"},
			require:  []string{"[REDACTED]"},
		},
		{
			name:     "api keys slice",
			input:    "api_keys=[team-key-1 team-key-2]",
			disallow: []string{"team-key-1", "team-key-2"},
			require:  []string{"api_keys=[REDACTED]"},
		},
		{
			name:     "provider keys inline",
			input:    "opinion init failed for sk-proj-abcdefghijkl and AIzaSyA1234567890abcdefghijk",
			disallow: []string{"abcdefghijkl", "SyA1234567890abcdefghijk"},
			require:  []string{"sk-[REDACTED]", "AIza[REDACTED]"},
		},
		{
			name:     "postgres dsn",
			input:    "history connect: postgres://adaware:hunter22@db:5432/adaware",
			disallow: []string{"hunter22"},
			require:  []string{"db:5432"},
		},
		{
			name:     "page url",
			input:    "page_url=https://shop.example.com/deals/item.html?ref=abc123",
			disallow: []string{"deals/", "ref=abc123"},
			require:  []string{"https://shop.example.com/item.html"},
		},
		{
			name:     "mixed token",
			input:    "Bearer abc x-api-key: k-123456 token=anotherone base=https://cdn.example.test/files/base/",
			disallow: []string{"abc", "k-123456", "anotherone", "files/base/"},
			require:  []string{"[REDACTED]", "https://cdn.example.test/[REDACTED_PATH]"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := String(tc.input)
			for _, bad := range tc.disallow {
				assert.NotContains(t, out, bad)
			}
			for _, want := range tc.require {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestEmptyAndAny(t *testing.T) {
	assert.Equal(t, "", String(""))
	assert.Equal(t, "{Key:sk-[REDACTED]}", Any(struct{ Key string }{"sk-abcdefghijklmnop"}))
}
