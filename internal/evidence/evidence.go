package evidence

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/straja-ai/adaware/internal/lexicon"
)

// Kind classifies an evidence span.
type Kind string

const (
	KindRiskyPhrase      Kind = "risky_phrase"
	KindEmotionalTrigger Kind = "emotional_trigger"
	KindPolicyRule       Kind = "policy_rule"
	KindAdvisoryPhrase   Kind = "advisory_phrase"
	KindOther            Kind = "other"
)

// ParseKind maps free-form kinds onto the enum; unknown values become other.
func ParseKind(s string) Kind {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindRiskyPhrase, KindEmotionalTrigger, KindPolicyRule, KindAdvisoryPhrase:
		return k
	default:
		return KindOther
	}
}

// Subcategory tags reported alongside spans.
const (
	CategoryUrgency     = "urgency"
	CategoryHealthClaim = "health-claim"
)

// Span is a located piece of source text supporting a risk signal.
// Start and End are byte offsets into the source text, or -1 when the
// phrase could not be placed.
type Span struct {
	Kind     Kind   `json:"kind"`
	Text     string `json:"text"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
	Reason   string `json:"reason"`
	Category string `json:"category,omitempty"`
}

// Located reports whether the span carries valid offsets.
func (s Span) Located() bool { return s.Start >= 0 && s.End >= s.Start }

// Locate emits one span per non-overlapping occurrence of every keyword.
// An empty category defaults to urgency for risky phrases and other otherwise.
func Locate(text string, keywords []string, kind Kind, category string) []Span {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if category == "" {
		category = "other"
		if kind == KindRiskyPhrase {
			category = CategoryUrgency
		}
	}
	lower := strings.ToLower(text)
	aligned := lowerAligned(text)

	var out []Span
	for _, kw := range keywords {
		kw = strings.ToLower(kw)
		if kw == "" {
			continue
		}
		from := 0
		for from <= len(lower) {
			idx := strings.Index(lower[from:], kw)
			if idx < 0 {
				break
			}
			start := from + idx
			end := start + len(kw)
			sp := Span{
				Kind:     kind,
				Text:     kw,
				Start:    -1,
				End:      -1,
				Reason:   fmt.Sprintf("Contains phrase '%s'", kw),
				Category: category,
			}
			if aligned && strings.EqualFold(text[start:end], kw) {
				sp.Text = text[start:end]
				sp.Start = start
				sp.End = end
			}
			out = append(out, sp)
			from = end
		}
	}
	return out
}

// Extract runs the scam/promo and health passes over the text and returns the
// deduplicated spans with the sorted set of triggered subcategories.
func Extract(text string) ([]Span, []string) {
	return NewExtractor(lexicon.Default()).Extract(text)
}

// Extractor runs the two locator passes over a vocabulary.
type Extractor struct {
	risky  []string
	health []string
}

// NewExtractor prepares the keyword tables.
func NewExtractor(set *lexicon.Set) *Extractor {
	if set == nil {
		set = lexicon.Default()
	}
	risky := lexicon.Normalize(append(append([]string(nil), set.Scam...), set.Promo...))
	return &Extractor{risky: risky, health: set.Health}
}

// Extract returns deduplicated spans and their distinct subcategories.
func (e *Extractor) Extract(text string) ([]Span, []string) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	var spans []Span
	subcats := map[string]struct{}{}

	if s := Locate(text, e.risky, KindRiskyPhrase, CategoryUrgency); len(s) > 0 {
		spans = append(spans, s...)
		subcats[CategoryUrgency] = struct{}{}
	}
	if s := Locate(text, e.health, KindAdvisoryPhrase, CategoryHealthClaim); len(s) > 0 {
		spans = append(spans, s...)
		subcats[CategoryHealthClaim] = struct{}{}
	}

	tags := make([]string, 0, len(subcats))
	for k := range subcats {
		tags = append(tags, k)
	}
	sort.Strings(tags)
	return Dedupe(spans), tags
}

// Dedupe drops spans enclosed by a longer located span of the same kind, then
// keeps the first span for each (lower-cased text, kind) pair.
func Dedupe(spans []Span) []Span {
	if len(spans) == 0 {
		return nil
	}
	out := make([]Span, 0, len(spans))
	seen := make(map[string]struct{}, len(spans))
	for i, s := range spans {
		if enclosed(spans, i) {
			continue
		}
		key := string(s.Kind) + "\x00" + strings.ToLower(strings.TrimSpace(s.Text))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}

func enclosed(spans []Span, i int) bool {
	s := spans[i]
	if !s.Located() {
		return false
	}
	for j, o := range spans {
		if j == i || o.Kind != s.Kind || !o.Located() {
			continue
		}
		if o.Start <= s.Start && s.End <= o.End && o.End-o.Start > s.End-s.Start {
			return true
		}
	}
	return false
}

// Anchor places a span supplied without trustworthy offsets at the first
// occurrence of its text in the source. Unplaceable spans get -1/-1.
func Anchor(text string, s Span) Span {
	s.Kind = ParseKind(string(s.Kind))
	s.Text = strings.TrimSpace(s.Text)
	if s.Reason == "" && s.Text != "" {
		s.Reason = fmt.Sprintf("Contains phrase '%s'", strings.ToLower(s.Text))
	}
	s.Start, s.End = -1, -1
	if s.Text == "" {
		return s
	}
	if !lowerAligned(text) {
		return s
	}
	needle := strings.ToLower(s.Text)
	idx := strings.Index(strings.ToLower(text), needle)
	if idx < 0 || !strings.EqualFold(text[idx:idx+len(needle)], needle) {
		return s
	}
	s.Start = idx
	s.End = idx + len(needle)
	s.Text = text[s.Start:s.End]
	return s
}

// lowerAligned reports whether every rune keeps its byte width when
// lower-cased, so offsets found in strings.ToLower(text) index text itself.
// Invalid bytes widen to U+FFFD and break alignment.
func lowerAligned(text string) bool {
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if r == utf8.RuneError && size == 1 {
			return false
		}
		if utf8.RuneLen(unicode.ToLower(r)) != size {
			return false
		}
		i += size
	}
	return true
}
