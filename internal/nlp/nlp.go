package nlp

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/straja-ai/adaware/internal/lexicon"
	"github.com/straja-ai/adaware/internal/logger"
	"github.com/straja-ai/adaware/internal/signals"
)

// Sentiment labels.
const (
	Positive = "POSITIVE"
	Negative = "NEGATIVE"
	Neutral  = "NEUTRAL"
)

// Emotion labels.
const (
	Excited = "EXCITED"
	Anxious = "ANXIOUS"
	Calm    = "CALM"
)

// Entity types.
const (
	EntityURL     = "URL"
	EntityPrice   = "PRICE"
	EntityBrand   = "BRAND"
	EntityProduct = "PRODUCT"
)

const (
	polarityCutoff = 0.2
	calmCutoff     = 0.15
)

var (
	urlRe   = regexp.MustCompile(`(?i)https?://[^\s]+`)
	priceRe = regexp.MustCompile(`(?i)(₹|rs\.?|inr|\$|usd)\s*[\d,]+(\.\d+)?|\b[\d,]+\s*(rs|₹|usd|\$)`)
)

// SentimentModel scores text polarity. Implementations must be safe for
// concurrent use.
type SentimentModel interface {
	Predict(text string) (signals.Sentiment, error)
}

// Analyzer derives NLP facts when the caller sent none.
type Analyzer struct {
	set   *lexicon.Set
	model SentimentModel
}

// NewAnalyzer binds the lexicon. model may be nil for lexicon-only sentiment.
func NewAnalyzer(set *lexicon.Set, model SentimentModel) *Analyzer {
	if set == nil {
		set = lexicon.Default()
	}
	return &Analyzer{set: set, model: model}
}

// Analyze never fails: a model error falls back to the lexicon score.
func (a *Analyzer) Analyze(text string) signals.NLPFacts {
	text = strings.TrimSpace(text)
	lower := strings.ToLower(text)

	sent := a.lexiconSentiment(lower)
	if a.model != nil && text != "" {
		if s, err := a.model.Predict(text); err != nil {
			logger.Log.Warnf("nlp: sentiment model failed, using lexicon: %v", err)
		} else {
			sent = s
		}
	}

	return signals.NLPFacts{
		Language:      Language(text),
		Sentiment:     sent,
		Emotion:       a.emotion(lower, sent),
		Entities:      a.entities(text, lower),
		StrongPhrases: lexicon.Matches(lower, a.set.StrongSell),
	}
}

// Language reports "hi" for Devanagari script, "unknown" for empty text and
// "en" otherwise.
func Language(text string) string {
	if strings.TrimSpace(text) == "" {
		return "unknown"
	}
	for _, r := range text {
		if unicode.Is(unicode.Devanagari, r) {
			return "hi"
		}
	}
	return "en"
}

func (a *Analyzer) lexiconSentiment(lower string) signals.Sentiment {
	var pos, neg int
	for _, tok := range tokens(lower) {
		if _, ok := a.set.Positive[tok]; ok {
			pos++
		}
		if _, ok := a.set.Negative[tok]; ok {
			neg++
		}
	}
	score := 0.0
	if total := pos + neg; total > 0 {
		score = float64(pos-neg) / float64(total)
	}
	label := Neutral
	switch {
	case score > polarityCutoff:
		label = Positive
	case score < -polarityCutoff:
		label = Negative
	}
	return signals.Sentiment{Label: label, Score: score}
}

func (a *Analyzer) emotion(lower string, s signals.Sentiment) signals.Emotion {
	urgent := lexicon.ContainsAny(lower, a.set.StrongSell) || lexicon.ContainsAny(lower, a.set.Fear)
	label := Neutral
	switch {
	case s.Label == Positive && urgent:
		label = Excited
	case s.Label == Negative && urgent:
		label = Anxious
	case s.Score < calmCutoff && s.Score > -calmCutoff:
		label = Calm
	}
	return signals.Emotion{Label: label, Score: s.Score}
}

func (a *Analyzer) entities(text, lower string) []signals.Entity {
	if text == "" {
		return nil
	}
	var out []signals.Entity
	seen := map[string]bool{}
	add := func(txt, typ string) {
		key := strings.ToLower(txt) + "|" + typ
		if txt == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, signals.Entity{Text: txt, Type: typ})
	}

	for _, u := range urlRe.FindAllString(text, -1) {
		add(u, EntityURL)
	}
	for _, p := range priceRe.FindAllString(text, -1) {
		add(strings.TrimSpace(p), EntityPrice)
	}
	for _, b := range a.set.KnownBrands {
		if containsWord(lower, b) {
			add(titleCase(b), EntityBrand)
		}
	}
	for _, p := range a.set.ProductTerms {
		if containsWord(lower, p) {
			add(p, EntityProduct)
		}
	}
	return out
}

// tokens splits on whitespace and trims surrounding punctuation.
func tokens(lower string) []string {
	fields := strings.Fields(lower)
	out := fields[:0]
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '%'
		})
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// containsWord finds phrase in lower with non-letter boundaries, so "ola"
// does not match inside "cola".
func containsWord(lower, phrase string) bool {
	if phrase == "" {
		return false
	}
	for from := 0; ; {
		i := strings.Index(lower[from:], phrase)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(phrase)
		if boundaryBefore(lower, start) && boundaryAfter(lower, end) {
			return true
		}
		from = start + 1
	}
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		rs := []rune(w)
		rs[0] = unicode.ToUpper(rs[0])
		words[i] = string(rs)
	}
	return strings.Join(words, " ")
}
