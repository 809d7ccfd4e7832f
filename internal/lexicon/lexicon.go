package lexicon

import (
	"sort"
	"strings"
)

// Set is the keyword vocabulary shared by the rule engine, the evidence
// locator, the label classifier and the NLP fallback.
type Set struct {
	Scam          []string
	Promo         []string
	Health        []string
	Urgency       []string
	StrongSell    []string
	Fear          []string
	Positive      map[string]struct{}
	Negative      map[string]struct{}
	KnownBrands   []string
	ProductTerms  []string
	SpammyTLDs    []string
	HealthCures   []string
	HealthPromise []string
	FinancialHype []string
}

// Extras are operator-supplied additions merged into the default tables.
type Extras struct {
	Scam       []string `yaml:"scam"`
	Promo      []string `yaml:"promo"`
	Health     []string `yaml:"health"`
	StrongSell []string `yaml:"strong_sell"`
	Brands     []string `yaml:"brands"`
}

var defaultSet = build()

// Default returns the built-in vocabulary.
func Default() *Set { return defaultSet }

// New returns the default vocabulary extended with extras.
func New(extra Extras) *Set {
	s := build()
	s.Scam = Normalize(append(s.Scam, extra.Scam...))
	s.Promo = Normalize(append(s.Promo, extra.Promo...))
	s.Health = Normalize(append(s.Health, extra.Health...))
	s.StrongSell = Normalize(append(s.StrongSell, extra.StrongSell...))
	s.KnownBrands = Normalize(append(s.KnownBrands, extra.Brands...))
	return s
}

// Normalize lower-cases, trims and deduplicates phrases keeping first order.
func Normalize(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, w := range in {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// ContainsAny reports whether lower contains any phrase.
func ContainsAny(lower string, phrases []string) bool {
	for _, p := range phrases {
		if p != "" && strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// Matches returns the phrases present in lower, in table order.
func Matches(lower string, phrases []string) []string {
	var out []string
	for _, p := range phrases {
		if p != "" && strings.Contains(lower, p) {
			out = append(out, p)
		}
	}
	return out
}

func build() *Set {
	return &Set{
		Scam: []string{
			"win cash", "winner", "congratulations", "earn money fast", "get rich quick",
			"double your money", "crypto scheme", "guaranteed returns",
			"lottery", "jackpot", "free iphone", "free phone",
			"risk free", "no risk", "investment opportunity",
		},
		Promo: []string{
			"sale", "discount", "% off", "offer", "deal", "limited time",
			"buy now", "shop now", "order now", "flash sale",
		},
		Health: []string{
			"caffeine", "energy drink", "supplement", "weight loss", "diet pill",
			"cure", "remedy", "detox", "fat burner", "testosterone",
			"not for children", "pregnant", "consult a doctor",
		},
		Urgency: []string{
			"limited time", "only today", "act now", "don't miss", "don’t miss",
		},
		StrongSell: []string{
			"limited time", "hurry up", "act now", "only today", "offer ends soon",
			"don’t miss", "don't miss", "last chance", "guaranteed results", "100% safe",
			"no risk", "money back guarantee", "free trial", "exclusive deal", "flash sale",
			"today only", "instant access", "earn money fast", "get rich quick", "lifetime access",
			"best price", "lowest price", "big discount", "massive discount", "buy now",
			"shop now", "order now", "signup now", "sign up now", "join now",
		},
		Fear: []string{
			"limited", "only today", "last chance", "hurry", "urgent", "now",
			"before it’s too late", "don't miss", "don’t miss", "ends soon",
		},
		Positive: setOf(
			"amazing", "awesome", "best", "premium", "luxury", "exclusive",
			"guaranteed", "safe", "trusted", "official", "original", "genuine",
			"fast", "instant", "easy", "simple", "powerful", "advanced",
			"free", "discount", "offer", "deal", "sale", "save", "secure",
		),
		Negative: setOf(
			"scam", "fake", "fraud", "danger", "dangerous", "risk", "risky",
			"spam", "unsafe", "problem", "issue", "warning", "alert",
			"loss", "lose", "debt", "penalty",
		),
		KnownBrands: sortedKeys(
			"red bull", "coca cola", "pepsi", "apple", "samsung", "nike",
			"adidas", "puma", "amazon", "flipkart", "myntra", "ajio",
			"spotify", "netflix", "swiggy", "zomato", "ola", "uber",
		),
		ProductTerms: sortedKeys(
			"shoes", "sneakers", "sandals", "heels", "boots",
			"watch", "smartwatch", "phone", "smartphone", "laptop", "earbuds",
			"headphones", "earphones", "tv", "tablet",
			"energy drink", "soft drink", "coffee", "tea",
			"course", "class", "training", "workshop", "coaching",
			"subscription", "membership", "plan", "offer", "bundle",
			"cream", "serum", "lotion", "shampoo", "conditioner",
		),
		SpammyTLDs:    []string{".xyz", ".top", ".club", ".info", ".biz"},
		HealthCures:   []string{"cure", "remedy"},
		HealthPromise: []string{"guaranteed", "100%"},
		FinancialHype: []string{"double your money", "guaranteed returns"},
	}
}

func setOf(words ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}

// sortedKeys keeps table order stable for tables that came from sets.
func sortedKeys(words ...string) []string {
	out := append([]string(nil), words...)
	sort.Strings(out)
	return out
}
