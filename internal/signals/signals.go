package signals

import (
	"math"
	"strings"
)

// Sentiment is a labelled polarity score in [-1, 1].
type Sentiment struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Emotion is a coarse emotional tone derived from sentiment and urgency.
type Emotion struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Entity is a named mention found in the ad text.
type Entity struct {
	Text string `json:"text"`
	Type string `json:"type"` // BRAND | PRODUCT | PRICE | URL | ...
}

// NLPFacts is the lexical analysis of the ad text.
type NLPFacts struct {
	Language      string    `json:"language,omitempty"`
	Sentiment     Sentiment `json:"sentiment"`
	Emotion       Emotion   `json:"emotion"`
	Entities      []Entity  `json:"entities,omitempty"`
	StrongPhrases []string  `json:"strong_phrases,omitempty"`
}

// EntitiesOf returns entity texts of the given type in input order.
func (n NLPFacts) EntitiesOf(typ string) []string {
	var out []string
	for _, e := range n.Entities {
		if strings.EqualFold(e.Type, typ) && strings.TrimSpace(e.Text) != "" {
			out = append(out, e.Text)
		}
	}
	return out
}

// VisionFacts is the structured output of the vision-description service.
type VisionFacts struct {
	Description  string   `json:"visual_description,omitempty"`
	Brand        string   `json:"brand,omitempty"`
	ProductName  string   `json:"product_name,omitempty"`
	Category     string   `json:"category,omitempty"`
	Objects      []string `json:"objects,omitempty"`
	LogoDetected bool     `json:"logo_detected"`
	Confidence   float64  `json:"confidence"`
}

// OK reports whether the vision call produced anything usable.
func (v *VisionFacts) OK() bool {
	if v == nil {
		return false
	}
	return strings.TrimSpace(v.Description) != "" ||
		strings.TrimSpace(v.Brand) != "" ||
		strings.TrimSpace(v.ProductName) != "" ||
		len(v.Objects) > 0
}

// ImageQuality carries blur estimation for the ad image.
type ImageQuality struct {
	BlurScore float64 `json:"blur_score"`
	IsBlurry  bool    `json:"is_blurry"`
}

// CatalogMatch is a brand catalog entry matched against the ad.
type CatalogMatch struct {
	Names            []string `json:"names"`
	Category         string   `json:"category,omitempty"`
	TrustBaseline    string   `json:"trust_baseline,omitempty"` // high | medium | low
	PriceRange       string   `json:"price_range,omitempty"`
	HealthAdvisories []string `json:"health_advisory,omitempty"`
}

// PrimaryName returns the first catalog name or "".
func (c *CatalogMatch) PrimaryName() string {
	if c == nil || len(c.Names) == 0 {
		return ""
	}
	return c.Names[0]
}

// DomainReputation describes the page the ad was captured from.
type DomainReputation struct {
	Domain string   `json:"domain,omitempty"`
	HTTPS  bool     `json:"https"`
	Flags  []string `json:"flags,omitempty"`
}

// Bundle is everything the collaborators produced for one ad.
// A nil pointer means the collaborator returned nothing.
type Bundle struct {
	Text          string            `json:"text"`
	OCRConfidence float64           `json:"ocr_confidence,omitempty"`
	ImageRef      string            `json:"image_ref,omitempty"`
	PageURL       string            `json:"page_url,omitempty"`
	Vision        *VisionFacts      `json:"vision,omitempty"`
	NLP           *NLPFacts         `json:"nlp,omitempty"`
	Quality       *ImageQuality     `json:"image_quality,omitempty"`
	Similarity    *float64          `json:"similarity,omitempty"`
	Catalog       *CatalogMatch     `json:"catalog,omitempty"`
	Domain        *DomainReputation `json:"domain,omitempty"`
}

// NormalizedText collapses whitespace in the ad text.
func (b Bundle) NormalizedText() string {
	return strings.Join(strings.Fields(b.Text), " ")
}

// NLPOrEmpty never returns nil so formula inputs can default to neutral.
func (b Bundle) NLPOrEmpty() NLPFacts {
	if b.NLP == nil {
		return NLPFacts{Sentiment: Sentiment{Label: "NEUTRAL"}, Emotion: Emotion{Label: "NEUTRAL"}}
	}
	return *b.NLP
}

// Finite returns a copy with NaN and infinite scores cleared: the similarity
// becomes unknown and every other score becomes 0. Pointed-to facts are
// copied, never modified in place.
func (b Bundle) Finite() Bundle {
	b.OCRConfidence = finite(b.OCRConfidence)
	if b.Similarity != nil && !isFinite(*b.Similarity) {
		b.Similarity = nil
	}
	if b.Vision != nil && !isFinite(b.Vision.Confidence) {
		v := *b.Vision
		v.Confidence = 0
		b.Vision = &v
	}
	if b.Quality != nil && !isFinite(b.Quality.BlurScore) {
		q := *b.Quality
		q.BlurScore = 0
		b.Quality = &q
	}
	if b.NLP != nil && (!isFinite(b.NLP.Sentiment.Score) || !isFinite(b.NLP.Emotion.Score)) {
		n := *b.NLP
		n.Sentiment.Score = finite(n.Sentiment.Score)
		n.Emotion.Score = finite(n.Emotion.Score)
		b.NLP = &n
	}
	return b
}

func isFinite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

func finite(f float64) float64 {
	if isFinite(f) {
		return f
	}
	return 0
}
