package risk

import "strings"

// Level is the coarse risk tier attached to a profile.
type Level string

const (
	Low    Level = "low"
	Medium Level = "medium"
	High   Level = "high"
)

// Classic labels produced by the keyword classifier.
const (
	LabelGeneric    = "generic"
	LabelScamLike   = "scam_like"
	LabelRiskyPromo = "risky_promo"
	LabelPromotion  = "promotion"
	LabelUnknown    = "unknown"
)

// ParseLevel accepts low/medium/high in any case and surrounding space.
func ParseLevel(s string) (Level, bool) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case Low:
		return Low, true
	case Medium:
		return Medium, true
	case High:
		return High, true
	default:
		return "", false
	}
}

// Rank orders levels so callers can compare them.
func (l Level) Rank() int {
	switch l {
	case Low:
		return 1
	case Medium:
		return 2
	case High:
		return 3
	default:
		return 0
	}
}

func (l Level) String() string {
	if l == "" {
		return LabelUnknown
	}
	return string(l)
}
