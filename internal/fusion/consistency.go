package fusion

import (
	"github.com/straja-ai/adaware/internal/opinion"
	"github.com/straja-ai/adaware/internal/scoring"
	"github.com/straja-ai/adaware/internal/signals"
)

// Consistency labels.
const (
	Consistent          = "consistent"
	PartiallyConsistent = "partially_consistent"
	Inconsistent        = "inconsistent"
	ConsistencyUnknown  = "unknown"
)

// ConsistencyView summarises how well the image agrees with the ad text.
type ConsistencyView struct {
	Overall    string   `json:"overall_consistency"`
	Score      *float64 `json:"consistency_score,omitempty"`
	Similarity *float64 `json:"similarity,omitempty"`
	Reasoning  string   `json:"reasoning,omitempty"`
	Source     string   `json:"source"`
}

// Consistency builds the view with the default thresholds.
func Consistency(similarity *float64, quality *signals.ImageQuality, op *opinion.Overlay) ConsistencyView {
	return defaultMerger.Consistency(similarity, quality, op)
}

// Consistency blends the opinion's consistency score with measured
// similarity. Blurry images lose 0.1 because their similarity is unreliable.
func (m *Merger) Consistency(similarity *float64, quality *signals.ImageQuality, op *opinion.Overlay) ConsistencyView {
	v := ConsistencyView{Similarity: similarity, Overall: ConsistencyUnknown, Source: SourceDefault}

	var opScore *float64
	if op != nil && op.Consistency != nil {
		opScore = op.Consistency.Score
		v.Reasoning = op.Consistency.Reasoning
	}

	var score float64
	switch {
	case opScore != nil && similarity != nil:
		w := m.th.OpinionWeight
		score = w*(*opScore) + (1-w)*(*similarity)
		v.Source = SourceBlend
	case opScore != nil:
		score = *opScore
		v.Source = SourceOpinion
	case similarity != nil:
		score = *similarity
		v.Source = SourceClassic
	default:
		if op != nil && op.Consistency != nil && op.Consistency.Overall != "" {
			v.Overall = op.Consistency.Overall
			v.Source = SourceOpinion
		}
		return v
	}

	if quality != nil && quality.IsBlurry {
		score -= 0.1
	}
	if score < 0 {
		score = 0
	}
	score = scoring.Round2(score)
	v.Score = &score

	switch {
	case score >= m.th.ConsistentSimilarity:
		v.Overall = Consistent
	case score >= m.th.PartialSimilarity:
		v.Overall = PartiallyConsistent
	default:
		v.Overall = Inconsistent
	}
	return v
}
