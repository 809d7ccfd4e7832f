package scoring

import (
	"math"
	"strings"

	"github.com/straja-ai/adaware/internal/signals"
)

const (
	confidenceFloor   = 0.15
	confidenceCeiling = 0.95
)

// ModelConfidence measures how much evidence the pipeline gathered, not how
// favourable it is. similarity is nil when unavailable.
func ModelConfidence(visionOK bool, ocrQuality float64, catalogMatch bool, similarity *float64) float64 {
	score := 0.0
	if ocrQuality > 0 || visionOK {
		score += 0.30
	}
	if catalogMatch {
		score += 0.35
	}
	switch {
	case ocrQuality > 0.8:
		score += 0.15
	case ocrQuality > 0.5:
		score += 0.10
	}
	if similarity != nil {
		switch {
		case *similarity > 0.5:
			score += 0.15
		case *similarity > 0.2:
			score += 0.10
		}
	} else if catalogMatch {
		score += 0.10
	}
	return clamp(score, confidenceFloor, confidenceCeiling)
}

// OCRQuality derives a [0,1] quality score for the extracted text. An explicit
// extractor confidence wins; otherwise the amount of text is used.
func OCRQuality(b signals.Bundle) float64 {
	if b.OCRConfidence > 0 {
		return clamp(b.OCRConfidence, 0, 1)
	}
	text := strings.TrimSpace(b.Text)
	switch {
	case text == "":
		return 0
	case len(text) >= 50:
		return 0.6
	default:
		return 0.3
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// Round2 rounds to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
