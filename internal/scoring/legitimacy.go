package scoring

import (
	"strings"

	"github.com/straja-ai/adaware/internal/risk"
)

// DomainTrust is the hosting-context verdict for the page showing the ad.
type DomainTrust string

const (
	DomainTrusted    DomainTrust = "trusted"
	DomainNeutral    DomainTrust = "neutral"
	DomainSuspicious DomainTrust = "suspicious"
)

// Catalog trust baselines.
const (
	CatalogTrustHigh   = "high"
	CatalogTrustMedium = "medium"
	CatalogTrustLow    = "low"
)

// NormalizeCatalogTrust maps free-form baselines onto high/medium/low or "".
func NormalizeCatalogTrust(s string) string {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case CatalogTrustHigh, CatalogTrustMedium, CatalogTrustLow:
		return v
	default:
		return ""
	}
}

// Legitimacy scores scam risk on 0..100, higher is safer, using the default
// thresholds.
func Legitimacy(label, catalogTrust string, domainTrust DomainTrust, sentiment float64, urgencyCount int) float64 {
	return DefaultThresholds().Legitimacy(label, catalogTrust, domainTrust, sentiment, urgencyCount)
}

// Legitimacy scores scam risk on 0..100. Catalog ground truth dominates; the
// label only moves the score when the catalog is silent or medium. Health
// content never lowers it. Sentiment is accepted but does not contribute.
func (t Thresholds) Legitimacy(label, catalogTrust string, domainTrust DomainTrust, _ float64, urgencyCount int) float64 {
	t = t.WithDefaults()
	catalogTrust = NormalizeCatalogTrust(catalogTrust)

	score := 50.0
	switch catalogTrust {
	case CatalogTrustHigh:
		score = 90
	case CatalogTrustMedium:
		score = 75
	case CatalogTrustLow:
		score = 30
	}

	if catalogTrust == "" || catalogTrust == CatalogTrustMedium {
		switch label {
		case risk.LabelScamLike:
			score = min(score, 30) - 20
		case risk.LabelRiskyPromo:
			score = min(score, 60) - 10
		case risk.LabelPromotion:
			score += 5
		}
	}

	penalty := 40.0
	switch catalogTrust {
	case CatalogTrustHigh:
		penalty = 0
	case CatalogTrustMedium:
		penalty = 10
	}
	switch domainTrust {
	case DomainSuspicious:
		score -= penalty
	case DomainTrusted:
		score += 10
	}

	if urgencyCount > t.UrgencySoftLimit {
		score -= 10
	}
	if urgencyCount > t.UrgencyHardLimit {
		score -= 15
	}
	return clamp(score, 0, 100)
}

// InferRiskLevel maps label and credibility to a coarse level using the
// default thresholds.
func InferRiskLevel(label string, credibility float64) risk.Level {
	return DefaultThresholds().InferRiskLevel(label, credibility)
}

// InferRiskLevel is the fallback used whenever no opinion level is present.
func (t Thresholds) InferRiskLevel(label string, credibility float64) risk.Level {
	t = t.WithDefaults()
	switch {
	case label == risk.LabelScamLike || credibility < t.HighRiskCredibility:
		return risk.High
	case label == risk.LabelRiskyPromo || label == risk.LabelPromotion || credibility < t.MediumRiskCredibility:
		return risk.Medium
	default:
		return risk.Low
	}
}
