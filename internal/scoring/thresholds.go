package scoring

// Thresholds holds the hand-tuned breakpoints used across scoring, fusion and
// the final verdict. Values come from config; zero fields fall back to defaults.
type Thresholds struct {
	HighRiskCredibility   float64 `yaml:"high_risk_credibility" json:"high_risk_credibility"`
	MediumRiskCredibility float64 `yaml:"medium_risk_credibility" json:"medium_risk_credibility"`
	LowTrustSignal        float64 `yaml:"low_trust_signal" json:"low_trust_signal"`

	SafeLegitimacy     float64 `yaml:"safe_legitimacy" json:"safe_legitimacy"`
	ModerateLegitimacy float64 `yaml:"moderate_legitimacy" json:"moderate_legitimacy"`

	ConsistentSimilarity float64 `yaml:"consistent_similarity" json:"consistent_similarity"`
	PartialSimilarity    float64 `yaml:"partial_similarity" json:"partial_similarity"`

	OpinionWeight float64 `yaml:"opinion_weight" json:"opinion_weight"`

	LargeDiscountPercent int `yaml:"large_discount_percent" json:"large_discount_percent"`
	SeveralStrongPhrases int `yaml:"several_strong_phrases" json:"several_strong_phrases"`
	ManyStrongPhrases    int `yaml:"many_strong_phrases" json:"many_strong_phrases"`
	UrgencySoftLimit     int `yaml:"urgency_soft_limit" json:"urgency_soft_limit"`
	UrgencyHardLimit     int `yaml:"urgency_hard_limit" json:"urgency_hard_limit"`
}

// DefaultThresholds returns the calibrated defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		HighRiskCredibility:   40,
		MediumRiskCredibility: 70,
		LowTrustSignal:        40,
		SafeLegitimacy:        80,
		ModerateLegitimacy:    50,
		ConsistentSimilarity:  0.7,
		PartialSimilarity:     0.35,
		OpinionWeight:         0.7,
		LargeDiscountPercent:  70,
		SeveralStrongPhrases:  3,
		ManyStrongPhrases:     6,
		UrgencySoftLimit:      2,
		UrgencyHardLimit:      5,
	}
}

// WithDefaults fills zero fields from DefaultThresholds.
func (t Thresholds) WithDefaults() Thresholds {
	d := DefaultThresholds()
	if t.HighRiskCredibility == 0 {
		t.HighRiskCredibility = d.HighRiskCredibility
	}
	if t.MediumRiskCredibility == 0 {
		t.MediumRiskCredibility = d.MediumRiskCredibility
	}
	if t.LowTrustSignal == 0 {
		t.LowTrustSignal = d.LowTrustSignal
	}
	if t.SafeLegitimacy == 0 {
		t.SafeLegitimacy = d.SafeLegitimacy
	}
	if t.ModerateLegitimacy == 0 {
		t.ModerateLegitimacy = d.ModerateLegitimacy
	}
	if t.ConsistentSimilarity == 0 {
		t.ConsistentSimilarity = d.ConsistentSimilarity
	}
	if t.PartialSimilarity == 0 {
		t.PartialSimilarity = d.PartialSimilarity
	}
	if t.OpinionWeight == 0 {
		t.OpinionWeight = d.OpinionWeight
	}
	if t.LargeDiscountPercent == 0 {
		t.LargeDiscountPercent = d.LargeDiscountPercent
	}
	if t.SeveralStrongPhrases == 0 {
		t.SeveralStrongPhrases = d.SeveralStrongPhrases
	}
	if t.ManyStrongPhrases == 0 {
		t.ManyStrongPhrases = d.ManyStrongPhrases
	}
	if t.UrgencySoftLimit == 0 {
		t.UrgencySoftLimit = d.UrgencySoftLimit
	}
	if t.UrgencyHardLimit == 0 {
		t.UrgencyHardLimit = d.UrgencyHardLimit
	}
	return t
}
