package envelope

import (
	"math"

	"lifesignal/internal/signals"
)

// ConfidenceTier represents how much evidence backs a bundle.
type ConfidenceTier string

const (
	TierHigh   ConfidenceTier = "high"
	TierMedium ConfidenceTier = "medium"
	TierLow    ConfidenceTier = "low"
)

// fullEvidenceDays is the number of active days that counts as full
// evidence on its own.
const fullEvidenceDays = 14

// ConfidenceScore rates a bundle in [0, 1]: up to 0.8 from active days and
// 0.2 more when momentum could be computed.
func ConfidenceScore(b signals.Bundle) float64 {
	score := 0.8 * math.Min(float64(b.ActiveDays)/fullEvidenceDays, 1)
	if b.Momentum != signals.NoMomentum && b.Momentum != "" {
		score += 0.2
	}
	return math.Round(score*100) / 100
}

// ScoreToTier converts a score to a confidence tier.
//
// Tier mapping:
//   - 0.70+ -> high
//   - 0.40-0.69 -> medium
//   - <0.40 -> low
func ScoreToTier(score float64) ConfidenceTier {
	switch {
	case score >= 0.70:
		return TierHigh
	case score >= 0.40:
		return TierMedium
	default:
		return TierLow
	}
}
