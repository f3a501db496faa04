package contacts

import "github.com/sells-group/buyer-sync/internal/model"

// Classify maps a final confidence score to a tier.
func Classify(score int) model.Tier {
	switch {
	case score >= model.VerifiedThreshold:
		return model.TierVerified
	case score >= model.ReviewThreshold:
		return model.TierNeedsReview
	default:
		return model.TierUnverified
	}
}

func clampScore(score int) int {
	return max(0, min(100, score))
}
