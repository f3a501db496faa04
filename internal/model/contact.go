package model

import "time"

// Tier is a contact's verification confidence tier.
type Tier string

const (
	TierVerified    Tier = "verified"
	TierNeedsReview Tier = "needs_review"
	TierUnverified  Tier = "unverified"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierVerified, TierNeedsReview, TierUnverified:
		return true
	default:
		return false
	}
}

// VerificationMethod records how a contact's data was confirmed.
type VerificationMethod string

const (
	MethodWebsiteVerified VerificationMethod = "website_verified"
	MethodGooglePlaces    VerificationMethod = "google_places"
	MethodManualReview    VerificationMethod = "manual_review"
)

// Contact is the single contact record for a facility.
type Contact struct {
	ID                 string             `json:"id"`
	BuyerID            string             `json:"buyer_id"`
	Role               string             `json:"contact_role"`
	Phone              string             `json:"facility_phone,omitempty"`
	Website            string             `json:"website_url,omitempty"`
	Tier               Tier               `json:"verified_status"`
	VerifiedAt         *time.Time         `json:"verified_at,omitempty"`
	VerificationMethod VerificationMethod `json:"verification_method,omitempty"`
	Confidence         int                `json:"confidence_score"`
	LastCheckedAt      *time.Time         `json:"last_checked_at,omitempty"`
	Notes              string             `json:"notes,omitempty"`
}

// ContactWrite is a contact upsert produced by a sync commit.
type ContactWrite struct {
	BuyerID    string
	Role       string
	Phone      string
	Website    string
	Tier       Tier
	Method     VerificationMethod
	Confidence int
	Notes      string

	// AcceptanceBar is the stored confidence at or above which a verified
	// contact may only be replaced by a result scoring at least 90.
	AcceptanceBar int
}

// Protects reports whether a stored contact with the given tier and
// confidence must be left untouched by a write scoring score.
func Protects(tier Tier, confidence, acceptanceBar, score int) bool {
	return tier == TierVerified && confidence >= acceptanceBar && score < VerifiedThreshold
}

// VerifiedThreshold is the lowest confidence classified as verified.
const VerifiedThreshold = 90

// ReviewThreshold is the lowest confidence classified as needs_review.
const ReviewThreshold = 70

// CommitResult reports what a contact write did.
type CommitResult struct {
	ContactID string
	// Protected is set when the stored row turned out to be a protected
	// verified contact and nothing was written.
	Protected bool
	// ProvenanceAdded is false when an identical entry already existed.
	ProvenanceAdded bool
}
