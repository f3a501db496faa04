package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// SourceType identifies where a provenance observation came from.
type SourceType string

const (
	SourceSeed         SourceType = "seed"
	SourceGooglePlaces SourceType = "google_places"
	SourceManualReview SourceType = "manual_review"
)

// Valid reports whether s is a known source type.
func (s SourceType) Valid() bool {
	switch s {
	case SourceSeed, SourceGooglePlaces, SourceManualReview:
		return true
	default:
		return false
	}
}

// Provenance is an append-only observation backing a contact's values.
type Provenance struct {
	ID              string          `json:"id,omitempty"`
	ContactID       string          `json:"buyer_contact_id"`
	SourceType      SourceType      `json:"source_type"`
	SourceRef       string          `json:"source_ref,omitempty"`
	ObservedPhone   string          `json:"observed_phone,omitempty"`
	ObservedWebsite string          `json:"observed_website,omitempty"`
	MatchScore      int             `json:"match_score"`
	PayloadHash     string          `json:"payload_hash"`
	Payload         json.RawMessage `json:"payload_json"`
	CreatedAt       time.Time       `json:"created_at"`
}

// NewProvenance marshals payload and fills Payload and PayloadHash. The
// hash is the hex SHA-256 of the marshaled JSON.
func NewProvenance(source SourceType, ref string, payload any) (Provenance, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Provenance{}, err
	}
	sum := sha256.Sum256(raw)
	return Provenance{
		SourceType:  source,
		SourceRef:   ref,
		Payload:     raw,
		PayloadHash: hex.EncodeToString(sum[:]),
	}, nil
}
