package model

import (
	"encoding/json"
	"time"
)

// ReasonCode is why a facility was queued for human review.
type ReasonCode string

const (
	ReasonNoPlaceMatch    ReasonCode = "no_place_match"
	ReasonMultipleMatches ReasonCode = "multiple_matches"
	ReasonDomainMismatch  ReasonCode = "domain_mismatch"
	ReasonPhoneMissing    ReasonCode = "phone_missing"
)

// Valid reports whether r is a known reason code.
func (r ReasonCode) Valid() bool {
	switch r {
	case ReasonNoPlaceMatch, ReasonMultipleMatches, ReasonDomainMismatch, ReasonPhoneMissing:
		return true
	default:
		return false
	}
}

// Review item statuses.
const (
	ReviewOpen     = "open"
	ReviewResolved = "resolved"
)

// ReviewItem is an entry in the human review queue.
type ReviewItem struct {
	ID         string          `json:"id"`
	BuyerID    string          `json:"buyer_id"`
	Reason     ReasonCode      `json:"reason_code"`
	Candidate  json.RawMessage `json:"candidate_json"`
	Status     string          `json:"status"`
	ResolvedBy string          `json:"resolved_by,omitempty"`
	ResolvedAt *time.Time      `json:"resolved_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ReviewRow is an open review item joined with its facility and current
// contact, as exported for reviewers.
type ReviewRow struct {
	ReviewID       string
	BuyerID        string
	BuyerName      string
	BuyerType      FacilityType
	City           string
	State          string
	Reason         ReasonCode
	CurrentPhone   string
	CurrentWebsite string
	Candidate      json.RawMessage
	CreatedAt      time.Time
}

// ReviewResolution is a reviewer-approved contact applied by review import.
type ReviewResolution struct {
	ReviewID        string
	BuyerID         string
	ApprovedPhone   string
	ApprovedWebsite string
	Notes           string
	SourceRef       string
	ResolvedBy      string
}
