// Package model holds the buyer, contact, review, and sync run types shared
// by the store, the sync pipeline, and the CLI.
package model

import "time"

// FacilityType is the kind of grain buyer a facility is.
type FacilityType string

const (
	FacilityElevator  FacilityType = "elevator"
	FacilityProcessor FacilityType = "processor"
	FacilityEthanol   FacilityType = "ethanol"
	FacilityFeedlot   FacilityType = "feedlot"
	FacilityExport    FacilityType = "export"
	FacilityShuttle   FacilityType = "shuttle"
	FacilityTransload FacilityType = "transload"
	FacilityCrush     FacilityType = "crush"
	FacilityRiver     FacilityType = "river"
)

// FacilityTypes lists every known facility type.
var FacilityTypes = []FacilityType{
	FacilityElevator, FacilityProcessor, FacilityEthanol, FacilityFeedlot, FacilityExport,
	FacilityShuttle, FacilityTransload, FacilityCrush, FacilityRiver,
}

// Valid reports whether t is a known facility type.
func (t FacilityType) Valid() bool {
	switch t {
	case FacilityElevator, FacilityProcessor, FacilityEthanol, FacilityFeedlot, FacilityExport,
		FacilityShuttle, FacilityTransload, FacilityCrush, FacilityRiver:
		return true
	default:
		return false
	}
}

// ContactRole is the desk a facility's contact belongs to.
func (t FacilityType) ContactRole() string {
	if t == FacilityTransload {
		return "Operations"
	}
	return "Grain Desk"
}

// Facility is a buyer location from the registry joined with its current
// contact snapshot. Contact fields are zero when no contact exists.
type Facility struct {
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	Type  FacilityType `json:"type"`
	City  string       `json:"city"`
	State string       `json:"state"`
	Lat   float64      `json:"lat"`
	Lng   float64      `json:"lng"`

	ContactID         string     `json:"contact_id,omitempty"`
	CurrentTier       Tier       `json:"current_tier,omitempty"`
	CurrentConfidence int        `json:"current_confidence,omitempty"`
	CurrentPhone      string     `json:"current_phone,omitempty"`
	CurrentWebsite    string     `json:"current_website,omitempty"`
	LastCheckedAt     *time.Time `json:"last_checked_at,omitempty"`
}

// Label formats the facility for log and error messages.
func (f Facility) Label() string {
	return f.Name + " (" + f.City + ", " + f.State + ")"
}
