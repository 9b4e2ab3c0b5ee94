// Package domain provides domain models used across the application.
package domain

// Status represents the sales status of a location.
type Status string

const (
	StatusProspect      Status = "Prospect"
	StatusCustomer      Status = "Customer"
	StatusFollowUp      Status = "Follow-up"
	StatusNotInterested Status = "Not interested"
	StatusRevisit       Status = "Revisit"
)

// DefaultStatus is applied when a stored status is empty or unknown.
const DefaultStatus = StatusProspect

// MaxNotesLength is the maximum accepted length for the notes field,
// enforced at the update boundary only.
const MaxNotesLength = 500

// ValidStatus reports whether s is one of the enumerated statuses.
func ValidStatus(s Status) bool {
	switch s {
	case StatusProspect, StatusCustomer, StatusFollowUp, StatusNotInterested, StatusRevisit:
		return true
	default:
		return false
	}
}

// CoerceStatus maps an arbitrary stored value onto the status enum,
// falling back to DefaultStatus for empty or unknown values.
func CoerceStatus(raw string) Status {
	s := Status(raw)
	if ValidStatus(s) {
		return s
	}
	return DefaultStatus
}

// Location represents one row of the external record store. ID equals
// the row position in the store (1-indexed, header row excluded) and
// never changes once assigned.
type Location struct {
	ID           int     `json:"id"`
	CompanyName  string  `json:"company_name"`
	Address      string  `json:"address"`
	Status       Status  `json:"status"`
	Notes        string  `json:"notes"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	FollowUpDate string  `json:"follow_up_date,omitempty"`
}

// LocationUpdate describes a partial update of a location row. Nil
// fields are left untouched in the store.
type LocationUpdate struct {
	Status       *Status `json:"status,omitempty"`
	Notes        *string `json:"notes,omitempty"`
	FollowUpDate *string `json:"follow_up_date,omitempty"`
}

// IsEmpty reports whether the update carries no fields at all.
func (u LocationUpdate) IsEmpty() bool {
	return u.Status == nil && u.Notes == nil && u.FollowUpDate == nil
}
