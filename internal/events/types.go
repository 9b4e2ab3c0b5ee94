// Package events provides fire-and-forget broadcasting of location
// events over Redis pub/sub, so map frontends can react to highlights
// and backfilled coordinates without polling.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Channel is the Redis pub/sub channel for location events.
const Channel = "geosync:location-events"

// EventType represents the type of location event.
type EventType string

const (
	// LocationShown asks connected map clients to highlight a location.
	LocationShown EventType = "LOCATION_SHOWN"
	// LocationUpdated indicates a record's fields were changed.
	LocationUpdated EventType = "LOCATION_UPDATED"
	// CoordinatesBackfilled indicates a backfill pass wrote coordinates.
	CoordinatesBackfilled EventType = "COORDINATES_BACKFILLED"
)

// LocationEvent is the envelope for all location-related events.
type LocationEvent struct {
	EventID    uuid.UUID `json:"event_id"`
	EventType  EventType `json:"event_type"`
	LocationID int       `json:"location_id"`
	Timestamp  time.Time `json:"timestamp"`
	Payload    any       `json:"payload,omitempty"`
}

// ShowLocationPayload contains data for LOCATION_SHOWN events.
type ShowLocationPayload struct {
	CompanyName string  `json:"company_name"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
}

// CoordinatesBackfilledPayload contains data for COORDINATES_BACKFILLED
// events.
type CoordinatesBackfilledPayload struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}
