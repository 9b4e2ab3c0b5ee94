package domain

// GeocodeErrorKind classifies why a geocode attempt produced no usable
// coordinates.
type GeocodeErrorKind string

const (
	// GeocodeErrInvalidInput means the address was empty or whitespace.
	GeocodeErrInvalidInput GeocodeErrorKind = "invalid_input"
	// GeocodeErrNoResults means the provider resolved the request but
	// found no candidates.
	GeocodeErrNoResults GeocodeErrorKind = "no_results"
	// GeocodeErrQuotaExceeded means the provider rejected the request
	// because the query quota was exhausted.
	GeocodeErrQuotaExceeded GeocodeErrorKind = "quota_exceeded"
	// GeocodeErrRequestDenied means the provider refused the request.
	GeocodeErrRequestDenied GeocodeErrorKind = "request_denied"
	// GeocodeErrInvalidRequest means the provider considered the
	// request malformed.
	GeocodeErrInvalidRequest GeocodeErrorKind = "invalid_request"
	// GeocodeErrInvalidCoordinates means the provider answered OK but
	// the extracted pair failed validation.
	GeocodeErrInvalidCoordinates GeocodeErrorKind = "invalid_coordinates"
	// GeocodeErrTransport means the network call itself failed.
	GeocodeErrTransport GeocodeErrorKind = "transport"
	// GeocodeErrUnknown covers unclassified provider statuses.
	GeocodeErrUnknown GeocodeErrorKind = "unknown"
)

// Coordinates is a WGS84 lat/lng pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// GeocodeResult is the outcome of geocoding one address. Success
// implies Coordinates is non-nil and passed validation; failure
// implies ErrorKind and ErrorMessage are set. The struct is never
// partially populated beyond that rule.
type GeocodeResult struct {
	Success          bool             `json:"success"`
	Coordinates      *Coordinates     `json:"coordinates,omitempty"`
	FormattedAddress string           `json:"formatted_address,omitempty"`
	ErrorKind        GeocodeErrorKind `json:"error_kind,omitempty"`
	ErrorMessage     string           `json:"error_message,omitempty"`
	OriginalAddress  string           `json:"original_address"`
}
