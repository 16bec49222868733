package domain

import "context"

// CoordType selects the datum of the coordinates sent to the provider.
type CoordType string

const (
	CoordBD09  CoordType = "bd09ll"  // provider-native
	CoordGCJ02 CoordType = "gcj02ll" // national survey
	CoordWGS84 CoordType = "wgs84ll" // satellite-native
)

// Valid reports whether c is one of the supported coordinate systems.
func (c CoordType) Valid() bool {
	switch c {
	case CoordBD09, CoordGCJ02, CoordWGS84:
		return true
	}
	return false
}

// Location is a single geocoding result.
type Location struct {
	Address string         `json:"address"`
	Point   Point          `json:"point"`
	Raw     map[string]any `json:"raw,omitempty"` // provider payload, passed through as-is
}

// ReverseResult is the outcome of a reverse geocoding call. POIs is nil when
// the provider did not include any.
type ReverseResult struct {
	Location Location          `json:"location"`
	POIs     []PlaceOfInterest `json:"pois,omitempty"`
}

// ReverseOptions tunes a reverse geocoding request.
type ReverseOptions struct {
	CoordType   CoordType // empty means CoordBD09
	IncludePOIs bool
}

// Geocoder resolves addresses and coordinates. A nil result with a nil error
// means the provider answered but found nothing.
type Geocoder interface {
	// Geocode converts an address, optionally scoped to a city, to a location.
	Geocode(ctx context.Context, address, city string) (*Location, error)

	// Reverse converts a point to an address and, optionally, nearby POIs.
	Reverse(ctx context.Context, p Point, opts ReverseOptions) (*ReverseResult, error)
}
