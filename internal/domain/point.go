package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidPoint is returned when a coordinate pair is malformed or out of range.
var ErrInvalidPoint = errors.New("invalid point")

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NewPoint builds a Point and checks its ranges.
func NewPoint(lat, lon float64) (Point, error) {
	p := Point{Lat: lat, Lon: lon}
	if err := p.Validate(); err != nil {
		return Point{}, err
	}
	return p, nil
}

// ParsePoint parses the "lat,lon" wire format.
func ParsePoint(s string) (Point, error) {
	latStr, lonStr, ok := strings.Cut(s, ",")
	if !ok {
		return Point{}, fmt.Errorf("%w: %q is not lat,lon", ErrInvalidPoint, s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return Point{}, fmt.Errorf("%w: latitude %q: %w", ErrInvalidPoint, latStr, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return Point{}, fmt.Errorf("%w: longitude %q: %w", ErrInvalidPoint, lonStr, err)
	}
	return NewPoint(lat, lon)
}

// Validate reports whether the point lies within [-90,90] x [-180,180].
// NaN is outside every range.
func (p Point) Validate() error {
	if !(p.Lat >= -90 && p.Lat <= 90) {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidPoint, p.Lat)
	}
	if !(p.Lon >= -180 && p.Lon <= 180) {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidPoint, p.Lon)
	}
	return nil
}

// String renders the point in the "lat,lon" wire format without losing precision.
func (p Point) String() string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lon, 'f', -1, 64)
}
