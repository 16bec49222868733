package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// PlaceOfInterest holds the provider fields of one search hit or nearby POI.
type PlaceOfInterest map[string]any

// NormalizeName returns a shallow copy of p with the look-alike 囗 in "name"
// replaced by 口. Other fields are shared with p, not copied.
func NormalizeName(p PlaceOfInterest) PlaceOfInterest {
	out := make(PlaceOfInterest, len(p))
	for k, v := range p {
		out[k] = v
	}
	if name, ok := out["name"].(string); ok {
		out["name"] = strings.ReplaceAll(name, "囗", "口")
	}
	return out
}

// Name returns the "name" field, or "" when absent.
func (p PlaceOfInterest) Name() string { return p.str("name") }

// UID returns the provider's stable identifier for the place.
func (p PlaceOfInterest) UID() string { return p.str("uid") }

// Address returns "address" for search hits and "addr" for reverse POIs.
func (p PlaceOfInterest) Address() string {
	if a := p.str("address"); a != "" {
		return a
	}
	return p.str("addr")
}

// Point returns the place coordinates. Search hits carry
// {"location":{"lat":..,"lng":..}}; reverse POIs carry {"point":{"x":lng,"y":lat}}.
func (p PlaceOfInterest) Point() (Point, bool) {
	if loc, ok := p["location"].(map[string]any); ok {
		lat, okLat := toFloat(loc["lat"])
		lng, okLng := toFloat(loc["lng"])
		if okLat && okLng {
			return Point{Lat: lat, Lon: lng}, true
		}
	}
	if pt, ok := p["point"].(map[string]any); ok {
		x, okX := toFloat(pt["x"])
		y, okY := toFloat(pt["y"])
		if okX && okY {
			return Point{Lat: y, Lon: x}, true
		}
	}
	return Point{}, false
}

func (p PlaceOfInterest) str(key string) string {
	s, _ := p[key].(string)
	return s
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// PlaceRecord is a harvested place ready to publish downstream.
type PlaceRecord struct {
	Query       string          `json:"query"`
	Region      string          `json:"region,omitempty"`
	Place       PlaceOfInterest `json:"place"`
	HarvestedAt time.Time       `json:"harvested_at"`
}

// NewPlaceRecord stamps a place with the harvest time.
func NewPlaceRecord(query, region string, place PlaceOfInterest) PlaceRecord {
	return PlaceRecord{
		Query:       query,
		Region:      region,
		Place:       place,
		HarvestedAt: clock.Now().UTC(),
	}
}
