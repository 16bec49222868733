// Package domain models the records returned by the Baidu Map Web Service API.
//
// # Coordinates
//
// Baidu publishes results in its own datum, BD-09, and accepts input in one of
// three coordinate systems, selected with the "coordtype" query parameter:
//
//	bd09ll   Baidu latitude/longitude (provider-native, the default)
//	gcj02ll  GCJ-02, the national survey datum used by most Chinese maps
//	wgs84ll  WGS-84, the raw GPS datum
//
// Points travel on the wire as "lat,lon" with latitude first, e.g.
// "43.79,87.6". [ParsePoint] accepts the same format with optional spaces.
//
// # Response Envelope
//
// Every response carries an integer "status"; 0 means success and anything
// else means the request was understood but produced no result. Geocoding
// responses put the payload under "result" and the failure text under "msg".
// Place search responses add "message" (must be "ok"), "total" (sometimes a
// string, sometimes a number) and "results".
//
// # Places
//
// Place search hits and reverse geocoding POIs have different shapes, so a
// [PlaceOfInterest] keeps the provider fields as a map and only offers typed
// accessors for the fields both shapes share. The provider occasionally
// returns the look-alike character 囗 (U+56D7) where 口 (U+53E3) is meant;
// [NormalizeName] fixes the "name" field and nothing else.
package domain
