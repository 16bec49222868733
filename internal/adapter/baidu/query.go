package baidu

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/couchcryptid/baidu-place-harvester/internal/domain"
)

// secretParams are replaced before a request URL is logged.
var secretParams = []string{"ak", "sn"}

// RegionFilter scopes a place search to a city, a rectangle, or a circle.
// The zero value is not a valid filter.
type RegionFilter struct {
	key   string
	value string

	radius int // meters; only with key "location"
}

// InRegion limits the search to a city or administrative region name.
func InRegion(region string) RegionFilter {
	return RegionFilter{key: "region", value: region}
}

// InBounds limits the search to the rectangle spanned by sw and ne.
func InBounds(sw, ne domain.Point) RegionFilter {
	return RegionFilter{key: "bounds", value: sw.String() + "," + ne.String()}
}

// ParseBounds parses "swLat,swLng,neLat,neLng" into an InBounds filter.
func ParseBounds(s string) (RegionFilter, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return RegionFilter{}, fmt.Errorf("%w: bounds %q must have four comma-separated numbers", ErrQuery, s)
	}
	sw, err := domain.ParsePoint(parts[0] + "," + parts[1])
	if err != nil {
		return RegionFilter{}, fmt.Errorf("%w: bounds south-west: %w", ErrQuery, err)
	}
	ne, err := domain.ParsePoint(parts[2] + "," + parts[3])
	if err != nil {
		return RegionFilter{}, fmt.Errorf("%w: bounds north-east: %w", ErrQuery, err)
	}
	return InBounds(sw, ne), nil
}

// Around limits the search to radius meters around center.
func Around(center domain.Point, radius int) RegionFilter {
	return RegionFilter{key: "location", value: center.String(), radius: radius}
}

// String describes the filter for logs and records.
func (f RegionFilter) String() string {
	if f.key == "location" {
		return fmt.Sprintf("location=%s radius=%d", f.value, f.radius)
	}
	return f.key + "=" + f.value
}

// Region returns the city name for InRegion filters and "" otherwise.
func (f RegionFilter) Region() string {
	if f.key == "region" {
		return f.value
	}
	return ""
}

func (f RegionFilter) validate() error {
	switch {
	case f.key == "":
		return fmt.Errorf("%w: place search needs a region, bounds, or location filter", ErrQuery)
	case f.value == "":
		return fmt.Errorf("%w: empty %s filter", ErrQuery, f.key)
	case f.key == "location" && f.radius <= 0:
		return fmt.Errorf("%w: radius must be positive", ErrQuery)
	}
	return nil
}

func (f RegionFilter) apply(v url.Values) {
	v.Set(f.key, f.value)
	if f.key == "location" {
		v.Set("radius", strconv.Itoa(f.radius))
	}
}

// baseParams carries the credentials and output format every endpoint needs.
func (c *Client) baseParams() url.Values {
	return url.Values{
		"ak":     {c.cfg.AccessKey},
		"output": {c.cfg.Output},
	}
}

func (c *Client) geocodeParams(address, city string) url.Values {
	v := c.baseParams()
	v.Set("address", address)
	if city != "" {
		v.Set("city", city)
	}
	return v
}

func (c *Client) reverseParams(p domain.Point, opts domain.ReverseOptions) url.Values {
	v := c.baseParams()
	v.Set("location", p.String())
	v.Set("coordtype", string(opts.CoordType))
	if opts.IncludePOIs {
		v.Set("pois", "1")
	}
	return v
}

func (c *Client) searchParams(q PlaceQuery, pageNum int) url.Values {
	v := c.baseParams()
	v.Set("query", q.Query)
	v.Set("page_num", strconv.Itoa(pageNum))
	v.Set("page_size", strconv.Itoa(q.PageSize))
	v.Set("scope", strconv.Itoa(q.Scope))
	q.Filter.apply(v)
	if q.Tag != "" {
		v.Set("tag", q.Tag)
	}
	return v
}

// redactedURL renders endpoint?params with secret values masked.
func redactedURL(endpoint string, params url.Values) string {
	safe := make(url.Values, len(params))
	for k, vs := range params {
		safe[k] = vs
	}
	for _, k := range secretParams {
		if safe.Has(k) {
			safe.Set(k, "REDACTED")
		}
	}
	return endpoint + "?" + safe.Encode()
}
