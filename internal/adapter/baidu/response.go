package baidu

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/couchcryptid/baidu-place-harvester/internal/domain"
)

// statusText describes the provider status codes seen in practice.
var statusText = map[int]string{
	1:   "internal server error",
	2:   "invalid request parameters",
	3:   "permission verification failed",
	4:   "quota verification failed",
	5:   "invalid ak",
	101: "ak missing",
	102: "whitelist or security code mismatch",
	200: "application does not exist",
	210: "application ip check failed",
	240: "service disabled for this ak",
	302: "daily quota exceeded",
	401: "concurrency limit exceeded",
}

// Status is the provider verdict carried by every response envelope.
type Status struct {
	Code    int
	Message string

	ok bool
}

// OK reports whether the provider answered with a result.
func (s Status) OK() bool { return s.ok }

// Description returns a readable name for known failure codes.
func (s Status) Description() string {
	if d, ok := statusText[s.Code]; ok {
		return d
	}
	return "unknown"
}

// reply is a decoded payload together with the status that governs it.
// value is only meaningful when status.OK() holds.
type reply[T any] struct {
	status Status
	value  T
}

// flexInt accepts both 25 and "25"; the provider is inconsistent.
type flexInt int

func (n *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.Atoi(string(b))
	if err != nil {
		return fmt.Errorf("parse integer %q: %w", b, err)
	}
	*n = flexInt(v)
	return nil
}

// envelope covers the geocoder and place search response shapes.
type envelope struct {
	Status  *flexInt          `json:"status"`
	Msg     string            `json:"msg"`
	Message string            `json:"message"`
	Total   flexInt           `json:"total"`
	Result  json.RawMessage   `json:"result"`
	Results []json.RawMessage `json:"results"`
}

// status reads the geocoder verdict: status 0 is success. A response without
// a status field is a failure.
func (e envelope) status() Status {
	msg := e.Message
	if msg == "" {
		msg = e.Msg
	}
	if e.Status == nil {
		return Status{Code: -1, Message: "missing status"}
	}
	return Status{Code: int(*e.Status), Message: msg, ok: *e.Status == 0}
}

// searchStatus reads the place search verdict: status 0 and message "ok".
func (e envelope) searchStatus() Status {
	st := e.status()
	st.ok = st.ok && e.Message == "ok"
	return st
}

// geocodeResult is the typed view of "result" for both geocoder directions.
type geocodeResult struct {
	Location struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"location"`
	FormattedAddress string `json:"formatted_address"`
}

// searchPage is one decoded page of place search results.
type searchPage struct {
	total  int
	places []domain.PlaceOfInterest
}

func decodeEnvelope(body []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return envelope{}, fmt.Errorf("decode response: %w", err)
	}
	return env, nil
}

// decodeRaw decodes into generic maps, keeping numbers as json.Number so the
// provider payload passes through untouched.
func decodeRaw(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// parseLocation flattens a geocoder "result" object. fallbackAddress is used
// when the provider omits formatted_address, as forward geocoding does.
func parseLocation(raw json.RawMessage, fallbackAddress string) (domain.Location, error) {
	if len(raw) == 0 {
		return domain.Location{}, fmt.Errorf("decode result: missing result object")
	}
	var typed geocodeResult
	if err := json.Unmarshal(raw, &typed); err != nil {
		return domain.Location{}, fmt.Errorf("decode result: %w", err)
	}
	var payload map[string]any
	if err := decodeRaw(raw, &payload); err != nil {
		return domain.Location{}, fmt.Errorf("decode result: %w", err)
	}

	address := typed.FormattedAddress
	if address == "" {
		address = fallbackAddress
	}
	return domain.Location{
		Address: address,
		Point:   domain.Point{Lat: typed.Location.Lat, Lon: typed.Location.Lng},
		Raw:     payload,
	}, nil
}

func parseGeocode(body []byte, address string) (reply[domain.Location], error) {
	env, err := decodeEnvelope(body)
	if err != nil {
		return reply[domain.Location]{}, err
	}
	st := env.status()
	if !st.OK() {
		return reply[domain.Location]{status: st}, nil
	}
	loc, err := parseLocation(env.Result, address)
	if err != nil {
		return reply[domain.Location]{}, err
	}
	return reply[domain.Location]{status: st, value: loc}, nil
}

func parseReverse(body []byte) (reply[domain.ReverseResult], error) {
	env, err := decodeEnvelope(body)
	if err != nil {
		return reply[domain.ReverseResult]{}, err
	}
	st := env.status()
	if !st.OK() {
		return reply[domain.ReverseResult]{status: st}, nil
	}
	loc, err := parseLocation(env.Result, "")
	if err != nil {
		return reply[domain.ReverseResult]{}, err
	}

	var withPOIs struct {
		POIs []domain.PlaceOfInterest `json:"pois"`
	}
	if err := decodeRaw(env.Result, &withPOIs); err != nil {
		return reply[domain.ReverseResult]{}, fmt.Errorf("decode pois: %w", err)
	}
	return reply[domain.ReverseResult]{
		status: st,
		value:  domain.ReverseResult{Location: loc, POIs: withPOIs.POIs},
	}, nil
}

// parseSearch decodes a place search page. Success additionally requires the
// message to read "ok".
func parseSearch(body []byte) (reply[searchPage], error) {
	env, err := decodeEnvelope(body)
	if err != nil {
		return reply[searchPage]{}, err
	}
	st := env.searchStatus()
	if !st.OK() {
		return reply[searchPage]{status: st}, nil
	}

	places := make([]domain.PlaceOfInterest, 0, len(env.Results))
	for i, raw := range env.Results {
		var p domain.PlaceOfInterest
		if err := decodeRaw(raw, &p); err != nil {
			return reply[searchPage]{}, fmt.Errorf("decode result %d: %w", i, err)
		}
		places = append(places, domain.NormalizeName(p))
	}
	return reply[searchPage]{
		status: st,
		value:  searchPage{total: int(env.Total), places: places},
	}, nil
}

// pageCount is ceil(total / pageSize).
func pageCount(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
