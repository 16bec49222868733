package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeName_ReplacesLookalike(t *testing.T) {
	raw := PlaceOfInterest{
		"name":    "囗袋超市",
		"address": "人民路1号",
		"uid":     "abc123",
	}

	got := NormalizeName(raw)

	assert.Equal(t, "口袋超市", got.Name())
	assert.Equal(t, "人民路1号", got["address"])
	assert.Equal(t, "abc123", got["uid"])
	assert.Equal(t, "囗袋超市", raw["name"], "input must not be mutated")
}

func TestNormalizeName_NoName(t *testing.T) {
	raw := PlaceOfInterest{"uid": "abc123", "name": 42}
	got := NormalizeName(raw)
	assert.Equal(t, 42, got["name"])
	assert.Empty(t, got.Name())
}

func TestPlaceOfInterest_SearchHitShape(t *testing.T) {
	var p PlaceOfInterest
	require.NoError(t, json.Unmarshal([]byte(`{
		"name": "王府井百货",
		"uid": "u1",
		"address": "王府井大街255号",
		"location": {"lat": 39.914, "lng": 116.417}
	}`), &p))

	pt, ok := p.Point()
	require.True(t, ok)
	assert.Equal(t, Point{Lat: 39.914, Lon: 116.417}, pt)
	assert.Equal(t, "王府井大街255号", p.Address())
	assert.Equal(t, "u1", p.UID())
}

func TestPlaceOfInterest_ReversePOIShape(t *testing.T) {
	p := PlaceOfInterest{
		"addr":  "达坂城区",
		"name":  "牧业一队",
		"point": map[string]any{"x": json.Number("88.31"), "y": json.Number("43.36")},
	}

	pt, ok := p.Point()
	require.True(t, ok)
	assert.Equal(t, Point{Lat: 43.36, Lon: 88.31}, pt)
	assert.Equal(t, "达坂城区", p.Address())
}

func TestPlaceOfInterest_NoPoint(t *testing.T) {
	_, ok := PlaceOfInterest{"name": "x"}.Point()
	assert.False(t, ok)
}

func TestNewPlaceRecord_UsesClock(t *testing.T) {
	at := time.Date(2024, time.April, 27, 6, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(at))
	t.Cleanup(func() { SetClock(nil) })

	rec := NewPlaceRecord("购物", "北京", PlaceOfInterest{"uid": "u1"})

	assert.Equal(t, at, rec.HarvestedAt)
	assert.Equal(t, "购物", rec.Query)
	assert.Equal(t, "北京", rec.Region)
	assert.Equal(t, "u1", rec.Place.UID())
}
