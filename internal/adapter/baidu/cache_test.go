package baidu

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/baidu-place-harvester/internal/domain"
	"github.com/couchcryptid/baidu-place-harvester/internal/observability"
)

// --- mock for cache tests ---

type countingGeocoder struct {
	forwardCalls int
	reverseCalls int
	location     *domain.Location
	reverse      *domain.ReverseResult
	err          error
}

func (m *countingGeocoder) Geocode(_ context.Context, _, _ string) (*domain.Location, error) {
	m.forwardCalls++
	return m.location, m.err
}

func (m *countingGeocoder) Reverse(_ context.Context, _ domain.Point, _ domain.ReverseOptions) (*domain.ReverseResult, error) {
	m.reverseCalls++
	return m.reverse, m.err
}

// --- CachedGeocoder tests ---

func TestCachedGeocoder_GeocodeCacheHit(t *testing.T) {
	inner := &countingGeocoder{
		location: &domain.Location{Address: "北京市", Point: domain.Point{Lat: 39.9, Lon: 116.4}},
	}
	metrics := observability.NewMetricsForTesting()
	cached := NewCachedGeocoder(inner, 10, metrics)

	r1, err := cached.Geocode(context.Background(), "北京", "")
	require.NoError(t, err)
	assert.Equal(t, "北京市", r1.Address)

	r2, err := cached.Geocode(context.Background(), "北京", "")
	require.NoError(t, err)
	assert.Equal(t, "北京市", r2.Address)

	assert.Equal(t, 1, inner.forwardCalls, "should only call inner once")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Cache.WithLabelValues("geocode", "hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Cache.WithLabelValues("geocode", "miss")), 0)
}

func TestCachedGeocoder_ReverseCacheHit(t *testing.T) {
	inner := &countingGeocoder{
		reverse: &domain.ReverseResult{Location: domain.Location{Address: "北京市海淀区"}},
	}
	cached := NewCachedGeocoder(inner, 10, observability.NewMetricsForTesting())
	p := domain.Point{Lat: 39.983424, Lon: 116.322987}

	_, err := cached.Reverse(context.Background(), p, domain.ReverseOptions{})
	require.NoError(t, err)

	// An explicit provider-native datum is the same request.
	_, err = cached.Reverse(context.Background(), p, domain.ReverseOptions{CoordType: domain.CoordBD09})
	require.NoError(t, err)

	assert.Equal(t, 1, inner.reverseCalls, "should only call inner once")

	_, err = cached.Reverse(context.Background(), p, domain.ReverseOptions{IncludePOIs: true})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.reverseCalls, "pois option is part of the key")
}

func TestCachedGeocoder_EmptyResultNotCached(t *testing.T) {
	inner := &countingGeocoder{}
	cached := NewCachedGeocoder(inner, 10, observability.NewMetricsForTesting())

	loc, err := cached.Geocode(context.Background(), "nowhere", "")
	require.NoError(t, err)
	assert.Nil(t, loc)
	_, _ = cached.Geocode(context.Background(), "nowhere", "")

	assert.Equal(t, 2, inner.forwardCalls)
}

func TestCachedGeocoder_ErrorPassesThrough(t *testing.T) {
	inner := &countingGeocoder{err: errors.New("boom")}
	cached := NewCachedGeocoder(inner, 10, observability.NewMetricsForTesting())

	_, err := cached.Geocode(context.Background(), "北京", "")
	require.Error(t, err)
	_, err = cached.Reverse(context.Background(), domain.Point{}, domain.ReverseOptions{})
	require.Error(t, err)
}

func TestCachedGeocoder_DifferentKeysMiss(t *testing.T) {
	inner := &countingGeocoder{location: &domain.Location{Address: "somewhere"}}
	cached := NewCachedGeocoder(inner, 10, observability.NewMetricsForTesting())

	_, _ = cached.Geocode(context.Background(), "北京", "")
	_, _ = cached.Geocode(context.Background(), "北京", "北京市")

	assert.Equal(t, 2, inner.forwardCalls)
}

// --- LRU cache unit tests ---

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache[string](2)

	c.put("a", "A")
	c.put("b", "B")
	c.put("c", "C") // evicts "a"

	_, ok := c.get("a")
	assert.False(t, ok, "a should have been evicted")

	v, ok := c.get("b")
	assert.True(t, ok)
	assert.Equal(t, "B", v)
}

func TestLRUCache_AccessPromotesEntry(t *testing.T) {
	c := newLRUCache[string](2)

	c.put("a", "A")
	c.put("b", "B")
	c.get("a")
	c.put("c", "C") // evicts "b"

	_, ok := c.get("a")
	assert.True(t, ok, "a was accessed recently, should not be evicted")
	_, ok = c.get("b")
	assert.False(t, ok, "b should have been evicted")
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache[string](2)

	c.put("a", "A1")
	c.put("a", "A2")

	v, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "A2", v)
}

func TestCachedGeocoder_GeocodeResultsAreIsolated(t *testing.T) {
	inner := &countingGeocoder{location: &domain.Location{
		Address: "北京市",
		Raw:     map[string]any{"level": "城市", "location": map[string]any{"lat": 39.9}},
	}}
	cached := NewCachedGeocoder(inner, 10, observability.NewMetricsForTesting())

	first, err := cached.Geocode(context.Background(), "北京", "")
	require.NoError(t, err)
	first.Raw["level"] = "mutated"
	first.Raw["location"].(map[string]any)["lat"] = 0.0
	inner.location.Raw["level"] = "mutated upstream"

	second, err := cached.Geocode(context.Background(), "北京", "")
	require.NoError(t, err)
	assert.Equal(t, "城市", second.Raw["level"])
	assert.Equal(t, 39.9, second.Raw["location"].(map[string]any)["lat"])

	second.Raw["level"] = "again"
	third, err := cached.Geocode(context.Background(), "北京", "")
	require.NoError(t, err)
	assert.Equal(t, "城市", third.Raw["level"])
	assert.Equal(t, 1, inner.forwardCalls)
}

func TestCachedGeocoder_ReversePOIsAreIsolated(t *testing.T) {
	inner := &countingGeocoder{reverse: &domain.ReverseResult{
		Location: domain.Location{Address: "北京市海淀区"},
		POIs:     []domain.PlaceOfInterest{{"name": "中关村大厦"}},
	}}
	cached := NewCachedGeocoder(inner, 10, observability.NewMetricsForTesting())
	p := domain.Point{Lat: 39.983424, Lon: 116.322987}
	opts := domain.ReverseOptions{IncludePOIs: true}

	first, err := cached.Reverse(context.Background(), p, opts)
	require.NoError(t, err)
	first.POIs[0]["name"] = "mutated"
	first.POIs = append(first.POIs, domain.PlaceOfInterest{"name": "extra"})

	second, err := cached.Reverse(context.Background(), p, opts)
	require.NoError(t, err)
	require.Len(t, second.POIs, 1)
	assert.Equal(t, "中关村大厦", second.POIs[0].Name())
}
