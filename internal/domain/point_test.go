package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePoint(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Point
	}{
		{"plain", "43.79,87.6", Point{Lat: 43.79, Lon: 87.6}},
		{"spaces", " 39.915 , 116.404 ", Point{Lat: 39.915, Lon: 116.404}},
		{"negative", "-33.8688,151.2093", Point{Lat: -33.8688, Lon: 151.2093}},
		{"bounds", "90,-180", Point{Lat: 90, Lon: -180}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePoint(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePoint_Invalid(t *testing.T) {
	for _, in := range []string{"", "43.79", "abc,87.6", "43.79,xyz", "91,0", "0,181", "NaN,0", "0,NaN", "0,+Inf"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParsePoint(in)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidPoint)
		})
	}
}

func TestPoint_String(t *testing.T) {
	assert.Equal(t, "43.79,87.6", Point{Lat: 43.79, Lon: 87.6}.String())
	assert.Equal(t, "39.9150303,116.4039612", Point{Lat: 39.9150303, Lon: 116.4039612}.String())
}

func TestPoint_StringRoundTrip(t *testing.T) {
	p := Point{Lat: 30.123456789, Lon: 120.987654321}
	got, err := ParsePoint(p.String())
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestNewPoint_OutOfRange(t *testing.T) {
	_, err := NewPoint(-90.5, 0)
	assert.ErrorIs(t, err, ErrInvalidPoint)

	_, err = NewPoint(math.NaN(), 0)
	assert.ErrorIs(t, err, ErrInvalidPoint)
	_, err = NewPoint(0, math.NaN())
	assert.ErrorIs(t, err, ErrInvalidPoint)

	p, err := NewPoint(-90, 180)
	require.NoError(t, err)
	assert.Equal(t, Point{Lat: -90, Lon: 180}, p)
}

func TestCoordType_Valid(t *testing.T) {
	assert.True(t, CoordBD09.Valid())
	assert.True(t, CoordGCJ02.Valid())
	assert.True(t, CoordWGS84.Valid())
	assert.False(t, CoordType("bd09mc").Valid())
	assert.False(t, CoordType("").Valid())
}
