package geo

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversine(t *testing.T) {
	// Denver to Boulder is roughly 39 km.
	d := Haversine(39.7392, -104.9903, 40.0150, -105.2705)
	assert.InDelta(t, 38.9, d, 1.0)

	assert.Zero(t, Haversine(40, -105, 40, -105))

	// One degree of latitude is ~111.19 km everywhere.
	assert.InDelta(t, 111.19, Haversine(10, 20, 11, 20), 0.1)
}

func TestPrefixes(t *testing.T) {
	p := Prefixes("101900050304")
	assert.Equal(t, HUCPrefixes{
		HUC10: "1019000503",
		HUC8:  "10190005",
		HUC6:  "101900",
		HUC4:  "1019",
		HUC2:  "10",
	}, p)

	short := Prefixes("1019")
	assert.Equal(t, "1019", short.HUC8)
	assert.Equal(t, "10", short.HUC2)
}

func TestContinentalUS(t *testing.T) {
	assert.True(t, InContinentalUS(40.0, -105.0))
	assert.False(t, InContinentalUS(10, 10))
	assert.False(t, InContinentalUS(61.2, -149.9), "Anchorage")
	assert.True(t, ValidLatLng(61.2, -149.9))
	assert.False(t, ValidLatLng(91, 0))
}

func TestParseBBox(t *testing.T) {
	b, err := ParseBBox(url.Values{"west": {"-105.5"}, "south": {"39.5"}, "east": {"-104.5"}, "north": {"40.5"}})
	require.NoError(t, err)
	assert.Equal(t, BBox{West: -105.5, South: 39.5, East: -104.5, North: 40.5}, b)
	assert.True(t, b.Within(2))
	assert.False(t, BBox{West: -106, South: 39, East: -103, North: 40}.Within(2))

	_, err = ParseBBox(url.Values{"west": {"-105"}})
	assert.ErrorIs(t, err, ErrBBoxMissing)

	_, err = ParseBBox(url.Values{"west": {"abc"}, "south": {"1"}, "east": {"2"}, "north": {"3"}})
	assert.ErrorIs(t, err, ErrBBoxInvalid)
}

func TestCentroid(t *testing.T) {
	tests := []struct {
		name             string
		geometry         string
		wantLat, wantLng float64
	}{
		{
			name:     "polygon uses outer ring",
			geometry: `{"type":"Polygon","coordinates":[[[0,0],[4,0],[4,2],[0,2]],[[100,100],[101,101]]]}`,
			wantLat:  1, wantLng: 2,
		},
		{
			name:     "multipolygon averages every outer ring vertex",
			geometry: `{"type":"MultiPolygon","coordinates":[[[[0,0],[2,0],[2,2],[0,2]]],[[[10,10],[12,10],[12,12],[10,12]]]]}`,
			wantLat:  6, wantLng: 6,
		},
		{name: "point is unsupported", geometry: `{"type":"Point","coordinates":[1,2]}`},
		{name: "empty polygon", geometry: `{"type":"Polygon","coordinates":[]}`},
		{name: "garbage", geometry: `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lat, lng := Centroid(json.RawMessage(tt.geometry))
			assert.InDelta(t, tt.wantLat, lat, 1e-9)
			assert.InDelta(t, tt.wantLng, lng, 1e-9)
		})
	}
}

func TestNormalizeState(t *testing.T) {
	s, ok := NormalizeState(" co ")
	assert.True(t, ok)
	assert.Equal(t, "CO", s)

	for _, in := range []string{"", "C", "COL", "C0", "Colorado"} {
		_, ok := NormalizeState(in)
		assert.False(t, ok, in)
	}
}
