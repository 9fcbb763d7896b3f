// Package geo holds the small amount of coordinate math the API needs.
package geo

import (
	"encoding/json"
	"errors"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

const earthRadiusKm = 6371

// Continental US bounds used to gate NOAA requests.
const (
	minConusLat = 24.0
	maxConusLat = 50.0
	minConusLng = -125.0
	maxConusLng = -66.0
)

// Haversine returns the great-circle distance between two points in km.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

var statePattern = regexp.MustCompile(`^[A-Z]{2}$`)

// NormalizeState trims and upper-cases a two-letter state code. ok is false
// for anything else.
func NormalizeState(s string) (string, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	return s, statePattern.MatchString(s)
}

// ValidLatLng reports whether lat/lng are inside the WGS84 range.
func ValidLatLng(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// InContinentalUS is a coarse box check, not a border test.
func InContinentalUS(lat, lng float64) bool {
	return lat >= minConusLat && lat <= maxConusLat && lng >= minConusLng && lng <= maxConusLng
}

// HUCPrefixes derives the containing HUC-10/8/6/4/2 codes by truncation.
type HUCPrefixes struct {
	HUC10, HUC8, HUC6, HUC4, HUC2 string
}

func Prefixes(huc12 string) HUCPrefixes {
	cut := func(n int) string {
		if len(huc12) < n {
			return huc12
		}
		return huc12[:n]
	}
	return HUCPrefixes{
		HUC10: cut(10),
		HUC8:  cut(8),
		HUC6:  cut(6),
		HUC4:  cut(4),
		HUC2:  cut(2),
	}
}

// BBox is a west/south/east/north box in degrees.
type BBox struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

var (
	ErrBBoxMissing = errors.New("bounding box missing")
	ErrBBoxInvalid = errors.New("bounding box invalid")
)

// ParseBBox reads west, south, east and north from q. It returns
// ErrBBoxMissing when any of them is absent and ErrBBoxInvalid when one
// does not parse as a number.
func ParseBBox(q url.Values) (BBox, error) {
	keys := [4]string{"west", "south", "east", "north"}
	var vals [4]float64
	for i, k := range keys {
		s := q.Get(k)
		if s == "" {
			return BBox{}, ErrBBoxMissing
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return BBox{}, ErrBBoxInvalid
		}
		vals[i] = v
	}
	return BBox{West: vals[0], South: vals[1], East: vals[2], North: vals[3]}, nil
}

func (b BBox) Width() float64  { return b.East - b.West }
func (b BBox) Height() float64 { return b.North - b.South }

// Within reports whether the box spans at most maxDeg in both directions.
func (b BBox) Within(maxDeg float64) bool {
	return math.Abs(b.Width()) <= maxDeg && math.Abs(b.Height()) <= maxDeg
}

// geometry is the subset of GeoJSON geometry Centroid understands.
type geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Centroid is the unweighted mean of the outer-ring vertices of a Polygon or
// MultiPolygon. It is only good enough to centre a map. Unknown or empty
// geometries yield 0,0.
func Centroid(raw json.RawMessage) (lat, lng float64) {
	var g geometry
	if len(raw) == 0 || json.Unmarshal(raw, &g) != nil {
		return 0, 0
	}

	var rings [][][]float64
	switch g.Type {
	case "Polygon":
		var poly [][][]float64
		if json.Unmarshal(g.Coordinates, &poly) != nil || len(poly) == 0 {
			return 0, 0
		}
		rings = append(rings, poly[0])
	case "MultiPolygon":
		var multi [][][][]float64
		if json.Unmarshal(g.Coordinates, &multi) != nil {
			return 0, 0
		}
		for _, poly := range multi {
			if len(poly) > 0 {
				rings = append(rings, poly[0])
			}
		}
	default:
		return 0, 0
	}

	var sumLat, sumLng float64
	var n int
	for _, ring := range rings {
		for _, pt := range ring {
			if len(pt) < 2 {
				continue
			}
			sumLng += pt[0]
			sumLat += pt[1]
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return sumLat / float64(n), sumLng / float64(n)
}
