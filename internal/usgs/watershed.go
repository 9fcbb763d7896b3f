package usgs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/headwatersai/headwaters-backend/internal/geo"
)

// Watershed is a HUC-12 unit from the Watershed Boundary Dataset.
type Watershed struct {
	HUC12       string
	HUC10       string
	HUC8        string
	HUC6        string
	HUC4        string
	HUC2        string
	Name        string
	AreaSqKm    float64
	States      string
	CentroidLat float64
	CentroidLng float64
	Boundary    json.RawMessage
}

type featureCollection struct {
	Features []struct {
		Properties map[string]any  `json:"properties"`
		Geometry   json.RawMessage `json:"geometry"`
	} `json:"features"`
}

func (c *Client) wbdQuery(q url.Values) string {
	return c.NationalMapURL + "/wbd/MapServer/6/query?" + q.Encode()
}

// WatershedByPoint returns the HUC-12 containing the point, or nil when the
// point is outside every unit. The centroid is the query point itself.
func (c *Client) WatershedByPoint(ctx context.Context, lat, lng float64) (*Watershed, error) {
	q := url.Values{
		"geometry":       {fmtCoord(lng) + "," + fmtCoord(lat)},
		"geometryType":   {"esriGeometryPoint"},
		"inSR":           {"4326"},
		"spatialRel":     {"esriSpatialRelIntersects"},
		"outFields":      {"*"},
		"returnGeometry": {"true"},
		"f":              {"geojson"},
	}
	w, err := c.fetchWatershed(ctx, c.wbdQuery(q))
	if err != nil || w == nil {
		return nil, err
	}
	w.CentroidLat, w.CentroidLng = lat, lng
	return w, nil
}

// WatershedByHUC12 returns the unit with the given code, or nil. The
// centroid is computed from the boundary.
func (c *Client) WatershedByHUC12(ctx context.Context, huc12 string) (*Watershed, error) {
	if !ValidHUC(huc12) {
		return nil, ErrInvalidHUC
	}
	q := url.Values{
		"where":          {fmt.Sprintf("HUC12='%s'", huc12)},
		"outFields":      {"*"},
		"returnGeometry": {"true"},
		"f":              {"geojson"},
	}
	w, err := c.fetchWatershed(ctx, c.wbdQuery(q))
	if err != nil || w == nil {
		return nil, err
	}
	w.CentroidLat, w.CentroidLng = geo.Centroid(w.Boundary)
	return w, nil
}

func (c *Client) fetchWatershed(ctx context.Context, rawURL string) (*Watershed, error) {
	var fc featureCollection
	if err := c.http.GetJSON(ctx, rawURL, &fc); err != nil {
		return nil, err
	}
	if len(fc.Features) == 0 {
		return nil, nil
	}

	f := fc.Features[0]
	huc12 := propString(f.Properties, "huc12", "HUC12")
	p := geo.Prefixes(huc12)
	return &Watershed{
		HUC12:    huc12,
		HUC10:    p.HUC10,
		HUC8:     p.HUC8,
		HUC6:     p.HUC6,
		HUC4:     p.HUC4,
		HUC2:     p.HUC2,
		Name:     propString(f.Properties, "name", "NAME"),
		AreaSqKm: propFloat(f.Properties, "areasqkm", "AREASQKM"),
		States:   propString(f.Properties, "states", "STATES"),
		Boundary: f.Geometry,
	}, nil
}

// UpstreamHUC12s lists the units that drain into huc12.
func (c *Client) UpstreamHUC12s(ctx context.Context, huc12 string) ([]string, error) {
	if !ValidHUC(huc12) {
		return nil, ErrInvalidHUC
	}
	q := url.Values{
		"where":          {fmt.Sprintf("TOHUC='%s'", huc12)},
		"outFields":      {"HUC12"},
		"returnGeometry": {"false"},
		"f":              {"json"},
	}
	var resp struct {
		Features []struct {
			Attributes struct {
				HUC12 string `json:"HUC12"`
			} `json:"attributes"`
		} `json:"features"`
	}
	if err := c.http.GetJSON(ctx, c.wbdQuery(q), &resp); err != nil {
		return nil, err
	}

	hucs := make([]string, 0, len(resp.Features))
	for _, f := range resp.Features {
		hucs = append(hucs, f.Attributes.HUC12)
	}
	return hucs, nil
}

// Flowlines returns the NHD flowline GeoJSON inside b untouched.
func (c *Client) Flowlines(ctx context.Context, b geo.BBox) (json.RawMessage, error) {
	q := url.Values{
		"geometry":       {bboxParam(b)},
		"geometryType":   {"esriGeometryEnvelope"},
		"inSR":           {"4326"},
		"spatialRel":     {"esriSpatialRelIntersects"},
		"outFields":      {"GNIS_NAME,LENGTHKM,FCODE,STREAMORDE"},
		"returnGeometry": {"true"},
		"f":              {"geojson"},
	}
	body, err := c.http.Get(ctx, c.NationalMapURL+"/nhd/MapServer/6/query?"+q.Encode())
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("usgs flowlines: response is not JSON")
	}
	return json.RawMessage(body), nil
}

// propString returns the first non-empty string property among keys.
func propString(props map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := props[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func propFloat(props map[string]any, keys ...string) float64 {
	for _, k := range keys {
		if v, ok := props[k].(float64); ok && v != 0 {
			return v
		}
	}
	return 0
}
