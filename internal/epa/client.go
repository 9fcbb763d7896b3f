// Package epa reads Clean Water Act facility, permit and violation data from
// EPA ECHO, and sample results from the Water Quality Portal.
package epa

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/headwatersai/headwaters-backend/internal/geo"
	"github.com/headwatersai/headwaters-backend/internal/upstream"
)

const (
	// EchoURL is the ECHO REST base.
	EchoURL = "https://echodata.epa.gov/echo"
	// WaterQualityURL is the Water Quality Portal base.
	WaterQualityURL = "https://www.waterqualitydata.us"

	Provider = "epa"
)

// Client is an ECHO + WQP client.
type Client struct {
	EchoURL         string
	WaterQualityURL string

	http *upstream.Client
}

func NewClient(u *upstream.Client) *Client {
	return &Client{
		EchoURL:         EchoURL,
		WaterQualityURL: WaterQualityURL,
		http:            u,
	}
}

type echoResponse struct {
	Results struct {
		Facilities []map[string]any `json:"Facilities"`
		Permits    []map[string]any `json:"Permits"`
		Violations []map[string]any `json:"Violations"`
	} `json:"Results"`
}

func (c *Client) echo(ctx context.Context, service string, q url.Values) (*echoResponse, error) {
	q.Set("output", "JSON")
	var resp echoResponse
	if err := c.http.GetJSON(ctx, c.EchoURL+"/cwa_rest_services."+service+"?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) facilities(ctx context.Context, q url.Values) ([]Facility, error) {
	q.Set("p_ptype", "NPD")
	start := time.Now()
	resp, err := c.echo(ctx, "get_facilities", q)
	if err != nil {
		return nil, err
	}

	out := make([]Facility, 0, len(resp.Results.Facilities))
	for _, raw := range resp.Results.Facilities {
		out = append(out, ParseFacility(raw))
	}
	upstream.LogTransform(ctx, c.http.Logger(), "facilities", len(resp.Results.Facilities), len(out), time.Since(start))
	return out, nil
}

// FacilitiesByBBox lists NPDES facilities inside b.
func (c *Client) FacilitiesByBBox(ctx context.Context, b geo.BBox) ([]Facility, error) {
	return c.facilities(ctx, url.Values{
		"p_c1lat": {num(b.South)},
		"p_c1lon": {num(b.West)},
		"p_c2lat": {num(b.North)},
		"p_c2lon": {num(b.East)},
	})
}

// FacilitiesByHUC lists NPDES facilities in a HUC-8.
func (c *Client) FacilitiesByHUC(ctx context.Context, huc8 string) ([]Facility, error) {
	return c.facilities(ctx, url.Values{"p_huc": {huc8}})
}

// FacilitiesByRadius lists NPDES facilities within radiusMiles of a point.
func (c *Client) FacilitiesByRadius(ctx context.Context, lat, lng, radiusMiles float64) ([]Facility, error) {
	return c.facilities(ctx, url.Values{
		"p_lat":    {num(lat)},
		"p_long":   {num(lng)},
		"p_radius": {num(radiusMiles)},
	})
}

func (c *Client) FacilitiesByState(ctx context.Context, stateCode string) ([]Facility, error) {
	return c.facilities(ctx, url.Values{"p_st": {stateCode}})
}

// MajorDischargers lists a state's major NPDES dischargers.
func (c *Client) MajorDischargers(ctx context.Context, stateCode string) ([]Facility, error) {
	return c.facilities(ctx, url.Values{"p_st": {stateCode}, "p_maj": {"Y"}})
}

// NonCompliantFacilities lists a state's facilities currently in violation.
func (c *Client) NonCompliantFacilities(ctx context.Context, stateCode string) ([]Facility, error) {
	return c.facilities(ctx, url.Values{"p_st": {stateCode}, "p_qnc_status": {"V"}})
}

// FacilityDetail returns one facility, or nil when ECHO has no record.
func (c *Client) FacilityDetail(ctx context.Context, registryID string) (*Facility, error) {
	resp, err := c.echo(ctx, "get_facility_info", url.Values{"p_id": {registryID}})
	if err != nil {
		return nil, err
	}
	if len(resp.Results.Facilities) == 0 {
		return nil, nil
	}
	f := ParseFacility(resp.Results.Facilities[0])
	return &f, nil
}

// Permits lists a facility's discharge permits.
func (c *Client) Permits(ctx context.Context, registryID string) ([]Permit, error) {
	resp, err := c.echo(ctx, "get_permits", url.Values{"p_id": {registryID}})
	if err != nil {
		return nil, err
	}
	out := make([]Permit, 0, len(resp.Results.Permits))
	for _, raw := range resp.Results.Permits {
		out = append(out, ParsePermit(raw, registryID))
	}
	return out, nil
}

// Violations lists a facility's effluent violations. from and to are
// optional MM/DD/YYYY bounds.
func (c *Client) Violations(ctx context.Context, registryID, from, to string) ([]Violation, error) {
	return c.violations(ctx, url.Values{"p_id": {registryID}}, from, to)
}

// ViolationsByHUC lists effluent violations for every facility in a HUC-8.
func (c *Client) ViolationsByHUC(ctx context.Context, huc8, from, to string) ([]Violation, error) {
	return c.violations(ctx, url.Values{"p_huc": {huc8}}, from, to)
}

func (c *Client) violations(ctx context.Context, q url.Values, from, to string) ([]Violation, error) {
	if from != "" {
		q.Set("p_date_from", from)
	}
	if to != "" {
		q.Set("p_date_to", to)
	}
	resp, err := c.echo(ctx, "get_cwa_eff_violations", q)
	if err != nil {
		return nil, err
	}
	out := make([]Violation, 0, len(resp.Results.Violations))
	for _, raw := range resp.Results.Violations {
		out = append(out, ParseViolation(raw))
	}
	return out, nil
}

type wqpResponse struct {
	Features []struct {
		Properties map[string]any `json:"properties"`
		Geometry   *struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

// WaterQuality returns NWIS and STORET sample results inside b.
func (c *Client) WaterQuality(ctx context.Context, b geo.BBox) ([]WaterQualityResult, error) {
	q := url.Values{
		"bBox":        {num(b.West) + "," + num(b.South) + "," + num(b.East) + "," + num(b.North)},
		"mimeType":    {"geojson"},
		"dataProfile": {"narrowResult"},
		"providers":   {"NWIS", "STORET"},
	}
	start := time.Now()
	var resp wqpResponse
	if err := c.http.GetJSON(ctx, c.WaterQualityURL+"/data/Result/search?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	out := make([]WaterQualityResult, 0, len(resp.Features))
	for _, f := range resp.Features {
		var coords []float64
		if f.Geometry != nil {
			coords = f.Geometry.Coordinates
		}
		out = append(out, ParseWaterQuality(f.Properties, coords))
	}
	upstream.LogTransform(ctx, c.http.Logger(), "water_quality", len(resp.Features), len(out), time.Since(start))
	return out, nil
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
