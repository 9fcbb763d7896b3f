// Package usgs talks to the USGS Water Services (NWIS) site and value
// services and the National Map hydrography layers.
package usgs

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/headwatersai/headwaters-backend/internal/geo"
	"github.com/headwatersai/headwaters-backend/internal/upstream"
)

const (
	// WaterServicesURL is the NWIS base.
	WaterServicesURL = "https://waterservices.usgs.gov/nwis"
	// NationalMapURL hosts the WBD and NHD ArcGIS map servers.
	NationalMapURL = "https://hydro.nationalmap.gov/arcgis/rest/services"

	// Provider is the name used in logs, metrics and errors.
	Provider = "usgs"
)

var (
	DefaultIVParams = []string{ParamDischarge, ParamGageHeight, ParamWaterTemp}
	DefaultDVParams = []string{ParamDischarge, ParamGageHeight}
)

// ErrInvalidHUC is returned for HUC codes that are not 2 to 12 digits.
var ErrInvalidHUC = errors.New("invalid HUC code")

var hucPattern = regexp.MustCompile(`^\d{2,12}$`)

// ValidHUC reports whether s looks like a hydrologic unit code.
func ValidHUC(s string) bool { return hucPattern.MatchString(s) }

// Client is an NWIS + National Map client.
type Client struct {
	WaterServicesURL string
	NationalMapURL   string

	http *upstream.Client
}

// NewClient wraps an upstream client. The base URLs can be overridden after
// construction.
func NewClient(u *upstream.Client) *Client {
	return &Client{
		WaterServicesURL: WaterServicesURL,
		NationalMapURL:   NationalMapURL,
		http:             u,
	}
}

func (c *Client) siteURL(filter url.Values) string {
	q := url.Values{}
	q.Set("format", "rdb")
	q.Set("siteOutput", "expanded")
	for k, v := range filter {
		q[k] = v
	}
	return c.WaterServicesURL + "/site/?" + q.Encode()
}

// activeStreamSites narrows a site query to active stream sites with
// instantaneous values.
func activeStreamSites(q url.Values) url.Values {
	q.Set("siteStatus", "active")
	q.Set("siteType", "ST")
	q.Set("hasDataTypeCd", "iv")
	return q
}

func (c *Client) fetchSites(ctx context.Context, rawURL string) ([]Gauge, error) {
	start := time.Now()
	body, err := c.http.GetText(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	gauges, err := ParseRDB(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse usgs site listing: %w", err)
	}
	upstream.LogTransform(ctx, c.http.Logger(), "gauges", len(body), len(gauges), time.Since(start))
	return gauges, nil
}

// GaugesByHUC lists active stream gauges inside a hydrologic unit.
func (c *Client) GaugesByHUC(ctx context.Context, huc string) ([]Gauge, error) {
	if !ValidHUC(huc) {
		return nil, ErrInvalidHUC
	}
	return c.fetchSites(ctx, c.siteURL(activeStreamSites(url.Values{"huc": {huc}})))
}

// GaugesByBBox lists active stream gauges inside a bounding box.
func (c *Client) GaugesByBBox(ctx context.Context, b geo.BBox) ([]Gauge, error) {
	return c.fetchSites(ctx, c.siteURL(activeStreamSites(url.Values{"bBox": {bboxParam(b)}})))
}

// GaugesByState lists active stream gauges in a state (two-letter code).
func (c *Client) GaugesByState(ctx context.Context, stateCode string) ([]Gauge, error) {
	return c.fetchSites(ctx, c.siteURL(activeStreamSites(url.Values{"stateCd": {stateCode}})))
}

// GaugesBySite looks sites up by number regardless of status or type.
func (c *Client) GaugesBySite(ctx context.Context, siteIDs []string) ([]Gauge, error) {
	if len(siteIDs) == 0 {
		return nil, nil
	}
	return c.fetchSites(ctx, c.siteURL(url.Values{
		"sites":      {strings.Join(siteIDs, ",")},
		"siteStatus": {"all"},
	}))
}

// InstantaneousValues fetches the most recent readings for sites. With no
// codes it asks for discharge, gage height and water temperature.
func (c *Client) InstantaneousValues(ctx context.Context, siteIDs []string, codes ...string) ([]Reading, error) {
	if len(siteIDs) == 0 {
		return nil, nil
	}
	if len(codes) == 0 {
		codes = DefaultIVParams
	}
	q := url.Values{
		"format":      {"json"},
		"sites":       {strings.Join(siteIDs, ",")},
		"parameterCd": {strings.Join(codes, ",")},
		"siteStatus":  {"all"},
	}
	return c.fetchValues(ctx, c.WaterServicesURL+"/iv/?"+q.Encode())
}

// DailyValues fetches daily means between start and end (YYYY-MM-DD). With no
// codes it asks for discharge and gage height.
func (c *Client) DailyValues(ctx context.Context, siteIDs []string, startDate, endDate string, codes ...string) ([]Reading, error) {
	if len(siteIDs) == 0 {
		return nil, nil
	}
	if len(codes) == 0 {
		codes = DefaultDVParams
	}
	q := url.Values{
		"format":      {"json"},
		"sites":       {strings.Join(siteIDs, ",")},
		"startDT":     {startDate},
		"endDT":       {endDate},
		"parameterCd": {strings.Join(codes, ",")},
		"siteStatus":  {"all"},
	}
	return c.fetchValues(ctx, c.WaterServicesURL+"/dv/?"+q.Encode())
}

func (c *Client) fetchValues(ctx context.Context, rawURL string) ([]Reading, error) {
	start := time.Now()
	body, err := c.http.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	readings, err := ParseInstantaneous(body)
	if err != nil {
		return nil, err
	}
	upstream.LogTransform(ctx, c.http.Logger(), "readings", len(body), len(readings), time.Since(start))
	return readings, nil
}

func bboxParam(b geo.BBox) string {
	return strings.Join([]string{fmtCoord(b.West), fmtCoord(b.South), fmtCoord(b.East), fmtCoord(b.North)}, ",")
}

func fmtCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
