// Package noaa reads forecasts, alerts and station observations from the
// National Weather Service API.
package noaa

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/headwatersai/headwaters-backend/internal/geo"
	"github.com/headwatersai/headwaters-backend/internal/upstream"
)

const (
	BaseURL  = "https://api.weather.gov"
	Provider = "noaa"

	// DefaultRadiusKm bounds station searches when the caller gives none.
	DefaultRadiusKm = 50.0

	// maxObservationStations caps the per-station requests an area lookup
	// makes.
	maxObservationStations = 10

	mmPerInch = 25.4
)

// FloodEvents are the alert event names treated as flood alerts.
var FloodEvents = []string{
	"Flood Warning",
	"Flood Watch",
	"Flash Flood Warning",
	"Flash Flood Watch",
	"Flood Advisory",
}

// Headers returns the request headers NWS requires. userAgent should carry a
// contact address.
func Headers(userAgent string) map[string]string {
	return map[string]string{
		"User-Agent": userAgent,
		"Accept":     "application/geo+json",
	}
}

// Client is an api.weather.gov client. The upstream client must send the
// headers from Headers.
type Client struct {
	BaseURL string

	http *upstream.Client
}

func NewClient(u *upstream.Client) *Client {
	return &Client{BaseURL: BaseURL, http: u}
}

func coords(lat, lng float64) string {
	return fmt.Sprintf("%.4f,%.4f", lat, lng)
}

// Point resolves the forecast gridpoint for a coordinate.
func (c *Client) Point(ctx context.Context, lat, lng float64) (*Point, error) {
	var resp pointResponse
	if err := c.http.GetJSON(ctx, c.BaseURL+"/points/"+coords(lat, lng), &resp); err != nil {
		return nil, err
	}
	p := resp.Properties

	var state string
	if p.RelativeLocation != nil && p.RelativeLocation.Properties != nil {
		state = p.RelativeLocation.Properties.State
	}
	return &Point{
		GridID:            p.GridID,
		GridX:             p.GridX,
		GridY:             p.GridY,
		ForecastURL:       p.Forecast,
		ForecastHourlyURL: p.ForecastHourly,
		RadarStation:      p.RadarStation,
		TimeZone:          p.TimeZone,
		County:            lastSegment(p.County),
		State:             state,
	}, nil
}

// Forecast returns the twelve-hour period forecast.
func (c *Client) Forecast(ctx context.Context, lat, lng float64) (*Forecast, error) {
	p, err := c.Point(ctx, lat, lng)
	if err != nil {
		return nil, err
	}
	return c.forecast(ctx, p.ForecastURL)
}

// HourlyForecast returns the hourly forecast.
func (c *Client) HourlyForecast(ctx context.Context, lat, lng float64) (*Forecast, error) {
	p, err := c.Point(ctx, lat, lng)
	if err != nil {
		return nil, err
	}
	return c.forecast(ctx, p.ForecastHourlyURL)
}

func (c *Client) forecast(ctx context.Context, rawURL string) (*Forecast, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("noaa point has no forecast url")
	}
	var resp forecastResponse
	if err := c.http.GetJSON(ctx, rawURL, &resp); err != nil {
		return nil, err
	}

	out := &Forecast{
		Updated: resp.Properties.Updated,
		Periods: make([]ForecastPeriod, 0, len(resp.Properties.Periods)),
	}
	for _, p := range resp.Properties.Periods {
		out.Periods = append(out.Periods, ForecastPeriod{
			Number:                     p.Number,
			Name:                       p.Name,
			StartTime:                  p.StartTime,
			EndTime:                    p.EndTime,
			IsDaytime:                  p.IsDaytime,
			Temperature:                p.Temperature,
			TemperatureUnit:            p.TemperatureUnit,
			TemperatureTrend:           p.TemperatureTrend,
			ProbabilityOfPrecipitation: p.ProbabilityOfPrecipitation.value(),
			WindSpeed:                  p.WindSpeed,
			WindDirection:              p.WindDirection,
			ShortForecast:              p.ShortForecast,
			DetailedForecast:           p.DetailedForecast,
			Icon:                       p.Icon,
		})
	}
	return out, nil
}

// Alerts returns active alerts covering a point.
func (c *Client) Alerts(ctx context.Context, lat, lng float64) ([]Alert, error) {
	return c.alerts(ctx, url.Values{"point": {coords(lat, lng)}})
}

// AlertsByState returns active alerts for a two-letter state or marine area.
func (c *Client) AlertsByState(ctx context.Context, stateCode string) ([]Alert, error) {
	return c.alerts(ctx, url.Values{"area": {stateCode}})
}

// FloodAlerts returns active flood alerts, nationally or for one state.
func (c *Client) FloodAlerts(ctx context.Context, stateCode string) ([]Alert, error) {
	q := url.Values{"event": {strings.Join(FloodEvents, ",")}}
	if stateCode != "" {
		q.Set("area", stateCode)
	}
	return c.alerts(ctx, q)
}

func (c *Client) alerts(ctx context.Context, q url.Values) ([]Alert, error) {
	var resp alertsResponse
	if err := c.http.GetJSON(ctx, c.BaseURL+"/alerts/active?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	out := make([]Alert, 0, len(resp.Features))
	for _, f := range resp.Features {
		p := f.Properties
		out = append(out, Alert{
			ID:          p.ID,
			AreaDesc:    p.AreaDesc,
			Severity:    p.Severity,
			Certainty:   p.Certainty,
			Urgency:     p.Urgency,
			Event:       p.Event,
			Headline:    deref(p.Headline),
			Description: deref(p.Description),
			Instruction: p.Instruction,
			Onset:       p.Onset,
			Expires:     p.Expires,
			SenderName:  p.SenderName,
		})
	}
	return out, nil
}

// Stations lists observation stations for the point's gridpoint within
// radiusKm of the point.
func (c *Client) Stations(ctx context.Context, lat, lng, radiusKm float64) ([]Station, error) {
	p, err := c.Point(ctx, lat, lng)
	if err != nil {
		return nil, err
	}

	var resp stationsResponse
	rawURL := fmt.Sprintf("%s/gridpoints/%s/%d,%d/stations", c.BaseURL, url.PathEscape(p.GridID), p.GridX, p.GridY)
	if err := c.http.GetJSON(ctx, rawURL, &resp); err != nil {
		return nil, err
	}

	var out []Station
	for _, f := range resp.Features {
		if len(f.Geometry.Coordinates) < 2 {
			continue
		}
		sLng, sLat := f.Geometry.Coordinates[0], f.Geometry.Coordinates[1]
		if geo.Haversine(lat, lng, sLat, sLng) > radiusKm {
			continue
		}

		var elevation float64
		if v := f.Properties.Elevation.value(); v != nil {
			elevation = *v
		}
		stationType := f.Properties.StationType
		if stationType == "" {
			stationType = "Unknown"
		}
		out = append(out, Station{
			StationID:   f.Properties.StationIdentifier,
			Name:        f.Properties.Name,
			Latitude:    sLat,
			Longitude:   sLng,
			Elevation:   elevation,
			StationType: stationType,
		})
	}
	return out, nil
}

// LatestObservation returns the most recent observation at a station, or nil
// when the station has none.
func (c *Client) LatestObservation(ctx context.Context, stationID string) (*Observation, error) {
	var resp observationResponse
	err := c.http.GetJSON(ctx, c.BaseURL+"/stations/"+url.PathEscape(stationID)+"/observations/latest", &resp)
	if err != nil {
		return nil, upstream.IgnoreNotFound(err)
	}
	p := resp.Properties

	name := lastSegment(p.Station)
	if name == "" {
		name = stationID
	}
	obs := &Observation{
		StationID:                stationID,
		StationName:              name,
		ObservationTime:          p.Timestamp,
		PrecipitationLastHour:    p.PrecipitationLastHour.value(),
		PrecipitationLast3Hours:  p.PrecipitationLast3Hours.value(),
		PrecipitationLast6Hours:  p.PrecipitationLast6Hours.value(),
		PrecipitationLast24Hours: p.PrecipitationLast24Hours.value(),
		Temperature:              p.Temperature.value(),
		Humidity:                 p.RelativeHumidity.value(),
	}
	if resp.Geometry != nil && len(resp.Geometry.Coordinates) >= 2 {
		obs.Longitude, obs.Latitude = resp.Geometry.Coordinates[0], resp.Geometry.Coordinates[1]
	}
	return obs, nil
}

// ObservationsForArea fetches the latest observation from up to ten nearby
// stations, one at a time. A station that fails is skipped.
func (c *Client) ObservationsForArea(ctx context.Context, lat, lng, radiusKm float64) ([]Observation, error) {
	stations, err := c.Stations(ctx, lat, lng, radiusKm)
	if err != nil {
		return nil, err
	}
	if len(stations) > maxObservationStations {
		stations = stations[:maxObservationStations]
	}

	out := []Observation{}
	for _, s := range stations {
		obs, err := c.LatestObservation(ctx, s.StationID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.http.Logger().WarnContext(ctx, "skipping station", slog.String("station", s.StationID), slog.Any("error", err))
			continue
		}
		if obs == nil {
			continue
		}
		obs.StationName = s.Name
		obs.Latitude = s.Latitude
		obs.Longitude = s.Longitude
		out = append(out, *obs)
	}
	return out, nil
}

// PrecipitationForecast returns the gridpoint's quantitative precipitation
// forecast intervals.
func (c *Client) PrecipitationForecast(ctx context.Context, lat, lng float64) ([]HourlyPrecipitation, error) {
	p, err := c.Point(ctx, lat, lng)
	if err != nil {
		return nil, err
	}

	var resp gridpointResponse
	rawURL := fmt.Sprintf("%s/gridpoints/%s/%d,%d", c.BaseURL, url.PathEscape(p.GridID), p.GridX, p.GridY)
	if err := c.http.GetJSON(ctx, rawURL, &resp); err != nil {
		return nil, err
	}

	out := []HourlyPrecipitation{}
	qpf := resp.Properties.QuantitativePrecipitation
	if qpf == nil {
		return out, nil
	}
	for _, v := range qpf.Values {
		validTime, duration, _ := strings.Cut(v.ValidTime, "/")
		if duration == "" {
			duration = "PT1H"
		}
		var mm float64
		if v.Value != nil {
			mm = *v.Value
		}
		out = append(out, HourlyPrecipitation{
			ValidTime:       validTime,
			Duration:        duration,
			PrecipitationMm: mm,
			PrecipitationIn: mm / mmPerInch,
		})
	}
	return out, nil
}

func lastSegment(s string) string {
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
