package epa

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/headwatersai/headwaters-backend/internal/geo"
	"github.com/headwatersai/headwaters-backend/internal/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}

func TestParseFacility_LegacyAndCurrentNamesAgree(t *testing.T) {
	current := decode(t, `{
		"RegistryId": "110000350174",
		"FacilityName": "BOULDER WWTP",
		"Latitude": "40.0494",
		"Longitude": "-105.1797",
		"StreetAddress": "4049 75TH ST",
		"City": "BOULDER",
		"State": "CO",
		"Zip": "80301",
		"FacilityType": "POTW",
		"NAICSCodes": "221320, 924110",
		"SICCodes": ["4952"],
		"NPDESIds": "CO0024147",
		"CWAPermitStatus": "Major",
		"CWAComplianceStatus": "No Violation Identified",
		"LastInspection": "2025-06-12",
		"CWA3YrQtrStatus": "2"
	}`)
	legacy := decode(t, `{
		"FacilityId": "110000350174",
		"Name": "BOULDER WWTP",
		"FacLat": 40.0494,
		"FacLong": -105.1797,
		"Address": "4049 75TH ST",
		"CityName": "BOULDER",
		"StateCode": "CO",
		"ZipCode": "80301",
		"SICDesc": "POTW",
		"NAICS": ["221320", "924110"],
		"SIC": "4952",
		"SourceID": "CO0024147",
		"MajorFlag": "Y",
		"ComplianceStatus": "No Violation Identified",
		"LastInspection": "2025-06-12",
		"Violations": 2
	}`)

	a, b := ParseFacility(current), ParseFacility(legacy)
	assert.Equal(t, a, b)

	assert.Equal(t, "110000350174", a.RegistryID)
	assert.InDelta(t, 40.0494, a.Latitude, 1e-9)
	assert.Equal(t, []string{"221320", "924110"}, a.NAICSCodes)
	assert.Equal(t, []string{"4952"}, a.SICCodes)
	assert.Equal(t, []string{"CO0024147"}, a.NPDESPermitIDs)
	assert.True(t, a.IsMajorDischarger)
	require.NotNil(t, a.LastInspectionDate)
	assert.Equal(t, 2, a.ViolationsLast3Years)
}

func TestParseFacility_Defaults(t *testing.T) {
	f := ParseFacility(map[string]any{"RegistryId": "1", "CWAPermitStatus": "Minor", "NAICSCodes": ""})

	assert.Equal(t, "Unknown", f.ComplianceStatus)
	assert.Nil(t, f.LastInspectionDate)
	assert.Zero(t, f.ViolationsLast3Years)
	assert.False(t, f.IsMajorDischarger)
	assert.Equal(t, []string{}, f.NAICSCodes, "empty lists encode as [] not null")
	assert.Zero(t, f.Latitude)
}

func TestExtract_FallsThroughFalsyValues(t *testing.T) {
	table := []Field{{Name: "id", Extractors: Keys("A", "B")}}

	for _, falsy := range []any{nil, "", 0.0, false} {
		r := Extract(map[string]any{"A": falsy, "B": "fallback"}, table)
		assert.Equal(t, "fallback", r.String("id", ""), "A=%v", falsy)
	}

	r := Extract(map[string]any{}, table)
	assert.Equal(t, "def", r.String("id", "def"))
}

func TestExtract_TableIsExtensible(t *testing.T) {
	table := append([]Field(nil), FacilityFields...)
	for i := range table {
		if table[i].Name == "registryId" {
			table[i].Extractors = append(table[i].Extractors, Key("RegistryID"))
		}
	}

	r := Extract(map[string]any{"RegistryID": "99"}, table)
	assert.Equal(t, "99", r.String("registryId", ""))
}

func TestRecord_Int(t *testing.T) {
	tests := []struct {
		in   any
		want int
	}{
		{"3", 3},
		{"12 quarters", 12},
		{4.0, 4},
		{"VVNN", 0},
		{"-2", -2},
	}
	for _, tt := range tests {
		r := Record{"n": tt.in}
		assert.Equal(t, tt.want, r.Int("n"), "%v", tt.in)
	}
}

func TestParsePermitAndViolation(t *testing.T) {
	p := ParsePermit(decode(t, `{"PermitNumber":"CO0024147","PermitTypeDesc":"NPDES Individual Permit","DesignFlow":"25","WaterBody":"Boulder Creek","Status":"Effective","MajorFlag":"Major","IssueDate":""}`), "110000350174")
	assert.Equal(t, "CO0024147", p.PermitID)
	assert.Equal(t, "110000350174", p.RegistryID)
	assert.Equal(t, "NPDES Individual Permit", p.PermitType)
	require.NotNil(t, p.PermittedFlowMGD)
	assert.Equal(t, 25.0, *p.PermittedFlowMGD)
	assert.Equal(t, "Boulder Creek", p.ReceivingWater)
	assert.Nil(t, p.IssueDate)

	v := ParseViolation(decode(t, `{"FacilityId":"1","Name":"X","ViolationDate":"01/31/2026","ViolationDesc":"Effluent","Pollutant":"Ammonia","LimitValue":"1.5","DMRValue":3,"ExceedancePercent":"100"}`))
	assert.Equal(t, "1", v.RegistryID)
	assert.Equal(t, "01/31/2026", v.ViolationDate)
	assert.Equal(t, "Ammonia", v.Pollutant)
	assert.Equal(t, 1.5, *v.LimitValue)
	assert.Equal(t, 3.0, *v.ActualValue)
	assert.Equal(t, 100.0, *v.ExceedancePercent)
	assert.Nil(t, v.ResolutionDate)
}

func TestParseWaterQuality(t *testing.T) {
	r := ParseWaterQuality(decode(t, `{"MonitoringLocationIdentifier":"USGS-06730200","CharacteristicName":"pH","ResultMeasureValue":"7.9","ActivityStartDate":"2025-08-01"}`), []float64{-105.17, 40.05})
	assert.Equal(t, "USGS-06730200", r.StationID)
	assert.Equal(t, 40.05, r.Latitude)
	assert.Equal(t, -105.17, r.Longitude)
	assert.Equal(t, 7.9, *r.Value)
	assert.Nil(t, r.DetectionLimit)

	nd := ParseWaterQuality(map[string]any{"ResultMeasureValue": "ND"}, nil)
	assert.Nil(t, nd.Value, "non-numeric results are null")

	missing := ParseWaterQuality(map[string]any{}, nil)
	require.NotNil(t, missing.Value)
	assert.Zero(t, *missing.Value)
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c := NewClient(upstream.New(upstream.Options{Provider: Provider}))
	c.EchoURL = srv.URL + "/echo"
	c.WaterQualityURL = srv.URL + "/wqp"
	return c
}

func TestFacilitiesByBBox_Query(t *testing.T) {
	var got url.Values
	var path string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		got = r.URL.Query()
		w.Write([]byte(`{"Results":{"Facilities":[{"RegistryId":"1"},{"FacilityId":"2"}]}}`))
	})

	fs, err := c.FacilitiesByBBox(context.Background(), geo.BBox{West: -105.5, South: 39.5, East: -104.5, North: 40.5})
	require.NoError(t, err)
	require.Len(t, fs, 2)
	assert.Equal(t, "2", fs[1].RegistryID)

	assert.Equal(t, "/echo/cwa_rest_services.get_facilities", path)
	assert.Equal(t, "JSON", got.Get("output"))
	assert.Equal(t, "NPD", got.Get("p_ptype"))
	assert.Equal(t, "39.5", got.Get("p_c1lat"))
	assert.Equal(t, "-105.5", got.Get("p_c1lon"))
	assert.Equal(t, "40.5", got.Get("p_c2lat"))
	assert.Equal(t, "-104.5", got.Get("p_c2lon"))
}

func TestFacilitiesByRadius_Query(t *testing.T) {
	var got url.Values
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		w.Write([]byte(`{"Results":{}}`))
	})

	fs, err := c.FacilitiesByRadius(context.Background(), 40, -105, 25)
	require.NoError(t, err)
	assert.Empty(t, fs)
	assert.Equal(t, "40", got.Get("p_lat"))
	assert.Equal(t, "-105", got.Get("p_long"))
	assert.Equal(t, "25", got.Get("p_radius"))
}

func TestFacilityDetail_Missing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Results":{"Facilities":[]}}`))
	})

	f, err := c.FacilityDetail(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestViolations_DateBounds(t *testing.T) {
	var got url.Values
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		w.Write([]byte(`{"Results":{"Violations":[{"RegistryId":"1"}]}}`))
	})

	vs, err := c.Violations(context.Background(), "1", "01/01/2025", "")
	require.NoError(t, err)
	assert.Len(t, vs, 1)
	assert.Equal(t, "01/01/2025", got.Get("p_date_from"))
	assert.False(t, got.Has("p_date_to"))
}

func TestWaterQuality_Query(t *testing.T) {
	var got url.Values
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		w.Write([]byte(`{"features":[{"properties":{"CharacteristicName":"pH"},"geometry":{"coordinates":[-105,40]}},{"properties":{}}]}`))
	})

	rs, err := c.WaterQuality(context.Background(), geo.BBox{West: -105.5, South: 39.5, East: -104.5, North: 40.5})
	require.NoError(t, err)
	require.Len(t, rs, 2)
	assert.Equal(t, 40.0, rs[0].Latitude)
	assert.Zero(t, rs[1].Latitude)
	assert.Equal(t, []string{"NWIS", "STORET"}, got["providers"])
	assert.Equal(t, "geojson", got.Get("mimeType"))
}
