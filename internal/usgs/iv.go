package usgs

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Parameter codes the readings fan in.
const (
	ParamDischarge       = "00060"
	ParamGageHeight      = "00065"
	ParamWaterTemp       = "00010"
	ParamDissolvedOxygen = "00300"
	ParamPH              = "00400"
	ParamConductance     = "00095"
	ParamTurbidity       = "63680"
)

// Reading is every known parameter observed at one site at one instant.
type Reading struct {
	SiteID              string   `json:"siteId"`
	Timestamp           string   `json:"timestamp"`
	DischargeCfs        *float64 `json:"dischargeCfs"`
	GageHeightFt        *float64 `json:"gageHeightFt"`
	WaterTempCelsius    *float64 `json:"waterTempCelsius"`
	DissolvedOxygenMgL  *float64 `json:"dissolvedOxygenMgL"`
	PH                  *float64 `json:"ph"`
	SpecificConductance *float64 `json:"specificConductance"`
	TurbidityNTU        *float64 `json:"turbidityNtu"`
}

// field returns the slot a parameter code writes to, or nil for codes we do
// not track.
func (r *Reading) field(code string) **float64 {
	switch code {
	case ParamDischarge:
		return &r.DischargeCfs
	case ParamGageHeight:
		return &r.GageHeightFt
	case ParamWaterTemp:
		return &r.WaterTempCelsius
	case ParamDissolvedOxygen:
		return &r.DissolvedOxygenMgL
	case ParamPH:
		return &r.PH
	case ParamConductance:
		return &r.SpecificConductance
	case ParamTurbidity:
		return &r.TurbidityNTU
	}
	return nil
}

// ivResponse is the WaterML-as-JSON envelope shared by /iv and /dv.
type ivResponse struct {
	Value struct {
		TimeSeries []struct {
			SourceInfo struct {
				SiteCode []struct {
					Value string `json:"value"`
				} `json:"siteCode"`
			} `json:"sourceInfo"`
			Variable struct {
				VariableCode []struct {
					Value string `json:"value"`
				} `json:"variableCode"`
			} `json:"variable"`
			Values []struct {
				Value []struct {
					Value    string `json:"value"`
					DateTime string `json:"dateTime"`
				} `json:"value"`
			} `json:"values"`
		} `json:"timeSeries"`
	} `json:"value"`
}

// ParseInstantaneous decodes an /iv or /dv JSON body and groups every point
// by (site, timestamp), in first-seen order. Unknown parameter codes and
// unparseable values are skipped.
func ParseInstantaneous(body []byte) ([]Reading, error) {
	var data ivResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("decode usgs values: %w", err)
	}
	return groupReadings(data), nil
}

func groupReadings(data ivResponse) []Reading {
	index := make(map[string]int)
	var readings []Reading

	for _, series := range data.Value.TimeSeries {
		if len(series.SourceInfo.SiteCode) == 0 || len(series.Values) == 0 {
			continue
		}
		siteID := series.SourceInfo.SiteCode[0].Value
		if siteID == "" {
			continue
		}
		var code string
		if len(series.Variable.VariableCode) > 0 {
			code = series.Variable.VariableCode[0].Value
		}

		for _, point := range series.Values[0].Value {
			key := siteID + "_" + point.DateTime
			i, ok := index[key]
			if !ok {
				i = len(readings)
				index[key] = i
				readings = append(readings, Reading{SiteID: siteID, Timestamp: point.DateTime})
			}

			v, err := strconv.ParseFloat(strings.TrimSpace(point.Value), 64)
			if err != nil {
				continue
			}
			if slot := readings[i].field(code); slot != nil {
				*slot = &v
			}
		}
	}
	return readings
}

// ID is the natural cache key for a reading.
func (r Reading) ID() string {
	return r.SiteID + "_" + r.Timestamp
}
