package usgs

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// Gauge is one USGS monitoring site from the site service.
type Gauge struct {
	SiteID           string
	SiteName         string
	Latitude         float64
	Longitude        float64
	StateCode        string
	CountyName       string
	DrainageAreaSqMi *float64
	DatumElevationFt *float64
	SiteType         string
}

// unitsLine matches the RDB column-width declaration that follows the
// header, e.g. "5s\t15s\t50s\t16n".
var unitsLine = regexp.MustCompile(`^[\d\-s\s]+$|^(\d+[sdn]\t)*\d+[sdn]$`)

// ParseRDB reads the tab-delimited site listing. Comment and blank lines are
// skipped, the first remaining line is the header, the column-width line is
// dropped, and every row with a site_no becomes a Gauge.
func ParseRDB(r io.Reader) ([]Gauge, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4<<20)

	var headers []string
	var gauges []Gauge

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if headers == nil {
			headers = strings.Split(line, "\t")
			continue
		}
		if unitsLine.MatchString(line) {
			continue
		}

		values := strings.Split(line, "\t")
		row := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(values) {
				row[h] = values[i]
			}
		}

		if row["site_no"] == "" {
			continue
		}
		gauges = append(gauges, Gauge{
			SiteID:           row["site_no"],
			SiteName:         row["station_nm"],
			Latitude:         floatOrZero(row["dec_lat_va"]),
			Longitude:        floatOrZero(row["dec_long_va"]),
			StateCode:        row["state_cd"],
			CountyName:       row["county_nm"],
			DrainageAreaSqMi: floatOrNil(row["drain_area_va"]),
			DatumElevationFt: floatOrNil(row["alt_va"]),
			SiteType:         row["site_tp_cd"],
		})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return gauges, nil
}

func floatOrZero(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

func floatOrNil(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
