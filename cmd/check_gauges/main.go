// check_gauges prints the USGS gauges for a HUC or a site list, optionally
// with their latest readings. It talks to USGS directly and needs no database.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/headwatersai/headwaters-backend/internal/observability"
	"github.com/headwatersai/headwaters-backend/internal/upstream"
	"github.com/headwatersai/headwaters-backend/internal/usgs"
)

var (
	huc      = flag.String("huc", "", "hydrologic unit code (2-12 digits)")
	sites    = flag.String("sites", "", "comma-separated USGS site numbers")
	readings = flag.Bool("readings", false, "include latest instantaneous values")
)

func main() {
	flag.Parse()
	if (*huc == "") == (*sites == "") {
		fmt.Fprintln(os.Stderr, "exactly one of --huc or --sites is required")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client := usgs.NewClient(upstream.New(upstream.Options{
		Provider: usgs.Provider,
		Logger:   observability.NewLogger("warn", "text"),
	}))

	var (
		gauges []usgs.Gauge
		err    error
	)
	if *huc != "" {
		gauges, err = client.GaugesByHUC(ctx, *huc)
	} else {
		gauges, err = client.GaugesBySite(ctx, strings.Split(*sites, ","))
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "fetch gauges:", err)
		os.Exit(1)
	}

	latest := map[string]usgs.Reading{}
	if *readings && len(gauges) > 0 {
		ids := make([]string, 0, len(gauges))
		for _, g := range gauges {
			ids = append(ids, g.SiteID)
		}
		rs, err := client.InstantaneousValues(ctx, ids)
		if err != nil {
			fmt.Fprintln(os.Stderr, "fetch readings:", err)
			os.Exit(1)
		}
		for _, r := range rs {
			latest[r.SiteID] = r
		}
	}

	fmt.Printf("%d gauges\n\n", len(gauges))
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SITE\tNAME\tSTATE\tLAT\tLNG\tCFS\tFT\tOBSERVED")
	for _, g := range gauges {
		r, ok := latest[g.SiteID]
		observed := "-"
		if ok {
			observed = r.Timestamp
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.4f\t%.4f\t%s\t%s\t%s\n",
			g.SiteID, g.SiteName, g.StateCode, g.Latitude, g.Longitude,
			fmtPtr(r.DischargeCfs), fmtPtr(r.GageHeightFt), observed)
	}
	tw.Flush()
}

func fmtPtr(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}
