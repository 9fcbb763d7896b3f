package cache

import (
	"database/sql/driver"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// CodeList is a list of short codes (NAICS, SIC, NPDES ids). It is a text[]
// column on Postgres and falls back to the array literal in a text column
// elsewhere.
type CodeList []string

func (c CodeList) Value() (driver.Value, error) {
	if c == nil {
		return pq.StringArray{}.Value()
	}
	return pq.StringArray(c).Value()
}

func (c *CodeList) Scan(src any) error {
	var arr pq.StringArray
	if err := arr.Scan(src); err != nil {
		return err
	}
	*c = CodeList(arr)
	return nil
}

func (CodeList) GormDBDataType(d *gorm.DB, _ *schema.Field) string {
	if d.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}

type Watershed struct {
	HUC12          string `gorm:"primaryKey;type:varchar(12)"`
	HUC10          string `gorm:"type:varchar(10);index"`
	HUC8           string `gorm:"type:varchar(8);index"`
	HUC6           string `gorm:"type:varchar(6)"`
	HUC4           string `gorm:"type:varchar(4)"`
	HUC2           string `gorm:"type:varchar(2)"`
	Name           string
	AreaSqKm       float64
	States         string
	CentroidLat    float64
	CentroidLng    float64
	Boundary       string   `gorm:"type:text"`
	UpstreamHUC12s []string `gorm:"serializer:json;type:text"`
	CachedAt       time.Time
}

type StreamGauge struct {
	SiteID           string `gorm:"primaryKey;type:varchar(20)"`
	SiteName         string
	Latitude         float64
	Longitude        float64
	StateCode        string `gorm:"type:varchar(2);index"`
	CountyName       string
	DrainageAreaSqMi *float64
	DatumElevationFt *float64
	SiteType         string
	Active           bool `gorm:"not null;default:true"`
	CachedAt         time.Time
}

// GaugeReading ids are "<siteId>_<timestamp>".
type GaugeReading struct {
	ID               string `gorm:"primaryKey"`
	SiteID           string `gorm:"type:varchar(20);not null;index"`
	Timestamp        string `gorm:"column:observed_at;not null;index"`
	DischargeCfs     *float64
	GageHeightFt     *float64
	WaterTempCelsius *float64
	CachedAt         time.Time
}

type Facility struct {
	RegistryID           string `gorm:"primaryKey;type:varchar(20)"`
	FacilityName         string
	Latitude             float64
	Longitude            float64
	StreetAddress        string
	City                 string
	StateCode            string `gorm:"type:varchar(2);index"`
	ZipCode              string
	FacilityType         string
	NAICSCodes           CodeList
	SICCodes             CodeList
	NPDESPermitIDs       CodeList
	IsMajorDischarger    bool
	ComplianceStatus     string
	LastInspectionDate   *string
	ViolationsLast3Years int
	CachedAt             time.Time
}
