package epa

// Facility is a Clean Water Act regulated facility.
type Facility struct {
	RegistryID           string   `json:"registryId"`
	FacilityName         string   `json:"facilityName"`
	Latitude             float64  `json:"latitude"`
	Longitude            float64  `json:"longitude"`
	StreetAddress        string   `json:"streetAddress"`
	City                 string   `json:"city"`
	StateCode            string   `json:"stateCode"`
	ZipCode              string   `json:"zipCode"`
	FacilityType         string   `json:"facilityType"`
	NAICSCodes           []string `json:"naicsCodes"`
	SICCodes             []string `json:"sicCodes"`
	NPDESPermitIDs       []string `json:"npdesPermitIds"`
	IsMajorDischarger    bool     `json:"isMajorDischarger"`
	ComplianceStatus     string   `json:"complianceStatus"`
	LastInspectionDate   *string  `json:"lastInspectionDate"`
	ViolationsLast3Years int      `json:"violationsLast3Years"`
}

// Permit is an NPDES discharge permit.
type Permit struct {
	PermitID         string   `json:"permitId"`
	RegistryID       string   `json:"registryId"`
	PermitType       string   `json:"permitType"`
	IssueDate        *string  `json:"issueDate"`
	ExpirationDate   *string  `json:"expirationDate"`
	PermittedFlowMGD *float64 `json:"permittedFlowMgd"`
	ReceivingWater   string   `json:"receivingWater"`
	PermitStatus     string   `json:"permitStatus"`
	MajorMinor       string   `json:"majorMinor"`
}

// Violation is an effluent limit exceedance.
type Violation struct {
	RegistryID        string   `json:"registryId"`
	FacilityName      string   `json:"facilityName"`
	ViolationDate     string   `json:"violationDate"`
	ViolationType     string   `json:"violationType"`
	Pollutant         string   `json:"pollutant"`
	LimitValue        *float64 `json:"limitValue"`
	ActualValue       *float64 `json:"actualValue"`
	ExceedancePercent *float64 `json:"exceedancePercent"`
	ResolutionDate    *string  `json:"resolutionDate"`
}

// WaterQualityResult is one sample from the Water Quality Portal.
type WaterQualityResult struct {
	StationID      string   `json:"stationId"`
	StationName    string   `json:"stationName"`
	Latitude       float64  `json:"latitude"`
	Longitude      float64  `json:"longitude"`
	SampleDate     string   `json:"sampleDate"`
	Parameter      string   `json:"parameter"`
	Value          *float64 `json:"value"`
	Unit           string   `json:"unit"`
	DetectionLimit *float64 `json:"detectionLimit"`
}

// FacilityFields maps facility output fields to the ECHO property names that
// have carried them, newest first.
var FacilityFields = []Field{
	{Name: "registryId", Extractors: Keys("RegistryId", "FacilityId")},
	{Name: "facilityName", Extractors: Keys("FacilityName", "Name")},
	{Name: "latitude", Extractors: Keys("Latitude", "FacLat")},
	{Name: "longitude", Extractors: Keys("Longitude", "FacLong")},
	{Name: "streetAddress", Extractors: Keys("StreetAddress", "Address")},
	{Name: "city", Extractors: Keys("City", "CityName")},
	{Name: "stateCode", Extractors: Keys("State", "StateCode")},
	{Name: "zipCode", Extractors: Keys("Zip", "ZipCode")},
	{Name: "facilityType", Extractors: Keys("FacilityType", "SICDesc")},
	{Name: "naicsCodes", Extractors: Keys("NAICSCodes", "NAICS")},
	{Name: "sicCodes", Extractors: Keys("SICCodes", "SIC")},
	{Name: "npdesPermitIds", Extractors: Keys("NPDESIds", "SourceID")},
	{Name: "isMajorDischarger", Extractors: []Extractor{Equals("CWAPermitStatus", "Major"), Equals("MajorFlag", "Y")}},
	{Name: "complianceStatus", Extractors: Keys("CWAComplianceStatus", "ComplianceStatus")},
	{Name: "lastInspectionDate", Extractors: Keys("LastInspection")},
	{Name: "violationsLast3Years", Extractors: Keys("CWA3YrQtrStatus", "Violations")},
}

var PermitFields = []Field{
	{Name: "permitId", Extractors: Keys("SourceID", "PermitNumber")},
	{Name: "permitType", Extractors: Keys("PermitType", "PermitTypeDesc")},
	{Name: "issueDate", Extractors: Keys("IssueDate")},
	{Name: "expirationDate", Extractors: Keys("ExpirationDate")},
	{Name: "permittedFlowMgd", Extractors: Keys("DesignFlow")},
	{Name: "receivingWater", Extractors: Keys("ReceivingWater", "WaterBody")},
	{Name: "permitStatus", Extractors: Keys("PermitStatus", "Status")},
	{Name: "majorMinor", Extractors: Keys("MajorMinor", "MajorFlag")},
}

var ViolationFields = []Field{
	{Name: "registryId", Extractors: Keys("RegistryId", "FacilityId")},
	{Name: "facilityName", Extractors: Keys("FacilityName", "Name")},
	{Name: "violationDate", Extractors: Keys("MonitoringPeriodEndDate", "ViolationDate")},
	{Name: "violationType", Extractors: Keys("ViolationType", "ViolationDesc")},
	{Name: "pollutant", Extractors: Keys("ParameterDesc", "Pollutant")},
	{Name: "limitValue", Extractors: Keys("LimitValue")},
	{Name: "actualValue", Extractors: Keys("DMRValue")},
	{Name: "exceedancePercent", Extractors: Keys("ExceedancePercent")},
	{Name: "resolutionDate", Extractors: Keys("ResolutionDate")},
}

var WaterQualityFields = []Field{
	{Name: "stationId", Extractors: Keys("MonitoringLocationIdentifier")},
	{Name: "stationName", Extractors: Keys("MonitoringLocationName")},
	{Name: "sampleDate", Extractors: Keys("ActivityStartDate")},
	{Name: "parameter", Extractors: Keys("CharacteristicName")},
	{Name: "value", Extractors: Keys("ResultMeasureValue")},
	{Name: "unit", Extractors: Keys("ResultMeasure_MeasureUnitCode")},
	{Name: "detectionLimit", Extractors: Keys("DetectionQuantitationLimitMeasure_MeasureValue")},
}

// ParseFacility normalizes one raw facility record.
func ParseFacility(raw map[string]any) Facility {
	r := Extract(raw, FacilityFields)
	return Facility{
		RegistryID:           r.String("registryId", ""),
		FacilityName:         r.String("facilityName", ""),
		Latitude:             r.Float("latitude"),
		Longitude:            r.Float("longitude"),
		StreetAddress:        r.String("streetAddress", ""),
		City:                 r.String("city", ""),
		StateCode:            r.String("stateCode", ""),
		ZipCode:              r.String("zipCode", ""),
		FacilityType:         r.String("facilityType", ""),
		NAICSCodes:           r.Codes("naicsCodes"),
		SICCodes:             r.Codes("sicCodes"),
		NPDESPermitIDs:       r.Codes("npdesPermitIds"),
		IsMajorDischarger:    r.Bool("isMajorDischarger"),
		ComplianceStatus:     r.String("complianceStatus", "Unknown"),
		LastInspectionDate:   r.StringPtr("lastInspectionDate"),
		ViolationsLast3Years: r.Int("violationsLast3Years"),
	}
}

// ParsePermit normalizes one raw permit. ECHO permit rows do not carry the
// registry id, so the caller supplies it.
func ParsePermit(raw map[string]any, registryID string) Permit {
	r := Extract(raw, PermitFields)
	return Permit{
		PermitID:         r.String("permitId", ""),
		RegistryID:       registryID,
		PermitType:       r.String("permitType", ""),
		IssueDate:        r.StringPtr("issueDate"),
		ExpirationDate:   r.StringPtr("expirationDate"),
		PermittedFlowMGD: r.FloatPtr("permittedFlowMgd"),
		ReceivingWater:   r.String("receivingWater", ""),
		PermitStatus:     r.String("permitStatus", ""),
		MajorMinor:       r.String("majorMinor", ""),
	}
}

func ParseViolation(raw map[string]any) Violation {
	r := Extract(raw, ViolationFields)
	return Violation{
		RegistryID:        r.String("registryId", ""),
		FacilityName:      r.String("facilityName", ""),
		ViolationDate:     r.String("violationDate", ""),
		ViolationType:     r.String("violationType", ""),
		Pollutant:         r.String("pollutant", ""),
		LimitValue:        r.FloatPtr("limitValue"),
		ActualValue:       r.FloatPtr("actualValue"),
		ExceedancePercent: r.FloatPtr("exceedancePercent"),
		ResolutionDate:    r.StringPtr("resolutionDate"),
	}
}

// ParseWaterQuality normalizes a WQP GeoJSON feature. coords is the
// feature's [lng, lat] pair, possibly empty.
func ParseWaterQuality(props map[string]any, coords []float64) WaterQualityResult {
	r := Extract(props, WaterQualityFields)

	value := r.FloatPtr("value")
	if _, ok := r["value"]; !ok {
		zero := 0.0
		value = &zero
	}

	res := WaterQualityResult{
		StationID:      r.String("stationId", ""),
		StationName:    r.String("stationName", ""),
		SampleDate:     r.String("sampleDate", ""),
		Parameter:      r.String("parameter", ""),
		Value:          value,
		Unit:           r.String("unit", ""),
		DetectionLimit: r.FloatPtr("detectionLimit"),
	}
	if len(coords) >= 2 {
		res.Longitude, res.Latitude = coords[0], coords[1]
	}
	return res
}
