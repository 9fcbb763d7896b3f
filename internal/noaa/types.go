package noaa

// Point is the NWS gridpoint metadata for a coordinate.
type Point struct {
	GridID            string `json:"gridId"`
	GridX             int    `json:"gridX"`
	GridY             int    `json:"gridY"`
	ForecastURL       string `json:"forecastUrl"`
	ForecastHourlyURL string `json:"forecastHourlyUrl"`
	RadarStation      string `json:"radarStation"`
	TimeZone          string `json:"timeZone"`
	County            string `json:"county"`
	State             string `json:"state"`
}

type Forecast struct {
	Updated string           `json:"updated"`
	Periods []ForecastPeriod `json:"periods"`
}

type ForecastPeriod struct {
	Number                     int      `json:"number"`
	Name                       string   `json:"name"`
	StartTime                  string   `json:"startTime"`
	EndTime                    string   `json:"endTime"`
	IsDaytime                  bool     `json:"isDaytime"`
	Temperature                float64  `json:"temperature"`
	TemperatureUnit            string   `json:"temperatureUnit"`
	TemperatureTrend           *string  `json:"temperatureTrend"`
	ProbabilityOfPrecipitation *float64 `json:"probabilityOfPrecipitation"`
	WindSpeed                  string   `json:"windSpeed"`
	WindDirection              string   `json:"windDirection"`
	ShortForecast              string   `json:"shortForecast"`
	DetailedForecast           string   `json:"detailedForecast"`
	Icon                       string   `json:"icon"`
}

type Alert struct {
	ID          string  `json:"id"`
	AreaDesc    string  `json:"areaDesc"`
	Severity    string  `json:"severity"`
	Certainty   string  `json:"certainty"`
	Urgency     string  `json:"urgency"`
	Event       string  `json:"event"`
	Headline    string  `json:"headline"`
	Description string  `json:"description"`
	Instruction *string `json:"instruction"`
	Onset       string  `json:"onset"`
	Expires     string  `json:"expires"`
	SenderName  string  `json:"senderName"`
}

// Station is an observation station near a gridpoint.
type Station struct {
	StationID   string  `json:"stationId"`
	Name        string  `json:"name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Elevation   float64 `json:"elevation"`
	StationType string  `json:"stationType"`
}

// Observation is the latest precipitation-relevant observation at a station.
type Observation struct {
	StationID                string   `json:"stationId"`
	StationName              string   `json:"stationName"`
	Latitude                 float64  `json:"latitude"`
	Longitude                float64  `json:"longitude"`
	ObservationTime          string   `json:"observationTime"`
	PrecipitationLastHour    *float64 `json:"precipitationLastHour"`
	PrecipitationLast3Hours  *float64 `json:"precipitationLast3Hours"`
	PrecipitationLast6Hours  *float64 `json:"precipitationLast6Hours"`
	PrecipitationLast24Hours *float64 `json:"precipitationLast24Hours"`
	Temperature              *float64 `json:"temperature"`
	Humidity                 *float64 `json:"humidity"`
}

// HourlyPrecipitation is one quantitative precipitation forecast interval.
type HourlyPrecipitation struct {
	ValidTime       string  `json:"validTime"`
	Duration        string  `json:"duration"`
	PrecipitationMm float64 `json:"precipitationMm"`
	PrecipitationIn float64 `json:"precipitationIn"`
}

// quantity is the {"value": n|null} wrapper NWS uses for measured values.
type quantity struct {
	Value *float64 `json:"value"`
}

func (q *quantity) value() *float64 {
	if q == nil {
		return nil
	}
	return q.Value
}

type pointResponse struct {
	Properties struct {
		GridID           string `json:"gridId"`
		GridX            int    `json:"gridX"`
		GridY            int    `json:"gridY"`
		Forecast         string `json:"forecast"`
		ForecastHourly   string `json:"forecastHourly"`
		RadarStation     string `json:"radarStation"`
		TimeZone         string `json:"timeZone"`
		County           string `json:"county"`
		RelativeLocation *struct {
			Properties *struct {
				State string `json:"state"`
			} `json:"properties"`
		} `json:"relativeLocation"`
	} `json:"properties"`
}

type forecastResponse struct {
	Properties struct {
		Updated string `json:"updated"`
		Periods []struct {
			Number                     int       `json:"number"`
			Name                       string    `json:"name"`
			StartTime                  string    `json:"startTime"`
			EndTime                    string    `json:"endTime"`
			IsDaytime                  bool      `json:"isDaytime"`
			Temperature                float64   `json:"temperature"`
			TemperatureUnit            string    `json:"temperatureUnit"`
			TemperatureTrend           *string   `json:"temperatureTrend"`
			ProbabilityOfPrecipitation *quantity `json:"probabilityOfPrecipitation"`
			WindSpeed                  string    `json:"windSpeed"`
			WindDirection              string    `json:"windDirection"`
			ShortForecast              string    `json:"shortForecast"`
			DetailedForecast           string    `json:"detailedForecast"`
			Icon                       string    `json:"icon"`
		} `json:"periods"`
	} `json:"properties"`
}

type alertsResponse struct {
	Features []struct {
		Properties struct {
			ID          string  `json:"id"`
			AreaDesc    string  `json:"areaDesc"`
			Severity    string  `json:"severity"`
			Certainty   string  `json:"certainty"`
			Urgency     string  `json:"urgency"`
			Event       string  `json:"event"`
			Headline    *string `json:"headline"`
			Description *string `json:"description"`
			Instruction *string `json:"instruction"`
			Onset       string  `json:"onset"`
			Expires     string  `json:"expires"`
			SenderName  string  `json:"senderName"`
		} `json:"properties"`
	} `json:"features"`
}

type stationsResponse struct {
	Features []struct {
		Properties struct {
			StationIdentifier string    `json:"stationIdentifier"`
			Name              string    `json:"name"`
			Elevation         *quantity `json:"elevation"`
			StationType       string    `json:"stationType"`
		} `json:"properties"`
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

type observationResponse struct {
	Properties struct {
		Station                  string    `json:"station"`
		Timestamp                string    `json:"timestamp"`
		PrecipitationLastHour    *quantity `json:"precipitationLastHour"`
		PrecipitationLast3Hours  *quantity `json:"precipitationLast3Hours"`
		PrecipitationLast6Hours  *quantity `json:"precipitationLast6Hours"`
		PrecipitationLast24Hours *quantity `json:"precipitationLast24Hours"`
		Temperature              *quantity `json:"temperature"`
		RelativeHumidity         *quantity `json:"relativeHumidity"`
	} `json:"properties"`
	Geometry *struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
}

type gridpointResponse struct {
	Properties struct {
		QuantitativePrecipitation *struct {
			Values []struct {
				ValidTime string   `json:"validTime"`
				Value     *float64 `json:"value"`
			} `json:"values"`
		} `json:"quantitativePrecipitation"`
	} `json:"properties"`
}
