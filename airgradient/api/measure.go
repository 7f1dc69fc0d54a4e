package api

// Measure is a single reading as returned by the AirGradient API. Every
// numeric field is optional on the wire.
type Measure struct {
	LocationID      *int     `json:"locationId,omitempty"`
	LocationName    string   `json:"locationName,omitempty"`
	LocationType    string   `json:"locationType,omitempty"`
	Serialno        string   `json:"serialno,omitempty"`
	Model           string   `json:"model,omitempty"`
	PM01            *float64 `json:"pm01,omitempty"`
	PM02            *float64 `json:"pm02,omitempty"`
	PM10            *float64 `json:"pm10,omitempty"`
	PM01Corrected   *float64 `json:"pm01_corrected,omitempty"`
	PM02Corrected   *float64 `json:"pm02_corrected,omitempty"`
	PM10Corrected   *float64 `json:"pm10_corrected,omitempty"`
	PM003Count      *float64 `json:"pm003Count,omitempty"`
	Atmp            *float64 `json:"atmp,omitempty"`
	Rhum            *float64 `json:"rhum,omitempty"`
	Rco2            *float64 `json:"rco2,omitempty"`
	AtmpCorrected   *float64 `json:"atmp_corrected,omitempty"`
	RhumCorrected   *float64 `json:"rhum_corrected,omitempty"`
	Rco2Corrected   *float64 `json:"rco2_corrected,omitempty"`
	TVOC            *float64 `json:"tvoc,omitempty"`
	TVOCIndex       *float64 `json:"tvocIndex,omitempty"`
	NOXIndex        *float64 `json:"noxIndex,omitempty"`
	Wifi            *float64 `json:"wifi,omitempty"`
	Datapoints      *float64 `json:"datapoints,omitempty"`
	Timestamp       string   `json:"timestamp,omitempty"`
	FirmwareVersion string   `json:"firmwareVersion,omitempty"`
	Longitude       *float64 `json:"longitude,omitempty"`
	Latitude        *float64 `json:"latitude,omitempty"`
}

// MeasuresQuery is the optional date window accepted by the range endpoints.
type MeasuresQuery struct {
	From string
	To   string
}

func (q MeasuresQuery) values() Query {
	query := Query{}
	if q.From != "" {
		query["from"] = q.From
	}
	if q.To != "" {
		query["to"] = q.To
	}
	return query
}
