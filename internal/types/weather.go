package types

import (
	"time"

	"terrasol/internal/geo"
)

// WeatherCondition is the normalized sky condition category derived from
// cloud cover and precipitation.
type WeatherCondition string

const (
	ConditionClear         WeatherCondition = "clear"
	ConditionPartlyCloudy  WeatherCondition = "partly_cloudy"
	ConditionCloudy        WeatherCondition = "cloudy"
	ConditionOvercast      WeatherCondition = "overcast"
	ConditionPrecipitation WeatherCondition = "precipitation"
)

// Condition classification thresholds. Centralized here so display and
// calculation logic cannot drift apart.
const (
	// CloudCoverClearMax is the exclusive upper bound for a Clear sky (%).
	CloudCoverClearMax = 20.0
	// CloudCoverCloudyMin is the inclusive lower bound for Cloudy (%).
	CloudCoverCloudyMin = 70.0
	// CloudCoverOvercastMin is the inclusive lower bound for Overcast (%).
	CloudCoverOvercastMin = 80.0
	// PrecipBlockingIntensity is the mm/h intensity above which precipitation
	// overrides cloud-based classification and blocks direct sun.
	PrecipBlockingIntensity = 0.1
)

// ClassifyCondition maps cloud cover (%) and precipitation intensity (mm/h)
// to a WeatherCondition. Precipitation above the blocking threshold wins
// over any cloud-based class.
func ClassifyCondition(cloudCoverPct, precipIntensity float64) WeatherCondition {
	if precipIntensity > PrecipBlockingIntensity {
		return ConditionPrecipitation
	}
	switch {
	case cloudCoverPct < CloudCoverClearMax:
		return ConditionClear
	case cloudCoverPct < CloudCoverCloudyMin:
		return ConditionPartlyCloudy
	case cloudCoverPct < CloudCoverOvercastMin:
		return ConditionCloudy
	default:
		return ConditionOvercast
	}
}

// WeatherSlice is a raw observation or forecast sample handed to the engine
// by the weather-ingestion collaborator.
type WeatherSlice struct {
	Timestamp       time.Time  `json:"timestamp"`
	Location        *geo.Point `json:"location,omitempty"`
	CloudCoverPct   float64    `json:"cloud_cover_pct"`
	PrecipProb      float64    `json:"precip_probability"`
	PrecipIntensity float64    `json:"precip_intensity_mmh"`
	TemperatureC    float64    `json:"temperature_c"`
	IsForecast      bool       `json:"is_forecast"`
	Source          string     `json:"source"`
	Confidence      float64    `json:"confidence"` // [0,1]
}

// ProcessedWeather is a weather sample interpolated to a specific location
// and time, with its condition classification resolved.
type ProcessedWeather struct {
	Timestamp       time.Time        `json:"timestamp"`
	Location        *geo.Point       `json:"location,omitempty"`
	CloudCoverPct   float64          `json:"cloud_cover_pct"`
	PrecipProb      float64          `json:"precip_probability"`
	PrecipIntensity float64          `json:"precip_intensity_mmh"`
	TemperatureC    float64          `json:"temperature_c"`
	Condition       WeatherCondition `json:"condition"`
	IsForecast      bool             `json:"is_forecast"`
	Source          string           `json:"source"`
	Confidence      float64          `json:"confidence"` // [0,1]
}

// IsSunBlocking reports whether the sky state prevents meaningful direct
// sunlight regardless of shadow geometry.
func (w ProcessedWeather) IsSunBlocking() bool {
	return w.PrecipIntensity > PrecipBlockingIntensity || w.CloudCoverPct > CloudCoverOvercastMin
}
