package types

import "time"

// SolarPosition is the computed position of the sun for one location and
// instant. It is a derived value: never persisted, recomputed on demand.
//
// Angle conventions:
//   - Azimuth is North-referenced, clockwise, [0, 360).
//   - Elevation is degrees above the horizon (refraction-corrected near it).
//   - HourAngle is symmetric [-180, 180], zero at local solar noon.
type SolarPosition struct {
	AzimuthDeg     float64   `json:"azimuth_deg"`
	ElevationDeg   float64   `json:"elevation_deg"`
	DeclinationDeg float64   `json:"declination_deg"`
	HourAngleDeg   float64   `json:"hour_angle_deg"`
	EarthSunAU     float64   `json:"earth_sun_au"`
	Timestamp      time.Time `json:"timestamp"`  // UTC
	LocalTime      time.Time `json:"local_time"` // via injected TimezoneProvider
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
}

// ZenithDeg returns the zenith angle. Invariant: zenith = 90 - elevation.
func (s SolarPosition) ZenithDeg() float64 {
	return 90 - s.ElevationDeg
}

// IsSunVisible reports whether the sun is above the horizon.
func (s SolarPosition) IsSunVisible() bool {
	return s.ElevationDeg > 0
}

// TimezoneProvider converts a UTC instant to the venue-local wall clock.
// It is injected into the solar calculator instead of a process-wide
// timezone singleton so that offset rules are explicit and testable.
type TimezoneProvider interface {
	// ToLocal returns the local wall-clock time for the given UTC instant.
	ToLocal(utc time.Time) time.Time
}
