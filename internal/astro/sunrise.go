package astro

import (
	"math"
	"time"

	"terrasol/internal/geo"
)

// sunAltitudeAtRise is the standard geometric altitude of the sun's center at
// sunrise/sunset: -50 arcminutes (16' semi-diameter + 34' refraction).
const sunAltitudeAtRise = -0.833

// SunriseSunset returns the UTC sunrise and sunset instants for the given
// date and location. ok is false during polar day or polar night, when the
// sun never crosses the rise/set altitude.
//
// The hour-angle inversion is evaluated with declination and equation of
// time taken at local solar noon, which is accurate to well under a minute
// at the latitudes this engine serves.
func (c *Calculator) SunriseSunset(date time.Time, lat, lon float64) (sunrise, sunset time.Time, ok bool) {
	midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	// First pass at solar noon to obtain declination and equation of time.
	approxNoon := midnight.Add(time.Duration((720-4*lon)*float64(time.Minute)))
	sp := c.Compute(approxNoon, lat, lon)

	latRad := geo.DegToRad(lat)
	decRad := geo.DegToRad(sp.DeclinationDeg)

	cosH := (math.Sin(geo.DegToRad(sunAltitudeAtRise)) - math.Sin(latRad)*math.Sin(decRad)) /
		(math.Cos(latRad) * math.Cos(decRad))
	if cosH > 1 || cosH < -1 {
		return time.Time{}, time.Time{}, false
	}

	haDeg := geo.RadToDeg(math.Acos(cosH))

	// Solar noon in UTC minutes, then offset by the rise/set hour angle.
	noonMin := 720.0 - 4.0*lon - equationOfTimeAt(c, approxNoon, lat, lon)
	riseMin := noonMin - haDeg*4.0
	setMin := noonMin + haDeg*4.0

	sunrise = midnight.Add(time.Duration(riseMin * float64(time.Minute)))
	sunset = midnight.Add(time.Duration(setMin * float64(time.Minute)))
	return sunrise, sunset, true
}

// equationOfTimeAt recovers the equation of time (minutes) at an instant from
// the computed hour angle, inverting the clock-time relation used in Compute.
func equationOfTimeAt(c *Calculator, utc time.Time, lat, lon float64) float64 {
	sp := c.Compute(utc, lat, lon)
	utcMin := float64(utc.Hour()*60+utc.Minute()) + float64(utc.Second())/60.0
	// haDeg = (utcMin + eqTime + 4 lon)/4 - 180
	return (sp.HourAngleDeg+180.0)*4.0 - utcMin - 4.0*lon
}
