// Package astro implements the solar position calculator: a pure function of
// (UTC timestamp, latitude, longitude) producing sun azimuth, elevation,
// declination, hour angle and earth-sun distance via an NREL-style low-order
// series. It has no error states; all angles are normalized to documented
// ranges and remain mathematically well-defined at extreme latitudes.
package astro

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"

	"terrasol/internal/geo"
	"terrasol/internal/types"
)

// J2000 is the Julian Day of the J2000.0 epoch.
const J2000 = 2451545.0

// Calculator computes solar positions. The timezone provider converts UTC
// instants to venue-local wall-clock time for the LocalTime output field; it
// is injected rather than resolved from a process-wide singleton.
type Calculator struct {
	tz types.TimezoneProvider
}

// NewCalculator creates a Calculator with the given timezone provider.
// A nil provider leaves LocalTime equal to the UTC timestamp.
func NewCalculator(tz types.TimezoneProvider) *Calculator {
	return &Calculator{tz: tz}
}

// Compute returns the solar position for the given UTC instant and location.
// Deterministic and side-effect free. Timestamps before 1582-10-15 follow the
// proleptic Julian calendar handling of the underlying Julian Day conversion.
func (c *Calculator) Compute(utc time.Time, lat, lon float64) types.SolarPosition {
	utc = utc.UTC()

	jd := julian.TimeToJD(utc)
	T := (jd - J2000) / 36525.0

	// Geometric mean longitude, mean anomaly, orbital eccentricity.
	meanLong := geo.NormalizeDeg(280.46646 + T*(36000.76983+T*0.0003032))
	meanAnom := geo.NormalizeDeg(357.52911 + T*(35999.05029-T*0.0001537))
	ecc := 0.016708634 - T*(0.000042037+T*0.0000001267)

	// Equation of center and derived longitudes.
	center := math.Sin(geo.DegToRad(meanAnom))*(1.914602-T*(0.004817+T*0.000014)) +
		math.Sin(geo.DegToRad(2*meanAnom))*(0.019993-T*0.000101) +
		math.Sin(geo.DegToRad(3*meanAnom))*0.000289
	trueLong := meanLong + center

	// Apparent longitude with the nutation-of-longitude correction.
	omega := 125.04 - 1934.136*T
	appLong := trueLong - 0.00569 - 0.00478*math.Sin(geo.DegToRad(omega))

	// Mean and corrected obliquity of the ecliptic.
	meanObliq := 23.0 + (26.0+(21.448-T*(46.815+T*(0.00059-T*0.001813)))/60.0)/60.0
	obliq := meanObliq + 0.00256*math.Cos(geo.DegToRad(omega))

	// Solar declination from apparent longitude and corrected obliquity.
	decRad := math.Asin(math.Sin(geo.DegToRad(obliq)) * math.Sin(geo.DegToRad(appLong)))
	decDeg := geo.RadToDeg(decRad)

	eqTimeMin := equationOfTime(obliq, meanLong, ecc, meanAnom)

	// Hour angle: UTC clock time + equation of time + longitude offset,
	// symmetric range [-180, 180], zero at local solar noon.
	utcMin := float64(utc.Hour()*60+utc.Minute()) + float64(utc.Second())/60.0
	trueSolarMin := utcMin + eqTimeMin + 4.0*lon
	haDeg := trueSolarMin/4.0 - 180.0
	for haDeg < -180 {
		haDeg += 360
	}
	for haDeg > 180 {
		haDeg -= 360
	}

	latRad := geo.DegToRad(lat)
	haRad := geo.DegToRad(haDeg)

	// Elevation.
	sinEl := math.Sin(latRad)*math.Sin(decRad) + math.Cos(latRad)*math.Cos(decRad)*math.Cos(haRad)
	elDeg := geo.RadToDeg(math.Asin(math.Max(-1, math.Min(1, sinEl))))
	elDeg += refractionDeg(elDeg)

	// Azimuth: atan2 form measured from south, shifted to the
	// North-referenced clockwise convention (0 = N, 90 = E).
	azRad := math.Atan2(
		math.Sin(haRad),
		math.Cos(haRad)*math.Sin(latRad)-math.Tan(decRad)*math.Cos(latRad),
	)
	azDeg := geo.NormalizeDeg(geo.RadToDeg(azRad) + 180.0)

	// Earth-sun distance in AU from the true anomaly.
	trueAnomRad := geo.DegToRad(meanAnom + center)
	distAU := 1.000001018 * (1 - ecc*ecc) / (1 + ecc*math.Cos(trueAnomRad))

	local := utc
	if c.tz != nil {
		local = c.tz.ToLocal(utc)
	}

	return types.SolarPosition{
		AzimuthDeg:     azDeg,
		ElevationDeg:   elDeg,
		DeclinationDeg: decDeg,
		HourAngleDeg:   haDeg,
		EarthSunAU:     distAU,
		Timestamp:      utc,
		LocalTime:      local,
		Latitude:       lat,
		Longitude:      lon,
	}
}

// equationOfTime returns the equation of time in minutes.
func equationOfTime(obliqDeg, meanLongDeg, ecc, meanAnomDeg float64) float64 {
	y := math.Tan(geo.DegToRad(obliqDeg) / 2)
	y *= y

	l0 := geo.DegToRad(meanLongDeg)
	m := geo.DegToRad(meanAnomDeg)

	eq := y*math.Sin(2*l0) -
		2*ecc*math.Sin(m) +
		4*ecc*y*math.Sin(m)*math.Cos(2*l0) -
		0.5*y*y*math.Sin(4*l0) -
		1.25*ecc*ecc*math.Sin(2*m)

	return 4 * geo.RadToDeg(eq)
}

// refractionDeg returns the Bennett atmospheric refraction correction to be
// added to the geometric elevation. No correction is ever applied below
// -0.5 degrees; within +/-0.5 degrees of the horizon the formula is
// evaluated at the band edge so the correction stays bounded and continuous
// where it rejoins the standard curve.
func refractionDeg(elDeg float64) float64 {
	switch {
	case elDeg < -0.5:
		return 0
	case elDeg <= 0.5:
		return bennettArcmin(0.5) / 60.0
	case elDeg >= 85:
		return 0
	default:
		return bennettArcmin(elDeg) / 60.0
	}
}

// bennettArcmin evaluates Bennett's refraction formula, returning arcminutes.
func bennettArcmin(hDeg float64) float64 {
	return 1.0 / math.Tan(geo.DegToRad(hDeg+7.31/(hDeg+4.4)))
}
