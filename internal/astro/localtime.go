package astro

import "time"

// CentralEuropeanTime is a TimezoneProvider with a fixed offset rule:
// standard time is UTC+1, and DST adds exactly one hour between the last
// Sunday of March 01:00 UTC and the last Sunday of October 01:00 UTC.
// Transition instants are compared in UTC offsets, not wall-clock flags, so
// the ambiguous repeated hour at the autumn transition resolves
// deterministically to standard time.
type CentralEuropeanTime struct{}

const (
	cetStandardOffset = 1 * time.Hour
	cetDSTOffset      = 2 * time.Hour
)

// ToLocal returns the CET/CEST wall-clock time for the given UTC instant.
func (CentralEuropeanTime) ToLocal(utc time.Time) time.Time {
	utc = utc.UTC()
	offset := cetStandardOffset
	if inCentralEuropeanDST(utc) {
		offset = cetDSTOffset
	}
	return utc.Add(offset)
}

// inCentralEuropeanDST reports whether the UTC instant falls in the DST
// window. Both boundaries are expressed as UTC instants, so comparison is
// unambiguous even inside the transition hour.
func inCentralEuropeanDST(utc time.Time) bool {
	year := utc.Year()
	start := lastSundayUTC(year, time.March).Add(1 * time.Hour)
	end := lastSundayUTC(year, time.October).Add(1 * time.Hour)
	return !utc.Before(start) && utc.Before(end)
}

// lastSundayUTC returns midnight UTC of the last Sunday of the given month.
func lastSundayUTC(year int, month time.Month) time.Time {
	d := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	for d.Weekday() != time.Sunday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}
