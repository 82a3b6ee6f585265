package clock

import "time"

// DSTRule implements the US civil daylight-saving rule: DST begins the
// second Sunday of March at 02:00 and ends the first Sunday of November.
// The end cutoff is held at 01:00 because the RTC keeps standard time year
// round; by standard time the 02:00 wall-clock transition lands at 01:00,
// and comparing against 01:00 brackets the repeated fall-back hour
// correctly.
//
// The two cutoff instants are cached per calendar year and recomputed when a
// queried time falls in a different year.
type DSTRule struct {
	// Enabled turns the rule off entirely for locales without DST.
	Enabled bool

	year       int
	start, end time.Time
}

// Active reports whether t falls inside the DST window.  t is interpreted as
// RTC (standard) time.
func (r *DSTRule) Active(t time.Time) bool {
	if !r.Enabled {
		return false
	}
	if t.Year() != r.year {
		r.year = t.Year()
		r.start = nthSunday(t.Year(), time.March, 2, 2, t.Location())
		r.end = nthSunday(t.Year(), time.November, 1, 1, t.Location())
	}
	return !t.Before(r.start) && t.Before(r.end)
}

// ToStandard strips the DST offset from a wall-clock time so it can be
// written to the RTC, which keeps standard time.
func (r *DSTRule) ToStandard(t time.Time) time.Time {
	if r.Active(t) {
		return t.Add(-time.Hour)
	}
	return t
}

// nthSunday returns the nth Sunday of the given month at the given hour.
func nthSunday(year int, month time.Month, n, hour int, loc *time.Location) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	day := 1 + (7-int(first.Weekday()))%7 + 7*(n-1)
	return time.Date(year, month, day, hour, 0, 0, 0, loc)
}
