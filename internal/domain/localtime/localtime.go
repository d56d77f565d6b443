// Package localtime is the single home for timezone-local calendar math.
//
// Every local-date or local-hour derivation in the service goes through
// this package so that midnight and DST edge cases are handled in one
// well-tested place instead of ad hoc string formatting at call sites.
package localtime

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for local calendar dates.
const DateLayout = "2006-01-02"

// Location resolves an IANA timezone name, falling back to UTC for an
// empty name.
func Location(tz string) (*time.Location, error) {
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	return loc, nil
}

// Date returns the local calendar date (YYYY-MM-DD) of the UTC instant t
// in the given timezone.
func Date(t time.Time, tz string) (string, error) {
	loc, err := Location(tz)
	if err != nil {
		return "", err
	}
	return t.In(loc).Format(DateLayout), nil
}

// Hour returns the local hour (0-23) of the UTC instant t in the given
// timezone.
func Hour(t time.Time, tz string) (int, error) {
	loc, err := Location(tz)
	if err != nil {
		return 0, err
	}
	return t.In(loc).Hour(), nil
}

// DayRange returns the half-open UTC instant range [start, end) covering
// the local calendar date in the given timezone. time.Date normalizes
// through the location, so DST transitions shorten or stretch the range
// instead of shifting it.
func DayRange(date, tz string) (start, end time.Time, err error) {
	loc, err := Location(tz)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	day, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	start = day.UTC()
	end = day.AddDate(0, 0, 1).UTC()
	return start, end, nil
}

// Today returns the current local calendar date in the given timezone.
func Today(tz string) (string, error) {
	return Date(time.Now().UTC(), tz)
}
