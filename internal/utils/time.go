// Package utils holds calendar helpers shared by the CLI and services.
// Streaks count calendar days in the user's own timezone, so every helper
// takes an explicit location.
package utils

import (
	"fmt"
	"time"

	"github.com/julianstephens/habitual/internal/constants"
)

// loadLocation treats "" and "Local" as the host timezone.
func loadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

// LocationOrUTC resolves a stored user timezone. A name the runtime no
// longer knows falls back to UTC.
func LocationOrUTC(name string) *time.Location {
	loc, err := loadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

func ValidateTimezone(name string) bool {
	_, err := loadLocation(name)
	return err == nil
}

// StartOfDay returns local midnight of the calendar day t falls on in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// ParseDay parses a YYYY-MM-DD date as midnight in loc.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(constants.DateFormat, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", s, err)
	}
	return t, nil
}

// CompletionTime resolves the optional --date/--time pair used when logging
// a completion:
//
//	neither      now
//	time only    today at that time
//	date only    noon of that day, which survives DST shifts
//	both         that date and time
func CompletionTime(date, clock string, loc *time.Location, now time.Time) (time.Time, error) {
	if date == "" && clock == "" {
		return now, nil
	}
	day := StartOfDay(now, loc)
	if date != "" {
		var err error
		if day, err = ParseDay(date, loc); err != nil {
			return time.Time{}, err
		}
	}
	if clock == "" {
		clock = "12:00"
	}
	tod, err := time.Parse(constants.TimeFormat, clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q, expected HH:MM: %w", clock, err)
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, tod.Hour(), tod.Minute(), 0, 0, loc), nil
}
