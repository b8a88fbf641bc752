package schedule

import "errors"

var (
	// ErrInvalidCalendar is returned when calendar dates are missing or inconsistent.
	ErrInvalidCalendar = errors.New("schedule: invalid calendar")
	// ErrInvalidRoster is returned when entities do not fit the calendar.
	ErrInvalidRoster = errors.New("schedule: invalid roster")
)
