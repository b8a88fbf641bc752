package schedule

import (
	"fmt"
	"sort"
	"time"
)

const (
	// UnlockLeadDays is how many days before kickoff the first entity of a region unlocks.
	UnlockLeadDays = 12
	// MaxPosition is the highest position index within a region.
	MaxPosition = 12

	day = 24 * time.Hour
)

// Region names a group of entities sharing a kickoff date.
type Region string

// Entity is an immutable roster member.
type Entity struct {
	ID     string
	Name   string
	Tag    string
	Region Region
	// Position is the 1-based unlock order within the region.
	Position int
}

// RegionDates holds the dates that drive a region's schedule.
type RegionDates struct {
	// Kickoff is the region's kickoff instant (midnight UTC of the kickoff day).
	Kickoff time.Time
	// Lock is the instant after which the region is locked for edits.
	Lock time.Time
}

// Window is a half-open interval [Start, End). The zero Window is inactive.
type Window struct {
	Start time.Time
	End   time.Time
}

// IsZero reports whether the window is unset.
func (w Window) IsZero() bool {
	return w.Start.IsZero() && w.End.IsZero()
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if w.IsZero() {
		return false
	}

	return !t.Before(w.Start) && t.Before(w.End)
}

// Calendar maps regions to their dates plus the optional global override.
type Calendar struct {
	Regions  map[Region]RegionDates
	Override Window
}

// Validate fails on missing dates or an inverted override window.
func (c Calendar) Validate() error {
	if len(c.Regions) == 0 {
		return fmt.Errorf("%w: no regions", ErrInvalidCalendar)
	}
	for _, region := range c.RegionNames() {
		dates := c.Regions[region]
		if region == "" {
			return fmt.Errorf("%w: empty region name", ErrInvalidCalendar)
		}
		if dates.Kickoff.IsZero() {
			return fmt.Errorf("%w: region %s has no kickoff date", ErrInvalidCalendar, region)
		}
		if dates.Lock.IsZero() {
			return fmt.Errorf("%w: region %s has no lock date", ErrInvalidCalendar, region)
		}
	}
	if !c.Override.IsZero() {
		if c.Override.Start.IsZero() || c.Override.End.IsZero() || !c.Override.Start.Before(c.Override.End) {
			return fmt.Errorf("%w: override window must have start before end", ErrInvalidCalendar)
		}
	}

	return nil
}

// RegionNames returns the calendar's regions in sorted order.
func (c Calendar) RegionNames() []Region {
	names := make([]Region, 0, len(c.Regions))
	for name := range c.Regions {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	return names
}

// Date parses a YYYY-MM-DD day as midnight UTC.
func Date(value string) (time.Time, error) {
	t, err := time.ParseInLocation(time.DateOnly, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidCalendar, err)
	}

	return t, nil
}

// MustDate is Date for static tables; it panics on malformed input.
func MustDate(value string) time.Time {
	t, err := Date(value)
	if err != nil {
		panic(err)
	}

	return t
}
