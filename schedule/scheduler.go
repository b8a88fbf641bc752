package schedule

import "time"

// Scheduler answers unlock questions for a validated Calendar.
type Scheduler struct {
	cal Calendar
}

// UnlockStatus describes an entity at a given instant.
type UnlockStatus struct {
	Unlocked        bool
	DaysUntilUnlock int
	UnlockDate      time.Time
}

// RegionLockStatus describes a region's edit lock at a given instant.
type RegionLockStatus struct {
	Locked         bool
	LockDate       time.Time
	HoursUntilLock int
}

// New validates the calendar and returns a Scheduler.
func New(cal Calendar) (*Scheduler, error) {
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	regions := make(map[Region]RegionDates, len(cal.Regions))
	for name, dates := range cal.Regions {
		regions[name] = RegionDates{Kickoff: dates.Kickoff.UTC(), Lock: dates.Lock.UTC()}
	}
	cal.Regions = regions

	return &Scheduler{cal: cal}, nil
}

// Calendar returns the scheduler's calendar.
func (s *Scheduler) Calendar() Calendar {
	return s.cal
}

// OverrideActive reports whether now is inside the global override window.
func (s *Scheduler) OverrideActive(now time.Time) bool {
	return s.cal.Override.Contains(now)
}

// WindowStart returns the first unlock instant for a region.
func (s *Scheduler) WindowStart(region Region) (time.Time, bool) {
	dates, ok := s.cal.Regions[region]
	if !ok {
		return time.Time{}, false
	}

	return dates.Kickoff.AddDate(0, 0, -UnlockLeadDays), true
}

// IsUnlocked reports whether the entity is unlocked at now. Unknown regions are never unlocked
// outside the override window.
func (s *Scheduler) IsUnlocked(e Entity, now time.Time) bool {
	if s.OverrideActive(now) {
		return true
	}
	start, ok := s.WindowStart(e.Region)
	if !ok {
		return false
	}

	return elapsedDays(start, now) >= int64(e.Position)
}

// UnlockDate returns the instant the entity unlocks under the per-region formula.
func (s *Scheduler) UnlockDate(e Entity) time.Time {
	start, ok := s.WindowStart(e.Region)
	if !ok {
		return time.Time{}
	}

	return start.AddDate(0, 0, e.Position-1)
}

// IsRegionLocked reports whether the region is locked at now. The override window unlocks every region.
func (s *Scheduler) IsRegionLocked(region Region, now time.Time) bool {
	if s.OverrideActive(now) {
		return false
	}
	dates, ok := s.cal.Regions[region]
	if !ok {
		return false
	}

	return !now.Before(dates.Lock)
}

// Status returns the full unlock status of an entity. Inside the override window the entity is unlocked
// now with zero days remaining.
func (s *Scheduler) Status(e Entity, now time.Time) UnlockStatus {
	if s.OverrideActive(now) {
		return UnlockStatus{Unlocked: true, UnlockDate: now}
	}
	start, ok := s.WindowStart(e.Region)
	if !ok {
		return UnlockStatus{}
	}

	elapsed := elapsedDays(start, now)
	remaining := int64(e.Position) - elapsed
	if remaining < 0 {
		remaining = 0
	}

	return UnlockStatus{
		Unlocked:        elapsed >= int64(e.Position),
		DaysUntilUnlock: int(remaining),
		UnlockDate:      s.UnlockDate(e),
	}
}

// UnlockedToday reports whether now is the entity's unlock day. Always true inside the override window.
func (s *Scheduler) UnlockedToday(e Entity, now time.Time) bool {
	if s.OverrideActive(now) {
		return true
	}
	start, ok := s.WindowStart(e.Region)
	if !ok {
		return false
	}

	return elapsedDays(start, now) == int64(e.Position)
}

// RegionLock returns the lock status of a region. Inside the override window the reported lock date is
// the end of the window.
func (s *Scheduler) RegionLock(region Region, now time.Time) RegionLockStatus {
	if s.OverrideActive(now) {
		return RegionLockStatus{
			LockDate:       s.cal.Override.End,
			HoursUntilLock: hoursUntil(now, s.cal.Override.End),
		}
	}
	dates, ok := s.cal.Regions[region]
	if !ok {
		return RegionLockStatus{}
	}
	if !now.Before(dates.Lock) {
		return RegionLockStatus{Locked: true, LockDate: dates.Lock}
	}

	return RegionLockStatus{LockDate: dates.Lock, HoursUntilLock: hoursUntil(now, dates.Lock)}
}

// elapsedDays returns floor((now-start)/day)+1, so the first unlock day is day 1. It is zero or
// negative before start.
func elapsedDays(start, now time.Time) int64 {
	d := now.Sub(start)
	days := int64(d / day)
	if d%day < 0 {
		days--
	}

	return days + 1
}

func hoursUntil(now, then time.Time) int {
	d := then.Sub(now)
	if d <= 0 {
		return 0
	}

	return int(d / time.Hour)
}
