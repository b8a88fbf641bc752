package schedule

import (
	"fmt"
	"time"
)

// Roster is a validated set of entities bound to a Scheduler.
type Roster struct {
	*Scheduler

	entities []Entity
	byID     map[string]Entity
}

// NewRoster validates the calendar and the entities against it.
//
// Every entity needs a unique id, a region present in the calendar and a position in 1..MaxPosition that
// no other entity of the same region uses.
func NewRoster(cal Calendar, entities []Entity) (*Roster, error) {
	sched, err := New(cal)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]Entity, len(entities))
	taken := make(map[Region]map[int]string, len(cal.Regions))
	for _, e := range entities {
		if e.ID == "" {
			return nil, fmt.Errorf("%w: entity with empty id", ErrInvalidRoster)
		}
		if _, dup := byID[e.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate entity id %q", ErrInvalidRoster, e.ID)
		}
		if _, ok := cal.Regions[e.Region]; !ok {
			return nil, fmt.Errorf("%w: entity %q has unknown region %q", ErrInvalidRoster, e.ID, e.Region)
		}
		if e.Position < 1 || e.Position > MaxPosition {
			return nil, fmt.Errorf("%w: entity %q position %d out of range 1..%d", ErrInvalidRoster, e.ID, e.Position, MaxPosition)
		}
		if taken[e.Region] == nil {
			taken[e.Region] = make(map[int]string)
		}
		if other, dup := taken[e.Region][e.Position]; dup {
			return nil, fmt.Errorf("%w: entities %q and %q share position %d in %s", ErrInvalidRoster, other, e.ID, e.Position, e.Region)
		}
		taken[e.Region][e.Position] = e.ID
		byID[e.ID] = e
	}

	return &Roster{
		Scheduler: sched,
		entities:  append([]Entity(nil), entities...),
		byID:      byID,
	}, nil
}

// Entities returns a copy of the roster in declaration order.
func (r *Roster) Entities() []Entity {
	return append([]Entity(nil), r.entities...)
}

// Entity looks up an entity by id.
func (r *Roster) Entity(id string) (Entity, bool) {
	e, ok := r.byID[id]

	return e, ok
}

// Regions returns the calendar regions in sorted order.
func (r *Roster) Regions() []Region {
	return r.cal.RegionNames()
}

// Kickoff returns the kickoff instant of a region.
func (r *Roster) Kickoff(region Region) (time.Time, bool) {
	dates, ok := r.cal.Regions[region]

	return dates.Kickoff, ok
}

// UnlockedEntities returns the entities unlocked at now, in roster order.
func (r *Roster) UnlockedEntities(now time.Time) []Entity {
	out := make([]Entity, 0, len(r.entities))
	for _, e := range r.entities {
		if r.IsUnlocked(e, now) {
			out = append(out, e)
		}
	}

	return out
}

// RegionUnlockCount returns how many entities of the region are unlocked at now.
func (r *Roster) RegionUnlockCount(region Region, now time.Time) int {
	count := 0
	for _, e := range r.entities {
		if e.Region == region && r.IsUnlocked(e, now) {
			count++
		}
	}

	return count
}

// UnlockedRegions returns the regions with at least one unlocked entity at now. Inside the override
// window every calendar region is unlocked.
func (r *Roster) UnlockedRegions(now time.Time) []Region {
	regions := r.Regions()
	if r.OverrideActive(now) {
		return regions
	}
	out := make([]Region, 0, len(regions))
	for _, region := range regions {
		if r.RegionUnlockCount(region, now) > 0 {
			out = append(out, region)
		}
	}

	return out
}
