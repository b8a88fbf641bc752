package schedule

import (
	"errors"
	"testing"
	"time"
)

func TestNewRosterRejectsBadEntities(t *testing.T) {
	cases := []struct {
		name     string
		entities []Entity
	}{
		{name: "empty id", entities: []Entity{{Region: emea, Position: 1}}},
		{name: "duplicate id", entities: []Entity{{ID: "a", Region: emea, Position: 1}, {ID: "a", Region: emea, Position: 2}}},
		{name: "unknown region", entities: []Entity{{ID: "a", Region: "Mars", Position: 1}}},
		{name: "position zero", entities: []Entity{{ID: "a", Region: emea, Position: 0}}},
		{name: "position too high", entities: []Entity{{ID: "a", Region: emea, Position: MaxPosition + 1}}},
		{name: "shared position", entities: []Entity{{ID: "a", Region: emea, Position: 3}, {ID: "b", Region: emea, Position: 3}}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewRoster(testCalendar(Window{}), tc.entities); !errors.Is(err, ErrInvalidRoster) {
				t.Fatalf("expected ErrInvalidRoster, got %v", err)
			}
		})
	}
}

func TestRosterUnlockedTargets(t *testing.T) {
	roster, err := NewRoster(testCalendar(Window{}), []Entity{
		{ID: "fnc", Region: emea, Position: 1},
		{ID: "navi", Region: emea, Position: 2},
		{ID: "prx", Region: "Pacific", Position: 1},
	})
	if err != nil {
		t.Fatalf("new roster: %v", err)
	}

	now := MustDate("2026-01-09").Add(time.Hour)
	unlocked := roster.UnlockedEntities(now)
	if len(unlocked) != 2 || unlocked[0].ID != "fnc" || unlocked[1].ID != "navi" {
		t.Fatalf("unexpected unlocked entities: %+v", unlocked)
	}
	if got := roster.RegionUnlockCount(emea, now); got != 2 {
		t.Fatalf("expected 2 unlocked in EMEA, got %d", got)
	}
	regions := roster.UnlockedRegions(now)
	if len(regions) != 1 || regions[0] != emea {
		t.Fatalf("expected only EMEA unlocked, got %v", regions)
	}
	if _, ok := roster.Entity("prx"); !ok {
		t.Fatalf("expected prx lookup to succeed")
	}
}

func TestRosterOverrideUnlocksAllRegions(t *testing.T) {
	window := Window{Start: MustDate("2025-12-01"), End: MustDate("2025-12-02")}
	roster, err := NewRoster(testCalendar(window), []Entity{
		{ID: "fnc", Region: emea, Position: 12},
	})
	if err != nil {
		t.Fatalf("new roster: %v", err)
	}

	regions := roster.UnlockedRegions(window.Start)
	if len(regions) != 2 {
		t.Fatalf("expected both regions unlocked during override, got %v", regions)
	}
	if len(roster.UnlockedEntities(window.Start)) != 1 {
		t.Fatalf("expected entity unlocked during override")
	}
}
