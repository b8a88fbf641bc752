package roster

import (
	"testing"
	"time"

	"github.com/velmie/unlocknotify/schedule"
)

func TestDefaultRosterIsValid(t *testing.T) {
	r, err := Default()
	if err != nil {
		t.Fatalf("default roster: %v", err)
	}
	if got := len(r.Entities()); got != 48 {
		t.Fatalf("expected 48 teams, got %d", got)
	}
	for _, region := range r.Regions() {
		count := 0
		for _, e := range r.Entities() {
			if e.Region == region {
				count++
			}
		}
		if count != schedule.MaxPosition {
			t.Fatalf("expected %d teams in %s, got %d", schedule.MaxPosition, region, count)
		}
	}
}

func TestAmericasFirstUnlock(t *testing.T) {
	r, err := schedule.NewRoster(Calendar(schedule.Window{}), Teams())
	if err != nil {
		t.Fatalf("roster: %v", err)
	}
	sen, _ := r.Entity("sen")
	nrg, _ := r.Entity("nrg")

	day := time.Date(2026, 1, 4, 12, 0, 0, 0, time.UTC)
	if !r.IsUnlocked(sen, day) || r.IsUnlocked(nrg, day) {
		t.Fatalf("expected only Sentinels unlocked on %s", day)
	}
}

func TestGlobalUnlockEvent(t *testing.T) {
	r, err := Default()
	if err != nil {
		t.Fatalf("default roster: %v", err)
	}
	inside := GlobalUnlock.Start.Add(time.Hour)
	if got := len(r.UnlockedEntities(inside)); got != 48 {
		t.Fatalf("expected every team unlocked during the event, got %d", got)
	}
	if r.IsRegionLocked(Americas, inside) {
		t.Fatalf("expected Americas unlocked during the event")
	}
	if !r.IsRegionLocked(Americas, GlobalUnlock.End) {
		t.Fatalf("expected Americas locked again after the event")
	}
}
