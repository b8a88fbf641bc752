package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/velmie/unlocknotify/roster"
	"github.com/velmie/unlocknotify/schedule"
)

func timelineAt(t *testing.T, override schedule.Window, now time.Time) map[string]string {
	t.Helper()
	season, err := schedule.NewRoster(roster.Calendar(override), roster.Teams())
	if err != nil {
		t.Fatalf("roster: %v", err)
	}

	var buf bytes.Buffer
	if err := writeTimeline(&buf, season, now); err != nil {
		t.Fatalf("write timeline: %v", err)
	}

	lines := make(map[string]string)
	for _, line := range strings.Split(buf.String(), "\n") {
		if fields := strings.Fields(line); len(fields) > 0 {
			lines[fields[0]] = line
		}
	}

	return lines
}

func TestTimelineFirstUnlockDay(t *testing.T) {
	lines := timelineAt(t, schedule.Window{}, time.Date(2026, 1, 4, 12, 0, 0, 0, time.UTC))

	if !strings.Contains(lines["Sentinels"], "unlocked today") {
		t.Fatalf("expected Sentinels unlocked today, got %q", lines["Sentinels"])
	}
	if fields := strings.Fields(lines["NRG"]); len(fields) < 4 || fields[3] != "locked" {
		t.Fatalf("expected NRG locked, got %q", lines["NRG"])
	}
	if fields := strings.Fields(lines["Americas"]); len(fields) < 2 || fields[1] != "false" {
		t.Fatalf("expected Americas open for edits, got %q", lines["Americas"])
	}
}

func TestTimelineDuringGlobalUnlock(t *testing.T) {
	lines := timelineAt(t, roster.GlobalUnlock, roster.GlobalUnlock.Start.Add(time.Hour))

	if fields := strings.Fields(lines["EMEA"]); len(fields) < 5 || fields[1] != "false" || fields[4] != "12" {
		t.Fatalf("expected EMEA fully unlocked during the event, got %q", lines["EMEA"])
	}
	if !strings.Contains(lines["NRG"], "unlocked") {
		t.Fatalf("expected NRG unlocked during the event, got %q", lines["NRG"])
	}
}
