// Command unlock-schedule prints the season's unlock and region lock timeline at an instant.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/velmie/unlocknotify/roster"
	"github.com/velmie/unlocknotify/schedule"
)

const (
	exitUsage  = 2
	dateLayout = "2006-01-02"
)

func main() {
	var (
		at         string
		noOverride bool
	)
	flag.StringVar(&at, "at", "", "Instant to evaluate, RFC3339 (defaults to now)")
	flag.BoolVar(&noOverride, "no-override", false, "Ignore the global unlock event")
	flag.Parse()

	now := time.Now().UTC()
	if at != "" {
		parsed, err := time.Parse(time.RFC3339, at)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -at: %v\n", err)
			os.Exit(exitUsage)
		}
		now = parsed.UTC()
	}

	override := roster.GlobalUnlock
	if noOverride {
		override = schedule.Window{}
	}
	season, err := schedule.NewRoster(roster.Calendar(override), roster.Teams())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := writeTimeline(os.Stdout, season, now); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func writeTimeline(out io.Writer, season *schedule.Roster, now time.Time) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "as of %s\n\n", now.Format(time.RFC3339))
	fmt.Fprintln(w, "REGION\tLOCKED\tLOCK DATE\tHOURS UNTIL LOCK\tUNLOCKED")
	for _, region := range season.Regions() {
		lock := season.RegionLock(region, now)
		fmt.Fprintf(w, "%s\t%t\t%s\t%d\t%d\n",
			region, lock.Locked, lock.LockDate.Format(dateLayout), lock.HoursUntilLock, season.RegionUnlockCount(region, now))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "TEAM\tREGION\tPOS\tSTATUS\tUNLOCK DATE\tDAYS UNTIL")
	for _, e := range season.Entities() {
		status := season.Status(e, now)
		state := "locked"
		switch {
		case season.UnlockedToday(e, now):
			state = "unlocked today"
		case status.Unlocked:
			state = "unlocked"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%d\n",
			e.Name, e.Region, e.Position, state, status.UnlockDate.Format(dateLayout), status.DaysUntilUnlock)
	}

	return w.Flush()
}
