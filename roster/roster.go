// Package roster holds the static season roster: four regions of twelve teams each, with their kickoff
// dates and the global unlock event.
package roster

import (
	"time"

	"github.com/velmie/unlocknotify/schedule"
)

// Regions of the season.
const (
	Americas schedule.Region = "Americas"
	EMEA     schedule.Region = "EMEA"
	Pacific  schedule.Region = "Pacific"
	China    schedule.Region = "China"
)

var kickoffs = map[schedule.Region]string{
	Americas: "2026-01-16",
	EMEA:     "2026-01-20",
	Pacific:  "2026-01-22",
	China:    "2026-01-22",
}

// GlobalUnlock is the season's unlock-everything event, 2026-01-22 to 2026-01-23 UTC.
var GlobalUnlock = schedule.Window{
	Start: time.Date(2026, 1, 22, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2026, 1, 23, 0, 0, 0, 0, time.UTC),
}

var teams = []schedule.Entity{
	{ID: "sen", Name: "Sentinels", Tag: "SEN", Region: Americas, Position: 1},
	{ID: "nrg", Name: "NRG", Tag: "NRG", Region: Americas, Position: 2},
	{ID: "c9", Name: "Cloud9", Tag: "C9", Region: Americas, Position: 3},
	{ID: "100t", Name: "100 Thieves", Tag: "100T", Region: Americas, Position: 4},
	{ID: "lev", Name: "Leviatán", Tag: "LEV", Region: Americas, Position: 5},
	{ID: "kru", Name: "KRÜ Esports", Tag: "KRÜ", Region: Americas, Position: 6},
	{ID: "loud", Name: "LOUD", Tag: "LOUD", Region: Americas, Position: 7},
	{ID: "fur", Name: "FURIA", Tag: "FUR", Region: Americas, Position: 8},
	{ID: "mibr", Name: "MIBR", Tag: "MIBR", Region: Americas, Position: 9},
	{ID: "g2", Name: "G2 Esports", Tag: "G2", Region: Americas, Position: 10},
	{ID: "eg", Name: "Evil Geniuses", Tag: "EG", Region: Americas, Position: 11},
	{ID: "envy", Name: "Envy", Tag: "ENVY", Region: Americas, Position: 12},

	{ID: "fnc", Name: "Fnatic", Tag: "FNC", Region: EMEA, Position: 1},
	{ID: "navi", Name: "Natus Vincere", Tag: "NAVI", Region: EMEA, Position: 2},
	{ID: "tl", Name: "Team Liquid", Tag: "TL", Region: EMEA, Position: 3},
	{ID: "vit", Name: "Team Vitality", Tag: "VIT", Region: EMEA, Position: 4},
	{ID: "kc", Name: "Karmine Corp", Tag: "KC", Region: EMEA, Position: 5},
	{ID: "th", Name: "Team Heretics", Tag: "TH", Region: EMEA, Position: 6},
	{ID: "gia", Name: "GIANTX", Tag: "GIA", Region: EMEA, Position: 7},
	{ID: "fut", Name: "FUT Esports", Tag: "FUT", Region: EMEA, Position: 8},
	{ID: "bbl", Name: "BBL Esports", Tag: "BBL", Region: EMEA, Position: 9},
	{ID: "ulf", Name: "ULF Esports", Tag: "ULF", Region: EMEA, Position: 10},
	{ID: "m8", Name: "Gentle Mates", Tag: "M8", Region: EMEA, Position: 11},
	{ID: "pcf", Name: "PCIFIC Esports", Tag: "PCF", Region: EMEA, Position: 12},

	{ID: "prx", Name: "Paper Rex", Tag: "PRX", Region: Pacific, Position: 1},
	{ID: "drx", Name: "DRX", Tag: "DRX", Region: Pacific, Position: 2},
	{ID: "gen", Name: "Gen.G", Tag: "GEN", Region: Pacific, Position: 3},
	{ID: "t1", Name: "T1", Tag: "T1", Region: Pacific, Position: 4},
	{ID: "zeta", Name: "ZETA DIVISION", Tag: "ZETA", Region: Pacific, Position: 5},
	{ID: "dfm", Name: "DetonatioN FocusMe", Tag: "DFM", Region: Pacific, Position: 6},
	{ID: "fs", Name: "FULL SENSE", Tag: "FS", Region: Pacific, Position: 7},
	{ID: "ts", Name: "Team Secret", Tag: "TS", Region: Pacific, Position: 8},
	{ID: "rrq", Name: "Rex Regum Qeon", Tag: "RRQ", Region: Pacific, Position: 9},
	{ID: "ge", Name: "Global Esports", Tag: "GE", Region: Pacific, Position: 10},
	{ID: "var", Name: "Varrel", Tag: "VAR", Region: Pacific, Position: 11},
	{ID: "ns", Name: "Nongshim Redforce", Tag: "NS", Region: Pacific, Position: 12},

	{ID: "edg", Name: "EDward Gaming", Tag: "EDG", Region: China, Position: 1},
	{ID: "fpx", Name: "FunPlus Phoenix", Tag: "FPX", Region: China, Position: 2},
	{ID: "te", Name: "Trace Esports", Tag: "TE", Region: China, Position: 3},
	{ID: "blg", Name: "Bilibili Gaming", Tag: "BLG", Region: China, Position: 4},
	{ID: "jdg", Name: "JD Gaming", Tag: "JDG", Region: China, Position: 5},
	{ID: "wol", Name: "Wolves Esports", Tag: "WOL", Region: China, Position: 6},
	{ID: "tec", Name: "Titan Esports Club", Tag: "TEC", Region: China, Position: 7},
	{ID: "tyl", Name: "TYLOO", Tag: "TYL", Region: China, Position: 8},
	{ID: "drg", Name: "Dragon Ranger Gaming", Tag: "DRG", Region: China, Position: 9},
	{ID: "nova", Name: "Nova Esports", Tag: "NOVA", Region: China, Position: 10},
	{ID: "ag", Name: "All Gamers", Tag: "AG", Region: China, Position: 11},
	{ID: "xlg", Name: "Xi Lai Gaming", Tag: "XLG", Region: China, Position: 12},
}

// Teams returns a copy of the season's teams.
func Teams() []schedule.Entity {
	return append([]schedule.Entity(nil), teams...)
}

// Calendar returns the season calendar with the given override window. Regions lock for edits at
// kickoff.
func Calendar(override schedule.Window) schedule.Calendar {
	regions := make(map[schedule.Region]schedule.RegionDates, len(kickoffs))
	for region, day := range kickoffs {
		kickoff := schedule.MustDate(day)
		regions[region] = schedule.RegionDates{Kickoff: kickoff, Lock: kickoff}
	}

	return schedule.Calendar{Regions: regions, Override: override}
}

// Default returns the validated season roster including the global unlock event.
func Default() (*schedule.Roster, error) {
	return schedule.NewRoster(Calendar(GlobalUnlock), Teams())
}
