// Package features turns raw per-game box-score logs into rolling
// per-40-minute rate features, the input shape for role clustering.
package features

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/stitts-dev/props-engine/internal/tabular"
)

// Feature column names, in the order they appear in feature tables.
var FeatureColumns = []string{
	"pts40", "reb40", "ast40", "stl40", "blk40", "tov40",
	"fga40", "fg3a40", "fta40", "three_rate", "ft_rate", "min",
}

// RequiredLogColumns are the columns player_game_log must carry.
var RequiredLogColumns = []string{
	"date", "player", "team", "min",
	"pts", "reb", "ast", "stl", "blk", "tov", "fga", "fg3a", "fta",
}

// GameLog is one immutable box-score row for one player in one game.
type GameLog struct {
	Date    time.Time
	Player  string
	Team    string
	Minutes float64
	Pts     float64
	Reb     float64
	Ast     float64
	Stl     float64
	Blk     float64
	Tov     float64
	FGA     float64
	FG3A    float64
	FTA     float64
}

// Row is one player's rolling feature snapshot as of its most recent valid
// window. Rate stats are per-40-minute trailing means; ThreeRate and FTRate
// are attempt-mix ratios clipped to [0, 1.5].
type Row struct {
	Player string
	Team   string
	Date   time.Time

	Pts40     float64
	Reb40     float64
	Ast40     float64
	Stl40     float64
	Blk40     float64
	Tov40     float64
	FGA40     float64
	FG3A40    float64
	FTA40     float64
	ThreeRate float64
	FTRate    float64
	Minutes   float64
}

// Feature returns the named feature value; unknown names read as zero so
// scoring never fails on a partial feature list.
func (r Row) Feature(name string) float64 {
	switch name {
	case "pts40":
		return r.Pts40
	case "reb40":
		return r.Reb40
	case "ast40":
		return r.Ast40
	case "stl40":
		return r.Stl40
	case "blk40":
		return r.Blk40
	case "tov40":
		return r.Tov40
	case "fga40":
		return r.FGA40
	case "fg3a40":
		return r.FG3A40
	case "fta40":
		return r.FTA40
	case "three_rate":
		return r.ThreeRate
	case "ft_rate":
		return r.FTRate
	case "min":
		return r.Minutes
	default:
		return 0
	}
}

var dateLayouts = []string{"2006-01-02", "01/02/2006", "2006-01-02T15:04:05Z07:00", "Jan 2, 2006"}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// ParseGameLog validates and coerces a player_game_log table into typed rows,
// dropping rows with a missing date, player, team, or minutes value, and
// sorting by (player, date). A missing required column is fatal.
func ParseGameLog(t *tabular.Table) ([]GameLog, error) {
	t.LowerHeaders()
	if err := t.Require(RequiredLogColumns...); err != nil {
		return nil, err
	}

	logs := make([]GameLog, 0, t.Len())
	for _, row := range t.Rows {
		date, ok := parseDate(tabular.Str(row, "date"))
		if !ok {
			continue
		}
		player := tabular.Str(row, "player")
		team := tabular.Str(row, "team")
		minutes, minOK := tabular.Float(row, "min")
		if player == "" || team == "" || !minOK {
			continue
		}
		logs = append(logs, GameLog{
			Date:    date,
			Player:  player,
			Team:    team,
			Minutes: minutes,
			Pts:     tabular.FloatOr(row, "pts", 0),
			Reb:     tabular.FloatOr(row, "reb", 0),
			Ast:     tabular.FloatOr(row, "ast", 0),
			Stl:     tabular.FloatOr(row, "stl", 0),
			Blk:     tabular.FloatOr(row, "blk", 0),
			Tov:     tabular.FloatOr(row, "tov", 0),
			FGA:     tabular.FloatOr(row, "fga", 0),
			FG3A:    tabular.FloatOr(row, "fg3a", 0),
			FTA:     tabular.FloatOr(row, "fta", 0),
		})
	}
	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].Player != logs[j].Player {
			return logs[i].Player < logs[j].Player
		}
		return logs[i].Date.Before(logs[j].Date)
	})
	if len(logs) == 0 {
		return nil, fmt.Errorf("table %q has no usable rows after coercion", t.Name)
	}
	return logs, nil
}

// perGame holds one game's raw rate vector. NaN marks undefined entries
// (zero minutes, zero attempts) so window means can skip them.
type perGame struct {
	vals [12]float64 // indexed per FeatureColumns
}

func rates(g GameLog) perGame {
	var p perGame
	per40 := func(stat float64) float64 {
		if g.Minutes <= 0 {
			return math.NaN()
		}
		return stat / g.Minutes * 40
	}
	ratio := func(num float64) float64 {
		if g.FGA == 0 {
			return math.NaN()
		}
		return num / g.FGA
	}
	p.vals = [12]float64{
		per40(g.Pts), per40(g.Reb), per40(g.Ast), per40(g.Stl), per40(g.Blk), per40(g.Tov),
		per40(g.FGA), per40(g.FG3A), per40(g.FTA), ratio(g.FG3A), ratio(g.FTA), g.Minutes,
	}
	return p
}

// trailingMean averages the last window values up to index i, skipping NaN
// entries; fewer than minObs valid values yields NaN for that position.
func trailingMean(series []float64, i, window, minObs int) float64 {
	start := i - window + 1
	if start < 0 {
		start = 0
	}
	var sum float64
	var n int
	for j := start; j <= i; j++ {
		if !math.IsNaN(series[j]) {
			sum += series[j]
			n++
		}
	}
	if n < minObs {
		return math.NaN()
	}
	return sum / float64(n)
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// BuildRolling computes rolling feature rows for both window sizes. For each
// player only the most recent window with enough history survives; players
// who never satisfy the observation floor are excluded. That exclusion is a
// data-sufficiency policy, not an error.
func BuildRolling(logs []GameLog, shortWin, longWin int) (short, long []Row) {
	return rollWindow(logs, shortWin), rollWindow(logs, longWin)
}

func rollWindow(logs []GameLog, window int) []Row {
	minObs := window / 2
	if minObs < 5 {
		minObs = 5
	}

	var out []Row
	forEachPlayer(logs, func(games []GameLog) {
		n := len(games)
		series := make([][]float64, len(FeatureColumns))
		for f := range series {
			series[f] = make([]float64, n)
		}
		for i, g := range games {
			p := rates(g)
			for f := range FeatureColumns {
				series[f][i] = p.vals[f]
			}
		}

		// Latest index where the core rate means are defined.
		for i := n - 1; i >= 0; i-- {
			var vals [12]float64
			for f := range FeatureColumns {
				vals[f] = trailingMean(series[f], i, window, minObs)
			}
			// pts40, reb40, ast40 anchor window validity
			if math.IsNaN(vals[0]) || math.IsNaN(vals[1]) || math.IsNaN(vals[2]) {
				continue
			}
			for f := range vals {
				if math.IsNaN(vals[f]) || math.IsInf(vals[f], 0) {
					vals[f] = 0
				}
			}
			out = append(out, Row{
				Player:    games[i].Player,
				Team:      games[i].Team,
				Date:      games[i].Date,
				Pts40:     vals[0],
				Reb40:     vals[1],
				Ast40:     vals[2],
				Stl40:     vals[3],
				Blk40:     vals[4],
				Tov40:     vals[5],
				FGA40:     vals[6],
				FG3A40:    vals[7],
				FTA40:     vals[8],
				ThreeRate: clip(vals[9], 0, 1.5),
				FTRate:    clip(vals[10], 0, 1.5),
				Minutes:   vals[11],
			})
			break
		}
	})
	return out
}

// forEachPlayer walks contiguous per-player runs of logs already sorted by
// (player, date).
func forEachPlayer(logs []GameLog, fn func([]GameLog)) {
	start := 0
	for i := 1; i <= len(logs); i++ {
		if i == len(logs) || logs[i].Player != logs[start].Player {
			fn(logs[start:i])
			start = i
		}
	}
}
