package props

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/props-engine/internal/refdata"
	"github.com/stitts-dev/props-engine/internal/tabular"
)

// testRefs builds a reference set where "New York Liberty" sits exactly at
// the league mean of every allowance column (z = 0 against them) and every
// team paces at 96 (pace factor 1.0).
func testRefs(t *testing.T) *refdata.Set {
	t.Helper()

	opp := tabular.New("opponent_per100_last6", "TEAM_NAME",
		"OPP_FG3A", "OPP_FG3_PCT", "OPP_FTA", "OPP_REB", "OPP_OREB", "OPP_AST", "OPP_TOV", "OPP_PTS")
	opp.Append(map[string]string{"TEAM_NAME": "Las Vegas Aces",
		"OPP_FG3A": "28", "OPP_FG3_PCT": "0.36", "OPP_FTA": "22", "OPP_REB": "38",
		"OPP_OREB": "10", "OPP_AST": "24", "OPP_TOV": "16", "OPP_PTS": "84"})
	opp.Append(map[string]string{"TEAM_NAME": "New York Liberty",
		"OPP_FG3A": "24", "OPP_FG3_PCT": "0.33", "OPP_FTA": "20", "OPP_REB": "35",
		"OPP_OREB": "9", "OPP_AST": "21", "OPP_TOV": "14", "OPP_PTS": "80"})
	opp.Append(map[string]string{"TEAM_NAME": "Seattle Storm",
		"OPP_FG3A": "20", "OPP_FG3_PCT": "0.30", "OPP_FTA": "18", "OPP_REB": "32",
		"OPP_OREB": "8", "OPP_AST": "18", "OPP_TOV": "12", "OPP_PTS": "76"})
	oppStats, err := refdata.NewOpponentStats(opp)
	require.NoError(t, err)

	pace := tabular.New("pace_last6", "TEAM_NAME", "PACE")
	for _, team := range []string{"Las Vegas Aces", "New York Liberty", "Seattle Storm"} {
		pace.Append(map[string]string{"TEAM_NAME": team, "PACE": "96"})
	}
	paceTable, err := refdata.NewPaceTable(pace)
	require.NoError(t, err)

	base := tabular.New("players_baseline", "player", "position", "min_mean", "usage_pct")
	base.Append(map[string]string{"player": "A'ja Wilson", "position": "F", "min_mean": "32", "usage_pct": "0.25"})
	baselines := refdata.NewBaselines(base)

	onoff := tabular.New("on_off", "player", "team", "delta_per40")
	onoff.Append(map[string]string{"player": "Jackie Young", "team": "Las Vegas Aces", "delta_per40": "2"})

	rest := tabular.New("status_rest", "team", "minutes_scale")
	rest.Append(map[string]string{"team": "Phoenix Mercury", "minutes_scale": "0.5"})

	return &refdata.Set{
		Opponent:   oppStats,
		Pace:       paceTable,
		Baselines:  baselines,
		OnOff:      refdata.NewOnOff(onoff),
		Rest:       refdata.NewRestTable(rest),
		Archetypes: refdata.NewArchetypes(nil),
		PosDefense: refdata.NewPositionalDefense(nil),
	}
}

func neutralLine(prop string, value float64) Line {
	return Line{
		Player: "A'ja Wilson", Team: "Las Vegas Aces", Opponent: "New York Liberty",
		Prop: prop, Value: value, ValueOK: true,
	}
}

func TestPointsProjectionAgainstNeutralOpponent(t *testing.T) {
	e := NewEngine(testRefs(t), nil)
	p, err := e.Project(neutralLine("points", 20.5))
	require.NoError(t, err)

	// usage .25, minutes 32, z=0, pf=1: (14 + 22*.25 + 3) * 1 = 22.5
	assert.InDelta(t, 22.5, p.Mean, 1e-9)
	assert.InDelta(t, 22.5*1.35, p.Variance, 1e-9)
	assert.InDelta(t, 1.0, p.PaceFactor, 1e-9)

	// Overdispersed: negative binomial branch
	assert.InDelta(t, negBinomSurvival(20.5, p.Mean, p.Variance), p.POver, 1e-12)
	assert.InDelta(t, 1-p.POver, p.PUnder, 1e-12)
}

func TestThreesUsePoissonBranch(t *testing.T) {
	e := NewEngine(testRefs(t), nil)
	p, err := e.Project(neutralLine("3PM", 1.5))
	require.NoError(t, err)

	// default 3p_ar .32: (1.8 + 5*.32 + .35) = 3.75, variance equals mean
	assert.InDelta(t, 3.75, p.Mean, 1e-9)
	assert.Equal(t, p.Mean, p.Variance)
	assert.InDelta(t, poissonSurvival(1.5, p.Mean), p.POver, 1e-12)
}

func TestHighVolumeLowCountPropFallsToNormal(t *testing.T) {
	refs := testRefs(t)
	base := tabular.New("players_baseline", "player", "min_mean", "tov_rate")
	base.Append(map[string]string{"player": "Turnover Machine", "min_mean": "40", "tov_rate": "0.5"})
	refs.Baselines = refdata.NewBaselines(base)
	e := NewEngine(refs, nil)

	l := neutralLine("turnovers", 8.5)
	l.Player = "Turnover Machine"
	p, err := e.Project(l)
	require.NoError(t, err)

	// (1.8 + 20*.5 + .2) * 40/32 = 15 > 6: Poisson no longer applies
	assert.InDelta(t, 15.0, p.Mean, 1e-9)
	assert.InDelta(t, normalSurvival(8.5, p.Mean, p.Variance), p.POver, 1e-12)
}

func TestMeanFloors(t *testing.T) {
	refs := testRefs(t)
	base := tabular.New("players_baseline", "player", "min_mean", "usage_pct", "reb_rate")
	base.Append(map[string]string{"player": "Deep Bench", "min_mean": "4", "usage_pct": "0.05", "reb_rate": "0.01"})
	refs.Baselines = refdata.NewBaselines(base)
	e := NewEngine(refs, nil)

	l := neutralLine("points", 6.5)
	l.Player = "Deep Bench"
	p, err := e.Project(l)
	require.NoError(t, err)
	assert.Equal(t, 5.0, p.Mean, "points floor prevents degenerate projections")

	l.Prop = "rebounds"
	p, err = e.Project(l)
	require.NoError(t, err)
	assert.Equal(t, 2.0, p.Mean)
}

func TestRestScalesMinutes(t *testing.T) {
	e := NewEngine(testRefs(t), nil)
	l := neutralLine("points", 10.5)
	l.Team = "Phoenix Mercury" // minutes_scale 0.5
	p, err := e.Project(l)
	require.NoError(t, err)
	// 22.5 * 0.5 = 11.25
	assert.InDelta(t, 11.25, p.Mean, 1e-9)
}

func TestOnOffDeltaShiftsPoints(t *testing.T) {
	e := NewEngine(testRefs(t), nil)
	l := neutralLine("points", 20.5)
	l.Player = "Jackie Young" // dp40 +2, default usage .22
	p, err := e.Project(l)
	require.NoError(t, err)
	// (14 + 22*.22 + 3 + 2) * 30/32
	assert.InDelta(t, (14+22*0.22+3+2)*30.0/32.0, p.Mean, 1e-9)
}

func TestEdgeAndBestSide(t *testing.T) {
	e := NewEngine(testRefs(t), nil)

	// Line far below the mean: the over is near-certain
	l := neutralLine("points", 5.5)
	l.OverOdds, l.OverOddsOK = 100, true    // implied 0.5
	l.UnderOdds, l.UnderOddsOK = -120, true // implied ~0.545
	p, err := e.Project(l)
	require.NoError(t, err)
	assert.Equal(t, "OVER", p.BestSide)
	assert.InDelta(t, p.POver-0.5, p.Edge, 1e-12)
	assert.Greater(t, p.Edge, 0.3)

	// Line far above the mean: the under dominates
	l = neutralLine("points", 45.5)
	l.UnderOdds, l.UnderOddsOK = -110, true
	p, err = e.Project(l)
	require.NoError(t, err)
	assert.Equal(t, "UNDER", p.BestSide)
	assert.InDelta(t, p.PUnder-ImpliedProbability(-110), p.Edge, 1e-12)
}

func TestMissingOddsDefaultToBreakeven(t *testing.T) {
	e := NewEngine(testRefs(t), nil)
	p, err := e.Project(neutralLine("points", 5.5))
	require.NoError(t, err)
	// No odds on either side: edges are measured against 0.5
	assert.InDelta(t, p.POver-0.5, maxf(p.POver-0.5, p.PUnder-0.5), 1e-12)
	assert.Equal(t, "OVER", p.BestSide)
}

func TestUnknownOpponentIsZeroEffect(t *testing.T) {
	e := NewEngine(testRefs(t), nil)
	l := neutralLine("points", 20.5)
	l.Opponent = "Golden State Valkyries" // not in reference tables
	p, err := e.Project(l)
	require.NoError(t, err)
	assert.InDelta(t, 22.5, p.Mean, 1e-9, "missing opponent data degrades to league-neutral")
}

func TestUnsupportedPropsAreSkipped(t *testing.T) {
	e := NewEngine(testRefs(t), nil)

	_, err := e.Project(neutralLine("triple-doubles", 0.5))
	assert.Error(t, err)

	// FTM is a suggestion-only market
	_, err = e.Project(neutralLine("ftm", 2.5))
	assert.Error(t, err)

	l := neutralLine("points", 0)
	l.ValueOK = false
	_, err = e.Project(l)
	assert.Error(t, err)
}

func TestProjectBatchPartialFailure(t *testing.T) {
	e := NewEngine(testRefs(t), nil)
	lines := make([]Line, 0, 100)
	for i := 0; i < 100; i++ {
		l := neutralLine("points", 18.5)
		l.Player = fmt.Sprintf("Player %03d", i)
		if i == 50 {
			l.ValueOK = false // unparseable line value
		}
		lines = append(lines, l)
	}

	results := e.ProjectBatch(lines)
	require.Len(t, results, 100)

	var ok, skipped int
	for _, r := range results {
		if r.Projection != nil {
			ok++
		} else {
			skipped++
			assert.NotEmpty(t, r.SkipReason)
		}
	}
	assert.Equal(t, 99, ok)
	assert.Equal(t, 1, skipped)

	tbl := ProjectionsTable(results)
	assert.Equal(t, 99, tbl.Len())
}

func TestParseLines(t *testing.T) {
	tbl := tabular.New("lines", "Player", "Team", "Opponent", "Prop", "Line", "Over_Odds", "Under_Odds", "Book")
	tbl.Append(map[string]string{
		"Player": "Napheesa Collier", "Team": "Minnesota Lynx", "Opponent": "Seattle Storm",
		"Prop": "Points", "Line": "22.5", "Over_Odds": "-115", "Under_Odds": "-105", "Book": "dk"})
	tbl.Append(map[string]string{
		"Player": "Skylar Diggins", "Team": "Seattle Storm", "Opponent": "Minnesota Lynx",
		"Prop": "assists", "Line": "junk"})

	lines, err := ParseLines(tbl)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.True(t, lines[0].ValueOK)
	assert.Equal(t, -115.0, lines[0].OverOdds)
	assert.False(t, lines[1].ValueOK)
	assert.False(t, lines[1].OverOddsOK)

	bad := tabular.New("lines", "player", "team")
	_, err = ParseLines(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lines")
	assert.Contains(t, err.Error(), "prop")
}
