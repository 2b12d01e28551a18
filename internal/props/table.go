package props

import (
	"strconv"

	"github.com/stitts-dev/props-engine/internal/tabular"
)

func oddsCell(odds float64, ok bool) string {
	if !ok {
		return ""
	}
	return strconv.FormatFloat(odds, 'f', -1, 64)
}

// ProjectionsTable flattens successful results into the projections output
// schema. Skipped lines are omitted; the run summary accounts for them.
func ProjectionsTable(results []Result) *tabular.Table {
	t := tabular.New("player_prop_projections",
		"player", "team", "opponent", "prop", "line",
		"proj_mean", "proj_var", "p_over", "p_under",
		"best_side", "edge_bp", "pace_factor", "book", "over_odds", "under_odds")
	for _, r := range results {
		p := r.Projection
		if p == nil {
			continue
		}
		t.Append(map[string]string{
			"player":      p.Player,
			"team":        p.Team,
			"opponent":    p.Opponent,
			"prop":        p.Prop,
			"line":        strconv.FormatFloat(p.Line, 'f', -1, 64),
			"proj_mean":   strconv.FormatFloat(p.Mean, 'f', 3, 64),
			"proj_var":    strconv.FormatFloat(p.Variance, 'f', 3, 64),
			"p_over":      strconv.FormatFloat(p.POver, 'f', 4, 64),
			"p_under":     strconv.FormatFloat(p.PUnder, 'f', 4, 64),
			"best_side":   p.BestSide,
			"edge_bp":     strconv.FormatFloat(p.Edge, 'f', 4, 64),
			"pace_factor": strconv.FormatFloat(p.PaceFactor, 'f', 3, 64),
			"book":        p.Book,
			"over_odds":   p.OverOdds,
			"under_odds":  p.UnderOdds,
		})
	}
	return t
}
