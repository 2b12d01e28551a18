// Package props converts betting lines into pace- and opponent-adjusted
// statistical projections: a mean/variance per prop, an over probability
// against the line, and an edge versus the market-implied odds.
package props

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/props-engine/internal/refdata"
	"github.com/stitts-dev/props-engine/internal/tabular"
)

// PropType is a canonical player prop market.
type PropType string

const (
	PropPoints    PropType = "points"
	PropRebounds  PropType = "rebounds"
	PropAssists   PropType = "assists"
	PropThrees    PropType = "threes"
	PropSteals    PropType = "steals"
	PropTurnovers PropType = "turnovers"
	PropFTM       PropType = "ftm"
	PropUnknown   PropType = ""
)

// ParseProp canonicalizes the free-text prop names books use.
func ParseProp(s string) PropType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "points", "pts", "p":
		return PropPoints
	case "rebounds", "reb", "r":
		return PropRebounds
	case "assists", "ast", "a":
		return PropAssists
	case "3pm", "3ptm", "3-pointers made", "3pt made", "threes", "3s":
		return PropThrees
	case "steals", "stl":
		return PropSteals
	case "turnovers", "tov":
		return PropTurnovers
	case "ftm", "free throws made", "free throws":
		return PropFTM
	default:
		return PropUnknown
	}
}

// lowCount reports whether a prop is a low-volume counting stat that merits
// a discrete model.
func lowCount(p PropType) bool {
	return p == PropThrees || p == PropSteals || p == PropTurnovers
}

// Line is one prop bet request: the unit of projection work.
type Line struct {
	Player   string
	Team     string
	Opponent string
	Prop     string // raw prop text, preserved in outputs
	Book     string
	Role     string // optional archetype override carried from the lines table

	Value   float64
	ValueOK bool

	OverOdds    float64
	OverOddsOK  bool
	UnderOdds   float64
	UnderOddsOK bool
}

// ParseLines validates and coerces a lines table. Rows survive even with a
// bad line value; per-row problems surface later as skips, not here.
func ParseLines(t *tabular.Table) ([]Line, error) {
	t.LowerHeaders()
	if err := t.Require("player", "team", "opponent", "prop", "line"); err != nil {
		return nil, err
	}
	lines := make([]Line, 0, t.Len())
	for _, row := range t.Rows {
		l := Line{
			Player:   tabular.Str(row, "player"),
			Team:     tabular.Str(row, "team"),
			Opponent: tabular.Str(row, "opponent"),
			Prop:     tabular.Str(row, "prop"),
			Book:     tabular.Str(row, "book"),
			Role:     tabular.Str(row, "role"),
		}
		l.Value, l.ValueOK = tabular.Float(row, "line")
		l.OverOdds, l.OverOddsOK = tabular.Float(row, "over_odds")
		l.UnderOdds, l.UnderOddsOK = tabular.Float(row, "under_odds")
		lines = append(lines, l)
	}
	return lines, nil
}

// Projection is the derived output for one line.
type Projection struct {
	Player     string  `json:"player"`
	Team       string  `json:"team"`
	Opponent   string  `json:"opponent"`
	Prop       string  `json:"prop"`
	Line       float64 `json:"line"`
	Mean       float64 `json:"proj_mean"`
	Variance   float64 `json:"proj_var"`
	POver      float64 `json:"p_over"`
	PUnder     float64 `json:"p_under"`
	BestSide   string  `json:"best_side"`
	Edge       float64 `json:"edge_bp"`
	PaceFactor float64 `json:"pace_factor"`
	Book       string  `json:"book"`
	OverOdds   string  `json:"over_odds"`
	UnderOdds  string  `json:"under_odds"`
}

// Result is the per-line outcome: a projection or an explicit skip reason,
// so batch skip counts are observable instead of silently swallowed.
type Result struct {
	Line       Line        `json:"line"`
	Projection *Projection `json:"projection,omitempty"`
	SkipReason string      `json:"skip_reason,omitempty"`
}

// Engine projects prop lines against a reference data set.
type Engine struct {
	refs *refdata.Set
	log  *logrus.Entry
}

// NewEngine creates a projection engine over immutable reference data.
func NewEngine(refs *refdata.Set, log *logrus.Entry) *Engine {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Engine{refs: refs, log: log}
}

// ProjectBatch projects every line, skipping per-line failures so a single
// malformed row never sinks the batch.
func (e *Engine) ProjectBatch(lines []Line) []Result {
	results := make([]Result, 0, len(lines))
	for _, l := range lines {
		proj, err := e.Project(l)
		if err != nil {
			e.log.WithFields(logrus.Fields{
				"player": l.Player,
				"prop":   l.Prop,
				"reason": err.Error(),
			}).Warn("Skipping line")
			results = append(results, Result{Line: l, SkipReason: err.Error()})
			continue
		}
		results = append(results, Result{Line: l, Projection: proj})
	}
	return results
}

// Project computes the projection for one line.
func (e *Engine) Project(l Line) (*Projection, error) {
	if !l.ValueOK {
		return nil, fmt.Errorf("unparseable line value")
	}
	prop := ParseProp(l.Prop)
	if prop == PropUnknown || prop == PropFTM {
		return nil, fmt.Errorf("unsupported prop type %q", l.Prop)
	}

	pf, _ := e.refs.Pace.Factor(l.Team, l.Opponent)
	z := func(col string) float64 { return e.refs.Opponent.Z(l.Opponent, col) }
	z3a, z3p := z("OPP_FG3A"), z("OPP_FG3_PCT")
	zfta, zreb := z("OPP_FTA"), z("OPP_REB")
	zast, ztov, zpts := z("OPP_AST"), z("OPP_TOV"), z("OPP_PTS")

	b := e.refs.Baselines.For(l.Player)
	minMean := b.MinMean * e.refs.Rest.For(l.Team).MinutesScale
	dp40 := e.refs.OnOff.DeltaPer40(l.Player, l.Team)
	minScale := minMean / 32.0

	var mean, variance float64
	switch prop {
	case PropPoints:
		mean = maxf(5.0, (14.0+22.0*b.Usage+3.0*pf+1.4*zpts+0.3*zfta+0.4*z3a+0.3*z3p+dp40)*minScale)
		variance = mean * 1.35
	case PropRebounds:
		mean = maxf(2.0, (6.5+40.0*b.RebRate+0.8*pf+0.35*zreb+dp40*0.2)*minScale)
		variance = mean * 1.30
	case PropAssists:
		mean = maxf(1.0, (3.8+35.0*b.AstRate+0.7*pf+0.35*zast-0.2*ztov+dp40*0.25)*minScale)
		variance = mean * 1.30
	case PropThrees:
		mean = maxf(0.1, (1.8+5.0*b.ThreePAr+0.35*pf+0.25*z3a+0.15*z3p+dp40*0.1)*minScale)
		variance = mean
	case PropSteals:
		mean = maxf(0.05, (0.9+22.0*b.StlRate+0.1*pf+0.15*ztov)*minScale)
		variance = mean
	case PropTurnovers:
		mean = maxf(0.3, (1.8+20.0*b.TovRate+0.2*pf+0.15*ztov)*minScale)
		variance = mean
	}

	var pOver float64
	switch {
	case variance > mean*1.05:
		pOver = negBinomSurvival(l.Value, mean, variance)
	case mean <= 6 && lowCount(prop):
		pOver = poissonSurvival(l.Value, mean)
	default:
		pOver = normalSurvival(l.Value, mean, variance)
	}
	pUnder := 1 - pOver

	edgeOver := pOver - impliedOr(l.OverOdds, l.OverOddsOK)
	edgeUnder := pUnder - impliedOr(l.UnderOdds, l.UnderOddsOK)
	bestSide, edge := "OVER", edgeOver
	if edgeUnder > edgeOver {
		bestSide, edge = "UNDER", edgeUnder
	}

	return &Projection{
		Player:     l.Player,
		Team:       l.Team,
		Opponent:   l.Opponent,
		Prop:       l.Prop,
		Line:       l.Value,
		Mean:       mean,
		Variance:   variance,
		POver:      pOver,
		PUnder:     pUnder,
		BestSide:   bestSide,
		Edge:       edge,
		PaceFactor: pf,
		Book:       l.Book,
		OverOdds:   oddsCell(l.OverOdds, l.OverOddsOK),
		UnderOdds:  oddsCell(l.UnderOdds, l.UnderOddsOK),
	}, nil
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
