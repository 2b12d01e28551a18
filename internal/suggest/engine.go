// Package suggest scores prop lines with a rule-based signal engine: integer
// positive/negative signal counts per prop from opponent z-scores and pace,
// a discrete confidence tier, and a human-readable rationale. It is the
// simpler sibling of the distributional projection engine and never errors
// on a row.
package suggest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/stitts-dev/props-engine/internal/props"
	"github.com/stitts-dev/props-engine/internal/refdata"
	"github.com/stitts-dev/props-engine/internal/tabular"
)

// Thresholds are the pace cut points for pace signals.
type Thresholds struct {
	PaceFast float64
	PaceSlow float64
}

// DefaultThresholds returns the standard pace cut points.
func DefaultThresholds() Thresholds {
	return Thresholds{PaceFast: 1.05, PaceSlow: 0.95}
}

// Suggestion is one scored line.
type Suggestion struct {
	Player   string `json:"player"`
	Team     string `json:"team"`
	Opponent string `json:"opponent"`
	Role     string `json:"role"`
	Prop     string `json:"prop"`

	Line      float64 `json:"line"`
	OverOdds  string  `json:"over_odds"`
	UnderOdds string  `json:"under_odds"`
	Book      string  `json:"book"`

	Suggestion string `json:"suggestion"` // OVER, UNDER, or PASS
	Confidence string `json:"confidence"`

	PaceFactor float64 `json:"pace_factor"`
	GamePace   float64 `json:"game_pace"`
	LeaguePace float64 `json:"league_pace"`

	Signals string `json:"signals"` // semicolon-joined trigger descriptions
}

// Engine scores lines against a reference set.
type Engine struct {
	refs *refdata.Set
	th   Thresholds
}

// NewEngine creates a suggestion engine.
func NewEngine(refs *refdata.Set, th Thresholds) *Engine {
	return &Engine{refs: refs, th: th}
}

// decide maps signal counts to a side. A one-signal margin is enough.
func decide(pos, neg int) string {
	switch {
	case pos-neg >= 1:
		return "OVER"
	case neg-pos >= 1:
		return "UNDER"
	default:
		return "PASS"
	}
}

// confidence maps the net signal score to a fixed tier ladder.
func confidence(pos, neg int) string {
	net := pos - neg
	switch {
	case net >= 3:
		return "+++"
	case net == 2:
		return "++"
	case net == 1:
		return "+"
	case net == 0:
		return "-"
	case net <= -3:
		return "UNDER +++"
	case net == -2:
		return "UNDER ++"
	default: // net == -1
		return "UNDER +"
	}
}

// Score evaluates one line. Missing opponent or pace reference data
// short-circuits to PASS with an explanatory signal, never an error.
func (e *Engine) Score(l props.Line) Suggestion {
	role := l.Role
	if role == "" {
		role = e.refs.Archetypes.RoleFor(l.Player, l.Team)
	}
	if role == "" {
		role = "(add role)"
	}

	s := Suggestion{
		Player:    l.Player,
		Team:      l.Team,
		Opponent:  l.Opponent,
		Role:      role,
		Prop:      l.Prop,
		Line:      l.Value,
		Book:      l.Book,
		OverOdds:  oddsCell(l.OverOdds, l.OverOddsOK),
		UnderOdds: oddsCell(l.UnderOdds, l.UnderOddsOK),
	}

	if !e.refs.Opponent.Has(l.Opponent) || !e.refs.Pace.Has(l.Team) || !e.refs.Pace.Has(l.Opponent) {
		s.Suggestion = "PASS"
		s.Confidence = "-"
		s.Signals = "Missing opp/pace data"
		return s
	}

	z := func(col string) float64 { return e.refs.Opponent.Z(l.Opponent, col) }
	z3a, z3p := z("OPP_FG3A"), z("OPP_FG3_PCT")
	zfta, zoreb, zreb := z("OPP_FTA"), z("OPP_OREB"), z("OPP_REB")
	zast, ztov, zpts := z("OPP_AST"), z("OPP_TOV"), z("OPP_PTS")

	// Opponent eFG% allowed versus the league, when four factors are loaded
	var efgHi, efgLo bool
	if allowed, ok := e.refs.FourFactors.Value(l.Opponent, "opp eFG%"); ok {
		if league, ok := e.refs.FourFactors.LeagueMean("eFG%"); ok {
			efgHi = allowed >= league*1.02
			efgLo = allowed <= league*0.98
		}
	}

	pf, gp := e.refs.Pace.Factor(l.Team, l.Opponent)
	s.PaceFactor = pf
	s.GamePace = gp
	s.LeaguePace = e.refs.Pace.League()

	var signals []string
	if pf >= e.th.PaceFast {
		signals = append(signals, fmt.Sprintf("Fast pace (+%.1f%% vs Lg)", (pf-1)*100))
	} else if pf <= e.th.PaceSlow {
		signals = append(signals, fmt.Sprintf("Slow pace (%.1f%% vs Lg)", (pf-1)*100))
	}
	if z3a >= 0.8 {
		signals = append(signals, "Opp 3PA high (z>=0.8)")
	}
	if z3p >= 0.5 {
		signals = append(signals, "Opp 3P% high (z>=0.5)")
	}
	if efgHi {
		signals = append(signals, "Opp eFG% allowed high")
	}
	if zfta >= 0.8 {
		signals = append(signals, "Opp FTA high (z>=0.8)")
	}
	if zoreb >= 1.0 {
		signals = append(signals, "Opp OREB high (z>=1.0)")
	}
	if zreb >= 0.8 {
		signals = append(signals, "Opp REB high (z>=0.8)")
	}
	if zast >= 0.8 {
		signals = append(signals, "Opp AST high (z>=0.8)")
	}
	if ztov <= -0.5 {
		signals = append(signals, "Opp doesn't force TOs (z<=-0.5)")
	}
	if ztov >= 0.8 {
		signals = append(signals, "Opp forces TOs (z>=0.8)")
	}

	b2i := func(b bool) int {
		if b {
			return 1
		}
		return 0
	}
	shooterSig := b2i(z3a >= 0.8) + b2i(z3p >= 0.5) + b2i(efgHi)
	driverSig := b2i(zfta >= 0.8) + b2i(zpts >= 0.6)
	reboundSig := b2i(zoreb >= 1.0) + b2i(zreb >= 0.8)
	assistPos := b2i(zast >= 0.8) + b2i(ztov <= -0.5)
	assistNeg := b2i(ztov >= 0.8)
	stealsPos := b2i(ztov >= 0.8)

	pacePos := b2i(pf >= e.th.PaceFast)
	paceNeg := b2i(pf <= e.th.PaceSlow)

	var pos, neg int
	switch props.ParseProp(l.Prop) {
	case props.PropThrees:
		pos, neg = shooterSig+pacePos, b2i(efgLo)+paceNeg
	case props.PropPoints:
		pos, neg = shooterSig+driverSig+b2i(zpts >= 0.6)+pacePos, b2i(efgLo)+paceNeg
	case props.PropRebounds:
		pos, neg = reboundSig+pacePos, paceNeg
	case props.PropAssists:
		pos, neg = assistPos+pacePos, assistNeg+paceNeg
	case props.PropFTM:
		pos, neg = driverSig+pacePos, paceNeg
	case props.PropSteals:
		pos, neg = stealsPos+pacePos, paceNeg
	case props.PropTurnovers:
		pos, neg = b2i(ztov >= 0.8)+pacePos, b2i(ztov <= -0.5)+paceNeg
	default:
		pos, neg = 0, 0
	}

	if pos == 0 && neg == 0 {
		s.Suggestion = "PASS"
		s.Confidence = "-"
	} else {
		s.Suggestion = decide(pos, neg)
		s.Confidence = confidence(pos, neg)
	}
	s.Signals = strings.Join(signals, "; ")
	return s
}

// ScoreBatch scores every line in order.
func (e *Engine) ScoreBatch(lines []props.Line) []Suggestion {
	out := make([]Suggestion, 0, len(lines))
	for _, l := range lines {
		out = append(out, e.Score(l))
	}
	return out
}

func oddsCell(odds float64, ok bool) string {
	if !ok {
		return ""
	}
	return strconv.FormatFloat(odds, 'f', -1, 64)
}

// Table flattens suggestions into the output schema.
func Table(suggestions []Suggestion) *tabular.Table {
	t := tabular.New("prop_suggestions",
		"player", "team", "opponent", "role", "prop", "line",
		"over_odds", "under_odds", "book", "suggestion", "confidence",
		"pace_factor", "game_pace", "league_pace", "signals")
	for _, s := range suggestions {
		t.Append(map[string]string{
			"player":      s.Player,
			"team":        s.Team,
			"opponent":    s.Opponent,
			"role":        s.Role,
			"prop":        s.Prop,
			"line":        strconv.FormatFloat(s.Line, 'f', -1, 64),
			"over_odds":   s.OverOdds,
			"under_odds":  s.UnderOdds,
			"book":        s.Book,
			"suggestion":  s.Suggestion,
			"confidence":  s.Confidence,
			"pace_factor": strconv.FormatFloat(s.PaceFactor, 'f', 3, 64),
			"game_pace":   strconv.FormatFloat(s.GamePace, 'f', 2, 64),
			"league_pace": strconv.FormatFloat(s.LeaguePace, 'f', 2, 64),
			"signals":     s.Signals,
		})
	}
	return t
}
