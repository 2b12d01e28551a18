// Package refdata builds immutable reference structures from tabular inputs:
// opponent allowances, pace, four factors, player baselines, on/off deltas,
// rest adjustments, and archetype role maps. These are passed explicitly into
// the projection and suggestion engines, never stored globally, so synthetic
// reference data drops straight into tests.
package refdata

import (
	"fmt"
	"strings"

	"github.com/stitts-dev/props-engine/internal/tabular"
)

// Set bundles every reference table one run consumes. Opponent and Pace are
// required; the rest degrade to typed defaults when absent.
type Set struct {
	Opponent    *OpponentStats
	Pace        *PaceTable
	FourFactors *FourFactors
	Baselines   Baselines
	OnOff       OnOff
	Rest        RestTable
	Archetypes  Archetypes
	PosDefense  PositionalDefense
}

// OpponentStats carries per-team per-100-possession allowance columns plus
// the league mean and standard deviation per column, for z-scoring.
type OpponentStats struct {
	teams map[string]map[string]float64
	mean  map[string]float64
	std   map[string]float64
}

// NewOpponentStats indexes an opponent_per100 table by team. The table must
// carry TEAM_NAME (a "Team" header is accepted and renamed).
func NewOpponentStats(t *tabular.Table) (*OpponentStats, error) {
	t.TrimHeaders()
	if !t.HasColumn("TEAM_NAME") {
		if t.HasColumn("Team") {
			t.Rename("Team", "TEAM_NAME")
		} else {
			return nil, fmt.Errorf("table %q must include TEAM_NAME", t.Name)
		}
	}

	o := &OpponentStats{
		teams: make(map[string]map[string]float64),
		mean:  make(map[string]float64),
		std:   make(map[string]float64),
	}
	for _, row := range t.Rows {
		team := tabular.Str(row, "TEAM_NAME")
		if team == "" {
			continue
		}
		vals := make(map[string]float64)
		for _, col := range t.Columns {
			if col == "TEAM_NAME" {
				continue
			}
			if v, ok := tabular.Float(row, col); ok {
				vals[col] = v
			}
		}
		o.teams[team] = vals
	}
	for _, col := range t.Columns {
		if col == "TEAM_NAME" {
			continue
		}
		mean, std, n := t.ColumnStats(col)
		if n == 0 {
			continue
		}
		o.mean[col] = mean
		o.std[col] = std
	}
	if len(o.teams) == 0 {
		return nil, fmt.Errorf("table %q has no team rows", t.Name)
	}
	return o, nil
}

// Has reports whether the team appears in the table.
func (o *OpponentStats) Has(team string) bool {
	_, ok := o.teams[team]
	return ok
}

// Z returns the league z-score of the team's allowance column. A missing
// team or column, or a zero league std, is zero-effect.
func (o *OpponentStats) Z(team, col string) float64 {
	vals, ok := o.teams[team]
	if !ok {
		return 0
	}
	v, ok := vals[col]
	if !ok {
		return 0
	}
	std := o.std[col]
	if std <= 0 {
		return 0
	}
	return (v - o.mean[col]) / std
}

// PaceTable carries per-team recent pace plus the league mean.
type PaceTable struct {
	pace   map[string]float64
	league float64
}

// NewPaceTable indexes a pace table on TEAM_NAME/PACE (headers uppercased).
func NewPaceTable(t *tabular.Table) (*PaceTable, error) {
	t.UpperHeaders()
	if err := t.Require("TEAM_NAME", "PACE"); err != nil {
		return nil, err
	}
	p := &PaceTable{pace: make(map[string]float64)}
	sum := 0.0
	for _, row := range t.Rows {
		team := tabular.Str(row, "TEAM_NAME")
		v, ok := tabular.Float(row, "PACE")
		if team == "" || !ok {
			continue
		}
		p.pace[team] = v
		sum += v
	}
	if len(p.pace) == 0 {
		return nil, fmt.Errorf("table %q has no usable pace rows", t.Name)
	}
	p.league = sum / float64(len(p.pace))
	return p, nil
}

// Has reports whether the team has a pace entry.
func (p *PaceTable) Has(team string) bool {
	_, ok := p.pace[team]
	return ok
}

// League returns the league-mean pace.
func (p *PaceTable) League() float64 {
	return p.league
}

// Factor returns the expected game's pace factor for a matchup: the mean of
// both teams' pace (or whichever side is known) over league pace. With no
// pace data at all the factor is neutral 1.0 and gamePace is 0.
func (p *PaceTable) Factor(team, opponent string) (factor, gamePace float64) {
	tp, tok := p.pace[team]
	op, ook := p.pace[opponent]
	switch {
	case tok && ook:
		gamePace = (tp + op) / 2
	case tok:
		gamePace = tp
	case ook:
		gamePace = op
	default:
		return 1.0, 0
	}
	if p.league <= 0 {
		return 1.0, gamePace
	}
	return gamePace / p.league, gamePace
}

// FourFactors carries team and opponent-allowed four-factor stats plus
// league means of the team columns.
type FourFactors struct {
	teams      map[string]map[string]float64
	leagueMean map[string]float64
}

// NewFourFactors indexes a four_factors table by its Team column.
func NewFourFactors(t *tabular.Table) (*FourFactors, error) {
	t.TrimHeaders()
	teamCol := "Team"
	if !t.HasColumn(teamCol) {
		if t.HasColumn("TEAM_NAME") {
			teamCol = "TEAM_NAME"
		} else {
			return nil, fmt.Errorf("table %q must include Team", t.Name)
		}
	}
	ff := &FourFactors{
		teams:      make(map[string]map[string]float64),
		leagueMean: make(map[string]float64),
	}
	for _, row := range t.Rows {
		team := tabular.Str(row, teamCol)
		if team == "" {
			continue
		}
		vals := make(map[string]float64)
		for _, col := range t.Columns {
			if col == teamCol {
				continue
			}
			if v, ok := tabular.Float(row, col); ok {
				vals[col] = v
			}
		}
		ff.teams[team] = vals
	}
	for _, col := range t.Columns {
		if col == teamCol {
			continue
		}
		if mean, _, n := t.ColumnStats(col); n > 0 {
			ff.leagueMean[col] = mean
		}
	}
	return ff, nil
}

// Value returns the team's named four-factor column.
func (f *FourFactors) Value(team, col string) (float64, bool) {
	if f == nil {
		return 0, false
	}
	vals, ok := f.teams[team]
	if !ok {
		return 0, false
	}
	v, ok := vals[col]
	return v, ok
}

// LeagueMean returns the league mean of the named column.
func (f *FourFactors) LeagueMean(col string) (float64, bool) {
	if f == nil {
		return 0, false
	}
	v, ok := f.leagueMean[col]
	return v, ok
}

// Baseline holds one player's season baseline rates. Zero value is never
// used directly; lookups fall back to DefaultBaseline fields per column.
type Baseline struct {
	Position string
	MinMean  float64
	Usage    float64
	ThreePAr float64
	FTRate   float64
	RebRate  float64
	AstRate  float64
	StlRate  float64
	TovRate  float64
}

// DefaultBaseline returns league-typical rates used when a player has no
// baseline row (or a baseline cell is missing).
func DefaultBaseline() Baseline {
	return Baseline{
		MinMean:  30.0,
		Usage:    0.22,
		ThreePAr: 0.32,
		FTRate:   0.25,
		RebRate:  0.14,
		AstRate:  0.18,
		StlRate:  0.025,
		TovRate:  0.12,
	}
}

// Baselines maps lowercased player names to baseline rates.
type Baselines map[string]Baseline

// NewBaselines builds the lookup from a players_baseline table. A nil table
// yields an empty map; every lookup then returns defaults.
func NewBaselines(t *tabular.Table) Baselines {
	b := make(Baselines)
	if t == nil {
		return b
	}
	t.LowerHeaders()
	def := DefaultBaseline()
	for _, row := range t.Rows {
		player := tabular.Str(row, "player")
		if player == "" {
			continue
		}
		b[strings.ToLower(player)] = Baseline{
			Position: strings.ToUpper(tabular.Str(row, "position")),
			MinMean:  tabular.FloatOr(row, "min_mean", def.MinMean),
			Usage:    tabular.FloatOr(row, "usage_pct", def.Usage),
			ThreePAr: tabular.FloatOr(row, "3p_ar", def.ThreePAr),
			FTRate:   tabular.FloatOr(row, "ft_rate", def.FTRate),
			RebRate:  tabular.FloatOr(row, "reb_rate", def.RebRate),
			AstRate:  tabular.FloatOr(row, "ast_rate", def.AstRate),
			StlRate:  tabular.FloatOr(row, "stl_rate", def.StlRate),
			TovRate:  tabular.FloatOr(row, "tov_rate", def.TovRate),
		}
	}
	return b
}

// For returns the player's baseline, or league defaults when absent.
func (b Baselines) For(player string) Baseline {
	if bl, ok := b[strings.ToLower(strings.TrimSpace(player))]; ok {
		return bl
	}
	return DefaultBaseline()
}

// OnOff maps (lowercased player, team) to an on-court per-40 delta.
type OnOff map[[2]string]float64

// NewOnOff builds the on/off lookup. delta_per40 wins when present; a
// netrating_diff row contributes 0.1 of its value instead.
func NewOnOff(t *tabular.Table) OnOff {
	o := make(OnOff)
	if t == nil {
		return o
	}
	t.LowerHeaders()
	for _, row := range t.Rows {
		player := strings.ToLower(tabular.Str(row, "player"))
		team := tabular.Str(row, "team")
		if player == "" {
			continue
		}
		if dp40, ok := tabular.Float(row, "delta_per40"); ok {
			o[[2]string{player, team}] = dp40
		} else if nrd, ok := tabular.Float(row, "netrating_diff"); ok {
			o[[2]string{player, team}] = 0.1 * nrd
		} else {
			o[[2]string{player, team}] = 0
		}
	}
	return o
}

// DeltaPer40 returns the player's on-court delta, zero when unknown.
func (o OnOff) DeltaPer40(player, team string) float64 {
	return o[[2]string{strings.ToLower(strings.TrimSpace(player)), strings.TrimSpace(team)}]
}

// RestAdjustment carries a team's rest-based scheduling adjustments.
type RestAdjustment struct {
	RestDays     float64
	PointsAdj    float64
	MinutesScale float64
}

// RestTable maps teams to rest adjustments.
type RestTable map[string]RestAdjustment

// NewRestTable builds the rest lookup from a status_rest table.
func NewRestTable(t *tabular.Table) RestTable {
	r := make(RestTable)
	if t == nil {
		return r
	}
	t.LowerHeaders()
	for _, row := range t.Rows {
		team := tabular.Str(row, "team")
		if team == "" {
			continue
		}
		r[team] = RestAdjustment{
			RestDays:     tabular.FloatOr(row, "restdays", 0),
			PointsAdj:    tabular.FloatOr(row, "points_adjustment", 0),
			MinutesScale: tabular.FloatOr(row, "minutes_scale", 1.0),
		}
	}
	return r
}

// For returns the team's rest adjustment, neutral when unknown.
func (r RestTable) For(team string) RestAdjustment {
	if adj, ok := r[team]; ok {
		return adj
	}
	return RestAdjustment{MinutesScale: 1.0}
}

// Archetypes maps team -> role -> players, the optional hand-maintained role
// assignments carried through onto suggestion rows.
type Archetypes map[string]map[string][]string

// NewArchetypes builds the archetype map from a (team, role, player) table.
func NewArchetypes(t *tabular.Table) Archetypes {
	a := make(Archetypes)
	if t == nil {
		return a
	}
	t.LowerHeaders()
	for _, row := range t.Rows {
		team := tabular.Str(row, "team")
		role := tabular.Str(row, "role")
		player := tabular.Str(row, "player")
		if team == "" || role == "" || player == "" {
			continue
		}
		if a[team] == nil {
			a[team] = make(map[string][]string)
		}
		a[team][role] = append(a[team][role], player)
	}
	return a
}

// RoleFor returns the mapped role for a player on a team, empty when none.
func (a Archetypes) RoleFor(player, team string) string {
	for role, players := range a[team] {
		for _, p := range players {
			if p == player {
				return role
			}
		}
	}
	return ""
}

// PositionalDefense maps team -> column -> value for positional-defense
// tables. Loaded so the input contract is honored; no projection term
// consumes it yet.
type PositionalDefense map[string]map[string]float64

// NewPositionalDefense builds the positional-defense lookup.
func NewPositionalDefense(t *tabular.Table) PositionalDefense {
	p := make(PositionalDefense)
	if t == nil {
		return p
	}
	t.LowerHeaders()
	for _, row := range t.Rows {
		team := tabular.Str(row, "team")
		if team == "" {
			continue
		}
		vals := make(map[string]float64)
		for col := range row {
			if col == "team" {
				continue
			}
			if v, ok := tabular.Float(row, col); ok {
				vals[col] = v
			}
		}
		p[team] = vals
	}
	return p
}

// Value returns the team's positional-defense column.
func (p PositionalDefense) Value(team, col string) (float64, bool) {
	vals, ok := p[team]
	if !ok {
		return 0, false
	}
	v, ok := vals[col]
	return v, ok
}
