package roles

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/stitts-dev/props-engine/internal/features"
	"github.com/stitts-dev/props-engine/internal/tabular"
)

// PlayerRole is one player's merged offensive and defensive assignment.
type PlayerRole struct {
	Player string `json:"player"`
	Team   string `json:"team"`

	OffProbs []float64 `json:"off_probs"`
	DefProbs []float64 `json:"def_probs"`

	OffPrimaryIdx  int    `json:"off_primary_idx"`
	OffPrimaryRole string `json:"off_primary_role"`
	DefPrimaryIdx  int    `json:"def_primary_idx"`
	DefPrimaryRole string `json:"def_primary_role"`

	PrimaryRole   string `json:"primary_role"`
	SecondaryRole string `json:"secondary_role"`

	Stability float64 `json:"stability"`
}

// Report is the merged role report for one inference run, sorted by
// (team, player).
type Report struct {
	OffComponentNames []string     `json:"off_component_names"`
	DefComponentNames []string     `json:"def_component_names"`
	Players           []PlayerRole `json:"players"`
}

// Stability measures how concentrated a probability vector is:
// 1 - H(p)/ln(k), clamped away from log(0). 1 means fully confident,
// 0 means uniform.
func Stability(p []float64) float64 {
	if len(p) == 0 {
		return 1
	}
	clamped := make([]float64, len(p))
	sum := 0.0
	for i, v := range p {
		if v < 1e-9 {
			v = 1e-9
		}
		if v > 1 {
			v = 1
		}
		clamped[i] = v
		sum += v
	}
	var h float64
	for _, v := range clamped {
		v /= sum
		h -= v * math.Log(v)
	}
	hMax := math.Log(float64(len(p)))
	if hMax <= 0 {
		return 1
	}
	return 1 - h/hMax
}

// EMAProbs blends the previous run's probabilities into the current ones:
// alpha*prev + (1-alpha)*curr. Shape mismatch (players or components changed)
// returns curr unchanged.
func EMAProbs(prev, curr [][]float64, alpha float64) [][]float64 {
	if prev == nil || len(prev) != len(curr) {
		return curr
	}
	for i := range curr {
		if len(prev[i]) != len(curr[i]) {
			return curr
		}
	}
	out := make([][]float64, len(curr))
	for i := range curr {
		row := make([]float64, len(curr[i]))
		for j := range curr[i] {
			row[j] = alpha*prev[i][j] + (1-alpha)*curr[i][j]
		}
		out[i] = row
	}
	return out
}

// MakeReport merges offensive and defensive assignments computed over the
// same ordered feature rows into one per-player report. The offense primary
// doubles as the designated primary role, the defense primary as secondary;
// stability reflects the offense distribution.
func MakeReport(rows []features.Row, offProbs [][]float64, offNames []string, defProbs [][]float64, defNames []string) *Report {
	rep := &Report{
		OffComponentNames: offNames,
		DefComponentNames: defNames,
		Players:           make([]PlayerRole, len(rows)),
	}
	for i, r := range rows {
		oi := argmax(offProbs[i])
		di := argmax(defProbs[i])
		rep.Players[i] = PlayerRole{
			Player:         r.Player,
			Team:           r.Team,
			OffProbs:       offProbs[i],
			DefProbs:       defProbs[i],
			OffPrimaryIdx:  oi,
			OffPrimaryRole: offNames[oi],
			DefPrimaryIdx:  di,
			DefPrimaryRole: defNames[di],
			PrimaryRole:    offNames[oi],
			SecondaryRole:  defNames[di],
			Stability:      Stability(offProbs[i]),
		}
	}
	sort.SliceStable(rep.Players, func(i, j int) bool {
		if rep.Players[i].Team != rep.Players[j].Team {
			return rep.Players[i].Team < rep.Players[j].Team
		}
		return rep.Players[i].Player < rep.Players[j].Player
	})
	return rep
}

func argmax(p []float64) int {
	best := 0
	for i := 1; i < len(p); i++ {
		if p[i] > p[best] {
			best = i
		}
	}
	return best
}

// ToTable flattens the report into the tabular role-report schema with one
// probability column per component.
func (r *Report) ToTable() *tabular.Table {
	cols := []string{"player", "team"}
	for i := range r.OffComponentNames {
		cols = append(cols, fmt.Sprintf("off_p%d", i))
	}
	for i := range r.DefComponentNames {
		cols = append(cols, fmt.Sprintf("def_p%d", i))
	}
	cols = append(cols,
		"off_primary_idx", "off_primary_role", "def_primary_idx", "def_primary_role",
		"primary_role", "secondary_role", "stability")

	t := tabular.New("player_roles", cols...)
	for _, p := range r.Players {
		row := map[string]string{
			"player":           p.Player,
			"team":             p.Team,
			"off_primary_idx":  strconv.Itoa(p.OffPrimaryIdx),
			"off_primary_role": p.OffPrimaryRole,
			"def_primary_idx":  strconv.Itoa(p.DefPrimaryIdx),
			"def_primary_role": p.DefPrimaryRole,
			"primary_role":     p.PrimaryRole,
			"secondary_role":   p.SecondaryRole,
			"stability":        strconv.FormatFloat(p.Stability, 'f', 4, 64),
		}
		for i, v := range p.OffProbs {
			row[fmt.Sprintf("off_p%d", i)] = strconv.FormatFloat(v, 'f', 6, 64)
		}
		for i, v := range p.DefProbs {
			row[fmt.Sprintf("def_p%d", i)] = strconv.FormatFloat(v, 'f', 6, 64)
		}
		t.Append(row)
	}
	return t
}
