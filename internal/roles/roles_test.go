package roles

import (
	"fmt"
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/props-engine/internal/features"
)

// twoClusterRows builds synthetic players split into a shooter-heavy group
// and a facilitator-heavy group, with mild seeded noise.
func twoClusterRows(n int, seed int64) []features.Row {
	rng := rand.New(rand.NewSource(seed))
	rows := make([]features.Row, 0, n)
	for i := 0; i < n; i++ {
		noise := func() float64 { return rng.NormFloat64() * 0.3 }
		var r features.Row
		r.Player = fmt.Sprintf("Player %02d", i)
		r.Team = fmt.Sprintf("Team %d", i%4)
		if i%2 == 0 {
			r.Pts40 = 18 + noise()
			r.Ast40 = 2 + noise()*0.2
			r.ThreeRate = 0.55 + noise()*0.02
			r.FTRate = 0.15 + noise()*0.02
			r.Tov40 = 2 + noise()*0.2
			r.Reb40 = 4 + noise()
			r.Stl40 = 1 + noise()*0.1
			r.Blk40 = 0.3 + noise()*0.05
		} else {
			r.Pts40 = 12 + noise()
			r.Ast40 = 8 + noise()*0.2
			r.ThreeRate = 0.2 + noise()*0.02
			r.FTRate = 0.3 + noise()*0.02
			r.Tov40 = 3.5 + noise()*0.2
			r.Reb40 = 11 + noise()
			r.Stl40 = 0.8 + noise()*0.1
			r.Blk40 = 0.4 + noise()*0.05
		}
		rows = append(rows, r)
	}
	return rows
}

func TestComponentCountGuard(t *testing.T) {
	assert.Equal(t, 2, componentCount(10, 12)) // 12//8 = 1 -> floor 2
	assert.Equal(t, 2, componentCount(5, 16))
	assert.Equal(t, 3, componentCount(3, 100))
	assert.Equal(t, 5, componentCount(5, 40))
}

func TestFitIsDeterministic(t *testing.T) {
	rows := twoClusterRows(24, 7)
	b1, err := Fit(rows, OffenseFeatures, 5, 42)
	require.NoError(t, err)
	b2, err := Fit(rows, OffenseFeatures, 5, 42)
	require.NoError(t, err)

	_, l1 := b1.Predict(rows)
	_, l2 := b2.Predict(rows)
	assert.Equal(t, l1, l2)
	assert.Equal(t, b1.Model.Means, b2.Model.Means)
	assert.Equal(t, b1.Model.Weights, b2.Model.Weights)
}

func TestPredictProbabilitiesFormSimplex(t *testing.T) {
	rows := twoClusterRows(32, 3)
	b, err := Fit(rows, OffenseFeatures, 4, 42)
	require.NoError(t, err)

	probs, labels := b.Predict(rows)
	require.Len(t, probs, len(rows))
	for i, p := range probs {
		sum := 0.0
		best := 0
		for c, v := range p {
			assert.GreaterOrEqual(t, v, 0.0)
			sum += v
			if v > p[best] {
				best = c
			}
		}
		assert.InDelta(t, 1.0, sum, 1e-6)
		assert.Equal(t, best, labels[i], "hard label must be the argmax of the soft assignment")
	}
}

func TestPredictSeparatesClearClusters(t *testing.T) {
	rows := twoClusterRows(40, 11)
	b, err := Fit(rows, OffenseFeatures, 2, 42)
	require.NoError(t, err)
	_, labels := b.Predict(rows)

	// All even-index players land together, all odd-index players together.
	for i := 2; i < len(rows); i += 2 {
		assert.Equal(t, labels[0], labels[i])
	}
	for i := 3; i < len(rows); i += 2 {
		assert.Equal(t, labels[1], labels[i])
	}
	assert.NotEqual(t, labels[0], labels[1])
}

func TestPredictToleratesMissingFeatures(t *testing.T) {
	rows := twoClusterRows(24, 5)
	b, err := Fit(rows, OffenseFeatures, 3, 42)
	require.NoError(t, err)

	// Rows with NaN features score without failing.
	broken := make([]features.Row, len(rows))
	copy(broken, rows)
	broken[0].ThreeRate = math.NaN()
	broken[1].Pts40 = math.Inf(1)
	probs, _ := b.Predict(broken)
	for _, p := range probs {
		sum := 0.0
		for _, v := range p {
			require.False(t, math.IsNaN(v))
			sum += v
		}
		assert.InDelta(t, 1.0, sum, 1e-6)
	}
}

func TestStabilityBounds(t *testing.T) {
	uniform := []float64{0.25, 0.25, 0.25, 0.25}
	assert.InDelta(t, 0.0, Stability(uniform), 1e-9)

	oneHot := []float64{0, 0, 1, 0}
	assert.InDelta(t, 1.0, Stability(oneHot), 1e-6)

	// Anything in between stays in [0,1]
	mixed := []float64{0.7, 0.2, 0.1}
	s := Stability(mixed)
	assert.Greater(t, s, 0.0)
	assert.Less(t, s, 1.0)
}

func TestLabelingPrecedence(t *testing.T) {
	// Satisfies the Shooter rule; later rules must not be consulted.
	c := Centroid{"pts40": 25, "ast40": 2, "three_rate": 0.5, "ft_rate": 0.1, "tov40": 2}
	assert.Equal(t, "Shooter", NameOffense(c))

	assert.Equal(t, "Driver/Slasher", NameOffense(Centroid{"pts40": 20, "ast40": 5, "three_rate": 0.3, "ft_rate": 0.5}))
	assert.Equal(t, "Facilitator", NameOffense(Centroid{"pts40": 12, "ast40": 8, "three_rate": 0.2, "ft_rate": 0.2}))
	assert.Equal(t, "Primary Scorer", NameOffense(Centroid{"pts40": 24, "ast40": 3, "three_rate": 0.2, "ft_rate": 0.3}))
	assert.Equal(t, "Combo Guard", NameOffense(Centroid{"pts40": 16, "ast40": 6, "three_rate": 0.4, "ft_rate": 0.2}))
	assert.Equal(t, "Balanced Wing", NameOffense(Centroid{"pts40": 14, "ast40": 3, "three_rate": 0.3, "ft_rate": 0.2}))

	assert.Equal(t, "Rim Protector", NameDefense(Centroid{"reb40": 9, "stl40": 1, "blk40": 2}))
	assert.Equal(t, "Boarding Big", NameDefense(Centroid{"reb40": 11, "stl40": 1, "blk40": 0.5}))
	assert.Equal(t, "Point of Attack", NameDefense(Centroid{"reb40": 5, "stl40": 2.5, "blk40": 0.2}))
	assert.Equal(t, "Team Defender", NameDefense(Centroid{"reb40": 7, "stl40": 1, "blk40": 0.5}))
}

func TestCentroidsEmptyComponentIsZero(t *testing.T) {
	rows := twoClusterRows(8, 1)
	labels := []int{0, 0, 0, 0, 1, 1, 1, 1} // component 2 never assigned
	cents := Centroids(rows, OffenseFeatures, 3, labels)
	require.Len(t, cents, 3)
	for _, f := range OffenseFeatures {
		assert.Zero(t, cents[2][f])
	}
	assert.Greater(t, cents[0]["pts40"], 0.0)
}

func TestMakeReport(t *testing.T) {
	rows := twoClusterRows(20, 9)
	off, err := Fit(rows, OffenseFeatures, 5, 42)
	require.NoError(t, err)
	def, err := Fit(rows, DefenseFeatures, 4, 42)
	require.NoError(t, err)

	offProbs, offLabels := off.Predict(rows)
	defProbs, defLabels := def.Predict(rows)
	_, offNames, _ := Label(rows, off.Features, off.Model.K, offLabels, NameOffense)
	_, defNames, _ := Label(rows, def.Features, def.Model.K, defLabels, NameDefense)

	rep := MakeReport(rows, offProbs, offNames, defProbs, defNames)
	require.Len(t, rep.Players, 20)

	for _, p := range rep.Players {
		assert.NotEmpty(t, p.PrimaryRole)
		assert.NotEmpty(t, p.SecondaryRole)
		assert.Equal(t, p.OffPrimaryRole, p.PrimaryRole)
		assert.Equal(t, p.DefPrimaryRole, p.SecondaryRole)
		assert.GreaterOrEqual(t, p.Stability, 0.0)
		assert.LessOrEqual(t, p.Stability, 1.0)

		sumOff, sumDef := 0.0, 0.0
		for _, v := range p.OffProbs {
			sumOff += v
		}
		for _, v := range p.DefProbs {
			sumDef += v
		}
		assert.InDelta(t, 1.0, sumOff, 1e-6)
		assert.InDelta(t, 1.0, sumDef, 1e-6)
	}

	// Deterministic (team, player) ordering
	for i := 1; i < len(rep.Players); i++ {
		prev, cur := rep.Players[i-1], rep.Players[i]
		assert.True(t, prev.Team < cur.Team || (prev.Team == cur.Team && prev.Player <= cur.Player))
	}

	tbl := rep.ToTable()
	assert.Equal(t, 20, tbl.Len())
	assert.True(t, tbl.HasColumn("off_p0"))
	assert.True(t, tbl.HasColumn("primary_role"))
}

func TestEMAProbs(t *testing.T) {
	prev := [][]float64{{0.8, 0.2}}
	curr := [][]float64{{0.2, 0.8}}
	out := EMAProbs(prev, curr, 0.6)
	assert.InDelta(t, 0.44, out[0][0], 1e-9)
	assert.InDelta(t, 0.56, out[0][1], 1e-9)

	// Shape mismatch falls back to current
	assert.Equal(t, curr, EMAProbs([][]float64{{1, 0}, {0, 1}}, curr, 0.6))
	assert.Equal(t, curr, EMAProbs(nil, curr, 0.6))
}

func TestBundleRoundTrip(t *testing.T) {
	rows := twoClusterRows(24, 13)
	b, err := Fit(rows, DefenseFeatures, 4, 42)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "models", "defense.json")
	require.NoError(t, b.Save(path))
	loaded, err := LoadBundle(path)
	require.NoError(t, err)

	_, want := b.Predict(rows)
	_, got := loaded.Predict(rows)
	assert.Equal(t, want, got)
	assert.Equal(t, b.Features, loaded.Features)
}

func TestLoadBundleMissing(t *testing.T) {
	_, err := LoadBundle(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
