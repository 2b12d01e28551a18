// Package roles infers per-player statistical role archetypes from rolling
// features: standardize, fit a Gaussian mixture, name the components, and
// report soft/hard assignments per player.
package roles

import (
	"fmt"
	"math"

	"github.com/stitts-dev/props-engine/internal/features"
)

// Feature sets per domain. Offense captures shot creation and mix; defense
// captures rebounding and event generation.
var (
	OffenseFeatures = []string{"pts40", "ast40", "three_rate", "ft_rate", "tov40"}
	DefenseFeatures = []string{"reb40", "stl40", "blk40"}
)

// Bundle is one fitted role model: the feature scaler, the mixture, and the
// ordered feature list the model was trained on. Fit once on long-window
// features, persisted, reused for repeated short-window inference.
type Bundle struct {
	Features []string `json:"features"`
	Scaler   *Scaler  `json:"scaler"`
	Model    *GMM     `json:"model"`
}

// featureMatrix extracts the named features from rows. Missing features read
// as zero and non-finite values are zero-filled, so inference tolerates
// partial data instead of failing.
func featureMatrix(rows []features.Row, feats []string) [][]float64 {
	X := make([][]float64, len(rows))
	for i, r := range rows {
		x := make([]float64, len(feats))
		for j, f := range feats {
			v := r.Feature(f)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = 0
			}
			x[j] = v
		}
		X[i] = x
	}
	return X
}

// componentCount guards against over-fitting when few players are available:
// k = min(requested, max(2, n/8)).
func componentCount(requested, n int) int {
	limit := n / 8
	if limit < 2 {
		limit = 2
	}
	if requested < limit {
		return requested
	}
	return limit
}

// Fit standardizes the named features over rows and fits a seeded
// diagonal-covariance Gaussian mixture.
func Fit(rows []features.Row, feats []string, nComponents int, seed int64) (*Bundle, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no feature rows to fit on")
	}
	X := featureMatrix(rows, feats)
	scaler := FitScaler(X)
	k := componentCount(nComponents, len(rows))
	model, err := FitGMM(scaler.Transform(X), k, seed)
	if err != nil {
		return nil, fmt.Errorf("fitting %d-component mixture: %w", k, err)
	}
	return &Bundle{Features: feats, Scaler: scaler, Model: model}, nil
}

// Predict applies the bundle's stored standardization to rows and returns
// soft responsibilities and hard argmax assignments.
func (b *Bundle) Predict(rows []features.Row) (probs [][]float64, labels []int) {
	Xs := b.Scaler.Transform(featureMatrix(rows, b.Features))
	return b.Model.PredictProba(Xs), b.Model.Predict(Xs)
}
