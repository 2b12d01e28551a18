package roles

import (
	"gonum.org/v1/gonum/stat"
)

// Scaler standardizes feature columns to zero mean and unit variance. The fit
// statistics are stored so inference applies the exact training transform.
type Scaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// FitScaler computes per-column mean and standard deviation over X (rows are
// observations). Constant columns get std 1 so transforming them yields zero
// rather than a division blow-up.
func FitScaler(X [][]float64) *Scaler {
	if len(X) == 0 {
		return &Scaler{}
	}
	d := len(X[0])
	s := &Scaler{Mean: make([]float64, d), Std: make([]float64, d)}
	col := make([]float64, len(X))
	for j := 0; j < d; j++ {
		for i := range X {
			col[i] = X[i][j]
		}
		s.Mean[j] = stat.Mean(col, nil)
		s.Std[j] = stat.StdDev(col, nil)
		if s.Std[j] == 0 || len(X) < 2 {
			s.Std[j] = 1
		}
	}
	return s
}

// Transform returns a standardized copy of X.
func (s *Scaler) Transform(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		tr := make([]float64, len(row))
		for j, v := range row {
			tr[j] = (v - s.Mean[j]) / s.Std[j]
		}
		out[i] = tr
	}
	return out
}
