package roles

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

const (
	gmmMaxIter    = 200
	gmmTol        = 1e-4
	varianceFloor = 1e-6
)

// GMM is a Gaussian mixture model with diagonal covariance, fit by
// expectation-maximization. All state is exported for JSON persistence.
type GMM struct {
	K         int         `json:"k"`
	Dim       int         `json:"dim"`
	Weights   []float64   `json:"weights"`
	Means     [][]float64 `json:"means"`
	Variances [][]float64 `json:"variances"`
}

// FitGMM fits a k-component diagonal-covariance mixture to X (standardized
// rows) with a fixed seed, so the same data and seed always produce the same
// model. Initialization is k-means++ seeding followed by a short Lloyd
// refinement, then EM to log-likelihood convergence.
func FitGMM(X [][]float64, k int, seed int64) (*GMM, error) {
	n := len(X)
	if n == 0 {
		return nil, fmt.Errorf("cannot fit mixture on empty data")
	}
	if k < 1 {
		return nil, fmt.Errorf("component count must be positive, got %d", k)
	}
	if k > n {
		k = n
	}
	d := len(X[0])

	rng := rand.New(rand.NewSource(seed))
	centers := kmeansInit(X, k, rng)

	m := &GMM{
		K:         k,
		Dim:       d,
		Weights:   make([]float64, k),
		Means:     centers,
		Variances: make([][]float64, k),
	}

	// Moment-match each component from its hard k-means partition.
	assign := make([]int, n)
	for i, x := range X {
		assign[i] = nearest(centers, x)
	}
	counts := make([]int, k)
	for c := range m.Variances {
		m.Variances[c] = make([]float64, d)
	}
	for i, x := range X {
		c := assign[i]
		counts[c]++
		for j, v := range x {
			dev := v - m.Means[c][j]
			m.Variances[c][j] += dev * dev
		}
	}
	for c := 0; c < k; c++ {
		m.Weights[c] = math.Max(float64(counts[c])/float64(n), 1e-10)
		for j := 0; j < d; j++ {
			if counts[c] > 0 {
				m.Variances[c][j] /= float64(counts[c])
			}
			if m.Variances[c][j] < varianceFloor {
				m.Variances[c][j] = varianceFloor
			}
		}
	}

	// EM refinement
	logResp := make([][]float64, n)
	for i := range logResp {
		logResp[i] = make([]float64, k)
	}
	prevLL := math.Inf(-1)
	for iter := 0; iter < gmmMaxIter; iter++ {
		ll := m.eStep(X, logResp)
		m.mStep(X, logResp)
		avg := ll / float64(n)
		if math.Abs(avg-prevLL) < gmmTol {
			break
		}
		prevLL = avg
	}
	return m, nil
}

// PredictProba returns soft responsibilities per row: a probability simplex
// over the K components.
func (m *GMM) PredictProba(X [][]float64) [][]float64 {
	probs := make([][]float64, len(X))
	lr := make([]float64, m.K)
	for i, x := range X {
		m.logResponsibilities(x, lr)
		row := make([]float64, m.K)
		for c, lv := range lr {
			row[c] = math.Exp(lv)
		}
		probs[i] = row
	}
	return probs
}

// Predict returns the argmax component per row.
func (m *GMM) Predict(X [][]float64) []int {
	labels := make([]int, len(X))
	lr := make([]float64, m.K)
	for i, x := range X {
		m.logResponsibilities(x, lr)
		best := 0
		for c := 1; c < m.K; c++ {
			if lr[c] > lr[best] {
				best = c
			}
		}
		labels[i] = best
	}
	return labels
}

// logResponsibilities fills dst with normalized log responsibilities for x.
func (m *GMM) logResponsibilities(x []float64, dst []float64) {
	for c := 0; c < m.K; c++ {
		dst[c] = math.Log(m.Weights[c]) + m.logPDF(c, x)
	}
	norm := floats.LogSumExp(dst)
	for c := range dst {
		dst[c] -= norm
	}
}

// logPDF is the diagonal-covariance Gaussian log density of component c at x.
func (m *GMM) logPDF(c int, x []float64) float64 {
	sum := 0.0
	for j, v := range x {
		variance := m.Variances[c][j]
		dev := v - m.Means[c][j]
		sum += math.Log(2*math.Pi*variance) + dev*dev/variance
	}
	return -0.5 * sum
}

// eStep fills logResp and returns the total log-likelihood.
func (m *GMM) eStep(X [][]float64, logResp [][]float64) float64 {
	ll := 0.0
	joint := make([]float64, m.K)
	for i, x := range X {
		for c := 0; c < m.K; c++ {
			joint[c] = math.Log(m.Weights[c]) + m.logPDF(c, x)
		}
		norm := floats.LogSumExp(joint)
		ll += norm
		for c := 0; c < m.K; c++ {
			logResp[i][c] = joint[c] - norm
		}
	}
	return ll
}

// mStep re-estimates weights, means, and diagonal variances from logResp.
func (m *GMM) mStep(X [][]float64, logResp [][]float64) {
	n := len(X)
	for c := 0; c < m.K; c++ {
		var nk float64
		for i := 0; i < n; i++ {
			nk += math.Exp(logResp[i][c])
		}
		if nk < 1e-10 {
			nk = 1e-10
		}
		m.Weights[c] = nk / float64(n)
		for j := 0; j < m.Dim; j++ {
			var mean float64
			for i := 0; i < n; i++ {
				mean += math.Exp(logResp[i][c]) * X[i][j]
			}
			mean /= nk
			var variance float64
			for i := 0; i < n; i++ {
				dev := X[i][j] - mean
				variance += math.Exp(logResp[i][c]) * dev * dev
			}
			variance /= nk
			if variance < varianceFloor {
				variance = varianceFloor
			}
			m.Means[c][j] = mean
			m.Variances[c][j] = variance
		}
	}
}

// kmeansInit seeds k centers (k-means++ weighting) and runs a short Lloyd
// refinement for stable starting points.
func kmeansInit(X [][]float64, k int, rng *rand.Rand) [][]float64 {
	n, d := len(X), len(X[0])
	centers := make([][]float64, 0, k)
	first := append([]float64(nil), X[rng.Intn(n)]...)
	centers = append(centers, first)

	d2 := make([]float64, n)
	for len(centers) < k {
		total := 0.0
		for i, x := range X {
			d2[i] = dist2(centers[nearest(centers, x)], x)
			total += d2[i]
		}
		var pick int
		if total <= 0 {
			pick = rng.Intn(n)
		} else {
			target := rng.Float64() * total
			acc := 0.0
			for i := range d2 {
				acc += d2[i]
				if acc >= target {
					pick = i
					break
				}
			}
		}
		centers = append(centers, append([]float64(nil), X[pick]...))
	}

	assign := make([]int, n)
	for iter := 0; iter < 10; iter++ {
		changed := false
		for i, x := range X {
			c := nearest(centers, x)
			if assign[i] != c {
				assign[i] = c
				changed = true
			}
		}
		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, d)
		}
		for i, x := range X {
			counts[assign[i]]++
			floats.Add(sums[assign[i]], x)
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				continue
			}
			for j := 0; j < d; j++ {
				centers[c][j] = sums[c][j] / float64(counts[c])
			}
		}
		if !changed && iter > 0 {
			break
		}
	}
	return centers
}

func nearest(centers [][]float64, x []float64) int {
	best, bestD := 0, math.Inf(1)
	for c, center := range centers {
		if d := dist2(center, x); d < bestD {
			best, bestD = c, d
		}
	}
	return best
}

func dist2(a, b []float64) float64 {
	sum := 0.0
	for j := range a {
		dev := a[j] - b[j]
		sum += dev * dev
	}
	return sum
}
