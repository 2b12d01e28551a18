package props

import (
	"math"

	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat/distuv"
)

// Survival functions used to turn a projected mean/variance into the
// probability of clearing a betting line. The three-way branch is a
// deliberate distributional fit: overdispersed projections get a negative
// binomial, low-count props a Poisson, high-volume props a Normal
// approximation.

// normalSurvival is P(X > line) for X ~ Normal(mean, sqrt(variance)). The
// epsilon nudges half-point lines off the atom-free boundary the same way
// for every caller.
func normalSurvival(line, mean, variance float64) float64 {
	sd := math.Sqrt(variance)
	if sd < 1e-6 {
		sd = 1e-6
	}
	n := distuv.Normal{Mu: mean, Sigma: sd}
	return 1 - n.CDF(line+1e-9)
}

// poissonSurvival is P(X > line) for X ~ Poisson(lambda); integer lines count
// as not cleared (strictly-over convention).
func poissonSurvival(line, lambda float64) float64 {
	if line < 0 {
		return 1
	}
	p := distuv.Poisson{Lambda: lambda}
	return 1 - p.CDF(math.Floor(line))
}

// negBinomSurvival is P(X > line) for a negative binomial moment-matched to
// (mean, variance) with p = mean/variance and r = mean*p/(1-p). This exact
// parameterization is load-bearing: downstream edge thresholds were tuned
// against it. The CDF is the regularized incomplete beta I_p(r, k+1).
func negBinomSurvival(line, mean, variance float64) float64 {
	if line < 0 {
		return 1
	}
	p := mean / variance
	r := mean
	if p > 0 && p < 1 {
		r = mean * p / (1 - p)
	}
	if p <= 0 || p >= 1 || r <= 0 {
		return normalSurvival(line, mean, variance)
	}
	k := math.Floor(line)
	return 1 - mathext.RegIncBeta(r, k+1, p)
}
