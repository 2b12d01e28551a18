package roles

import (
	"github.com/stitts-dev/props-engine/internal/features"
)

// Centroid is a component center in raw (unstandardized) feature space,
// keyed by feature name.
type Centroid map[string]float64

// NameOffense maps an offensive centroid to a semantic role. Rules are
// evaluated in order, first match wins; the thresholds are fixed business
// rules, not tunables.
func NameOffense(c Centroid) string {
	pts, ast, three, ftr := c["pts40"], c["ast40"], c["three_rate"], c["ft_rate"]
	switch {
	case three > 0.45 && ast < 4 && ftr < 0.35:
		return "Shooter"
	case ftr > 0.45 && pts > 18:
		return "Driver/Slasher"
	case ast > 6 && pts < 20:
		return "Facilitator"
	case pts > 22 && (three < 0.25 || ftr > 0.45):
		return "Primary Scorer"
	case three > 0.35 && ast > 5:
		return "Combo Guard"
	default:
		return "Balanced Wing"
	}
}

// NameDefense maps a defensive centroid to a semantic role, first match wins.
func NameDefense(c Centroid) string {
	reb, stl, blk := c["reb40"], c["stl40"], c["blk40"]
	switch {
	case blk > 1.6 && reb > 8.0:
		return "Rim Protector"
	case reb > 10.0 && blk < 1.0:
		return "Boarding Big"
	case stl > 2.0 && reb < 7.0:
		return "Point of Attack"
	default:
		return "Team Defender"
	}
}

// Centroids computes each component's center as the feature-wise mean of rows
// hard-assigned to it. A component with no assigned rows gets a zero-vector
// centroid.
func Centroids(rows []features.Row, feats []string, k int, labels []int) []Centroid {
	cents := make([]Centroid, k)
	counts := make([]int, k)
	for c := range cents {
		cent := make(Centroid, len(feats))
		for _, f := range feats {
			cent[f] = 0
		}
		cents[c] = cent
	}
	for i, r := range rows {
		c := labels[i]
		counts[c]++
		for _, f := range feats {
			cents[c][f] += r.Feature(f)
		}
	}
	for c := range cents {
		if counts[c] == 0 {
			continue
		}
		for _, f := range feats {
			cents[c][f] /= float64(counts[c])
		}
	}
	return cents
}

// Label names every component centroid with namer and returns per-row labels
// (each row gets its hard-assigned component's name), the component names by
// index, and the centroids.
func Label(rows []features.Row, feats []string, k int, labels []int, namer func(Centroid) string) (perRow []string, names []string, cents []Centroid) {
	cents = Centroids(rows, feats, k, labels)
	names = make([]string, k)
	for c, cent := range cents {
		names[c] = namer(cent)
	}
	perRow = make([]string, len(rows))
	for i, c := range labels {
		perRow[i] = names[c]
	}
	return perRow, names, cents
}
