package trending

import (
	"math"
	"time"
)

type Options struct {
	Window time.Duration
	Limit  int
	Alpha  float64
	Beta   float64
	Gamma  float64
	// DefaultAvgAgeHours stands in for tags with no all-time history.
	DefaultAvgAgeHours float64
	MinAvgAgeHours     float64
}

func DefaultOptions() Options {
	return Options{
		Window:             6 * time.Hour,
		Limit:              20,
		Alpha:              1,
		Beta:               1,
		Gamma:              1.2,
		DefaultAvgAgeHours: 12,
		MinAvgAgeHours:     0.1,
	}
}

// withDefaults fills zero fields from DefaultOptions. Alpha and Beta are only
// defaulted together so an explicit zero weight survives when the other is set.
// Gamma must be positive and is defaulted on its own.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Window <= 0 {
		o.Window = d.Window
	}
	if o.Limit <= 0 {
		o.Limit = d.Limit
	}
	if o.Alpha == 0 && o.Beta == 0 {
		o.Alpha, o.Beta = d.Alpha, d.Beta
	}
	if o.Gamma <= 0 {
		o.Gamma = d.Gamma
	}
	if o.DefaultAvgAgeHours <= 0 {
		o.DefaultAvgAgeHours = d.DefaultAvgAgeHours
	}
	if o.MinAvgAgeHours <= 0 {
		o.MinAvgAgeHours = d.MinAvgAgeHours
	}
	return o
}

// CompositeScore blends short-term momentum with age-decayed volume:
//
//	alpha*(current-previous) + beta*allTime / (avgAge+2)^gamma
func CompositeScore(current, previous, allTime, avgAgeHours float64, o Options) float64 {
	avgAgeHours = math.Max(avgAgeHours, o.MinAvgAgeHours)
	decay := 1 / math.Pow(avgAgeHours+2, o.Gamma)
	return o.Alpha*(current-previous) + o.Beta*allTime*decay
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
