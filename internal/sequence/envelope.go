package sequence

import (
	"math"
	"sort"
)

// easings maps a keyframe's ease name to its curve over [0,1). Unknown
// names are linear.
var easings = map[string]func(float64) float64{
	"smooth": func(x float64) float64 { return x * x * (3 - 2*x) },
	"cubic":  func(x float64) float64 { return x * x * x * (x*(x*6-15) + 10) },
}

// At returns the parameter byte the envelope holds t seconds into its cue.
// Before the first key and after the last the nearest key holds. An empty
// envelope is 0.
func (e Envelope) At(t float64) uint8 {
	keys := e.Keys
	if len(keys) == 0 {
		return 0
	}
	i := sort.Search(len(keys), func(i int) bool { return keys[i].T > t })
	switch i {
	case 0:
		return level(keys[0].V)
	case len(keys):
		return level(keys[i-1].V)
	}
	a, b := keys[i-1], keys[i]
	u := (t - a.T) / (b.T - a.T)
	if ease, ok := easings[a.Ease]; ok {
		u = ease(u)
	}
	return level(a.V + (b.V-a.V)*u)
}

// level rounds v onto a parameter byte.
func level(v float64) uint8 {
	return uint8(math.Round(min(max(v, 0), 0xff)))
}
