package agent

import (
	"math/rand"
	"sort"

	"github.com/hupe1980/graphmind/core"
)

// Inherit derives a child specialization from a surviving parent: parameters
// are copied verbatim, then exactly one randomly chosen parameter receives a
// bounded perturbation in [-variation, +variation]. Unit-range parameters
// (thresholds, confidences) are perturbed additively and clamped to [0,1];
// count-valued parameters above 1 (neighbor counts, depths, cluster sizes)
// are scaled by 1+delta and floored at 1 so a perturbation cannot collapse
// them into the unit range. How much variation is "enough" is an open tuning
// question; callers pass it as a constant rather than adapting it at runtime.
func Inherit(parent core.Specialization, variation float64, rng *rand.Rand) core.Specialization {
	child := parent.Clone()
	if len(child.Params) == 0 || variation <= 0 {
		return child
	}

	keys := make([]string, 0, len(child.Params))
	for k := range child.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	key := keys[rng.Intn(len(keys))]
	delta := (rng.Float64()*2 - 1) * variation
	if v := child.Params[key]; v > 1 {
		v *= 1 + delta
		if v < 1 {
			v = 1
		}
		child.Params[key] = v
	} else {
		child.Params[key] = clamp01(v + delta)
	}
	return child
}
