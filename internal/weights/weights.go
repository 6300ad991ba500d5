// Package weights implements the engine's weight solver and index composer
// (spec component C5): an inverse-volatility target under hard per-metal
// bounds, an optional diversification bias, exponential smoothing toward
// the target, and the final composite index value. Grounded on the
// teacher's internal/portfolio/pnl.go weighted-average-over-positions
// shape, generalized from a fixed position set to a renormalized target
// vector under per-instrument bounds.
package weights

import "metalindexd/internal/model"

// Target computes the inverse-volatility target weight vector, bounded per
// metal and renormalized so Σ=1, per spec.md §4.5. A single renormalization
// after clamping can push a clamped entry back outside its band, so the
// clamp+renormalize pair is repeated until no entry is more than 1e-12
// outside its band.
func Target(sigma map[model.Metal]float64) model.WeightVector {
	raw := make(model.WeightVector, len(model.Metals))
	var rawSum float64
	for _, m := range model.Metals {
		v := 1 / sigma[m]
		raw[m] = v
		rawSum += v
	}

	target := make(model.WeightVector, len(model.Metals))
	for _, m := range model.Metals {
		target[m] = raw[m] / rawSum
	}
	for overshoot, iter := 1.0, 0; overshoot > 1e-12 && iter < 1000; iter++ {
		var boundedSum float64
		for _, m := range model.Metals {
			target[m] = model.Bands[m].Clamp(target[m])
			boundedSum += target[m]
		}
		overshoot = 0
		for _, m := range model.Metals {
			target[m] /= boundedSum
			overshoot = max(overshoot, model.Bands[m].Min-target[m], target[m]-model.Bands[m].Max)
		}
	}
	return target
}

// ApplyDiversificationBias pulls target toward the band-center vector and
// renormalizes, per spec.md §4.5. No-op unless bias == model.BiasDiversify.
func ApplyDiversificationBias(target model.WeightVector, bias model.RebalanceBias) model.WeightVector {
	if bias != model.BiasDiversify {
		return target
	}
	biased := make(model.WeightVector, len(model.Metals))
	var sum float64
	for _, m := range model.Metals {
		v := 0.7*target[m] + 0.3*model.Bands[m].Center()
		biased[m] = v
		sum += v
	}
	for _, m := range model.Metals {
		biased[m] /= sum
	}
	return biased
}

// Smooth exponentially moves current toward target at rate λ=weightSpeed,
// then re-clamps per band and renormalizes so Σ=1, per spec.md §4.5.
func Smooth(current, target model.WeightVector, weightSpeed float64) model.WeightVector {
	smoothed := make(model.WeightVector, len(model.Metals))
	for _, m := range model.Metals {
		smoothed[m] = (1-weightSpeed)*current[m] + weightSpeed*target[m]
	}

	clamped := make(model.WeightVector, len(model.Metals))
	var sum float64
	for _, m := range model.Metals {
		v := model.Bands[m].Clamp(smoothed[m])
		clamped[m] = v
		sum += v
	}

	out := make(model.WeightVector, len(model.Metals))
	for _, m := range model.Metals {
		out[m] = clamped[m] / sum
	}
	return out
}

// Index computes the composite index value in USD per gram: the
// weight-weighted sum of each metal's per-gram price.
func Index(w model.WeightVector, pricesPerGram map[model.Metal]float64) float64 {
	var sum float64
	for _, m := range model.Metals {
		sum += w[m] * pricesPerGram[m]
	}
	return sum
}

// Solve runs the full C5 pipeline for one tick: target, optional
// diversification bias, smoothing, and the resulting index value.
func Solve(current model.WeightVector, sigma map[model.Metal]float64, risk model.RiskAdjustedParams, pricesPerGram map[model.Metal]float64) (newWeights model.WeightVector, index float64) {
	target := Target(sigma)
	target = ApplyDiversificationBias(target, risk.RebalanceBias)
	newWeights = Smooth(current, target, risk.WeightSpeed)
	index = Index(newWeights, pricesPerGram)
	return newWeights, index
}
