// Package risk implements the engine's risk moderator (spec component C4):
// drawdown, correlation stability, and weight dispersion signals feeding a
// set of gates that shape the drift cap, weight-transition speed,
// rebalance bias, and regime-change permission. Grounded on the teacher's
// internal/portfolio/risk.go RiskManager — same "signals in, gated
// parameters out" shape, generalized from position-limit gating to
// drift-cap/weight-speed gating.
package risk

import (
	"math"

	"metalindexd/internal/model"
	"metalindexd/internal/volatility"
)

// LAMBDA is the base weight-transition speed before risk moderation.
const LAMBDA = 0.08

// Drawdown returns the largest observed (max-current)/max over the last
// min(14*288, len(indexSeries)) points. Returns 0 for fewer than 2 points.
func Drawdown(indexSeries []float64) float64 {
	const window = 14 * 288
	if len(indexSeries) > window {
		indexSeries = indexSeries[len(indexSeries)-window:]
	}
	if len(indexSeries) < 2 {
		return 0
	}
	runningMax := indexSeries[0]
	worst := 0.0
	for _, v := range indexSeries {
		if v > runningMax {
			runningMax = v
		}
		if runningMax > 0 {
			dd := (runningMax - v) / runningMax
			if dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// CorrelationStability returns S ∈ [0,1]: 1 minus twice the mean absolute
// difference of the upper-triangle entries between cur and prev. Returns 1
// if prev is nil (no prior matrix to compare against).
func CorrelationStability(cur, prev volatility.Matrix) float64 {
	if prev == nil {
		return 1
	}
	var sum float64
	var n int
	for i, a := range model.Metals {
		for _, b := range model.Metals[i+1:] {
			sum += math.Abs(cur.Get(a, b) - prev.Get(a, b))
			n++
		}
	}
	if n == 0 {
		return 1
	}
	meanDiff := sum / float64(n)
	s := 1 - 2*meanDiff
	if s < 0 {
		return 0
	}
	return s
}

// Dispersion returns D ∈ [0,1]: the normalized Shannon entropy of the
// weight vector, treating w*ln(w) as 0 when w == 0.
func Dispersion(w model.WeightVector) float64 {
	n := len(model.Metals)
	if n <= 1 {
		return 0
	}
	var h float64
	for _, m := range model.Metals {
		wi := w[m]
		if wi > 0 {
			h -= wi * math.Log(wi)
		}
	}
	return h / math.Log(float64(n))
}

// Gates are the five boolean decisions derived from the risk signals.
type Gates struct {
	DrawdownMode      bool
	Fragmented        bool
	StressedLiquidity bool
	Overconcentration bool
	RegimeLocked      bool

	Drawdown               float64
	CorrelationStability   float64
	Dispersion             float64
}

// Inputs bundles everything the moderator needs for one tick.
type Inputs struct {
	IndexSeries     []float64
	CorrMatrix      volatility.Matrix
	PrevCorrMatrix  volatility.Matrix
	LiquidityStress float64
	Weights         model.WeightVector
	Regime          model.Regime
	RegimeDuration  int
	RegimeLocked    bool
}

// Moderate computes the gates and the resulting RiskAdjustedParams for one
// tick, per spec.md §4.4.
func Moderate(in Inputs) (model.RiskAdjustedParams, Gates) {
	dd := Drawdown(in.IndexSeries)
	s := CorrelationStability(in.CorrMatrix, in.PrevCorrMatrix)
	d := Dispersion(in.Weights)

	gates := Gates{
		DrawdownMode:      dd > 0.05,
		Fragmented:        s < 0.7,
		StressedLiquidity: in.LiquidityStress > 0.8,
		Overconcentration: d < 0.15,
		RegimeLocked:      in.RegimeLocked,

		Drawdown:             dd,
		CorrelationStability: s,
		Dispersion:           d,
	}

	dailyCap := model.Params[in.Regime].DailyCap
	driftCap := dailyCap
	if gates.DrawdownMode {
		driftCap *= 0.5
	}
	if gates.StressedLiquidity {
		driftCap *= 0.7
	}
	driftCap = math.Max(0.005, driftCap)

	weightSpeed := LAMBDA
	if gates.DrawdownMode {
		weightSpeed *= 0.5
	}
	if gates.Fragmented {
		weightSpeed *= 0.3
	}
	weightSpeed = math.Max(0.01, weightSpeed)

	bias := model.BiasNeutral
	if gates.Overconcentration {
		bias = model.BiasDiversify
	}

	return model.RiskAdjustedParams{
		DriftCap:          driftCap,
		WeightSpeed:       weightSpeed,
		RebalanceBias:     bias,
		AllowRegimeChange: !gates.RegimeLocked,
	}, gates
}
