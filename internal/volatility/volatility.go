// Package volatility implements the engine's annualized-volatility and
// pairwise-correlation estimators (spec component C2). Every exported
// function is pure and total over its inputs — the sparse-history fallbacks
// are themselves part of the contract, not error paths — following the
// teacher's internal/indicator package convention of O(1)-feeling,
// side-effect-free numeric cores.
package volatility

import (
	"math"

	"metalindexd/internal/model"
)

const (
	// MinPointsForVolatility is the minimum history length below which σ
	// falls back to a domain default.
	MinPointsForVolatility = 12
	// periodsPerYear annualizes a 5-minute-cadence return series.
	periodsPerYear = 105120
)

// DefaultSigma is the domain-default annualized volatility used when a
// metal's history is too sparse to estimate σ from returns.
var DefaultSigma = map[model.Metal]float64{
	model.XAU: 0.12,
	model.XAG: 0.22,
	model.XPT: 0.18,
	model.XPD: 0.30,
}

// DefaultCorrelation is the domain-default pairwise correlation used when
// either series is too sparse to estimate ρ.
var DefaultCorrelation = map[[2]model.Metal]float64{
	{model.XAU, model.XAG}: 0.7,
	{model.XAU, model.XPT}: 0.6,
	{model.XAU, model.XPD}: 0.5,
	{model.XAG, model.XPT}: 0.5,
	{model.XAG, model.XPD}: 0.4,
	{model.XPT, model.XPD}: 0.6,
}

// LogReturns computes rᵢ = ln(pᵢ/pᵢ₋₁) over consecutive prices, skipping any
// pair where either member is non-positive.
func LogReturns(points []model.PricePoint) []float64 {
	if len(points) < 2 {
		return nil
	}
	out := make([]float64, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		prev, cur := points[i-1].Price, points[i].Price
		if prev <= 0 || cur <= 0 {
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

func populationVariance(xs []float64, mu float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var s float64
	for _, x := range xs {
		d := x - mu
		s += d * d
	}
	return s / float64(len(xs))
}

// Sigma returns the annualized volatility for metal m given its price
// history, applying the sparse-history fallbacks and final clamp specified
// in spec.md §4.2.
func Sigma(m model.Metal, history []model.PricePoint) float64 {
	if len(history) < MinPointsForVolatility {
		return DefaultSigma[m]
	}
	returns := LogReturns(history)
	if len(returns) < 5 {
		return 0.15
	}
	mu := mean(returns)
	variance := populationVariance(returns, mu)
	sigma := math.Sqrt(variance) * math.Sqrt(float64(periodsPerYear))
	return clamp(sigma, 0.05, 0.80)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// pairKey normalizes (a, b) into the canonical ordering used by
// DefaultCorrelation (model.Metals order).
func pairKey(a, b model.Metal) [2]model.Metal {
	if a <= b {
		return [2]model.Metal{a, b}
	}
	return [2]model.Metal{b, a}
}

// Correlation returns the Pearson correlation between two metals' last
// min(|h1|,|h2|,100) points, with the sparse-history default table and the
// zero-denominator fallback from spec.md §4.2.
func Correlation(a, b model.Metal, h1, h2 []model.PricePoint) float64 {
	if a == b {
		return 1
	}
	if len(h1) < 20 || len(h2) < 20 {
		return DefaultCorrelation[pairKey(a, b)]
	}

	n := min3(len(h1), len(h2), 100)
	r1 := LogReturns(h1[len(h1)-n:])
	r2 := LogReturns(h2[len(h2)-n:])
	m := len(r1)
	if len(r2) < m {
		m = len(r2)
	}
	r1, r2 = r1[len(r1)-m:], r2[len(r2)-m:]

	return pearson(r1, r2)
}

func pearson(x, y []float64) float64 {
	if len(x) == 0 || len(y) == 0 || len(x) != len(y) {
		return 0
	}
	mx, my := mean(x), mean(y)
	var cov, vx, vy float64
	for i := range x {
		dx := x[i] - mx
		dy := y[i] - my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	denom := math.Sqrt(vx * vy)
	if denom == 0 {
		return 0
	}
	return cov / denom
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// Matrix is a 4x4 symmetric correlation matrix over model.Metals, diagonal
// 1.
type Matrix map[[2]model.Metal]float64

// BuildMatrix computes the full correlation matrix from per-metal history.
func BuildMatrix(histories map[model.Metal][]model.PricePoint) Matrix {
	out := make(Matrix, len(model.Metals)*len(model.Metals))
	for _, a := range model.Metals {
		for _, b := range model.Metals {
			out[[2]model.Metal{a, b}] = Correlation(a, b, histories[a], histories[b])
		}
	}
	return out
}

// Get returns the correlation between a and b, defaulting to 0 for an
// unknown pair (should not occur for a fully-built Matrix).
func (mat Matrix) Get(a, b model.Metal) float64 {
	return mat[[2]model.Metal{a, b}]
}

// LiquidityStress computes L ∈ [0,1] from each metal's σ relative to its
// domain default, per spec.md §4.2.
func LiquidityStress(sigma map[model.Metal]float64) float64 {
	var sum float64
	for _, m := range model.Metals {
		ratio := sigma[m] / DefaultSigma[m]
		if ratio > 1.5 {
			sum += 0.5 * (ratio - 1.5)
		}
	}
	return clamp(sum/2, 0, 1)
}
