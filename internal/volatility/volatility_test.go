package volatility

import (
	"math"
	"testing"

	"metalindexd/internal/model"
)

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f)", label, got, want, tol)
	}
}

func TestSigma_SparseHistoryFallsBackToDefault(t *testing.T) {
	got := Sigma(model.XAG, nil)
	assertClose(t, "sigma sparse", got, DefaultSigma[model.XAG], 1e-12)
}

func TestSigma_FewReturnsFallsBackTo015(t *testing.T) {
	// Enough points to pass the sparse-history check, but only the first four
	// prices are positive, so just three log returns survive the skip of
	// non-positive pairs.
	history := make([]model.PricePoint, MinPointsForVolatility)
	for i := range history {
		price := 100.0
		if i >= 4 {
			price = 0
		}
		history[i] = model.PricePoint{TS: int64(i), Price: price}
	}
	got := Sigma(model.XAU, history)
	assertClose(t, "sigma few returns", got, 0.15, 1e-12)
}

func TestSigma_ClampsToUpperBound(t *testing.T) {
	history := make([]model.PricePoint, 50)
	price := 100.0
	for i := range history {
		if i%2 == 0 {
			price *= 1.5
		} else {
			price /= 1.5
		}
		history[i] = model.PricePoint{TS: int64(i), Price: price}
	}
	got := Sigma(model.XAG, history)
	if got > 0.80+1e-9 {
		t.Errorf("sigma should clamp at 0.80, got %.6f", got)
	}
}

func TestCorrelation_SameMetalIsOne(t *testing.T) {
	got := Correlation(model.XAU, model.XAU, nil, nil)
	assertClose(t, "self correlation", got, 1, 1e-12)
}

func TestCorrelation_SparseUsesDefaultTable(t *testing.T) {
	got := Correlation(model.XAU, model.XAG, nil, nil)
	assertClose(t, "sparse correlation", got, DefaultCorrelation[[2]model.Metal{model.XAU, model.XAG}], 1e-12)
}

func TestCorrelation_PerfectlyCorrelatedSeries(t *testing.T) {
	h1 := make([]model.PricePoint, 30)
	h2 := make([]model.PricePoint, 30)
	price := 100.0
	for i := range h1 {
		price *= 1.01
		h1[i] = model.PricePoint{TS: int64(i), Price: price}
		h2[i] = model.PricePoint{TS: int64(i), Price: price * 2}
	}
	got := Correlation(model.XAU, model.XAG, h1, h2)
	assertClose(t, "perfectly correlated", got, 1, 1e-6)
}

func TestLiquidityStress_AllDefaultIsZero(t *testing.T) {
	got := LiquidityStress(DefaultSigma)
	assertClose(t, "liquidity stress at defaults", got, 0, 1e-12)
}

func TestLiquidityStress_ElevatedSigmaRaisesStress(t *testing.T) {
	sigma := map[model.Metal]float64{
		model.XAU: DefaultSigma[model.XAU],
		model.XAG: 0.80,
		model.XPT: DefaultSigma[model.XPT],
		model.XPD: DefaultSigma[model.XPD],
	}
	got := LiquidityStress(sigma)
	if got <= 0 {
		t.Errorf("expected positive liquidity stress with silver at ceiling, got %.6f", got)
	}
}

func TestBuildMatrix_DiagonalIsOne(t *testing.T) {
	histories := map[model.Metal][]model.PricePoint{}
	m := BuildMatrix(histories)
	for _, metal := range model.Metals {
		assertClose(t, "matrix diagonal", m.Get(metal, metal), 1, 1e-12)
	}
}
