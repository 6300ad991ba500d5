package risk

import (
	"math"
	"testing"

	"metalindexd/internal/model"
	"metalindexd/internal/volatility"
)

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f)", label, got, want, tol)
	}
}

func TestDrawdown_EmptyOrSingleIsZero(t *testing.T) {
	assertClose(t, "empty", Drawdown(nil), 0, 1e-12)
	assertClose(t, "single", Drawdown([]float64{100}), 0, 1e-12)
}

func TestDrawdown_PeakToTrough(t *testing.T) {
	series := []float64{100, 110, 99, 105}
	got := Drawdown(series)
	want := (110.0 - 99.0) / 110.0
	assertClose(t, "drawdown", got, want, 1e-9)
}

func TestCorrelationStability_NilPrevIsOne(t *testing.T) {
	cur := volatility.Matrix{}
	got := CorrelationStability(cur, nil)
	assertClose(t, "stability nil prev", got, 1, 1e-12)
}

func TestCorrelationStability_IdenticalMatricesIsOne(t *testing.T) {
	m := volatility.Matrix{
		{model.XAU, model.XAG}: 0.7,
		{model.XAU, model.XPT}: 0.6,
	}
	got := CorrelationStability(m, m)
	assertClose(t, "stability identical", got, 1, 1e-12)
}

func TestDispersion_EqualWeightsIsOne(t *testing.T) {
	w := model.WeightVector{model.XAU: 0.25, model.XAG: 0.25, model.XPT: 0.25, model.XPD: 0.25}
	got := Dispersion(w)
	assertClose(t, "dispersion equal weights", got, 1, 1e-9)
}

func TestDispersion_ConcentratedIsLow(t *testing.T) {
	w := model.WeightVector{model.XAU: 0.97, model.XAG: 0.01, model.XPT: 0.01, model.XPD: 0.01}
	got := Dispersion(w)
	if got >= 0.5 {
		t.Errorf("expected low dispersion for concentrated weights, got %.6f", got)
	}
}

func TestModerate_DrawdownContractsDriftCap(t *testing.T) {
	w := model.InitialWeights
	baseline, _ := Moderate(Inputs{
		IndexSeries: []float64{100, 101, 102},
		Weights:     w,
		Regime:      model.RegimeLow,
	})
	stressed, gates := Moderate(Inputs{
		IndexSeries: []float64{100, 110, 95},
		Weights:     w,
		Regime:      model.RegimeLow,
	})
	if !gates.DrawdownMode {
		t.Fatal("expected drawdown mode to trigger for a 13.6% drawdown")
	}
	if stressed.DriftCap >= baseline.DriftCap {
		t.Errorf("expected contracted drift cap under drawdown: stressed=%.6f baseline=%.6f", stressed.DriftCap, baseline.DriftCap)
	}
}

func TestModerate_RegimeLockedDisallowsRegimeChange(t *testing.T) {
	out, gates := Moderate(Inputs{
		Weights:      model.InitialWeights,
		Regime:       model.RegimeLow,
		RegimeLocked: true,
	})
	if !gates.RegimeLocked {
		t.Fatal("expected RegimeLocked gate to be set")
	}
	if out.AllowRegimeChange {
		t.Error("expected AllowRegimeChange=false while regime is locked")
	}
}

func TestModerate_OverconcentrationTriggersDiversifyBias(t *testing.T) {
	concentrated := model.WeightVector{model.XAU: 0.97, model.XAG: 0.01, model.XPT: 0.01, model.XPD: 0.01}
	out, gates := Moderate(Inputs{
		Weights: concentrated,
		Regime:  model.RegimeLow,
	})
	if !gates.Overconcentration {
		t.Fatal("expected overconcentration gate to trigger")
	}
	if out.RebalanceBias != model.BiasDiversify {
		t.Errorf("expected diversify bias, got %v", out.RebalanceBias)
	}
}
