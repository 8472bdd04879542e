package risk

import (
	"errors"
	"math"
	"testing"
)

func newDefaultClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := NewClassifier(nil)
	if err != nil {
		t.Fatalf("classifier: %v", err)
	}
	return c
}

func TestClassifyByThresholdBoundaries(t *testing.T) {
	c := newDefaultClassifier(t)
	cases := []struct {
		gas  string
		ppm  float64
		want Level
	}{
		{GasMethane, 0, Normal},
		{GasMethane, 999, Normal},
		{GasMethane, 1000, LowAnomaly},
		{GasMethane, 1001, LowAnomaly},
		{GasMethane, 4200, Alert},
		{GasMethane, 7000, Critical},
		{GasMethane, 250000, Critical},
		{GasLPG, 499.9, Normal},
		{GasLPG, 2000, Warning},
		{GasLPG, 3000, Critical},
		{GasCarbonMonoxide, 25, LowAnomaly},
		{GasCarbonMonoxide, 75, Alert},
		{GasCarbonMonoxide, 200, Critical},
		{GasHydrogenSulfide, 4.99, Normal},
		{GasHydrogenSulfide, 20, Warning},
		{GasHydrogenSulfide, 50, Critical},
	}
	for _, tc := range cases {
		got, err := c.ClassifyByThreshold(tc.gas, tc.ppm)
		if err != nil {
			t.Fatalf("%s %.2f: %v", tc.gas, tc.ppm, err)
		}
		if got != tc.want {
			t.Errorf("%s %.2f = %s, want %s", tc.gas, tc.ppm, got, tc.want)
		}
	}
}

func TestClassifyByThresholdMonotonic(t *testing.T) {
	c := newDefaultClassifier(t)
	for _, gas := range GasOrder {
		prev := Normal
		for ppm := 0.0; ppm < 12000; ppm += 7.3 {
			lv, err := c.ClassifyByThreshold(gas, ppm)
			if err != nil {
				t.Fatalf("%s %.2f: %v", gas, ppm, err)
			}
			if lv < prev {
				t.Fatalf("%s not monotonic: %.2f ppm dropped %s -> %s", gas, ppm, prev, lv)
			}
			prev = lv
		}
	}
}

func TestClassifyByThresholdRejectsBadInput(t *testing.T) {
	c := newDefaultClassifier(t)
	if _, err := c.ClassifyByThreshold("radon", 10); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("unknown gas: err=%v, want ErrInvalidInput", err)
	}
	for _, bad := range []float64{-1, math.NaN(), math.Inf(1)} {
		if _, err := c.ClassifyByThreshold(GasMethane, bad); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("ppm %v: err=%v, want ErrInvalidInput", bad, err)
		}
	}
}

func TestClassifyMultiGasDominant(t *testing.T) {
	c := newDefaultClassifier(t)
	tc, err := c.ClassifyMultiGas(map[string]float64{
		GasMethane:         200,
		GasLPG:             1500,
		GasCarbonMonoxide:  15,
		GasHydrogenSulfide: 3,
	})
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if tc.OverallRisk != Alert {
		t.Fatalf("overall=%s, want ALERT", tc.OverallRisk)
	}
	if tc.DominantGas != GasLPG {
		t.Fatalf("dominant=%s, want lpg", tc.DominantGas)
	}
	if tc.PerGas[GasMethane] != Normal {
		t.Fatalf("methane=%s, want NORMAL", tc.PerGas[GasMethane])
	}
}

func TestClassifyMultiGasTieBreak(t *testing.T) {
	c := newDefaultClassifier(t)
	// Methane and LPG both land in CRITICAL; first-declared gas wins.
	tc, err := c.ClassifyMultiGas(map[string]float64{
		GasMethane:         8000,
		GasLPG:             4000,
		GasCarbonMonoxide:  5,
		GasHydrogenSulfide: 1,
	})
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if tc.DominantGas != GasMethane {
		t.Fatalf("tie broke to %s, want methane", tc.DominantGas)
	}
}

func TestClassifyMultiGasMissingGas(t *testing.T) {
	c := newDefaultClassifier(t)
	_, err := c.ClassifyMultiGas(map[string]float64{GasMethane: 100})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err=%v, want ErrInvalidInput", err)
	}
}

func TestNewClassifierRejectsBrokenTables(t *testing.T) {
	broken := map[string][]Band{}
	for g, bs := range DefaultBands {
		broken[g] = append([]Band(nil), bs...)
	}
	// Introduce a gap between LOW_ANOMALY and UNUSUAL for methane.
	broken[GasMethane][2].Min = 2600
	if _, err := NewClassifier(broken); err == nil {
		t.Fatal("expected gap to be rejected")
	}
}
