package risk

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidInput marks caller contract violations: unknown gas types,
// negative or non-finite concentrations. It is never retried and never
// silently defaulted.
var ErrInvalidInput = errors.New("invalid input")

// The four monitored gas types. GasOrder doubles as the dominant-gas
// tie-break: the first-declared gas wins on equal rank.
const (
	GasMethane         = "methane"
	GasLPG             = "lpg"
	GasCarbonMonoxide  = "carbonMonoxide"
	GasHydrogenSulfide = "hydrogenSulfide"
)

var GasOrder = []string{GasMethane, GasLPG, GasCarbonMonoxide, GasHydrogenSulfide}

// Band is one half-open PPM interval [Min, Max) mapped to a level. The last
// band of a gas has Max = +Inf so the six bands cover [0, +Inf) with no gaps.
type Band struct {
	Level Level
	Min   float64
	Max   float64
}

// DefaultBands holds the OSHA-derived reference thresholds. Deployments may
// override the five upper boundaries per gas via the properties file; the
// six-tier ascending gap-free structure is invariant.
var DefaultBands = map[string][]Band{
	GasMethane:         BandsFromBoundaries(1000, 2500, 4000, 5000, 7000),
	GasLPG:             BandsFromBoundaries(500, 1000, 1500, 2000, 3000),
	GasCarbonMonoxide:  BandsFromBoundaries(25, 35, 50, 100, 200),
	GasHydrogenSulfide: BandsFromBoundaries(5, 10, 15, 20, 50),
}

// BandsFromBoundaries builds a six-band table from the five upper boundaries
// of the non-critical bands.
func BandsFromBoundaries(b1, b2, b3, b4, b5 float64) []Band {
	return []Band{
		{Normal, 0, b1},
		{LowAnomaly, b1, b2},
		{Unusual, b2, b3},
		{Alert, b3, b4},
		{Warning, b4, b5},
		{Critical, b5, math.Inf(1)},
	}
}

// ThresholdClassification is the per-reading output of the threshold stage.
type ThresholdClassification struct {
	OverallRisk Level            `json:"overallRisk"`
	DominantGas string           `json:"dominantGas"`
	PerGas      map[string]Level `json:"gasRisks"`
}

// Classifier maps instantaneous PPM values to risk levels. It is stateless;
// one instance is shared by all zones.
type Classifier struct {
	bands map[string][]Band
}

// NewClassifier validates the band tables and returns a classifier. Every gas
// must carry exactly six bands in ascending level order, starting at 0,
// ending at +Inf, each band's Max equal to the next band's Min.
func NewClassifier(bands map[string][]Band) (*Classifier, error) {
	if len(bands) == 0 {
		bands = DefaultBands
	}
	for _, gas := range GasOrder {
		bs, ok := bands[gas]
		if !ok {
			return nil, fmt.Errorf("thresholds: missing band table for %s", gas)
		}
		if len(bs) != 6 {
			return nil, fmt.Errorf("thresholds: %s has %d bands, want 6", gas, len(bs))
		}
		if bs[0].Min != 0 {
			return nil, fmt.Errorf("thresholds: %s first band starts at %.2f, want 0", gas, bs[0].Min)
		}
		if !math.IsInf(bs[5].Max, 1) {
			return nil, fmt.Errorf("thresholds: %s last band must be unbounded", gas)
		}
		for i, b := range bs {
			if b.Level != Level(i) {
				return nil, fmt.Errorf("thresholds: %s band %d labeled %s", gas, i, b.Level)
			}
			if b.Max <= b.Min {
				return nil, fmt.Errorf("thresholds: %s band %d empty (%.2f..%.2f)", gas, i, b.Min, b.Max)
			}
			if i > 0 && bs[i-1].Max != b.Min {
				return nil, fmt.Errorf("thresholds: %s gap between band %d and %d", gas, i-1, i)
			}
		}
	}
	return &Classifier{bands: bands}, nil
}

// ClassifyByThreshold maps a single gas concentration to its level. Unknown
// gas types and malformed values are contract violations, not defaults.
func (c *Classifier) ClassifyByThreshold(gasType string, ppm float64) (Level, error) {
	bs, ok := c.bands[gasType]
	if !ok {
		return Normal, fmt.Errorf("%w: unknown gas type %q", ErrInvalidInput, gasType)
	}
	if math.IsNaN(ppm) || math.IsInf(ppm, 0) || ppm < 0 {
		return Normal, fmt.Errorf("%w: %s concentration %v out of range", ErrInvalidInput, gasType, ppm)
	}
	for _, b := range bs {
		if ppm >= b.Min && ppm < b.Max {
			return b.Level, nil
		}
	}
	// Unreachable with a validated table.
	return Critical, nil
}

// ClassifyMultiGas classifies all four gases and combines them with the max
// rule. The dominant gas is the one achieving the overall rank, first
// declared wins on ties.
func (c *Classifier) ClassifyMultiGas(gases map[string]float64) (ThresholdClassification, error) {
	out := ThresholdClassification{PerGas: make(map[string]Level, len(GasOrder))}
	for _, gas := range GasOrder {
		ppm, ok := gases[gas]
		if !ok {
			return ThresholdClassification{}, fmt.Errorf("%w: missing %s concentration", ErrInvalidInput, gas)
		}
		lv, err := c.ClassifyByThreshold(gas, ppm)
		if err != nil {
			return ThresholdClassification{}, err
		}
		out.PerGas[gas] = lv
	}
	out.DominantGas = GasOrder[0]
	out.OverallRisk = out.PerGas[GasOrder[0]]
	for _, gas := range GasOrder[1:] {
		if out.PerGas[gas] > out.OverallRisk {
			out.OverallRisk = out.PerGas[gas]
			out.DominantGas = gas
		}
	}
	return out, nil
}
