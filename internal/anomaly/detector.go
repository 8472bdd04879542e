package anomaly

import (
	"fmt"
	"math"

	"github.com/SanjayaWeerasinghe/GasGuard/internal/risk"
)

// Trend tags on the anomaly classification.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

// Bands maps a normalized-space prediction error to a risk level. The five
// upper bounds correspond to NORMAL..WARNING; anything above the last bound
// is CRITICAL.
type Bands [5]float64

// DefaultBands are the error thresholds the model was calibrated against.
var DefaultBands = Bands{0.15, 0.30, 0.50, 0.75, 1.10}

// Validate checks the bounds are positive and strictly ascending.
func (b Bands) Validate() error {
	prev := 0.0
	for i, v := range b {
		if v <= prev {
			return fmt.Errorf("anomaly bands must ascend: band %d = %.3f", i, v)
		}
		prev = v
	}
	return nil
}

// LevelForError maps a non-negative prediction error onto the band table.
func (b Bands) LevelForError(err float64) risk.Level {
	for i, bound := range b {
		if err <= bound {
			return risk.Level(i)
		}
	}
	return risk.Critical
}

// PredictionError is the mean absolute difference between the predicted and
// observed vectors, both in normalized space. Mixing raw-PPM errors with the
// normalized band table is the error class this signature exists to prevent.
func PredictionError(predicted, observed []float64) (float64, error) {
	if len(predicted) != FeatureCount || len(observed) != FeatureCount {
		return 0, fmt.Errorf("%w: error over %dx%d vectors", ErrInvariant, len(predicted), len(observed))
	}
	var sum float64
	for i := range predicted {
		sum += math.Abs(predicted[i] - observed[i])
	}
	return sum / FeatureCount, nil
}

// TrendOf compares the current error against the mean of the previous few
// errors: more than 20% above is increasing, more than 20% below is
// decreasing, anything else is stable. With no prior history the trend is
// stable unless the error itself appeared from zero.
func TrendOf(current float64, previous []float64) string {
	if len(previous) == 0 {
		return TrendStable
	}
	var mean float64
	for _, e := range previous {
		mean += e
	}
	mean /= float64(len(previous))
	if mean == 0 {
		if current > 0 {
			return TrendIncreasing
		}
		return TrendStable
	}
	switch {
	case current > mean*1.2:
		return TrendIncreasing
	case current < mean*0.8:
		return TrendDecreasing
	default:
		return TrendStable
	}
}
