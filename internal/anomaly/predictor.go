package anomaly

import (
	"context"
	"errors"
	"fmt"
)

// FeatureCount is the width of every history vector: one value per gas.
const FeatureCount = 4

// ErrUnavailable signals that the predictor backend is unreachable or timed
// out. The caller degrades to threshold-only fusion; this is never a hard
// failure.
var ErrUnavailable = errors.New("predictor unavailable")

// ErrInvariant marks a programming-contract violation such as a wrong-shaped
// window or prediction. The current reading fails closed; the process keeps
// running.
var ErrInvariant = errors.New("internal invariant violation")

// Predictor produces the expected next normalized reading vector from a
// window of past normalized vectors.
type Predictor interface {
	PredictNext(ctx context.Context, window [][]float64) ([]float64, error)
}

// EWMAPredictor is the in-process fallback predictor: an exponentially
// weighted average over the window, newest sample heaviest. It stands in for
// the trained sequence model when no inference service is configured.
type EWMAPredictor struct {
	Alpha float64
}

// NewEWMAPredictor builds the fallback predictor. Alpha outside (0,1] falls
// back to 0.5.
func NewEWMAPredictor(alpha float64) *EWMAPredictor {
	if alpha <= 0 || alpha > 1 {
		alpha = 0.5
	}
	return &EWMAPredictor{Alpha: alpha}
}

func (p *EWMAPredictor) PredictNext(_ context.Context, window [][]float64) ([]float64, error) {
	if err := checkWindow(window); err != nil {
		return nil, err
	}
	pred := make([]float64, FeatureCount)
	copy(pred, window[0])
	for _, row := range window[1:] {
		for i, v := range row {
			pred[i] = p.Alpha*v + (1-p.Alpha)*pred[i]
		}
	}
	return pred, nil
}

func checkWindow(window [][]float64) error {
	if len(window) == 0 {
		return fmt.Errorf("%w: empty prediction window", ErrInvariant)
	}
	for i, row := range window {
		if len(row) != FeatureCount {
			return fmt.Errorf("%w: window row %d has %d features, want %d", ErrInvariant, i, len(row), FeatureCount)
		}
	}
	return nil
}
