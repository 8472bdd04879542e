// Package anomaly implements the stateful half of the hybrid classifier:
// min-max normalization with offline-fitted ranges, a pluggable next-step
// sequence predictor, and the mapping from prediction error to risk level.
package anomaly

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/SanjayaWeerasinghe/GasGuard/internal/risk"
)

// Scaler normalizes raw PPM vectors into the fixed [0,1] fit range. The fit
// parameters come from offline training and never change at runtime; all
// prediction-error math happens in this normalized space.
type Scaler struct {
	min   []float64
	scale []float64 // 1 / (max - min) per feature
}

type scalerFile struct {
	Features []struct {
		Name string  `yaml:"name"`
		Min  float64 `yaml:"min"`
		Max  float64 `yaml:"max"`
	} `yaml:"features"`
}

// LoadScaler reads the fitted min/max ranges from a YAML file. The file must
// declare exactly the four gases in canonical order.
func LoadScaler(path string) (*Scaler, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scaler: read %s: %w", path, err)
	}
	var f scalerFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("scaler: parse %s: %w", path, err)
	}
	if len(f.Features) != len(risk.GasOrder) {
		return nil, fmt.Errorf("scaler: %s declares %d features, want %d", path, len(f.Features), len(risk.GasOrder))
	}
	s := &Scaler{min: make([]float64, len(f.Features)), scale: make([]float64, len(f.Features))}
	for i, feat := range f.Features {
		if feat.Name != risk.GasOrder[i] {
			return nil, fmt.Errorf("scaler: feature %d is %q, want %q", i, feat.Name, risk.GasOrder[i])
		}
		if feat.Max <= feat.Min {
			return nil, fmt.Errorf("scaler: %s fit range %.2f..%.2f is empty", feat.Name, feat.Min, feat.Max)
		}
		s.min[i] = feat.Min
		s.scale[i] = 1 / (feat.Max - feat.Min)
	}
	return s, nil
}

// DefaultScaler returns fit ranges matching the reference training set, used
// when no scaler file is configured.
func DefaultScaler() *Scaler {
	s := &Scaler{
		min:   []float64{0, 0, 0, 0},
		scale: make([]float64, 4),
	}
	for i, max := range []float64{10000, 5000, 400, 100} {
		s.scale[i] = 1 / max
	}
	return s
}

// Transform maps one raw vector into normalized space. Values above the fit
// maximum deliberately exceed 1; that overshoot is how gross leaks surface
// in the prediction error.
func (s *Scaler) Transform(raw []float64) ([]float64, error) {
	if len(raw) != len(s.min) {
		return nil, fmt.Errorf("scaler: vector has %d features, want %d", len(raw), len(s.min))
	}
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = (v - s.min[i]) * s.scale[i]
	}
	return out, nil
}
