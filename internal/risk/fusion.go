package risk

// Confidence reflects how well the two classifiers agree.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Fused is the final hybrid classification for one reading.
type Fused struct {
	Level           Level      `json:"riskLevel"`
	Confidence      Confidence `json:"confidence"`
	LeakProbability float64    `json:"leakProbability"`
}

// Fuse combines the threshold and anomaly verdicts with the conservative max
// rule. When the anomaly signal is unavailable the threshold verdict stands
// alone and confidence is forced low; degraded mode never escalates risk.
func Fuse(threshold Level, anomaly Level, anomalyAvailable bool) Fused {
	if !anomalyAvailable {
		return Fused{
			Level:           threshold,
			Confidence:      ConfidenceLow,
			LeakProbability: leakProbability(threshold),
		}
	}
	final := Max(threshold, anomaly)
	var conf Confidence
	switch dist := abs(threshold.Rank() - anomaly.Rank()); {
	case dist == 0:
		conf = ConfidenceHigh
	case dist == 1:
		conf = ConfidenceMedium
	default:
		conf = ConfidenceLow
	}
	return Fused{Level: final, Confidence: conf, LeakProbability: leakProbability(final)}
}

func leakProbability(l Level) float64 {
	p := float64(l.Rank()) / float64(Critical.Rank())
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

func abs(i int) int {
	if i < 0 {
		return -i
	}
	return i
}
