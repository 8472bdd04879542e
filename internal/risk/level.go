// Package risk holds the canonical risk-level ordering shared by every
// classifier in the service, plus the threshold and fusion stages built on it.
// All rank comparisons anywhere in the codebase go through this one enumeration.
package risk

import (
	"encoding/json"
	"fmt"
)

// Level is one of six ordered risk tiers. The numeric order is load-bearing:
// gating and fusion compare ranks, never label strings.
type Level int

const (
	Normal Level = iota
	LowAnomaly
	Unusual
	Alert
	Warning
	Critical
)

var levelNames = [...]string{
	Normal:     "NORMAL",
	LowAnomaly: "LOW_ANOMALY",
	Unusual:    "UNUSUAL",
	Alert:      "ALERT",
	Warning:    "WARNING",
	Critical:   "CRITICAL",
}

func (l Level) String() string {
	if l < Normal || l > Critical {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelNames[l]
}

// Rank exposes the numeric position for gating comparisons and probability math.
func (l Level) Rank() int { return int(l) }

// Valid reports whether l is one of the six declared tiers.
func (l Level) Valid() bool { return l >= Normal && l <= Critical }

// ParseLevel resolves a label back to its Level.
func ParseLevel(s string) (Level, error) {
	for i, name := range levelNames {
		if name == s {
			return Level(i), nil
		}
	}
	return Normal, fmt.Errorf("unknown risk level %q", s)
}

// Max returns the higher-ranked of two levels.
func Max(a, b Level) Level {
	if b > a {
		return b
	}
	return a
}

func (l Level) MarshalJSON() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("marshal: invalid risk level %d", int(l))
	}
	return json.Marshal(l.String())
}

func (l *Level) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	lv, err := ParseLevel(s)
	if err != nil {
		return err
	}
	*l = lv
	return nil
}

// Severity labels alerts created by the decision engine.
type Severity string

const (
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityFor maps an actionable risk level to its alert severity. Levels
// below Unusual never create alerts; callers gate on that before asking.
func SeverityFor(l Level) Severity {
	switch {
	case l >= Critical:
		return SeverityCritical
	case l >= Warning:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

// RecommendedAction returns the operator guidance string attached to every
// classification response.
func RecommendedAction(l Level) string {
	switch l {
	case Unusual:
		return "investigate"
	case Alert:
		return "prepare"
	case Warning:
		return "ventilate"
	case Critical:
		return "evacuate"
	default:
		return "monitor"
	}
}
