// Package model defines the value types exchanged between the gasguard core
// and its collaborators. Everything here is copyable and free of shared
// mutable state; per-zone mutable state lives in the zonestate package.
package model

import (
	"fmt"
	"math"
	"time"

	"github.com/SanjayaWeerasinghe/GasGuard/internal/risk"
)

// GasReading is one simultaneous four-gas snapshot from a monitored zone.
// It is constructed at the ingestion boundary, validated once, and passed
// by value through the pipeline.
type GasReading struct {
	ZoneID     string             `json:"zoneId"`
	Gases      map[string]float64 `json:"gases"`
	ObservedAt time.Time          `json:"observedAt"`
}

// Validate enforces the inbound contract before any state mutation: a zone
// id, all four known gases, and finite non-negative concentrations.
func (r GasReading) Validate() error {
	if r.ZoneID == "" {
		return fmt.Errorf("%w: missing zoneId", risk.ErrInvalidInput)
	}
	if len(r.Gases) == 0 {
		return fmt.Errorf("%w: missing gas concentrations", risk.ErrInvalidInput)
	}
	for _, gas := range risk.GasOrder {
		v, ok := r.Gases[gas]
		if !ok {
			return fmt.Errorf("%w: missing %s concentration", risk.ErrInvalidInput, gas)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: %s concentration %v out of range", risk.ErrInvalidInput, gas, v)
		}
	}
	for gas := range r.Gases {
		if !knownGas(gas) {
			return fmt.Errorf("%w: unknown gas type %q", risk.ErrInvalidInput, gas)
		}
	}
	return nil
}

func knownGas(gas string) bool {
	for _, g := range risk.GasOrder {
		if g == gas {
			return true
		}
	}
	return false
}

// Vector returns the concentrations in canonical gas order. The reading must
// have been validated first.
func (r GasReading) Vector() []float64 {
	out := make([]float64, len(risk.GasOrder))
	for i, gas := range risk.GasOrder {
		out[i] = r.Gases[gas]
	}
	return out
}

// Alert is the record handed to the alert sink, at most once per reading.
type Alert struct {
	AlertID     string          `json:"alertId"`
	ZoneID      string          `json:"zoneId"`
	Severity    risk.Severity   `json:"severity"`
	RiskLevel   risk.Level      `json:"riskLevel"`
	DominantGas string          `json:"dominantGas"`
	Confidence  risk.Confidence `json:"confidence"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// AuditEvent is the ledger transaction emitted for readings at WARNING rank
// or above.
type AuditEvent struct {
	TxID        string             `json:"txId"`
	ZoneID      string             `json:"zoneId"`
	RiskLevel   risk.Level         `json:"riskLevel"`
	Gases       map[string]float64 `json:"gases"`
	DominantGas string             `json:"dominantGas"`
	Confidence  risk.Confidence    `json:"confidence"`
	Timestamp   time.Time          `json:"timestamp"`
}

// VentilationCommand is published to the zone's actuator topic on an actual
// mode transition, never on every reading.
type VentilationCommand struct {
	ZoneID   string `json:"zoneId"`
	Mode     string `json:"mode"`
	Reason   string `json:"reason"`
	IssuedAt int64  `json:"issuedAt"`
}

// ActionsApplied reports per-collaborator emission outcomes. A false flag
// means the corresponding side effect failed after the in-core state had
// already committed; it is surfaced, never rolled back.
type ActionsApplied struct {
	AlertOK       bool `json:"alertOk"`
	VentilationOK bool `json:"ventilationOk"`
	AuditOK       bool `json:"auditOk"`
}

// AnomalyClassification is the per-reading output of the anomaly detector.
type AnomalyClassification struct {
	Risk            risk.Level `json:"risk"`
	PredictionError float64    `json:"predictionError"`
	Trend           string     `json:"trend"`
}

// Result is the full classification returned to the caller of
// ProcessReading, computable even when every side effect fails.
type Result struct {
	ZoneID          string                       `json:"zoneId"`
	RiskLevel       risk.Level                   `json:"riskLevel"`
	Confidence      risk.Confidence              `json:"confidence"`
	LeakProbability float64                      `json:"leakProbability"`
	Threshold       risk.ThresholdClassification `json:"ppmClassification"`
	Anomaly         AnomalyClassification        `json:"anomalyDetection"`
	Notify          bool                         `json:"notify"`
	Alarm           bool                         `json:"alarm"`
	Ventilation     bool                         `json:"ventilation"`
	Recommended     string                       `json:"recommendedAction"`
	Actions         ActionsApplied               `json:"actionsApplied"`
	Timestamp       time.Time                    `json:"timestamp"`
}
