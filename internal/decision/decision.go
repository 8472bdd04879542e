// Package decision turns a fused classification into downstream actions:
// alert creation, ventilation transitions and audit emission. Deciding is a
// pure function; applying talks to the collaborators and aggregates their
// outcomes without ever rolling back committed in-core state.
package decision

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/SanjayaWeerasinghe/GasGuard/internal/model"
	"github.com/SanjayaWeerasinghe/GasGuard/internal/risk"
	"github.com/SanjayaWeerasinghe/GasGuard/internal/zonestate"
)

// AlertSink persists alert records. Called at most once per reading.
type AlertSink interface {
	CreateAlert(ctx context.Context, a model.Alert) error
}

// VentilationActuator drives the physical ventilation. Called only on an
// actual mode transition.
type VentilationActuator interface {
	SetVentilationMode(ctx context.Context, cmd model.VentilationCommand) error
}

// AuditSink records audit events for readings at WARNING rank or above.
type AuditSink interface {
	EmitAuditEvent(ctx context.Context, ev model.AuditEvent) error
}

// Directives is the action set computed for one reading before any
// collaborator is contacted.
type Directives struct {
	CreateAlert bool
	Severity    risk.Severity
	// DesiredVent is the escalation target; VentOff means no request. The
	// store's commit applies it monotonically, so FORCED is never downgraded.
	DesiredVent zonestate.VentilationMode
	EmitAudit   bool
}

// Decide maps the fused risk level onto the action tiers:
// below UNUSUAL nothing happens; UNUSUAL and ALERT create a medium alert;
// WARNING creates a high alert, requests AUTO ventilation and audits;
// CRITICAL creates a critical alert, requests FORCED ventilation and audits.
func Decide(fused risk.Fused) Directives {
	d := Directives{DesiredVent: zonestate.VentOff}
	if fused.Level < risk.Unusual {
		return d
	}
	d.CreateAlert = true
	d.Severity = risk.SeverityFor(fused.Level)
	switch {
	case fused.Level >= risk.Critical:
		d.DesiredVent = zonestate.VentForced
		d.EmitAudit = true
	case fused.Level >= risk.Warning:
		d.DesiredVent = zonestate.VentAuto
		d.EmitAudit = true
	}
	return d
}

// Engine applies directives against the external collaborators.
type Engine struct {
	alerts  AlertSink
	vents   VentilationActuator
	audits  AuditSink
	lg      *slog.Logger
	timeout time.Duration
}

// NewEngine wires the collaborator clients. timeout bounds each outbound
// emission individually.
func NewEngine(alerts AlertSink, vents VentilationActuator, audits AuditSink, timeout time.Duration, lg *slog.Logger) *Engine {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Engine{alerts: alerts, vents: vents, audits: audits, timeout: timeout, lg: lg}
}

// Apply emits the directives and reports per-collaborator outcomes. The
// ventilation state in the store has already committed by the time this
// runs; emission failures are logged and surfaced, never retried here and
// never allowed to fail the classification itself.
func (e *Engine) Apply(ctx context.Context, reading model.GasReading, th risk.ThresholdClassification, fused risk.Fused, commit zonestate.CommitResult, d Directives) model.ActionsApplied {
	applied := model.ActionsApplied{AlertOK: true, VentilationOK: true, AuditOK: true}
	now := time.Now().UTC()

	if d.CreateAlert {
		alert := model.Alert{
			AlertID:     uuid.New().String(),
			ZoneID:      reading.ZoneID,
			Severity:    d.Severity,
			RiskLevel:   fused.Level,
			DominantGas: th.DominantGas,
			Confidence:  fused.Confidence,
			CreatedAt:   now,
		}
		cctx, cancel := context.WithTimeout(ctx, e.timeout)
		if err := e.alerts.CreateAlert(cctx, alert); err != nil {
			e.lg.Error("alert emission failed", "zone", reading.ZoneID, "severity", d.Severity, "error", err)
			applied.AlertOK = false
		} else {
			e.lg.Info("alert created", "zone", reading.ZoneID, "alertId", alert.AlertID, "severity", d.Severity, "risk", fused.Level)
		}
		cancel()
	}

	if commit.Transitioned {
		cmd := model.VentilationCommand{
			ZoneID:   reading.ZoneID,
			Mode:     string(commit.Mode),
			Reason:   "risk " + fused.Level.String() + " dominant " + th.DominantGas,
			IssuedAt: now.UnixMilli(),
		}
		cctx, cancel := context.WithTimeout(ctx, e.timeout)
		if err := e.vents.SetVentilationMode(cctx, cmd); err != nil {
			e.lg.Error("ventilation emission failed", "zone", reading.ZoneID, "mode", commit.Mode, "error", err)
			applied.VentilationOK = false
		} else {
			e.lg.Info("ventilation transition", "zone", reading.ZoneID, "from", commit.PrevMode, "to", commit.Mode)
		}
		cancel()
	}

	if d.EmitAudit {
		ev := model.AuditEvent{
			TxID:        uuid.New().String(),
			ZoneID:      reading.ZoneID,
			RiskLevel:   fused.Level,
			Gases:       cloneGases(reading.Gases),
			DominantGas: th.DominantGas,
			Confidence:  fused.Confidence,
			Timestamp:   now,
		}
		cctx, cancel := context.WithTimeout(ctx, e.timeout)
		if err := e.audits.EmitAuditEvent(cctx, ev); err != nil {
			e.lg.Error("audit emission failed", "zone", reading.ZoneID, "txId", ev.TxID, "error", err)
			applied.AuditOK = false
		} else {
			e.lg.Info("audit event emitted", "zone", reading.ZoneID, "txId", ev.TxID, "risk", fused.Level)
		}
		cancel()
	}

	return applied
}

func cloneGases(src map[string]float64) map[string]float64 {
	dst := make(map[string]float64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
