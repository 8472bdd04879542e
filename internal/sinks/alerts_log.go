package sinks

import (
	"context"
	"log/slog"

	"github.com/SanjayaWeerasinghe/GasGuard/internal/model"
)

// LogAlertSink is the fallback alert store for deployments without Redis:
// alerts land in the structured log and nowhere else.
type LogAlertSink struct {
	lg *slog.Logger
}

func NewLogAlertSink(lg *slog.Logger) *LogAlertSink { return &LogAlertSink{lg: lg} }

func (s *LogAlertSink) CreateAlert(_ context.Context, a model.Alert) error {
	s.lg.Warn("alert (log-only store)",
		"alertId", a.AlertID,
		"zone", a.ZoneID,
		"severity", a.Severity,
		"risk", a.RiskLevel,
		"dominantGas", a.DominantGas,
		"confidence", a.Confidence)
	return nil
}
