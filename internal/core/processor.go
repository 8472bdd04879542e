// Package core wires the classification pipeline: validate, classify by
// threshold, update zone history, predict, fuse, decide, emit. ProcessReading
// is the single entry point the transports call, exactly once per validated
// reading.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SanjayaWeerasinghe/GasGuard/internal/anomaly"
	"github.com/SanjayaWeerasinghe/GasGuard/internal/decision"
	"github.com/SanjayaWeerasinghe/GasGuard/internal/metrics"
	"github.com/SanjayaWeerasinghe/GasGuard/internal/model"
	"github.com/SanjayaWeerasinghe/GasGuard/internal/risk"
	"github.com/SanjayaWeerasinghe/GasGuard/internal/sinks"
	"github.com/SanjayaWeerasinghe/GasGuard/internal/zonestate"
)

// Broadcaster pushes classification events to real-time consumers on a
// best-effort basis. It must never block.
type Broadcaster interface {
	Publish(ev sinks.BroadcastEvent)
}

// Stats holds the counters served by /status.
type Stats struct {
	ReadingsIn      int64 `json:"readingsIn"`
	ReadingsBad     int64 `json:"readingsRejected"`
	AlertsCreated   int64 `json:"alertsCreated"`
	AuditEvents     int64 `json:"auditEvents"`
	VentTransitions int64 `json:"ventilationTransitions"`
	Degraded        int64 `json:"degradedClassifications"`
}

// Processor is the hybrid classification and decision core.
type Processor struct {
	lg        *slog.Logger
	scaler    *anomaly.Scaler
	predictor anomaly.Predictor
	store     *zonestate.Store
	engine    *decision.Engine
	broadcast Broadcaster // optional

	// tuning is swapped wholesale on properties reload.
	tuningMu   sync.RWMutex
	classifier *risk.Classifier
	bands      anomaly.Bands

	readingsIn      atomic.Int64
	readingsBad     atomic.Int64
	alertsCreated   atomic.Int64
	auditEvents     atomic.Int64
	ventTransitions atomic.Int64
	degraded        atomic.Int64
}

// NewProcessor assembles the core. broadcast may be nil.
func NewProcessor(classifier *risk.Classifier, scaler *anomaly.Scaler, bands anomaly.Bands, predictor anomaly.Predictor, store *zonestate.Store, engine *decision.Engine, broadcast Broadcaster, lg *slog.Logger) *Processor {
	return &Processor{
		lg:         lg,
		classifier: classifier,
		scaler:     scaler,
		bands:      bands,
		predictor:  predictor,
		store:      store,
		engine:     engine,
		broadcast:  broadcast,
	}
}

// ProcessReading runs the full pipeline for one reading. Validation failures
// reject before any state mutation; predictor outages degrade to
// threshold-only fusion; collaborator failures surface in the returned
// ActionsApplied while the classification itself is always delivered when
// computable.
func (p *Processor) ProcessReading(ctx context.Context, reading model.GasReading) (model.Result, error) {
	if err := reading.Validate(); err != nil {
		p.readingsBad.Add(1)
		metrics.ReadingsRejected.Inc()
		return model.Result{}, err
	}
	if reading.ObservedAt.IsZero() {
		reading.ObservedAt = time.Now().UTC()
	}

	p.tuningMu.RLock()
	classifier, bands := p.classifier, p.bands
	p.tuningMu.RUnlock()

	th, err := classifier.ClassifyMultiGas(reading.Gases)
	if err != nil {
		p.readingsBad.Add(1)
		metrics.ReadingsRejected.Inc()
		return model.Result{}, err
	}

	norm, err := p.scaler.Transform(reading.Vector())
	if err != nil {
		p.lg.Error("scaler invariant violation", "zone", reading.ZoneID, "error", err)
		return model.Result{}, fmt.Errorf("%w: %v", anomaly.ErrInvariant, err)
	}

	// Critical section one: append to history and snapshot the prediction
	// window. The slow predictor call runs outside the zone lock.
	snap := p.store.Append(reading.ZoneID, norm)

	var (
		anomalyLevel = risk.Normal
		predErr      float64
		hasErr       bool
		available    = true
	)
	if snap.Ready {
		start := time.Now()
		pred, perr := p.predictor.PredictNext(ctx, snap.Window)
		metrics.PredictorLatency.Observe(time.Since(start).Seconds())
		switch {
		case perr == nil:
			predErr, perr = anomaly.PredictionError(pred, snap.Window[len(snap.Window)-1])
			if perr != nil {
				p.lg.Error("prediction error invariant violation", "zone", reading.ZoneID, "error", perr)
				return model.Result{}, perr
			}
			anomalyLevel = bands.LevelForError(predErr)
			hasErr = true
		case errors.Is(perr, anomaly.ErrUnavailable):
			// Degraded mode: threshold-only fusion, confidence forced low.
			available = false
			p.degraded.Add(1)
			metrics.PredictorUnavailable.Inc()
			p.lg.Warn("predictor unavailable, threshold-only classification", "zone", reading.ZoneID, "error", perr)
		default:
			p.lg.Error("predictor invariant violation", "zone", reading.ZoneID, "error", perr)
			return model.Result{}, perr
		}
	}

	fused := risk.Fuse(th.OverallRisk, anomalyLevel, available)
	directives := decision.Decide(fused)

	// Critical section two: record the error sample and commit the
	// ventilation decision against the zone's current, possibly advanced,
	// state.
	commit := p.store.Commit(reading.ZoneID, snap.Seq, predErr, hasErr, fused.Level, directives.DesiredVent)
	if commit.Stale {
		p.lg.Info("zone advanced during prediction, committed against latest state", "zone", reading.ZoneID)
	}

	trend := anomaly.TrendStable
	if hasErr {
		trend = anomaly.TrendOf(predErr, commit.PrevErrors)
	}

	applied := p.engine.Apply(ctx, reading, th, fused, commit, directives)

	p.accountFor(reading.ZoneID, fused, directives, commit, applied)

	result := model.Result{
		ZoneID:          reading.ZoneID,
		RiskLevel:       fused.Level,
		Confidence:      fused.Confidence,
		LeakProbability: fused.LeakProbability,
		Threshold:       th,
		Anomaly: model.AnomalyClassification{
			Risk:            anomalyLevel,
			PredictionError: predErr,
			Trend:           trend,
		},
		Notify:      fused.Level == risk.Unusual || fused.Level == risk.Alert,
		Alarm:       fused.Level >= risk.Warning,
		Ventilation: fused.Level >= risk.Warning,
		Recommended: risk.RecommendedAction(fused.Level),
		Actions:     applied,
		Timestamp:   time.Now().UTC(),
	}

	if p.broadcast != nil {
		p.broadcast.Publish(sinks.BroadcastEvent{Reading: reading, Result: result})
	}
	return result, nil
}

func (p *Processor) accountFor(zoneID string, fused risk.Fused, d decision.Directives, commit zonestate.CommitResult, applied model.ActionsApplied) {
	p.readingsIn.Add(1)
	metrics.ReadingsProcessed.WithLabelValues(zoneID).Inc()
	metrics.Classifications.WithLabelValues(fused.Level.String()).Inc()
	if d.CreateAlert {
		p.alertsCreated.Add(1)
		metrics.AlertsCreated.WithLabelValues(string(d.Severity)).Inc()
	}
	if d.EmitAudit {
		p.auditEvents.Add(1)
	}
	if commit.Transitioned {
		p.ventTransitions.Add(1)
		metrics.VentilationTransitions.WithLabelValues(string(commit.Mode)).Inc()
	}
	if !applied.AlertOK {
		metrics.EmissionFailures.WithLabelValues("alert").Inc()
	}
	if !applied.VentilationOK {
		metrics.EmissionFailures.WithLabelValues("ventilation").Inc()
	}
	if !applied.AuditOK {
		metrics.EmissionFailures.WithLabelValues("audit").Inc()
	}
}

// UpdateTuning swaps the threshold tables and anomaly bands, typically after
// a properties reload. In-flight readings finish on the tuning they started
// with.
func (p *Processor) UpdateTuning(classifier *risk.Classifier, bands anomaly.Bands) {
	p.tuningMu.Lock()
	p.classifier = classifier
	p.bands = bands
	p.tuningMu.Unlock()
}

// Stats snapshots the processing counters.
func (p *Processor) Stats() Stats {
	return Stats{
		ReadingsIn:      p.readingsIn.Load(),
		ReadingsBad:     p.readingsBad.Load(),
		AlertsCreated:   p.alertsCreated.Load(),
		AuditEvents:     p.auditEvents.Load(),
		VentTransitions: p.ventTransitions.Load(),
		Degraded:        p.degraded.Load(),
	}
}

// Store exposes the zone registry for read-only transport queries.
func (p *Processor) Store() *zonestate.Store { return p.store }
