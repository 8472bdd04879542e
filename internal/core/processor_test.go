package core

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/SanjayaWeerasinghe/GasGuard/internal/anomaly"
	"github.com/SanjayaWeerasinghe/GasGuard/internal/decision"
	"github.com/SanjayaWeerasinghe/GasGuard/internal/model"
	"github.com/SanjayaWeerasinghe/GasGuard/internal/risk"
	"github.com/SanjayaWeerasinghe/GasGuard/internal/sinks"
	"github.com/SanjayaWeerasinghe/GasGuard/internal/zonestate"
)

type scriptedPredictor struct {
	calls int
	next  []float64
	err   error
}

func (p *scriptedPredictor) PredictNext(_ context.Context, window [][]float64) ([]float64, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	if p.next != nil {
		return append([]float64(nil), p.next...), nil
	}
	return append([]float64(nil), window[len(window)-1]...), nil
}

type recordingSinks struct {
	alerts []model.Alert
	cmds   []model.VentilationCommand
	audits []model.AuditEvent
}

func (s *recordingSinks) CreateAlert(_ context.Context, a model.Alert) error {
	s.alerts = append(s.alerts, a)
	return nil
}

func (s *recordingSinks) SetVentilationMode(_ context.Context, cmd model.VentilationCommand) error {
	s.cmds = append(s.cmds, cmd)
	return nil
}

func (s *recordingSinks) EmitAuditEvent(_ context.Context, ev model.AuditEvent) error {
	s.audits = append(s.audits, ev)
	return nil
}

type recordingBroadcast struct {
	events []sinks.BroadcastEvent
}

func (b *recordingBroadcast) Publish(ev sinks.BroadcastEvent) { b.events = append(b.events, ev) }

func newTestProcessor(t *testing.T, pred anomaly.Predictor, sk *recordingSinks, bc Broadcaster) *Processor {
	t.Helper()
	lg := slog.New(slog.NewTextHandler(io.Discard, nil))
	classifier, err := risk.NewClassifier(risk.DefaultBands)
	if err != nil {
		t.Fatalf("classifier: %v", err)
	}
	store := zonestate.NewStore(zonestate.DefaultHistoryCap, zonestate.DefaultWindowLen)
	engine := decision.NewEngine(sk, sk, sk, time.Second, lg)
	return NewProcessor(classifier, anomaly.DefaultScaler(), anomaly.DefaultBands, pred, store, engine, bc, lg)
}

func safeReading(zone string) model.GasReading {
	return model.GasReading{
		ZoneID: zone,
		Gases: map[string]float64{
			risk.GasMethane:         500,
			risk.GasLPG:             200,
			risk.GasCarbonMonoxide:  10,
			risk.GasHydrogenSulfide: 2,
		},
		ObservedAt: time.Now().UTC(),
	}
}

func warmUp(t *testing.T, p *Processor, zone string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := p.ProcessReading(context.Background(), safeReading(zone)); err != nil {
			t.Fatalf("warmup reading %d: %v", i, err)
		}
	}
}

func TestProcessReadingRejectsInvalidInput(t *testing.T) {
	pred := &scriptedPredictor{}
	p := newTestProcessor(t, pred, &recordingSinks{}, nil)

	bad := safeReading("ZONE_A_01")
	bad.Gases["oxygen"] = 21

	_, err := p.ProcessReading(context.Background(), bad)
	if err == nil {
		t.Fatal("expected rejection for unknown gas type")
	}
	if p.Store().HistoryLen("ZONE_A_01") != 0 {
		t.Fatal("rejected reading must not mutate zone history")
	}
	if got := p.Stats().ReadingsBad; got != 1 {
		t.Fatalf("rejected counter = %d, want 1", got)
	}
}

func TestProcessReadingColdStartSkipsPredictor(t *testing.T) {
	pred := &scriptedPredictor{}
	p := newTestProcessor(t, pred, &recordingSinks{}, nil)

	var last model.Result
	for i := 0; i < zonestate.DefaultWindowLen-1; i++ {
		res, err := p.ProcessReading(context.Background(), safeReading("ZONE_A_01"))
		if err != nil {
			t.Fatalf("reading %d: %v", i, err)
		}
		last = res
	}
	if pred.calls != 0 {
		t.Fatalf("predictor called %d times before warmup", pred.calls)
	}
	if last.Anomaly.Risk != risk.Normal || last.Anomaly.PredictionError != 0 {
		t.Fatalf("cold start anomaly = %+v, want NORMAL with zero error", last.Anomaly)
	}
	if last.Anomaly.Trend != anomaly.TrendStable {
		t.Fatalf("cold start trend = %q, want stable", last.Anomaly.Trend)
	}

	res, err := p.ProcessReading(context.Background(), safeReading("ZONE_A_01"))
	if err != nil {
		t.Fatalf("warmed reading: %v", err)
	}
	if pred.calls != 1 {
		t.Fatalf("predictor calls after warmup = %d, want 1", pred.calls)
	}
	if res.RiskLevel != risk.Normal || res.Confidence != risk.ConfidenceHigh {
		t.Fatalf("quiet zone result = %v/%v, want NORMAL/high", res.RiskLevel, res.Confidence)
	}
}

func TestProcessReadingCriticalAppliesAllActions(t *testing.T) {
	pred := &scriptedPredictor{}
	sk := &recordingSinks{}
	bc := &recordingBroadcast{}
	p := newTestProcessor(t, pred, sk, bc)

	crit := safeReading("ZONE_B_02")
	crit.Gases[risk.GasMethane] = 8500

	res, err := p.ProcessReading(context.Background(), crit)
	if err != nil {
		t.Fatalf("critical reading: %v", err)
	}
	if res.RiskLevel != risk.Critical {
		t.Fatalf("risk = %v, want CRITICAL", res.RiskLevel)
	}
	if !res.Alarm || !res.Ventilation {
		t.Fatalf("alarm=%v ventilation=%v, want both true", res.Alarm, res.Ventilation)
	}
	if res.Actions != (model.ActionsApplied{AlertOK: true, VentilationOK: true, AuditOK: true}) {
		t.Fatalf("actions = %+v", res.Actions)
	}
	if len(sk.alerts) != 1 || sk.alerts[0].Severity != risk.SeverityCritical {
		t.Fatalf("alerts = %+v, want one critical", sk.alerts)
	}
	if len(sk.cmds) != 1 || sk.cmds[0].Mode != string(zonestate.VentForced) {
		t.Fatalf("ventilation commands = %+v, want one FORCED", sk.cmds)
	}
	if len(sk.audits) != 1 {
		t.Fatalf("audit events = %d, want 1", len(sk.audits))
	}
	if p.Store().Mode("ZONE_B_02") != zonestate.VentForced {
		t.Fatal("zone not latched FORCED")
	}
	if len(bc.events) != 1 || bc.events[0].Result.RiskLevel != risk.Critical {
		t.Fatalf("broadcast events = %+v", bc.events)
	}

	// Same input again: FORCED is already latched, so no second command.
	if _, err := p.ProcessReading(context.Background(), crit); err != nil {
		t.Fatalf("second critical reading: %v", err)
	}
	if len(sk.cmds) != 1 {
		t.Fatalf("ventilation commands after repeat = %d, want 1", len(sk.cmds))
	}
	if len(sk.alerts) != 2 {
		t.Fatalf("alerts after repeat = %d, want 2", len(sk.alerts))
	}
}

func TestProcessReadingDegradesWhenPredictorDown(t *testing.T) {
	pred := &scriptedPredictor{}
	p := newTestProcessor(t, pred, &recordingSinks{}, nil)
	warmUp(t, p, "ZONE_A_01", zonestate.DefaultWindowLen)

	pred.err = anomaly.ErrUnavailable
	res, err := p.ProcessReading(context.Background(), safeReading("ZONE_A_01"))
	if err != nil {
		t.Fatalf("degraded reading must still classify: %v", err)
	}
	if res.Confidence != risk.ConfidenceLow {
		t.Fatalf("degraded confidence = %v, want low", res.Confidence)
	}
	if res.RiskLevel != risk.Normal {
		t.Fatalf("degraded risk = %v, want threshold-only NORMAL", res.RiskLevel)
	}
	if got := p.Stats().Degraded; got != 1 {
		t.Fatalf("degraded counter = %d, want 1", got)
	}
}

func TestProcessReadingFailsClosedOnInvariantViolation(t *testing.T) {
	pred := &scriptedPredictor{next: []float64{0.1, 0.1}}
	p := newTestProcessor(t, pred, &recordingSinks{}, nil)
	warmUp(t, p, "ZONE_A_01", zonestate.DefaultWindowLen-1)

	_, err := p.ProcessReading(context.Background(), safeReading("ZONE_A_01"))
	if err == nil {
		t.Fatal("expected failure for short prediction vector")
	}
}

func TestProcessReadingAnomalyOvershootEscalates(t *testing.T) {
	pred := &scriptedPredictor{}
	p := newTestProcessor(t, pred, &recordingSinks{}, nil)
	warmUp(t, p, "ZONE_C_03", zonestate.DefaultWindowLen)

	// Predict the quiet baseline while the observation jumps: methane
	// 500->6999 ppm moves one normalized feature by 0.65, a mean absolute
	// error of 0.1625, inside the LOW_ANOMALY band.
	pred.next = []float64{0.05, 0.04, 0.025, 0.02}
	spike := safeReading("ZONE_C_03")
	spike.Gases[risk.GasMethane] = 6999

	res, err := p.ProcessReading(context.Background(), spike)
	if err != nil {
		t.Fatalf("spike reading: %v", err)
	}
	if res.Anomaly.Risk != risk.LowAnomaly {
		t.Fatalf("anomaly risk = %v (err %.4f), want LOW_ANOMALY", res.Anomaly.Risk, res.Anomaly.PredictionError)
	}
	// Threshold WARNING (6000 ppm methane) dominates the fusion.
	if res.RiskLevel != risk.Warning {
		t.Fatalf("fused risk = %v, want WARNING", res.RiskLevel)
	}
	if res.Anomaly.Trend != anomaly.TrendIncreasing {
		t.Fatalf("trend = %q, want increasing after quiet history", res.Anomaly.Trend)
	}
}

func TestStatsAccumulate(t *testing.T) {
	pred := &scriptedPredictor{}
	sk := &recordingSinks{}
	p := newTestProcessor(t, pred, sk, nil)

	warn := safeReading("ZONE_A_01")
	warn.Gases[risk.GasMethane] = 6000
	if _, err := p.ProcessReading(context.Background(), warn); err != nil {
		t.Fatalf("warning reading: %v", err)
	}
	if _, err := p.ProcessReading(context.Background(), safeReading("ZONE_A_01")); err != nil {
		t.Fatalf("quiet reading: %v", err)
	}

	st := p.Stats()
	if st.ReadingsIn != 2 {
		t.Fatalf("readingsIn = %d, want 2", st.ReadingsIn)
	}
	if st.AlertsCreated != 1 || st.AuditEvents != 1 || st.VentTransitions != 1 {
		t.Fatalf("stats = %+v, want one alert, one audit, one transition", st)
	}
}
