package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/SanjayaWeerasinghe/GasGuard/internal/anomaly"
	"github.com/SanjayaWeerasinghe/GasGuard/internal/config"
	"github.com/SanjayaWeerasinghe/GasGuard/internal/core"
	"github.com/SanjayaWeerasinghe/GasGuard/internal/decision"
	"github.com/SanjayaWeerasinghe/GasGuard/internal/model"
	"github.com/SanjayaWeerasinghe/GasGuard/internal/risk"
	"github.com/SanjayaWeerasinghe/GasGuard/internal/zonestate"
)

type echoPredictor struct{}

func (echoPredictor) PredictNext(_ context.Context, window [][]float64) ([]float64, error) {
	return append([]float64(nil), window[len(window)-1]...), nil
}

type nullSinks struct{}

func (nullSinks) CreateAlert(context.Context, model.Alert) error                 { return nil }
func (nullSinks) SetVentilationMode(context.Context, model.VentilationCommand) error { return nil }
func (nullSinks) EmitAuditEvent(context.Context, model.AuditEvent) error         { return nil }

type staticAlerts struct{ alerts []model.Alert }

func (s staticAlerts) RecentAlerts(context.Context, int) ([]model.Alert, error) {
	return s.alerts, nil
}

func newTestServer(t *testing.T, alerts AlertsReader) (*Server, *config.AppConfig) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gasguard.properties")
	if err := os.WriteFile(path, []byte("zones=ZONE_A_01,ZONE_B_02\n"), 0o644); err != nil {
		t.Fatalf("write properties: %v", err)
	}
	cfg := &config.AppConfig{HTTPBind: ":0", PropertiesPath: path}
	if err := cfg.ReloadProperties(); err != nil {
		t.Fatalf("load properties: %v", err)
	}

	lg := slog.New(slog.NewTextHandler(io.Discard, nil))
	classifier, err := risk.NewClassifier(cfg.ThresholdBands())
	if err != nil {
		t.Fatalf("classifier: %v", err)
	}
	store := zonestate.NewStore(zonestate.DefaultHistoryCap, zonestate.DefaultWindowLen)
	engine := decision.NewEngine(nullSinks{}, nullSinks{}, nullSinks{}, time.Second, lg)
	proc := core.NewProcessor(classifier, anomaly.DefaultScaler(), cfg.AnomalyBands(), echoPredictor{}, store, engine, nil, lg)
	return NewServer(cfg, lg, proc, alerts), cfg
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

const quietReading = `{"zoneId":"ZONE_A_01","gases":{"methane":500,"lpg":200,"carbonMonoxide":10,"hydrogenSulfide":2}}`

func TestPostReadingClassifies(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(t, s, http.MethodPost, "/api/readings", quietReading)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var res model.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.ZoneID != "ZONE_A_01" || res.RiskLevel != risk.Normal {
		t.Fatalf("result = %+v", res)
	}
}

func TestPostReadingRejections(t *testing.T) {
	s, _ := newTestServer(t, nil)
	for name, body := range map[string]string{
		"malformed json": `{"zoneId":`,
		"unknown gas":    `{"zoneId":"Z","gases":{"methane":1,"lpg":1,"carbonMonoxide":1,"hydrogenSulfide":1,"oxygen":21}}`,
		"missing gas":    `{"zoneId":"Z","gases":{"methane":1}}`,
		"negative ppm":   `{"zoneId":"Z","gases":{"methane":-5,"lpg":1,"carbonMonoxide":1,"hydrogenSulfide":1}}`,
	} {
		t.Run(name, func(t *testing.T) {
			if rec := do(t, s, http.MethodPost, "/api/readings", body); rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestZoneEndpoints(t *testing.T) {
	s, _ := newTestServer(t, nil)
	if rec := do(t, s, http.MethodGet, "/zones/ZONE_A_01", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unseen zone status = %d, want 404", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/readings", quietReading); rec.Code != http.StatusOK {
		t.Fatalf("seed reading status = %d", rec.Code)
	}
	rec := do(t, s, http.MethodGet, "/zones/ZONE_A_01", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("zone status = %d", rec.Code)
	}
	var st zonestate.ZoneStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode zone: %v", err)
	}
	if st.ZoneID != "ZONE_A_01" || st.HistoryLen != 1 {
		t.Fatalf("zone = %+v", st)
	}

	rec = do(t, s, http.MethodGet, "/zones", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ZONE_A_01") {
		t.Fatalf("zones list = %d %s", rec.Code, rec.Body.String())
	}
}

func TestHealthAndStatus(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(t, s, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"UP"`) {
		t.Fatalf("health = %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, s, http.MethodGet, "/status", ""); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRecentAlerts(t *testing.T) {
	s, _ := newTestServer(t, nil)
	if rec := do(t, s, http.MethodGet, "/alerts/recent", ""); rec.Code != http.StatusNotImplemented {
		t.Fatalf("without store status = %d, want 501", rec.Code)
	}
	s, _ = newTestServer(t, staticAlerts{alerts: []model.Alert{{AlertID: "a1", ZoneID: "Z"}}})
	rec := do(t, s, http.MethodGet, "/alerts/recent", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "a1") {
		t.Fatalf("alerts = %d %s", rec.Code, rec.Body.String())
	}
}

func TestReloadSwapsThresholds(t *testing.T) {
	s, cfg := newTestServer(t, nil)

	if err := os.WriteFile(cfg.PropertiesPath, []byte("zones=ZONE_A_01\nthresholds.methane=100,200,300,400,450\n"), 0o644); err != nil {
		t.Fatalf("rewrite properties: %v", err)
	}
	if rec := do(t, s, http.MethodPost, "/config/reload", ""); rec.Code != http.StatusOK {
		t.Fatalf("reload = %d %s", rec.Code, rec.Body.String())
	}

	// 500 ppm methane was NORMAL under the defaults; the tightened table
	// puts it in the CRITICAL band.
	rec := do(t, s, http.MethodPost, "/api/readings", quietReading)
	if rec.Code != http.StatusOK {
		t.Fatalf("post-reload reading = %d", rec.Code)
	}
	var res model.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.RiskLevel != risk.Critical {
		t.Fatalf("post-reload risk = %v, want CRITICAL", res.RiskLevel)
	}
}
