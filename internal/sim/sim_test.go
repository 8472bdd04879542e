package sim

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/SanjayaWeerasinghe/GasGuard/internal/risk"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	lg := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEngine("http://localhost:0", []string{"ZONE_A_01", "ZONE_B_02"}, 2*time.Second, lg)
}

func TestGenerateReadingStaysInTemplateRange(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Activate("ZONE_A_01", "CRITICAL", 0, nil); err != nil {
		t.Fatalf("activate: %v", err)
	}
	for i := 0; i < 50; i++ {
		gases := e.GenerateReading("ZONE_A_01")
		for _, gas := range risk.GasOrder {
			r := Templates["CRITICAL"][gas]
			if gases[gas] < r.Low || gases[gas] > r.High {
				t.Fatalf("%s = %.2f outside [%v, %v]", gas, gases[gas], r.Low, r.High)
			}
		}
	}
}

func TestGradualLeakRampsTowardWarning(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Activate("ZONE_A_01", "GRADUAL_LEAK", 0, nil); err != nil {
		t.Fatalf("activate: %v", err)
	}
	for i := 0; i < GradualLeakSteps+2; i++ {
		e.advance("ZONE_A_01")
	}
	gases := e.GenerateReading("ZONE_A_01")
	w := Templates["WARNING"][risk.GasMethane]
	if gases[risk.GasMethane] < w.Low || gases[risk.GasMethane] > w.High {
		t.Fatalf("methane after full ramp = %.2f, want WARNING range [%v, %v]", gases[risk.GasMethane], w.Low, w.High)
	}
}

func TestSuddenSpikeRevertsAfterOneTick(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Activate("ZONE_A_01", "SUDDEN_SPIKE", 0, nil); err != nil {
		t.Fatalf("activate: %v", err)
	}
	e.advance("ZONE_A_01")
	e.mu.Lock()
	scenario := e.states["ZONE_A_01"].Scenario
	e.mu.Unlock()
	if scenario != "NORMAL" {
		t.Fatalf("scenario after spike tick = %q, want NORMAL", scenario)
	}
}

func TestActivateValidation(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Activate("ZONE_X_99", "NORMAL", 0, nil); err == nil {
		t.Fatal("expected unknown zone error")
	}
	if err := e.Activate("ZONE_A_01", "MELTDOWN", 0, nil); err == nil {
		t.Fatal("expected unknown scenario error")
	}
	if err := e.Activate("ZONE_A_01", "CUSTOM", 0, map[string]float64{"methane": 5}); err == nil {
		t.Fatal("expected incomplete gasLevels error")
	}
}

func TestCustomLevelsNeverNegative(t *testing.T) {
	e := newTestEngine(t)
	levels := map[string]float64{
		risk.GasMethane:         0,
		risk.GasLPG:             0,
		risk.GasCarbonMonoxide:  0,
		risk.GasHydrogenSulfide: 0,
	}
	if err := e.Activate("ZONE_A_01", "CUSTOM", 0, levels); err != nil {
		t.Fatalf("activate: %v", err)
	}
	for i := 0; i < 50; i++ {
		for gas, v := range e.GenerateReading("ZONE_A_01") {
			if v < 0 {
				t.Fatalf("%s = %.2f, jitter must not go negative", gas, v)
			}
		}
	}
}

func TestControlAPI(t *testing.T) {
	e := newTestEngine(t)
	lg := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer(":0", e, lg)

	post := func(path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		return rec
	}

	if rec := post("/scenario", `{"zone":"ZONE_A_01","scenario":"WARNING","duration":60}`); rec.Code != http.StatusOK {
		t.Fatalf("activate = %d %s", rec.Code, rec.Body.String())
	}
	if rec := post("/scenario", `{"zone":"ZONE_A_01","scenario":"MELTDOWN"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad scenario = %d, want 400", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var st map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !strings.Contains(string(st["zones"]), "WARNING") {
		t.Fatalf("status zones = %s, want active WARNING scenario", st["zones"])
	}

	if rec := post("/reset", `{"zone":"all"}`); rec.Code != http.StatusOK {
		t.Fatalf("reset = %d", rec.Code)
	}
}
