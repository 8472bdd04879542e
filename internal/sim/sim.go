// Package sim is an API-driven scenario generator for exercising a gasguard
// deployment: it posts controlled gas readings to the core at a fixed
// interval and exposes a small control API to switch zones between leak
// scenarios.
package sim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/SanjayaWeerasinghe/GasGuard/internal/risk"
)

// Range is an inclusive PPM interval a scenario samples uniformly.
type Range struct {
	Low  float64
	High float64
}

// Template maps each gas to its sampling range for one scenario.
type Template map[string]Range

// Templates holds the PPM ranges calibrated to the default threshold tables,
// one per steady-state scenario.
var Templates = map[string]Template{
	"NORMAL": {
		risk.GasMethane:         {50, 300},
		risk.GasLPG:             {20, 200},
		risk.GasCarbonMonoxide:  {5, 20},
		risk.GasHydrogenSulfide: {0.5, 4},
	},
	"LOW_ANOMALY": {
		risk.GasMethane:         {1000, 1400},
		risk.GasLPG:             {500, 700},
		risk.GasCarbonMonoxide:  {25, 32},
		risk.GasHydrogenSulfide: {5, 8},
	},
	"UNUSUAL": {
		risk.GasMethane:         {2500, 3500},
		risk.GasLPG:             {1000, 1400},
		risk.GasCarbonMonoxide:  {35, 48},
		risk.GasHydrogenSulfide: {10, 14},
	},
	"ALERT": {
		risk.GasMethane:         {4000, 4800},
		risk.GasLPG:             {1500, 1900},
		risk.GasCarbonMonoxide:  {50, 95},
		risk.GasHydrogenSulfide: {15, 19},
	},
	"WARNING": {
		risk.GasMethane:         {5000, 6800},
		risk.GasLPG:             {2000, 2900},
		risk.GasCarbonMonoxide:  {100, 190},
		risk.GasHydrogenSulfide: {20, 45},
	},
	"CRITICAL": {
		risk.GasMethane:         {7000, 10000},
		risk.GasLPG:             {3000, 5000},
		risk.GasCarbonMonoxide:  {200, 400},
		risk.GasHydrogenSulfide: {50, 100},
	},
}

const (
	// GradualLeakSteps is the number of ticks the NORMAL to WARNING ramp
	// takes before holding at WARNING.
	GradualLeakSteps = 20
	gradualLeakHold  = 10
)

type zoneState struct {
	Scenario     string             `json:"scenario"`
	Remaining    *int               `json:"remaining"`
	CustomLevels map[string]float64 `json:"customLevels,omitempty"`
	LeakProgress float64            `json:"leakProgress,omitempty"`
	ActivatedAt  *time.Time         `json:"activatedAt,omitempty"`
}

// Engine drives the simulation loop and owns the per-zone scenario state.
type Engine struct {
	lg         *slog.Logger
	backendURL string
	zones      []string
	interval   time.Duration
	client     *http.Client
	rng        *rand.Rand

	mu        sync.Mutex
	states    map[string]*zoneState
	totalSent int
	sendErrs  int
	startedAt time.Time
}

// NewEngine initializes every zone to NORMAL.
func NewEngine(backendURL string, zones []string, interval time.Duration, lg *slog.Logger) *Engine {
	states := make(map[string]*zoneState, len(zones))
	for _, z := range zones {
		states[z] = &zoneState{Scenario: "NORMAL"}
	}
	return &Engine{
		lg:         lg,
		backendURL: backendURL,
		zones:      zones,
		interval:   interval,
		client:     &http.Client{Timeout: 5 * time.Second},
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		states:     states,
	}
}

// Run posts one reading per zone every interval until the context ends.
func (e *Engine) Run(ctx context.Context) {
	e.mu.Lock()
	e.startedAt = time.Now().UTC()
	e.mu.Unlock()
	e.lg.Info("simulation loop started", "zones", e.zones, "interval", e.interval)

	t := time.NewTicker(e.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			for _, zone := range e.zones {
				e.sendReading(ctx, zone, e.GenerateReading(zone))
				e.advance(zone)
			}
		}
	}
}

// GenerateReading samples gas levels for the zone's current scenario.
func (e *Engine) GenerateReading(zone string) map[string]float64 {
	e.mu.Lock()
	st := e.states[zone]
	scenario := st.Scenario
	custom := st.CustomLevels
	progress := st.LeakProgress
	e.mu.Unlock()

	if custom != nil {
		out := make(map[string]float64, len(risk.GasOrder))
		for i, gas := range risk.GasOrder {
			jitter := []float64{5, 3, 1, 0.5}[i]
			out[gas] = max(0, custom[gas]+e.uniform(-jitter, jitter))
		}
		return out
	}

	switch scenario {
	case "GRADUAL_LEAK":
		// Interpolate the sampling range from NORMAL toward WARNING.
		normal, warning := Templates["NORMAL"], Templates["WARNING"]
		out := make(map[string]float64, len(risk.GasOrder))
		for _, gas := range risk.GasOrder {
			low := normal[gas].Low + (warning[gas].Low-normal[gas].Low)*progress
			high := normal[gas].High + (warning[gas].High-normal[gas].High)*progress
			out[gas] = e.uniform(low, high)
		}
		return out
	case "SUDDEN_SPIKE":
		return e.sample(Templates["CRITICAL"])
	default:
		tpl, ok := Templates[scenario]
		if !ok {
			tpl = Templates["NORMAL"]
		}
		return e.sample(tpl)
	}
}

func (e *Engine) sample(tpl Template) map[string]float64 {
	out := make(map[string]float64, len(tpl))
	for gas, r := range tpl {
		out[gas] = e.uniform(r.Low, r.High)
	}
	return out
}

func (e *Engine) uniform(low, high float64) float64 {
	e.mu.Lock()
	v := low + e.rng.Float64()*(high-low)
	e.mu.Unlock()
	return v
}

// advance moves the zone's scenario state one tick: leak progress, duration
// countdown and the auto-revert to NORMAL.
func (e *Engine) advance(zone string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.states[zone]
	if st.Scenario == "GRADUAL_LEAK" {
		st.LeakProgress = min(1, st.LeakProgress+1.0/GradualLeakSteps)
		if st.LeakProgress < 1 {
			return
		}
	}
	if st.Remaining != nil {
		*st.Remaining--
		if *st.Remaining <= 0 {
			e.lg.Info("scenario expired, reverting to NORMAL", "zone", zone, "scenario", st.Scenario)
			*st = zoneState{Scenario: "NORMAL"}
		}
	}
}

func (e *Engine) sendReading(ctx context.Context, zone string, gases map[string]float64) {
	payload, err := json.Marshal(map[string]any{
		"zoneId":     zone,
		"gases":      gases,
		"observedAt": time.Now().UTC(),
	})
	if err != nil {
		e.lg.Error("marshal reading", "zone", zone, "error", err)
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.backendURL+"/api/readings", bytes.NewReader(payload))
	if err != nil {
		e.lg.Error("build request", "zone", zone, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.client.Do(req)
	if err != nil {
		e.lg.Error("send reading failed", "zone", zone, "error", err)
		e.mu.Lock()
		e.sendErrs++
		e.mu.Unlock()
		return
	}
	resp.Body.Close()
	e.mu.Lock()
	if resp.StatusCode == http.StatusOK {
		e.totalSent++
	} else {
		e.sendErrs++
		e.lg.Warn("backend rejected reading", "zone", zone, "status", resp.StatusCode)
	}
	e.mu.Unlock()
}

// Activate switches a zone to the named scenario. duration is in seconds;
// zero means the scenario's default (indefinite for steady states, one tick
// for SUDDEN_SPIKE, full ramp plus a hold for GRADUAL_LEAK).
func (e *Engine) Activate(zone, scenario string, duration int, custom map[string]float64) error {
	if !e.knownZone(zone) {
		return fmt.Errorf("unknown zone %q", zone)
	}
	if !validScenario(scenario) {
		return fmt.Errorf("unknown scenario %q", scenario)
	}
	if scenario == "CUSTOM" {
		for _, gas := range risk.GasOrder {
			if _, ok := custom[gas]; !ok {
				return fmt.Errorf("gasLevels must include %s", gas)
			}
		}
	}

	var remaining *int
	if duration > 0 {
		ticks := int(time.Duration(duration) * time.Second / e.interval)
		if ticks < 1 {
			ticks = 1
		}
		remaining = &ticks
	} else if scenario == "SUDDEN_SPIKE" {
		one := 1
		remaining = &one
	} else if scenario == "GRADUAL_LEAK" {
		hold := gradualLeakHold
		remaining = &hold
	}

	now := time.Now().UTC()
	st := &zoneState{Scenario: scenario, Remaining: remaining, ActivatedAt: &now}
	if scenario == "CUSTOM" {
		st.CustomLevels = custom
	}
	e.mu.Lock()
	e.states[zone] = st
	e.mu.Unlock()
	e.lg.Info("scenario activated", "zone", zone, "scenario", scenario, "durationSec", duration)
	return nil
}

// Reset returns one zone, or all zones for the empty string, to NORMAL.
func (e *Engine) Reset(zone string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if zone == "" || zone == "all" {
		for z := range e.states {
			e.states[z] = &zoneState{Scenario: "NORMAL"}
		}
		e.lg.Info("all zones reset to NORMAL")
		return nil
	}
	if _, ok := e.states[zone]; !ok {
		return fmt.Errorf("unknown zone %q", zone)
	}
	e.states[zone] = &zoneState{Scenario: "NORMAL"}
	e.lg.Info("zone reset to NORMAL", "zone", zone)
	return nil
}

// Status snapshots the per-zone states and loop counters.
func (e *Engine) Status() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	zones := make(map[string]zoneState, len(e.states))
	for z, st := range e.states {
		zones[z] = *st
	}
	return map[string]any{
		"zones": zones,
		"stats": map[string]any{
			"totalSent": e.totalSent,
			"errors":    e.sendErrs,
			"startedAt": e.startedAt,
		},
		"templates": ScenarioNames(),
	}
}

func (e *Engine) knownZone(zone string) bool {
	for _, z := range e.zones {
		if z == zone {
			return true
		}
	}
	return false
}

// ScenarioNames lists every scenario Activate accepts.
func ScenarioNames() []string {
	names := make([]string, 0, len(Templates)+3)
	for _, n := range []string{"NORMAL", "LOW_ANOMALY", "UNUSUAL", "ALERT", "WARNING", "CRITICAL"} {
		names = append(names, n)
	}
	return append(names, "GRADUAL_LEAK", "SUDDEN_SPIKE", "CUSTOM")
}

func validScenario(s string) bool {
	for _, n := range ScenarioNames() {
		if n == s {
			return true
		}
	}
	return false
}
