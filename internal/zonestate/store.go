// Package zonestate owns all per-zone mutable state: the normalized history
// buffer feeding the anomaly detector, the recent prediction errors feeding
// the trend computation, and the ventilation actuator mode. Access is guarded
// by one mutex per zone so unrelated zones never contend.
package zonestate

import (
	"sort"
	"sync"
	"time"

	"github.com/SanjayaWeerasinghe/GasGuard/internal/risk"
)

// VentilationMode is the per-zone actuator state. The automated path only
// ever escalates: OFF < AUTO < FORCED, and FORCED is a latch cleared only by
// an explicit operator override outside this core.
type VentilationMode string

const (
	VentOff    VentilationMode = "OFF"
	VentAuto   VentilationMode = "AUTO"
	VentForced VentilationMode = "FORCED"
)

func ventRank(m VentilationMode) int {
	switch m {
	case VentAuto:
		return 1
	case VentForced:
		return 2
	default:
		return 0
	}
}

const (
	// DefaultHistoryCap bounds the per-zone history buffer.
	DefaultHistoryCap = 50
	// DefaultWindowLen is the minimum history required before the sequence
	// predictor runs; below it the detector is in cold start.
	DefaultWindowLen = 10
	// errorMemory is how many past prediction errors feed the trend.
	errorMemory = 5
)

type zoneState struct {
	mu           sync.Mutex
	history      [][]float64
	recentErrors []float64
	vent         VentilationMode
	lastRisk     risk.Level
	lastUpdated  time.Time
	seq          uint64
}

// Store is the keyed zone-state registry. Zones are created lazily on first
// reading and never destroyed.
type Store struct {
	mu         sync.RWMutex
	zones      map[string]*zoneState
	historyCap int
	windowLen  int
}

// NewStore builds a store with the given history capacity and prediction
// window length. Non-positive values take the defaults.
func NewStore(historyCap, windowLen int) *Store {
	if historyCap <= 0 {
		historyCap = DefaultHistoryCap
	}
	if windowLen <= 0 {
		windowLen = DefaultWindowLen
	}
	if windowLen > historyCap {
		windowLen = historyCap
	}
	return &Store{
		zones:      make(map[string]*zoneState),
		historyCap: historyCap,
		windowLen:  windowLen,
	}
}

func (s *Store) zone(zoneID string) *zoneState {
	s.mu.RLock()
	z, ok := s.zones[zoneID]
	s.mu.RUnlock()
	if ok {
		return z
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if z, ok = s.zones[zoneID]; ok {
		return z
	}
	z = &zoneState{vent: VentOff, lastRisk: risk.Normal}
	s.zones[zoneID] = z
	return z
}

// Snapshot is the state handed out by Append for the slow prediction step
// that runs outside the zone lock.
type Snapshot struct {
	// Window holds copies of the most recent windowLen normalized vectors,
	// current reading included. Nil while the zone is in cold start.
	Window [][]float64
	// Ready is false during cold start.
	Ready bool
	// Seq identifies the history state this snapshot was taken at, for
	// staleness detection at commit time.
	Seq uint64
}

// Append records one normalized reading vector in the zone history, evicting
// the oldest entry on overflow, and returns the prediction window snapshot.
// The append and the snapshot are one critical section, so concurrent
// readings for the same zone each see a consistent window and no appends are
// lost.
func (s *Store) Append(zoneID string, vec []float64) Snapshot {
	z := s.zone(zoneID)
	z.mu.Lock()
	defer z.mu.Unlock()

	owned := append([]float64(nil), vec...)
	z.history = append(z.history, owned)
	if len(z.history) > s.historyCap {
		z.history = append([][]float64(nil), z.history[len(z.history)-s.historyCap:]...)
	}
	z.seq++
	z.lastUpdated = time.Now()

	snap := Snapshot{Seq: z.seq}
	if len(z.history) >= s.windowLen {
		snap.Ready = true
		snap.Window = make([][]float64, s.windowLen)
		for i, row := range z.history[len(z.history)-s.windowLen:] {
			snap.Window[i] = append([]float64(nil), row...)
		}
	}
	return snap
}

// CommitResult reports what the commit critical section did.
type CommitResult struct {
	// PrevErrors is a copy of the prediction errors recorded before this
	// commit, for the trend computation.
	PrevErrors []float64
	// PrevMode and Mode are the ventilation modes before and after.
	PrevMode VentilationMode
	Mode     VentilationMode
	// Transitioned is true only on an actual mode change; the actuator is
	// driven only then.
	Transitioned bool
	// Stale means another reading for this zone advanced the history between
	// snapshot and commit. The commit still applies; the flag is logged.
	Stale bool
}

// Commit finishes one reading's processing under the zone lock: it records
// the prediction error, applies the ventilation escalation (never a
// downgrade) and stores the last fused risk. desired is the mode the
// decision tier asked for; the zone moves to it only when it outranks the
// current mode, which makes FORCED re-entry a no-op and the latch inherent.
func (s *Store) Commit(zoneID string, seq uint64, predErr float64, hasErr bool, fused risk.Level, desired VentilationMode) CommitResult {
	z := s.zone(zoneID)
	z.mu.Lock()
	defer z.mu.Unlock()

	res := CommitResult{
		PrevErrors: append([]float64(nil), z.recentErrors...),
		PrevMode:   z.vent,
		Mode:       z.vent,
		Stale:      z.seq != seq,
	}
	if hasErr {
		z.recentErrors = append(z.recentErrors, predErr)
		if len(z.recentErrors) > errorMemory {
			z.recentErrors = append([]float64(nil), z.recentErrors[len(z.recentErrors)-errorMemory:]...)
		}
	}
	if ventRank(desired) > ventRank(z.vent) {
		z.vent = desired
		res.Mode = desired
		res.Transitioned = true
	}
	z.lastRisk = fused
	z.lastUpdated = time.Now()
	return res
}

// Mode returns the zone's current ventilation mode; unknown zones are OFF.
func (s *Store) Mode(zoneID string) VentilationMode {
	s.mu.RLock()
	z, ok := s.zones[zoneID]
	s.mu.RUnlock()
	if !ok {
		return VentOff
	}
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.vent
}

// HistoryLen reports the current buffer size for a zone.
func (s *Store) HistoryLen(zoneID string) int {
	s.mu.RLock()
	z, ok := s.zones[zoneID]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	z.mu.Lock()
	defer z.mu.Unlock()
	return len(z.history)
}

// ZoneStatus is the read-only per-zone view served by the HTTP API.
type ZoneStatus struct {
	ZoneID      string          `json:"zoneId"`
	HistoryLen  int             `json:"historyLen"`
	Ventilation VentilationMode `json:"ventilationMode"`
	LastRisk    risk.Level      `json:"lastRiskLevel"`
	LastUpdated time.Time       `json:"lastUpdated"`
}

// Status returns the current view of one zone.
func (s *Store) Status(zoneID string) (ZoneStatus, bool) {
	s.mu.RLock()
	z, ok := s.zones[zoneID]
	s.mu.RUnlock()
	if !ok {
		return ZoneStatus{}, false
	}
	z.mu.Lock()
	defer z.mu.Unlock()
	return ZoneStatus{
		ZoneID:      zoneID,
		HistoryLen:  len(z.history),
		Ventilation: z.vent,
		LastRisk:    z.lastRisk,
		LastUpdated: z.lastUpdated,
	}, true
}

// ZoneIDs lists all zones seen so far, sorted for stable output.
func (s *Store) ZoneIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.zones))
	for id := range s.zones {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
