// Package httpapi exposes the core over HTTP: reading ingestion for
// deployments without an MQTT broker, zone and alert queries, health,
// status counters, metrics and properties reload.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SanjayaWeerasinghe/GasGuard/internal/anomaly"
	"github.com/SanjayaWeerasinghe/GasGuard/internal/config"
	"github.com/SanjayaWeerasinghe/GasGuard/internal/core"
	"github.com/SanjayaWeerasinghe/GasGuard/internal/model"
	"github.com/SanjayaWeerasinghe/GasGuard/internal/risk"
)

// AlertsReader serves the recent-alerts query. A nil reader disables the
// endpoint rather than failing startup.
type AlertsReader interface {
	RecentAlerts(ctx context.Context, n int) ([]model.Alert, error)
}

type Server struct {
	cfg    *config.AppConfig
	lg     *slog.Logger
	proc   *core.Processor
	alerts AlertsReader
	http   *http.Server
}

func NewServer(cfg *config.AppConfig, lg *slog.Logger, proc *core.Processor, alerts AlertsReader) *Server {
	s := &Server{cfg: cfg, lg: lg, proc: proc, alerts: alerts}

	r := mux.NewRouter()
	r.HandleFunc("/api/readings", s.postReading).Methods(http.MethodPost)
	r.HandleFunc("/health", s.getHealth).Methods(http.MethodGet)
	r.HandleFunc("/status", s.getStatus).Methods(http.MethodGet)
	r.HandleFunc("/zones", s.getZones).Methods(http.MethodGet)
	r.HandleFunc("/zones/{zoneId}", s.getZone).Methods(http.MethodGet)
	r.HandleFunc("/alerts/recent", s.getRecentAlerts).Methods(http.MethodGet)
	r.HandleFunc("/config/reload", s.postReload).Methods(http.MethodPost)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	s.http = &http.Server{
		Addr:         cfg.HTTPBind,
		Handler:      handlers.CombinedLoggingHandler(loggerWriter{lg}, r),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return s
}

func (s *Server) Start() error {
	s.lg.Info("http server starting", "bind", s.cfg.HTTPBind)
	return s.http.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.lg.Info("http server stopping")
	return s.http.Shutdown(ctx)
}

// Handler exposes the routing tree for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

func (s *Server) postReading(w http.ResponseWriter, r *http.Request) {
	var reading model.GasReading
	if err := json.NewDecoder(r.Body).Decode(&reading); err != nil {
		writeError(w, http.StatusBadRequest, "malformed reading payload")
		return
	}
	res, err := s.proc.ProcessReading(r.Context(), reading)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, risk.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, anomaly.ErrInvariant):
		s.lg.Error("reading processing failed", "zone", reading.ZoneID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal invariant violation")
	default:
		s.lg.Error("reading processing failed", "zone", reading.ZoneID, "error", err)
		writeError(w, http.StatusInternalServerError, "processing failed")
	}
}

func (s *Server) getHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "UP",
		"zonesTracked":   len(s.proc.Store().ZoneIDs()),
		"configuredFor":  s.cfg.Zones(),
		"predictorBound": s.cfg.PredictorURL != "",
	})
}

func (s *Server) getStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.proc.Stats())
}

func (s *Server) getZones(w http.ResponseWriter, _ *http.Request) {
	ids := s.proc.Store().ZoneIDs()
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		if st, ok := s.proc.Store().Status(id); ok {
			out = append(out, st)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getZone(w http.ResponseWriter, r *http.Request) {
	zoneID := mux.Vars(r)["zoneId"]
	st, ok := s.proc.Store().Status(zoneID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown zone "+zoneID)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) getRecentAlerts(w http.ResponseWriter, r *http.Request) {
	if s.alerts == nil {
		writeError(w, http.StatusNotImplemented, "alert store not configured")
		return
	}
	alerts, err := s.alerts.RecentAlerts(r.Context(), 50)
	if err != nil {
		s.lg.Error("recent alerts query failed", "error", err)
		writeError(w, http.StatusBadGateway, "alert store unavailable")
		return
	}
	if alerts == nil {
		alerts = []model.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) postReload(w http.ResponseWriter, _ *http.Request) {
	if err := s.cfg.ReloadProperties(); err != nil {
		s.lg.Error("properties reload failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	classifier, err := risk.NewClassifier(s.cfg.ThresholdBands())
	if err != nil {
		s.lg.Error("reloaded thresholds rejected", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.proc.UpdateTuning(classifier, s.cfg.AnomalyBands())
	s.lg.Info("properties reloaded")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// loggerWriter adapts slog for gorilla's access-log handler.
type loggerWriter struct{ lg *slog.Logger }

func (w loggerWriter) Write(p []byte) (int, error) {
	w.lg.Info("http access", "line", string(p))
	return len(p), nil
}
