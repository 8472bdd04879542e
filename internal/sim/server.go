package sim

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// Server is the simulator's control API.
type Server struct {
	lg     *slog.Logger
	engine *Engine
	http   *http.Server
}

func NewServer(bind string, engine *Engine, lg *slog.Logger) *Server {
	s := &Server{lg: lg, engine: engine}
	r := mux.NewRouter()
	r.HandleFunc("/health", s.getHealth).Methods(http.MethodGet)
	r.HandleFunc("/status", s.getStatus).Methods(http.MethodGet)
	r.HandleFunc("/scenario", s.postScenario).Methods(http.MethodPost)
	r.HandleFunc("/reset", s.postReset).Methods(http.MethodPost)
	s.http = &http.Server{Addr: bind, Handler: r, ReadTimeout: 10 * time.Second}
	return s
}

func (s *Server) Start() error {
	s.lg.Info("simulator control api starting", "bind", s.http.Addr)
	return s.http.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error { return s.http.Shutdown(ctx) }

// Handler exposes the routing tree for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

func (s *Server) getHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "online",
		"service":   "gasguard scenario simulator",
		"zones":     s.engine.zones,
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) getStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Status())
}

type scenarioRequest struct {
	Zone      string             `json:"zone"`
	Scenario  string             `json:"scenario"`
	Duration  int                `json:"duration"`
	GasLevels map[string]float64 `json:"gasLevels"`
}

func (s *Server) postScenario(w http.ResponseWriter, r *http.Request) {
	var req scenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "JSON body required"})
		return
	}
	if err := s.engine.Activate(req.Zone, req.Scenario, req.Duration, req.GasLevels); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"zone":     req.Zone,
		"scenario": req.Scenario,
		"duration": req.Duration,
	})
}

func (s *Server) postReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Zone string `json:"zone"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if err := s.engine.Reset(req.Zone); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
