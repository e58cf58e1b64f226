package server

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Warn("write response", zap.Error(err))
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "observer",
		"message": "observer test application",
		"uptime":  time.Since(s.start).String(),
		"endpoints": []string{
			"/", "/health", "/simulate", "/error", "/config", "/metrics",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleSimulate performs a random slice of work between MinDelay and
// MaxDelay, failing with a synthetic 500 at the configured error rate.
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	spread := s.cfg.MaxDelay - s.cfg.MinDelay
	delay := s.cfg.MinDelay + time.Duration(s.randFloat()*float64(spread))

	select {
	case <-time.After(delay):
	case <-r.Context().Done():
		// Client gave up; nothing left to answer.
		return
	}

	if s.randFloat() < s.cfg.ErrorRate {
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "simulated failure",
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "completed",
		"duration_ms": delay.Milliseconds(),
	})
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "intentional error",
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"listen_addr":  s.cfg.ListenAddr,
		"error_rate":   s.cfg.ErrorRate,
		"min_delay_ms": s.cfg.MinDelay.Milliseconds(),
		"max_delay_ms": s.cfg.MaxDelay.Milliseconds(),
	})
}
