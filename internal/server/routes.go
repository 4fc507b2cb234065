package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/epheterson/energy-dashboard/internal/solar"
	"github.com/epheterson/energy-dashboard/internal/ws"
)

// Routes builds the HTTP mux: the JSON API, the live WebSocket endpoint,
// health and metrics, and the static frontend when present.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/config", s.handleConfig)
	mux.HandleFunc("GET /api/today", s.handleToday)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/solar", s.handleSolar)

	wsHandler := ws.NewHandler(s.hub)
	wsHandler.OnRefresh = func() {
		s.cache.Invalidate("today")
		go s.refreshToday(context.Background())
	}
	mux.Handle("/api/live", wsHandler)

	if dir := s.cfg.Server.StaticDir; dir != "" {
		if _, err := os.Stat(dir); err == nil {
			log.Printf("Serving frontend from %s", dir)
			mux.Handle("/", http.FileServer(http.Dir(dir)))
		}
	}
	return mux
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"solar_enabled": s.SolarEnabled(),
		"plan_name":     s.cfg.Tariff.PlanName,
	})
}

func (s *Server) handleToday(w http.ResponseWriter, r *http.Request) {
	resp, err := s.Today(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		log.Printf("Today error: %v", err)
		writeError(w, http.StatusBadGateway, "could not fetch data")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	resp, err := s.History(r.Context(), queryDays(r))
	if err != nil {
		log.Printf("History error: %v", err)
		writeError(w, http.StatusBadGateway, "could not fetch data")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSolar(w http.ResponseWriter, r *http.Request) {
	resp, err := s.Solar(r.Context(), queryDays(r))
	switch {
	case errors.Is(err, ErrSolarDisabled):
		writeError(w, http.StatusNotFound, "solar not configured")
	case errors.Is(err, solar.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "solar data unavailable")
	case err != nil:
		log.Printf("Solar error: %v", err)
		writeError(w, http.StatusBadGateway, "could not fetch solar data")
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

func queryDays(r *http.Request) int {
	days, err := strconv.Atoi(r.URL.Query().Get("days"))
	if err != nil {
		return 7
	}
	return days
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
