package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/simonhale/forecastcard/internal/card"
	"github.com/simonhale/forecastcard/internal/forecast"
)

type cardResponse struct {
	card.Snapshot
	Labels []card.Label `json:"labels,omitempty"`
}

func (s *Server) handleCard(w http.ResponseWriter, r *http.Request) {
	snap := s.card.Snapshot()

	resp := cardResponse{Snapshot: snap}
	active := snap.Daily
	if snap.ActiveType == forecast.TypeHourly {
		active = snap.Hourly
	}
	for _, sample := range active {
		resp.Labels = append(resp.Labels, s.labeler.For(sample, snap.ActiveType))
	}

	writeJSON(w, resp)
}

func (s *Server) handleSpans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.card.ConditionSpans())
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]forecast.Type{"active_type": s.card.ToggleView()})
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Width float64 `json:"width"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, s.card.RecomputeLayout(req.Width))
}

func (s *Server) handleScrollIndex(w http.ResponseWriter, r *http.Request) {
	at := time.Now()
	if d := r.URL.Query().Get("date"); d != "" {
		parsed, err := time.Parse("2006-01-02", d)
		if err != nil {
			http.Error(w, "bad date: "+err.Error(), http.StatusBadRequest)
			return
		}
		at = parsed
	}
	writeJSON(w, map[string]int{"index": s.card.IndexForDate(at)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
