package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/mtsiakos/skopos/internal/query"
	"github.com/mtsiakos/skopos/internal/roster"
	"github.com/mtsiakos/skopos/internal/store"
)

func (s *Server) registerAPI(mux *http.ServeMux) {
	// Queries
	mux.HandleFunc("GET /api/queries", s.listQueries)
	mux.HandleFunc("POST /api/queries", s.startQuery)
	mux.HandleFunc("GET /api/queries/{id}", s.getQuery)
	mux.HandleFunc("GET /api/queries/{id}/progress", s.getProgress)
	mux.HandleFunc("POST /api/queries/{id}/end", s.endQuery)
	mux.HandleFunc("DELETE /api/queries/{id}", s.deleteQuery)

	// Roster
	mux.HandleFunc("GET /api/roster", s.getRoster)

	// System
	mux.HandleFunc("GET /api/status", s.getStatus)
}

func (s *Server) listQueries(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	runs, err := s.store.ListQueryRuns(limit)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	active := make(map[string]bool)
	for _, id := range s.coord.ActiveQueries() {
		active[id] = true
	}

	out := make([]map[string]any, 0, len(runs))
	for _, run := range runs {
		out = append(out, runToAPI(run, active[run.ID]))
	}
	jsonResponse(w, out)
}

func (s *Server) startQuery(w http.ResponseWriter, r *http.Request) {
	var req query.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	id, err := s.coord.StartQuery(req)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	jsonResponse(w, map[string]string{"id": id, "status": "running"})
}

func (s *Server) getQuery(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	run, err := s.store.GetQueryRun(id)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		jsonError(w, "query not found", http.StatusNotFound)
		return
	}

	_, live := s.coord.Snapshot(id)
	jsonResponse(w, runToAPI(*run, live))
}

// getProgress serves the current overview: the live session snapshot for an
// active query, the persisted final snapshot otherwise.
func (s *Server) getProgress(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if ov, ok := s.coord.Snapshot(id); ok {
		jsonResponse(w, ov)
		return
	}

	run, err := s.store.GetQueryRun(id)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		jsonError(w, "query not found", http.StatusNotFound)
		return
	}
	if len(run.Snapshot) == 0 {
		jsonError(w, "no snapshot recorded", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(run.Snapshot)
}

func (s *Server) endQuery(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.coord.EndQuery(id); err != nil {
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	jsonResponse(w, map[string]string{"status": "cancelled"})
}

func (s *Server) deleteQuery(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if _, live := s.coord.Snapshot(id); live {
		jsonError(w, "query is active, end it first", http.StatusConflict)
		return
	}
	if err := s.store.DeleteQueryRun(id); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": "deleted"})
}

func (s *Server) getRoster(w http.ResponseWriter, r *http.Request) {
	groups := s.ros.Groups()

	agents := make([]roster.Agent, 0)
	for _, id := range s.ros.AllLeaves() {
		agents = append(agents, s.ros.Display(id))
	}

	jsonResponse(w, map[string]any{
		"groups":       groups,
		"agents":       agents,
		"report_group": roster.ReportGroup(),
	})
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, map[string]any{
		"version":        s.version,
		"uptime":         formatUptime(time.Since(s.startedAt)),
		"active_queries": len(s.coord.ActiveQueries()),
		"ws_clients":     s.hub.Clients(),
	})
}

func runToAPI(run store.QueryRun, live bool) map[string]any {
	m := map[string]any{
		"id":         run.ID,
		"question":   run.Question,
		"mode":       run.Mode,
		"report":     run.Report,
		"status":     run.Status,
		"live":       live,
		"started_at": formatRunTime(run.StartedAt),
	}
	if len(run.Agents) > 0 {
		m["agents"] = run.Agents
	}
	if run.CompletedAt != nil {
		m["completed_at"] = formatRunTime(*run.CompletedAt)
	}
	return m
}

func formatRunTime(t time.Time) string {
	local := t.Local()
	now := time.Now()
	if local.Year() == now.Year() && local.YearDay() == now.YearDay() {
		return local.Format("15:04")
	}
	return local.Format("Jan 2 15:04")
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}

func jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
